// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretValueAPI struct {
	values map[string]*string
	err    error
	calls  int
}

func (f *fakeSecretValueAPI) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.values[aws.ToString(in.SecretId)]}, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestMaskARN(t *testing.T) {
	tests := []struct {
		name     string
		arn      string
		expected string
	}{
		{"full ARN", "arn:aws:secretsmanager:us-east-1:123456789012:secret:my-secret-abc123", "...t-abc123"},
		{"short ARN", "short", "***"},
		{"exactly 12 chars", "123456789012", "***"},
		{"13 chars", "1234567890123", "...67890123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := maskARN(tt.arn); result != tt.expected {
				t.Errorf("maskARN(%q) = %q, want %q", tt.arn, result, tt.expected)
			}
		})
	}
}

func TestAWSSecretsManagerGetSecret(t *testing.T) {
	const (
		jsonARN  = "arn:aws:secretsmanager:us-east-1:1:secret:json"
		plainARN = "arn:aws:secretsmanager:us-east-1:1:secret:plain"
		nilARN   = "arn:aws:secretsmanager:us-east-1:1:secret:binary"
	)
	client := &fakeSecretValueAPI{values: map[string]*string{
		jsonARN:  aws.String(`{"access_key_id":"AKIA","secret_access_key":"s3cr3t"}`),
		plainARN: aws.String("just-a-token"),
		nilARN:   nil,
	}}

	mgr, err := NewAWSSecretsManager(context.Background(), AWSSecretsManagerOptions{
		Client: client,
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	t.Run("json secret", func(t *testing.T) {
		got, err := mgr.GetSecret(context.Background(), jsonARN)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"access_key_id": "AKIA", "secret_access_key": "s3cr3t"}, got)
	})

	t.Run("second read is cached", func(t *testing.T) {
		before := client.calls
		_, err := mgr.GetSecret(context.Background(), jsonARN)
		require.NoError(t, err)
		assert.Equal(t, before, client.calls)
	})

	t.Run("plain secret", func(t *testing.T) {
		got, err := mgr.GetSecret(context.Background(), plainARN)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"value": "just-a-token"}, got)
	})

	t.Run("no string value", func(t *testing.T) {
		_, err := mgr.GetSecret(context.Background(), nilARN)
		assert.ErrorContains(t, err, "no string value")
	})
}

func TestAWSSecretsManagerClientError(t *testing.T) {
	mgr, err := NewAWSSecretsManager(context.Background(), AWSSecretsManagerOptions{
		Client: &fakeSecretValueAPI{err: errors.New("access denied")},
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	_, err = mgr.GetSecret(context.Background(), "arn:aws:secretsmanager:us-east-1:1:secret:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.NotContains(t, err.Error(), "us-east-1:1", "ARN must be masked")
}

func TestLocalSecretsManager(t *testing.T) {
	mgr := NewLocalSecretsManager(quietLogger())

	_, err := mgr.GetSecret(context.Background(), "missing")
	assert.Error(t, err)

	mgr.SetSecret("creds", map[string]string{"access_key_id": "AKIA"})
	got, err := mgr.GetSecret(context.Background(), "creds")
	require.NoError(t, err)
	assert.Equal(t, "AKIA", got["access_key_id"])

	var _ SecretsManager = mgr
}
