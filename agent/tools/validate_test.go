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

package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storagemcp/platform/agent/protocol"
)

func kindOf(t *testing.T, err error) protocol.ErrorKind {
	t.Helper()
	var perr *protocol.Error
	require.True(t, errors.As(err, &perr), "expected *protocol.Error, got %T", err)
	return perr.Kind
}

func TestValidateRejections(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		tool    string
		args    map[string]interface{}
		kind    protocol.ErrorKind
		message string
	}{
		{"unknown tool", "s3_bucket", map[string]interface{}{"action": "list"},
			protocol.KindMethodNotFound, "unknown tool: s3_bucket"},
		{"missing action", ToolBucket, map[string]interface{}{},
			protocol.KindInvalidParams, "missing required parameter: action"},
		{"empty action", ToolBucket, map[string]interface{}{"action": ""},
			protocol.KindInvalidParams, "missing required parameter: action"},
		{"unknown action", ToolBucket, map[string]interface{}{"action": "rename"},
			protocol.KindInvalidParams, "invalid action rename: must be one of list, create, delete, location"},
		{"non-string action", ToolBucket, map[string]interface{}{"action": 3.0},
			protocol.KindInvalidParams, "invalid action 3: must be one of list, create, delete, location"},
		{"bucket create without name", ToolBucket, map[string]interface{}{"action": "create"},
			protocol.KindInvalidParams, "missing required parameter for bucket create: name"},
		{"object missing bucket", ToolObject, map[string]interface{}{"action": "list"},
			protocol.KindInvalidParams, "missing required parameter: bucket"},
		{"tool-level before enum", ToolObject, map[string]interface{}{"action": "nope"},
			protocol.KindInvalidParams, "missing required parameter: bucket"},
		{"upload without local_path", ToolObject, map[string]interface{}{"action": "upload", "bucket": "b", "key": "k"},
			protocol.KindInvalidParams, "missing required parameter for object upload: local_path"},
		{"metadata without key", ToolObject, map[string]interface{}{"action": "metadata", "bucket": "b"},
			protocol.KindInvalidParams, "missing required parameter for object metadata: key"},
		{"string max_keys", ToolObject, map[string]interface{}{"action": "list", "bucket": "b", "max_keys": "10"},
			protocol.KindInvalidParams, "parameter max_keys must be an integer"},
		{"fractional max_keys", ToolObject, map[string]interface{}{"action": "list", "bucket": "b", "max_keys": 1.5},
			protocol.KindInvalidParams, "parameter max_keys must be an integer"},
		{"zero max_keys", ToolObject, map[string]interface{}{"action": "list", "bucket": "b", "max_keys": 0.0},
			protocol.KindInvalidParams, "parameter max_keys must be at least 1"},
		{"max_keys beyond int32", ToolObject, map[string]interface{}{"action": "list", "bucket": "b", "max_keys": 4294967297.0},
			protocol.KindInvalidParams, "parameter max_keys must be at most 2147483647"},
		{"numeric bucket", ToolObject, map[string]interface{}{"action": "list", "bucket": 12.0},
			protocol.KindInvalidParams, "parameter bucket must be a string"},
		{"presign missing key", ToolPresign, map[string]interface{}{"bucket": "b"},
			protocol.KindInvalidParams, "missing required parameter: key"},
		{"presign bad operation", ToolPresign, map[string]interface{}{"bucket": "b", "key": "k", "operation": "delete"},
			protocol.KindInvalidParams, "invalid operation delete: must be one of get, put"},
		{"presign expiry too long", ToolPresign, map[string]interface{}{"bucket": "b", "key": "k", "expires_in": 604801.0},
			protocol.KindInvalidParams, "parameter expires_in must be at most 604800"},
		{"presign expiry zero", ToolPresign, map[string]interface{}{"bucket": "b", "key": "k", "expires_in": 0.0},
			protocol.KindInvalidParams, "parameter expires_in must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := r.Validate(tt.tool, tt.args)
			require.Error(t, err)
			assert.Nil(t, call)
			assert.Equal(t, tt.kind, kindOf(t, err))

			var perr *protocol.Error
			errors.As(err, &perr)
			assert.Equal(t, tt.message, perr.Message)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	r := NewRegistry()

	t.Run("object list max_keys", func(t *testing.T) {
		call, err := r.Validate(ToolObject, map[string]interface{}{"action": "list", "bucket": "b"})
		require.NoError(t, err)
		assert.Equal(t, "list", call.Action)
		assert.Equal(t, int64(1000), call.Int("max_keys"))
		assert.False(t, call.Has("prefix"))
	})

	t.Run("presign operation and expiry", func(t *testing.T) {
		call, err := r.Validate(ToolPresign, map[string]interface{}{"bucket": "b", "key": "k"})
		require.NoError(t, err)
		assert.Equal(t, "", call.Action)
		assert.Equal(t, "get", call.String("operation"))
		assert.Equal(t, int64(3600), call.Int("expires_in"))
	})

	t.Run("supplied values win", func(t *testing.T) {
		call, err := r.Validate(ToolPresign, map[string]interface{}{
			"bucket": "b", "key": "k", "operation": "put", "expires_in": 60.0, "content_type": "image/png",
		})
		require.NoError(t, err)
		assert.Equal(t, "put", call.String("operation"))
		assert.Equal(t, int64(60), call.Int("expires_in"))
		assert.Equal(t, "image/png", call.String("content_type"))
	})

	t.Run("null treated as absent", func(t *testing.T) {
		call, err := r.Validate(ToolObject, map[string]interface{}{"action": "list", "bucket": "b", "max_keys": nil})
		require.NoError(t, err)
		assert.Equal(t, int64(1000), call.Int("max_keys"))
	})

	t.Run("unknown arguments ignored", func(t *testing.T) {
		call, err := r.Validate(ToolBucket, map[string]interface{}{"action": "list", "region": 5.0})
		require.NoError(t, err)
		assert.False(t, call.Has("region"))
	})
}

func TestValidateNilArgs(t *testing.T) {
	r := NewRegistry()
	_, err := r.Validate(ToolBucket, nil)
	assert.Equal(t, protocol.KindInvalidParams, kindOf(t, err))
}
