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

package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"storagemcp/platform/agent/dispatch"
	"storagemcp/platform/agent/ratelimit"
	"storagemcp/platform/agent/session"
	"storagemcp/platform/agent/tools"
	"storagemcp/platform/connectors/base"
	"storagemcp/platform/connectors/localfs"
	"storagemcp/platform/connectors/sdk"
)

// stubStore is an in-memory storage backend recording its calls.
type stubStore struct {
	mu      sync.Mutex
	calls   int
	healthy bool
	buckets []base.Bucket
	metrics *sdk.ConnectorMetrics

	// When gate is set, ListBuckets signals listing and waits for gate
	// to close before answering.
	gate     chan struct{}
	listing  chan struct{}
	finished int
}

func newStubStore() *stubStore {
	return &stubStore{
		healthy: true,
		metrics: sdk.NewConnectorMetrics("stub"),
		buckets: []base.Bucket{
			{Name: "zeta", CreationDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{Name: "alpha", CreationDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func (s *stubStore) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubStore) Finished() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *stubStore) GetMetrics() *sdk.ConnectorMetrics { return s.metrics }

func (s *stubStore) Connect(ctx context.Context, cfg *base.ConnectorConfig) error { return nil }
func (s *stubStore) Disconnect(ctx context.Context) error                        { return nil }
func (s *stubStore) Name() string                                                { return "stub" }
func (s *stubStore) Type() string                                                { return "s3" }
func (s *stubStore) Version() string                                             { return "test" }

func (s *stubStore) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	status := &base.HealthStatus{Healthy: s.healthy, Latency: 3 * time.Millisecond, Timestamp: time.Now()}
	if !s.healthy {
		status.Error = "connection refused"
	}
	return status, nil
}

func (s *stubStore) ListBuckets(ctx context.Context) ([]base.Bucket, error) {
	s.hit()
	start := time.Now()
	if s.gate != nil {
		close(s.listing)
		<-s.gate
	}
	s.mu.Lock()
	s.finished++
	s.mu.Unlock()
	s.metrics.RecordQuery(time.Since(start), nil)
	return s.buckets, nil
}

func (s *stubStore) CreateBucket(ctx context.Context, name string) error { s.hit(); return nil }
func (s *stubStore) DeleteBucket(ctx context.Context, name string) error { s.hit(); return nil }

func (s *stubStore) LocateBucket(ctx context.Context, name string) (string, error) {
	s.hit()
	return "us-east-1", nil
}

func (s *stubStore) ListObjects(ctx context.Context, in *base.ListObjectsInput) (*base.ObjectList, error) {
	s.hit()
	return &base.ObjectList{Bucket: in.Bucket, Prefix: in.Prefix}, nil
}

func (s *stubStore) PutObject(ctx context.Context, in *base.PutObjectInput) (string, error) {
	s.hit()
	_, err := io.Copy(io.Discard, in.Body)
	return "etag", err
}

func (s *stubStore) GetObject(ctx context.Context, in *base.GetObjectInput) (int64, error) {
	s.hit()
	return 0, base.NewNotFoundError("s3", "GetObject", "object not found", errors.New("NoSuchKey"))
}

func (s *stubStore) DeleteObject(ctx context.Context, bucket, key string) error { s.hit(); return nil }

func (s *stubStore) HeadObject(ctx context.Context, bucket, key string) (*base.ObjectMetadata, error) {
	s.hit()
	return nil, base.NewNotFoundError("s3", "HeadObject", "object not found", errors.New("NotFound: Not Found"))
}

func (s *stubStore) Presign(ctx context.Context, in *base.PresignInput) (*base.PresignedURL, error) {
	s.hit()
	return &base.PresignedURL{URL: "https://example.test/" + in.Key, Operation: in.Operation, ExpiresIn: in.ExpiresIn}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) error {
	return ratelimit.ErrLimitExceeded
}

func newTestServer(store *stubStore, limiter ratelimit.Limiter) *Server {
	registry := tools.NewRegistry()
	d := dispatch.New(registry, store, dispatch.WithFileSystem(localfs.NewMemory()))
	sessions := session.NewManager(session.WithLogger(log.New(io.Discard, "", 0)))
	return NewServer(registry, d, sessions, ServerOptions{Limiter: limiter, Backend: store})
}
