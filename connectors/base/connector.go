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

package base

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is matched by errors.Is for any backend error reporting an
// absent bucket or key.
var ErrNotFound = errors.New("not found")

// Connector is the lifecycle half of a storage backend.
type Connector interface {
	Connect(ctx context.Context, config *ConnectorConfig) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	Name() string
	Type() string
	Version() string
}

// ObjectStore is the storage gateway contract the dispatcher calls into.
// Each method maps to exactly one backend request, except Presign which
// signs locally.
type ObjectStore interface {
	ListBuckets(ctx context.Context) ([]Bucket, error)
	CreateBucket(ctx context.Context, name string) error
	DeleteBucket(ctx context.Context, name string) error
	LocateBucket(ctx context.Context, name string) (string, error)

	ListObjects(ctx context.Context, in *ListObjectsInput) (*ObjectList, error)
	PutObject(ctx context.Context, in *PutObjectInput) (string, error)
	GetObject(ctx context.Context, in *GetObjectInput) (int64, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error)

	Presign(ctx context.Context, in *PresignInput) (*PresignedURL, error)
}

// ConnectorConfig holds the configuration for a connector instance
type ConnectorConfig struct {
	Name          string                 `json:"name"`           // Unique name for this connector
	Type          string                 `json:"type"`           // Type: s3
	ConnectionURL string                 `json:"connection_url"` // Backend endpoint
	Credentials   map[string]string      `json:"credentials"`    // access_key_id, secret_access_key
	Options       map[string]interface{} `json:"options"`        // region, force_path_style
	Timeout       time.Duration          `json:"timeout"`
}

// Bucket is one entry of a bucket listing.
type Bucket struct {
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creation_date"`
}

// ObjectSummary is one entry of an object listing.
type ObjectSummary struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
	StorageClass string    `json:"-"`
}

// ObjectList is a single page of an object listing.
type ObjectList struct {
	Bucket                string          `json:"bucket"`
	Prefix                string          `json:"prefix"`
	Count                 int             `json:"count"`
	Objects               []ObjectSummary `json:"objects"`
	IsTruncated           bool            `json:"is_truncated"`
	NextContinuationToken string          `json:"next_continuation_token,omitempty"`
}

// ObjectMetadata is the result of a HEAD request. It is never cached.
type ObjectMetadata struct {
	Bucket       string            `json:"bucket"`
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
	Metadata     map[string]string `json:"metadata"`
}

// ListObjectsInput selects a page of objects. MaxKeys <= 0 means the backend default.
type ListObjectsInput struct {
	Bucket            string
	Prefix            string
	MaxKeys           int32
	ContinuationToken string
}

// PutObjectInput streams Body to Bucket/Key. Size is sent as Content-Length
// when non-negative.
type PutObjectInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
}

// GetObjectInput streams the object at Bucket/Key into Sink.
type GetObjectInput struct {
	Bucket string
	Key    string
	Sink   io.Writer
}

// Presign operations
const (
	PresignGet = "get"
	PresignPut = "put"
)

// PresignInput describes a URL to sign.
type PresignInput struct {
	Bucket      string
	Key         string
	Operation   string
	ExpiresIn   time.Duration
	ContentType string
}

// PresignedURL is a signed, time-limited URL.
type PresignedURL struct {
	URL       string        `json:"url"`
	Method    string        `json:"method"`
	Operation string        `json:"operation"`
	ExpiresIn time.Duration `json:"-"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// HealthStatus represents the health of a connector
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`   // Overall health status
	Latency   time.Duration     `json:"latency"`   // Connection latency
	Details   map[string]string `json:"details"`   // Additional diagnostic info
	Timestamp time.Time         `json:"timestamp"` // When health check was performed
	Error     string            `json:"error"`     // Error message if unhealthy
}

// ConnectorError represents errors specific to connector operations
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
	NotFound      bool
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// Is reports NotFound errors as ErrNotFound.
func (e *ConnectorError) Is(target error) bool {
	return target == ErrNotFound && e.NotFound
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}

// NewNotFoundError creates a ConnectorError that matches ErrNotFound.
func NewNotFoundError(connectorName, operation, message string, cause error) *ConnectorError {
	e := NewConnectorError(connectorName, operation, message, cause)
	e.NotFound = true
	return e
}

// BackendMessage returns the innermost message of a connector error, the
// text the backend itself reported, falling back to err.Error().
func BackendMessage(err error) string {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		if ce.Cause != nil {
			return ce.Cause.Error()
		}
		return ce.Message
	}
	return err.Error()
}
