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

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"storagemcp/platform/connectors/base"
)

const xmlns = `xmlns="http://s3.amazonaws.com/doc/2006-03-01/"`

// fakeS3 is a minimal path-style S3 endpoint backed by a map.
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	objects  map[string][]byte
	location string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		bodies:  make(map[string]string),
		objects: make(map[string][]byte),
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	q := r.URL.Query()
	f.requests = append(f.requests, r.Method+" /"+path)
	f.bodies[r.Method+" /"+path] = string(body)

	if bucket == "broken" {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>InternalError</Code><Message>We encountered an internal error.</Message><RequestId>req-1</RequestId></Error>`)
		return
	}

	switch {
	case bucket == "" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListAllMyBucketsResult %s><Owner><ID>owner</ID></Owner><Buckets>`+
			`<Bucket><Name>zeta</Name><CreationDate>2024-01-02T03:04:05.000Z</CreationDate></Bucket>`+
			`<Bucket><Name>alpha</Name><CreationDate>2023-06-01T00:00:00.000Z</CreationDate></Bucket>`+
			`</Buckets></ListAllMyBucketsResult>`, xmlns)

	case key == "" && r.Method == http.MethodGet && q.Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		if f.location == "" {
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint %s/>`, xmlns)
			return
		}
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint %s>%s</LocationConstraint>`, xmlns, f.location)

	case key == "" && r.Method == http.MethodGet && q.Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult %s><Name>%s</Name><Prefix>%s</Prefix>`+
			`<KeyCount>2</KeyCount><MaxKeys>%s</MaxKeys><IsTruncated>true</IsTruncated><NextContinuationToken>next-page</NextContinuationToken>`+
			`<Contents><Key>logs/a.txt</Key><LastModified>2024-05-01T10:00:00.000Z</LastModified><ETag>&quot;etag-a&quot;</ETag><Size>3</Size><StorageClass>STANDARD</StorageClass></Contents>`+
			`<Contents><Key>logs/b.txt</Key><LastModified>2024-05-02T10:00:00.000Z</LastModified><ETag>&quot;etag-b&quot;</ETag><Size>5</Size><StorageClass>STANDARD</StorageClass></Contents>`+
			`</ListBucketResult>`, xmlns, bucket, q.Get("prefix"), q.Get("max-keys"))

	case key == "" && r.Method == http.MethodPut:
		w.WriteHeader(http.StatusOK)

	case key == "" && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut:
		f.objects[bucket+"/"+key] = body
		w.Header().Set("ETag", `"etag-put"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet:
		data, ok := f.objects[bucket+"/"+key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key></Error>`, key)
			return
		}
		w.Header().Set("ETag", `"etag-get"`)
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		_, _ = w.Write(data)

	case r.Method == http.MethodHead:
		data, ok := f.objects[bucket+"/"+key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", `"etag-head"`)
		w.Header().Set("Last-Modified", "Wed, 01 May 2024 10:00:00 GMT")
		w.Header().Set("x-amz-meta-owner", "team-a")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodDelete:
		delete(f.objects, bucket+"/"+key)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) body(req string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[req]
}

func (f *fakeS3) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func connectTo(t *testing.T, endpoint, region string) *S3Connector {
	t.Helper()
	conn := NewS3Connector()

	err := conn.Connect(context.Background(), &base.ConnectorConfig{
		Name:          "s3",
		Type:          "s3",
		ConnectionURL: endpoint,
		Credentials: map[string]string{
			"access_key_id":     "AKIATEST",
			"secret_access_key": "SECRET",
		},
		Options: map[string]interface{}{
			"region":           region,
			"force_path_style": true,
		},
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return conn
}

func startFake(t *testing.T) (*fakeS3, string) {
	t.Helper()
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

func TestNewS3Connector(t *testing.T) {
	conn := NewS3Connector()

	if conn.Type() != "s3" {
		t.Errorf("expected type s3, got %s", conn.Type())
	}
	if conn.Version() != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", conn.Version())
	}
}

func TestS3ConnectorOperationsWithoutConnect(t *testing.T) {
	conn := NewS3Connector()
	ctx := context.Background()

	if _, err := conn.ListBuckets(ctx); err == nil {
		t.Error("expected error when listing without connection")
	}
	if _, err := conn.Presign(ctx, &base.PresignInput{Bucket: "b", Key: "k", Operation: "get", ExpiresIn: time.Minute}); err == nil {
		t.Error("expected error when presigning without connection")
	}

	status, err := conn.HealthCheck(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Healthy {
		t.Error("expected unhealthy status without connection")
	}
}

func TestS3ConnectorConnect(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		conn := NewS3Connector()
			err := conn.Connect(context.Background(), &base.ConnectorConfig{Name: "s3"})
		if err == nil {
			t.Fatal("expected error without credentials")
		}
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		conn := NewS3Connector()
			err := conn.Connect(context.Background(), &base.ConnectorConfig{
			Name:          "s3",
			ConnectionURL: "ftp://storage.local",
			Credentials:   map[string]string{"access_key_id": "a", "secret_access_key": "b"},
		})
		if err == nil || !strings.Contains(err.Error(), "invalid endpoint") {
			t.Fatalf("expected invalid endpoint error, got %v", err)
		}
	})

	t.Run("no network on connect", func(t *testing.T) {
		// nothing listens on this port
		conn := connectTo(t, "http://127.0.0.1:1", "us-east-1")
		if !conn.IsConnected() {
			t.Error("expected connected")
		}
		status, err := conn.HealthCheck(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Healthy {
			t.Error("expected unhealthy status for unreachable backend")
		}
	})
}

func TestS3ConnectorHealthCheck(t *testing.T) {
	fake, endpoint := startFake(t)
	conn := connectTo(t, endpoint, "us-east-1")

	status, err := conn.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Healthy {
		t.Fatalf("expected healthy, got error %q", status.Error)
	}
	if status.Details["region"] != "us-east-1" {
		t.Errorf("unexpected details: %v", status.Details)
	}
	if fake.requestCount() != 1 {
		t.Errorf("expected exactly one backend request, got %d", fake.requestCount())
	}
}

func TestS3ConnectorListBuckets(t *testing.T) {
	_, endpoint := startFake(t)
	conn := connectTo(t, endpoint, "us-east-1")

	buckets, err := conn.ListBuckets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	// backend order, not sorted
	if buckets[0].Name != "zeta" || buckets[1].Name != "alpha" {
		t.Errorf("unexpected order: %v", buckets)
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if !buckets[0].CreationDate.Equal(want) {
		t.Errorf("creation date = %v, want %v", buckets[0].CreationDate, want)
	}
}

func TestS3ConnectorCreateBucket(t *testing.T) {
	t.Run("us-east-1 sends no location constraint", func(t *testing.T) {
		fake, endpoint := startFake(t)
		conn := connectTo(t, endpoint, "us-east-1")

		if err := conn.CreateBucket(context.Background(), "reports"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body := fake.body("PUT /reports"); strings.Contains(body, "LocationConstraint") {
			t.Errorf("unexpected location constraint in body: %s", body)
		}
	})

	t.Run("other regions send location constraint", func(t *testing.T) {
		fake, endpoint := startFake(t)
		conn := connectTo(t, endpoint, "eu-central-1")

		if err := conn.CreateBucket(context.Background(), "reports"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body := fake.body("PUT /reports"); !strings.Contains(body, "<LocationConstraint>eu-central-1</LocationConstraint>") {
			t.Errorf("expected location constraint in body, got: %s", body)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		_, endpoint := startFake(t)
		conn := connectTo(t, endpoint, "us-east-1")
		if err := conn.CreateBucket(context.Background(), ""); err == nil {
			t.Error("expected error for empty name")
		}
	})
}

func TestS3ConnectorLocateBucket(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{"", "us-east-1"},
		{"EU", "eu-west-1"},
		{"ap-south-1", "ap-south-1"},
	}

	for _, tt := range tests {
		t.Run("constraint "+tt.constraint, func(t *testing.T) {
			fake, endpoint := startFake(t)
			fake.location = tt.constraint
			conn := connectTo(t, endpoint, "us-east-1")

			got, err := conn.LocateBucket(context.Background(), "reports")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("LocateBucket() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS3ConnectorListObjects(t *testing.T) {
	_, endpoint := startFake(t)
	conn := connectTo(t, endpoint, "us-east-1")

	list, err := conn.ListObjects(context.Background(), &base.ListObjectsInput{
		Bucket:  "data",
		Prefix:  "logs/",
		MaxKeys: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if list.Bucket != "data" || list.Prefix != "logs/" {
		t.Errorf("unexpected bucket/prefix: %s %s", list.Bucket, list.Prefix)
	}
	if list.Count != 2 || len(list.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", list.Count)
	}
	if list.Objects[0].Key != "logs/a.txt" || list.Objects[0].Size != 3 || list.Objects[0].ETag != "etag-a" {
		t.Errorf("unexpected first object: %+v", list.Objects[0])
	}
	if !list.IsTruncated || list.NextContinuationToken != "next-page" {
		t.Errorf("expected truncation to be surfaced, got %v %q", list.IsTruncated, list.NextContinuationToken)
	}
}

func TestS3ConnectorObjectRoundTrip(t *testing.T) {
	_, endpoint := startFake(t)
	conn := connectTo(t, endpoint, "us-east-1")
	ctx := context.Background()

	payload := "hello, storage"
	etag, err := conn.PutObject(ctx, &base.PutObjectInput{
		Bucket:      "data",
		Key:         "dir/greeting.txt",
		Body:        strings.NewReader(payload),
		Size:        int64(len(payload)),
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if etag != "etag-put" {
		t.Errorf("expected unquoted etag, got %q", etag)
	}

	var sink bytes.Buffer
	n, err := conn.GetObject(ctx, &base.GetObjectInput{Bucket: "data", Key: "dir/greeting.txt", Sink: &sink})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n != int64(len(payload)) || sink.String() != payload {
		t.Errorf("got %d bytes %q", n, sink.String())
	}

	meta, err := conn.HeadObject(ctx, "data", "dir/greeting.txt")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if meta.Size != int64(len(payload)) || meta.ContentType != "text/plain" || meta.ETag != "etag-head" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Metadata["owner"] != "team-a" {
		t.Errorf("expected user metadata, got %v", meta.Metadata)
	}

	if err := conn.DeleteObject(ctx, "data", "dir/greeting.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestS3ConnectorNotFound(t *testing.T) {
	_, endpoint := startFake(t)
	conn := connectTo(t, endpoint, "us-east-1")
	ctx := context.Background()

	t.Run("head absent key", func(t *testing.T) {
		_, err := conn.HeadObject(ctx, "data", "missing.txt")
		if !errors.Is(err, base.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("get absent key", func(t *testing.T) {
		var sink bytes.Buffer
		_, err := conn.GetObject(ctx, &base.GetObjectInput{Bucket: "data", Key: "missing.txt", Sink: &sink})
		if !errors.Is(err, base.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if !strings.Contains(base.BackendMessage(err), "NoSuchKey") {
			t.Errorf("expected backend code in message, got %q", base.BackendMessage(err))
		}
	})

	t.Run("server error is not not-found", func(t *testing.T) {
		_, err := conn.ListObjects(ctx, &base.ListObjectsInput{Bucket: "broken"})
		if err == nil {
			t.Fatal("expected error")
		}
		if errors.Is(err, base.ErrNotFound) {
			t.Error("500 must not be classified as not found")
		}
		if !strings.Contains(base.BackendMessage(err), "We encountered an internal error.") {
			t.Errorf("expected backend message to be preserved, got %q", base.BackendMessage(err))
		}
	})
}

func TestS3ConnectorPresign(t *testing.T) {
	// no server: presigning must not touch the network
	conn := connectTo(t, "http://127.0.0.1:9000", "us-east-1")
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		before := time.Now()
		signed, err := conn.Presign(ctx, &base.PresignInput{
			Bucket:    "data",
			Key:       "dir/file.txt",
			Operation: "get",
			ExpiresIn: 15 * time.Minute,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		u, err := url.Parse(signed.URL)
		if err != nil {
			t.Fatalf("invalid url: %v", err)
		}
		if u.Host != "127.0.0.1:9000" || u.Path != "/data/dir/file.txt" {
			t.Errorf("unexpected url %s", signed.URL)
		}
		if u.Query().Get("X-Amz-Expires") != "900" {
			t.Errorf("expected X-Amz-Expires=900, got %q", u.Query().Get("X-Amz-Expires"))
		}
		if u.Query().Get("X-Amz-Algorithm") != "AWS4-HMAC-SHA256" {
			t.Errorf("expected SigV4 query signing, got %q", u.Query().Get("X-Amz-Algorithm"))
		}
		if signed.Method != http.MethodGet || signed.Operation != "get" {
			t.Errorf("unexpected method/operation %s %s", signed.Method, signed.Operation)
		}
		if signed.ExpiresAt.Before(before.Add(15*time.Minute)) || signed.ExpiresAt.After(time.Now().Add(15*time.Minute)) {
			t.Errorf("unexpected expires_at %v", signed.ExpiresAt)
		}
	})

	t.Run("put", func(t *testing.T) {
		signed, err := conn.Presign(ctx, &base.PresignInput{
			Bucket:      "data",
			Key:         "upload.bin",
			Operation:   "put",
			ExpiresIn:   time.Hour,
			ContentType: "application/octet-stream",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if signed.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", signed.Method)
		}
		if !strings.Contains(signed.URL, "X-Amz-Expires=3600") {
			t.Errorf("expected 3600s expiry in %s", signed.URL)
		}
	})

	t.Run("invalid operation", func(t *testing.T) {
		_, err := conn.Presign(ctx, &base.PresignInput{Bucket: "data", Key: "k", Operation: "delete", ExpiresIn: time.Minute})
		if err == nil {
			t.Error("expected error for unsupported operation")
		}
	})
}

func TestNormalizeLocation(t *testing.T) {
	tests := map[string]string{
		"":          "us-east-1",
		"EU":        "eu-west-1",
		"us-west-2": "us-west-2",
	}
	for in, want := range tests {
		if got := normalizeLocation(in); got != want {
			t.Errorf("normalizeLocation(%q) = %q, want %q", in, got, want)
		}
	}
}
