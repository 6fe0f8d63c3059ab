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

package dispatch

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"storagemcp/platform/agent/tools"
	"storagemcp/platform/connectors/base"
)

const defaultContentType = "application/octet-stream"

type bucketLocation struct {
	Bucket   string `json:"bucket"`
	Location string `json:"location"`
}

type uploadResult struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	LocalPath   string `json:"local_path"`
	Bytes       int64  `json:"bytes"`
	ETag        string `json:"etag"`
	ContentType string `json:"content_type"`
}

type downloadResult struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	LocalPath string `json:"local_path"`
	Bytes     int64  `json:"bytes"`
}

type presignResult struct {
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Operation   string    `json:"operation"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	ContentType string    `json:"content_type,omitempty"`
}

func (d *Dispatcher) listBuckets(ctx context.Context, call *tools.Call) (interface{}, error) {
	buckets, err := d.store.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []base.Bucket{}
	}
	return buckets, nil
}

func (d *Dispatcher) createBucket(ctx context.Context, call *tools.Call) (interface{}, error) {
	name := call.String("name")
	if err := d.store.CreateBucket(ctx, name); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Bucket %s created successfully", name), nil
}

func (d *Dispatcher) deleteBucket(ctx context.Context, call *tools.Call) (interface{}, error) {
	name := call.String("name")
	if err := d.store.DeleteBucket(ctx, name); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Bucket %s deleted successfully", name), nil
}

func (d *Dispatcher) locateBucket(ctx context.Context, call *tools.Call) (interface{}, error) {
	name := call.String("name")
	location, err := d.store.LocateBucket(ctx, name)
	if err != nil {
		return nil, err
	}
	return bucketLocation{Bucket: name, Location: location}, nil
}

func (d *Dispatcher) listObjects(ctx context.Context, call *tools.Call) (interface{}, error) {
	list, err := d.store.ListObjects(ctx, &base.ListObjectsInput{
		Bucket:            call.String("bucket"),
		Prefix:            call.String("prefix"),
		MaxKeys:           int32(call.Int("max_keys")),
		ContinuationToken: call.String("continuation_token"),
	})
	if err != nil {
		return nil, err
	}
	if list.Objects == nil {
		list.Objects = []base.ObjectSummary{}
	}
	return list, nil
}

// uploadObject opens the local file before any backend call, so a bad
// path never reaches the gateway.
func (d *Dispatcher) uploadObject(ctx context.Context, call *tools.Call) (interface{}, error) {
	bucket, key, path := call.String("bucket"), call.String("key"), call.String("local_path")

	src, err := d.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local file %s: %w", path, err)
	}
	defer src.Close()

	contentType := call.String("content_type")
	if contentType == "" {
		contentType = guessContentType(path)
	}

	etag, err := d.store.PutObject(ctx, &base.PutObjectInput{
		Bucket:      bucket,
		Key:         key,
		Body:        src,
		Size:        src.Size(),
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}

	return uploadResult{
		Bucket:      bucket,
		Key:         key,
		LocalPath:   path,
		Bytes:       src.Size(),
		ETag:        etag,
		ContentType: contentType,
	}, nil
}

func (d *Dispatcher) downloadObject(ctx context.Context, call *tools.Call) (interface{}, error) {
	bucket, key, path := call.String("bucket"), call.String("key"), call.String("local_path")

	sink, err := d.fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file %s: %w", path, err)
	}

	n, err := d.store.GetObject(ctx, &base.GetObjectInput{Bucket: bucket, Key: key, Sink: sink})
	if err != nil {
		_ = sink.Abort()
		return nil, err
	}
	if err := sink.Commit(); err != nil {
		return nil, fmt.Errorf("failed to write local file %s: %w", path, err)
	}

	return downloadResult{Bucket: bucket, Key: key, LocalPath: path, Bytes: n}, nil
}

func (d *Dispatcher) deleteObject(ctx context.Context, call *tools.Call) (interface{}, error) {
	bucket, key := call.String("bucket"), call.String("key")
	if err := d.store.DeleteObject(ctx, bucket, key); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Object %s deleted successfully from bucket %s", key, bucket), nil
}

func (d *Dispatcher) objectMetadata(ctx context.Context, call *tools.Call) (interface{}, error) {
	return d.store.HeadObject(ctx, call.String("bucket"), call.String("key"))
}

func (d *Dispatcher) presign(ctx context.Context, call *tools.Call) (interface{}, error) {
	in := &base.PresignInput{
		Bucket:      call.String("bucket"),
		Key:         call.String("key"),
		Operation:   call.String("operation"),
		ExpiresIn:   time.Duration(call.Int("expires_in")) * time.Second,
		ContentType: call.String("content_type"),
	}

	url, err := d.store.Presign(ctx, in)
	if err != nil {
		return nil, err
	}

	return presignResult{
		Bucket:      in.Bucket,
		Key:         in.Key,
		URL:         url.URL,
		Operation:   url.Operation,
		ExpiresIn:   int64(url.ExpiresIn / time.Second),
		ExpiresAt:   url.ExpiresAt,
		ContentType: in.ContentType,
	}, nil
}

func guessContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return defaultContentType
}
