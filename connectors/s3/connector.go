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
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"storagemcp/platform/connectors/base"
	"storagemcp/platform/connectors/sdk"
)

const defaultRegion = "us-east-1"

// S3Connector is the storage gateway backed by Amazon S3 or any
// S3-compatible service.
type S3Connector struct {
	sdk.BaseConnector

	mu            sync.RWMutex
	client        *s3.Client
	presignClient *s3.PresignClient
	region        string
}

// NewS3Connector creates a new S3 connector instance
func NewS3Connector() *S3Connector {
	conn := &S3Connector{}
	conn.BaseConnector = *sdk.NewBaseConnector("s3")
	conn.SetVersion("1.0.0")
	conn.RequireCredentials("access_key_id", "secret_access_key")
	return conn
}

// Connect builds the S3 client. It performs no network I/O; use
// HealthCheck to verify the backend is reachable.
func (c *S3Connector) Connect(ctx context.Context, cfg *base.ConnectorConfig) error {
	if err := c.BaseConnector.Connect(ctx, cfg); err != nil {
		return err
	}

	region := c.GetStringOption("region", defaultRegion)
	endpoint := cfg.ConnectionURL
	if endpoint == "" {
		endpoint = c.GetStringOption("endpoint", "")
	}
	forcePathStyle := c.GetBoolOption("force_path_style", false)

	if endpoint != "" {
		if err := base.ValidateEndpoint(endpoint); err != nil {
			return base.NewConnectorError(cfg.Name, "Connect", "invalid endpoint", err)
		}
	}

	creds := credentials.NewStaticCredentialsProvider(
		c.GetCredential("access_key_id"),
		c.GetCredential("secret_access_key"),
		c.GetCredential("session_token"),
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return base.NewConnectorError(cfg.Name, "Connect", "failed to load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = forcePathStyle
		// Failures surface to the caller as-is.
		o.Retryer = aws.NopRetryer{}
		// S3-compatible stores often reject the newer default checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	c.mu.Lock()
	c.client = client
	c.presignClient = s3.NewPresignClient(client)
	c.region = region
	c.mu.Unlock()

	c.GetMetrics().RecordConnect()
	c.Log("Connected to S3 (region: %s, endpoint: %s, path_style: %t)", region, endpoint, forcePathStyle)

	return nil
}

// Disconnect drops the S3 client
func (c *S3Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.client = nil
	c.presignClient = nil
	c.mu.Unlock()

	c.GetMetrics().RecordDisconnect()
	return c.BaseConnector.Disconnect(ctx)
}

// HealthCheck verifies S3 connectivity with a bucket listing
func (c *S3Connector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	client, _, err := c.clients("HealthCheck")
	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Error:     "S3 client not initialized",
			Timestamp: time.Now(),
		}, nil
	}

	start := time.Now()
	_, err = client.ListBuckets(ctx, &s3.ListBucketsInput{})
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Error:     err.Error(),
			Latency:   latency,
			Timestamp: time.Now(),
		}, nil
	}

	return &base.HealthStatus{
		Healthy: true,
		Latency: latency,
		Details: map[string]string{
			"region": c.Region(),
		},
		Timestamp: time.Now(),
	}, nil
}

// Region returns the configured region.
func (c *S3Connector) Region() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.region == "" {
		return defaultRegion
	}
	return c.region
}

func (c *S3Connector) clients(op string) (*s3.Client, *s3.PresignClient, error) {
	if !c.IsConnected() {
		return nil, nil, base.NewConnectorError(c.Name(), op, "S3 client not initialized", nil)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, nil, base.NewConnectorError(c.Name(), op, "S3 client not initialized", nil)
	}
	return c.client, c.presignClient, nil
}

// ListBuckets returns all buckets in backend order
func (c *S3Connector) ListBuckets(ctx context.Context) (buckets []base.Bucket, err error) {
	client, _, err := c.clients("ListBuckets")
	if err != nil {
		return nil, err
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().ReadRecorder("ListBuckets"), err) }()

	output, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, c.wrap("ListBuckets", "failed to list buckets", err)
	}

	buckets = make([]base.Bucket, 0, len(output.Buckets))
	for _, b := range output.Buckets {
		buckets = append(buckets, base.Bucket{
			Name:         aws.ToString(b.Name),
			CreationDate: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}

// CreateBucket creates a bucket, constrained to the connector's region
// unless that region is us-east-1.
func (c *S3Connector) CreateBucket(ctx context.Context, name string) (err error) {
	client, _, err := c.clients("CreateBucket")
	if err != nil {
		return err
	}
	if name == "" {
		return base.NewConnectorError(c.Name(), "CreateBucket", "bucket name is required", nil)
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().WriteRecorder("CreateBucket"), err) }()

	input := &s3.CreateBucketInput{
		Bucket: aws.String(name),
	}
	if region := c.Region(); region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err = client.CreateBucket(ctx, input); err != nil {
		return c.wrap("CreateBucket", fmt.Sprintf("failed to create bucket: %s", name), err)
	}
	return nil
}

// DeleteBucket deletes a bucket. The backend decides whether it must be empty.
func (c *S3Connector) DeleteBucket(ctx context.Context, name string) (err error) {
	client, _, err := c.clients("DeleteBucket")
	if err != nil {
		return err
	}
	if name == "" {
		return base.NewConnectorError(c.Name(), "DeleteBucket", "bucket name is required", nil)
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().WriteRecorder("DeleteBucket"), err) }()

	if _, err = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return c.wrap("DeleteBucket", fmt.Sprintf("failed to delete bucket: %s", name), err)
	}
	return nil
}

// LocateBucket returns the region a bucket lives in.
func (c *S3Connector) LocateBucket(ctx context.Context, name string) (region string, err error) {
	client, _, err := c.clients("LocateBucket")
	if err != nil {
		return "", err
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().ReadRecorder("GetBucketLocation"), err) }()

	output, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		return "", c.wrap("LocateBucket", fmt.Sprintf("failed to get location of bucket: %s", name), err)
	}
	return normalizeLocation(string(output.LocationConstraint)), nil
}

// normalizeLocation maps the legacy location constraint values onto region names.
func normalizeLocation(constraint string) string {
	switch constraint {
	case "":
		return defaultRegion
	case "EU":
		return "eu-west-1"
	default:
		return constraint
	}
}

// ListObjects returns one page of objects in a bucket
func (c *S3Connector) ListObjects(ctx context.Context, in *base.ListObjectsInput) (list *base.ObjectList, err error) {
	client, _, err := c.clients("ListObjects")
	if err != nil {
		return nil, err
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().ReadRecorder("ListObjectsV2"), err) }()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(in.Bucket),
	}
	if in.Prefix != "" {
		input.Prefix = aws.String(in.Prefix)
	}
	if in.MaxKeys > 0 {
		input.MaxKeys = aws.Int32(in.MaxKeys)
	}
	if in.ContinuationToken != "" {
		input.ContinuationToken = aws.String(in.ContinuationToken)
	}

	output, err := client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, c.wrap("ListObjects", fmt.Sprintf("failed to list objects in bucket: %s", in.Bucket), err)
	}

	objects := make([]base.ObjectSummary, 0, len(output.Contents))
	for _, obj := range output.Contents {
		objects = append(objects, base.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         trimETag(obj.ETag),
			StorageClass: string(obj.StorageClass),
		})
	}

	return &base.ObjectList{
		Bucket:                in.Bucket,
		Prefix:                in.Prefix,
		Count:                 len(objects),
		Objects:               objects,
		IsTruncated:           aws.ToBool(output.IsTruncated),
		NextContinuationToken: aws.ToString(output.NextContinuationToken),
	}, nil
}

// PutObject streams a body into bucket/key and returns the stored ETag
func (c *S3Connector) PutObject(ctx context.Context, in *base.PutObjectInput) (etag string, err error) {
	client, _, err := c.clients("PutObject")
	if err != nil {
		return "", err
	}
	if in.Key == "" {
		return "", base.NewConnectorError(c.Name(), "PutObject", "key is required", nil)
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().WriteRecorder("PutObject"), err) }()

	input := &s3.PutObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
		Body:   in.Body,
	}
	if in.Size >= 0 {
		input.ContentLength = aws.Int64(in.Size)
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	output, err := client.PutObject(ctx, input)
	if err != nil {
		return "", c.wrap("PutObject", fmt.Sprintf("failed to put object: %s", in.Key), err)
	}
	return trimETag(output.ETag), nil
}

// GetObject streams bucket/key into the sink and returns the bytes written
func (c *S3Connector) GetObject(ctx context.Context, in *base.GetObjectInput) (n int64, err error) {
	client, _, err := c.clients("GetObject")
	if err != nil {
		return 0, err
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().ReadRecorder("GetObject"), err) }()

	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
	})
	if err != nil {
		return 0, c.wrap("GetObject", fmt.Sprintf("failed to get object: %s", in.Key), err)
	}
	defer output.Body.Close()

	n, err = io.Copy(in.Sink, output.Body)
	if err != nil {
		return n, base.NewConnectorError(c.Name(), "GetObject", "failed to read object content", err)
	}
	return n, nil
}

// DeleteObject deletes bucket/key. Deleting an absent key is whatever the
// backend says it is.
func (c *S3Connector) DeleteObject(ctx context.Context, bucket, key string) (err error) {
	client, _, err := c.clients("DeleteObject")
	if err != nil {
		return err
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().WriteRecorder("DeleteObject"), err) }()

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return c.wrap("DeleteObject", fmt.Sprintf("failed to delete object: %s", key), err)
	}
	return nil
}

// HeadObject fetches object metadata without content
func (c *S3Connector) HeadObject(ctx context.Context, bucket, key string) (meta *base.ObjectMetadata, err error) {
	client, _, err := c.clients("HeadObject")
	if err != nil {
		return nil, err
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().ReadRecorder("HeadObject"), err) }()

	output, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, c.wrap("HeadObject", fmt.Sprintf("failed to head object: %s", key), err)
	}

	userMeta := output.Metadata
	if userMeta == nil {
		userMeta = map[string]string{}
	}

	return &base.ObjectMetadata{
		Bucket:       bucket,
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		LastModified: aws.ToTime(output.LastModified),
		ETag:         trimETag(output.ETag),
		Metadata:     userMeta,
	}, nil
}

// Presign signs a GET or PUT URL for bucket/key locally.
func (c *S3Connector) Presign(ctx context.Context, in *base.PresignInput) (url *base.PresignedURL, err error) {
	_, presigner, err := c.clients("Presign")
	if err != nil {
		return nil, err
	}
	if in.ExpiresIn <= 0 {
		return nil, base.NewConnectorError(c.Name(), "Presign", "expiry must be positive", nil)
	}

	timer := sdk.NewTimer()
	defer func() { timer.RecordTo(c.GetMetrics().ReadRecorder("Presign"), err) }()

	expires := s3.WithPresignExpires(in.ExpiresIn)
	issuedAt := time.Now()

	var method, signed string
	switch strings.ToLower(in.Operation) {
	case base.PresignGet:
		req, perr := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(in.Bucket),
			Key:    aws.String(in.Key),
		}, expires)
		if perr != nil {
			err = perr
			return nil, c.wrap("Presign", "failed to presign get object", err)
		}
		method, signed = req.Method, req.URL
	case base.PresignPut:
		input := &s3.PutObjectInput{
			Bucket: aws.String(in.Bucket),
			Key:    aws.String(in.Key),
		}
		if in.ContentType != "" {
			input.ContentType = aws.String(in.ContentType)
		}
		req, perr := presigner.PresignPutObject(ctx, input, expires)
		if perr != nil {
			err = perr
			return nil, c.wrap("Presign", "failed to presign put object", err)
		}
		method, signed = req.Method, req.URL
	default:
		err = fmt.Errorf("unsupported presign operation %q", in.Operation)
		return nil, base.NewConnectorError(c.Name(), "Presign", err.Error(), nil)
	}

	return &base.PresignedURL{
		URL:       signed,
		Method:    method,
		Operation: strings.ToLower(in.Operation),
		ExpiresIn: in.ExpiresIn,
		ExpiresAt: issuedAt.Add(in.ExpiresIn).UTC(),
	}, nil
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), "\"")
}

// Verify S3Connector implements the connector contracts
var (
	_ base.Connector   = (*S3Connector)(nil)
	_ base.ObjectStore = (*S3Connector)(nil)
)
