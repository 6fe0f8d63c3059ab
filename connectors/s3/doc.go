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

/*
Package s3 implements the storage gateway on Amazon S3 and S3-compatible
services (MinIO, Cloudflare R2, DigitalOcean Spaces).

# Configuration

Required credentials:

  - access_key_id
  - secret_access_key

Optional:

  - ConnectionURL (or the "endpoint" option): custom endpoint URL
  - region option: default us-east-1; also the location constraint for new buckets
  - force_path_style option: path-style addressing, needed by most self-hosted stores

Connect only builds the client. HealthCheck issues a ListBuckets request.

# Operations

S3Connector implements base.ObjectStore. Bodies are streamed in both
directions. Presign signs locally with SigV4 query parameters and never
contacts the backend.

# Errors

Every backend failure is wrapped in base.ConnectorError. The codes
NoSuchKey, NoSuchBucket and NotFound, and any HTTP 404, are marked as not
found and match base.ErrNotFound. The SDK's own retries are disabled.

# Metrics

Each call is timed into the connector's sdk.ConnectorMetrics and the
storage_mcp_backend_operations_total and
storage_mcp_backend_operation_duration_seconds collectors.
*/
package s3
