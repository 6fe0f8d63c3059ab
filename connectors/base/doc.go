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
Package base defines the storage backend contract used by the MCP tool
dispatcher, together with the value types that cross it.

# Interfaces

Connector covers lifecycle (Connect, Disconnect, HealthCheck). ObjectStore
covers the storage operations themselves:

	buckets, err := store.ListBuckets(ctx)
	list, err := store.ListObjects(ctx, &ListObjectsInput{Bucket: "logs", Prefix: "2025/", MaxKeys: 100})
	etag, err := store.PutObject(ctx, &PutObjectInput{Bucket: "logs", Key: "a.txt", Body: f, Size: n})
	url, err := store.Presign(ctx, &PresignInput{Bucket: "logs", Key: "a.txt", Operation: PresignGet, ExpiresIn: time.Hour})

Bodies are streamed through io.Reader and io.Writer; nothing is buffered
whole in memory.

# Error Handling

Backend failures are wrapped in ConnectorError with the backend's own
message kept as Cause. Errors for absent buckets or keys are created with
NewNotFoundError and match ErrNotFound:

	if errors.Is(err, ErrNotFound) {
	    // report NotFound to the caller
	}

# Thread Safety

All ObjectStore implementations must be safe for concurrent use.
*/
package base
