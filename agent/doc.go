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
Package agent is the storage MCP server: it wires the tool registry,
dispatcher, session manager and rate limiter behind the two MCP
transports.

# Transports

Streamable HTTP is served on /mcp. A POST carries one JSON-RPC message or
a batch; the first initialize without an Mcp-Session-Id header creates a
session whose id is returned in that header. GET opens a server-sent
event stream used for progress notifications and DELETE terminates the
session.

	POST   /mcp         requests and notifications
	GET    /mcp         SSE push stream (one per session)
	DELETE /mcp         terminate the session
	GET    /health      liveness plus a backend probe
	GET    /prometheus  metrics

Stdio reads newline-delimited JSON-RPC from stdin and writes responses
and notifications to stdout. The process is a single implicit session.
Logs always go to stderr.

# Tools

	bucket   list | create | delete | location
	object   list | upload | download | delete | metadata
	presign  get | put URLs for an object

Arguments are validated against the registry before any backend call.
Backend failures become JSON-RPC errors whose data.kind distinguishes
NotFound from InternalError.

# Configuration

See the connectors/config package. Run and RunStdio return a
*config.MissingConfigError before anything starts when required
storage settings are absent.
*/
package agent
