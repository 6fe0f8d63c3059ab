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
Package logger provides structured JSON logging for the storage MCP server.

Each entry carries the component, instance and container identity, the MCP
session id and JSON-RPC request id it relates to, and free-form fields:

	log := logger.New("mcp")
	log.Info(sessionID, "7", "tools/call dispatched", map[string]interface{}{
	    "tool": "object",
	})

Output is written through the standard library logger, which writes to
stderr. That matters for the stdio transport, where stdout carries protocol
frames and must never receive log lines.

Environment variables:

  - INSTANCE_ID: deployment instance identifier (default "unknown")
  - LOG_LEVEL: DEBUG, INFO, WARN or ERROR (default INFO)
*/
package logger
