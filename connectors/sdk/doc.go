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

// Package sdk holds the pieces shared by storage connectors: an embeddable
// BaseConnector for lifecycle and option handling, and ConnectorMetrics for
// per-operation accounting.
//
// Connectors embed BaseConnector and time every backend call:
//
//	timer := sdk.NewTimer()
//	out, err := c.client.HeadObject(ctx, in)
//	timer.RecordTo(c.GetMetrics().ReadRecorder("HeadObject"), err)
//
// Recorders update both the in-process snapshot returned by GetStats and
// the storage_mcp_backend_* Prometheus collectors.
package sdk
