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
Package session owns the registry of MCP transport sessions.

A Manager maps opaque server-generated ids (UUIDv4) to Sessions. A
session moves from initializing to active once the client confirms the
handshake, and to terminated on explicit termination, idle reaping or
shutdown. Terminated ids are removed from the registry and never reused;
presenting one again binds a fresh session.

Each session may hold at most one push Stream. Notify queues a message
on it without blocking and drops the message when no stream is attached.
*/
package session
