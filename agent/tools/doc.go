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
Package tools declares the storage tools exposed over MCP and validates
tool-call arguments against them.

The registry is built once with NewRegistry and never mutated. Validate
is pure: it never touches the storage backend. It checks, in order, that
the tool exists, that tool-level required parameters are present, that
enumerated parameters hold an allowed value, that the selected action's
required parameters are present, and finally types and bounds. Empty
strings and JSON null count as absent.
*/
package tools
