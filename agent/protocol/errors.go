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

package protocol

import "fmt"

// ErrorKind is the typed classification carried in every error's data.
type ErrorKind string

const (
	KindInvalidParams  ErrorKind = "InvalidParams"
	KindMethodNotFound ErrorKind = "MethodNotFound"
	KindNotFound       ErrorKind = "NotFound"
	KindInternalError  ErrorKind = "InternalError"
	KindParseError     ErrorKind = "ParseError"
	KindInvalidRequest ErrorKind = "InvalidRequest"
)

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Code returns the JSON-RPC code for the kind. NotFound shares the
// internal error code; clients tell them apart by data.kind.
func (k ErrorKind) Code() int {
	switch k {
	case KindParseError:
		return CodeParseError
	case KindInvalidRequest:
		return CodeInvalidRequest
	case KindMethodNotFound:
		return CodeMethodNotFound
	case KindInvalidParams:
		return CodeInvalidParams
	default:
		return CodeInternalError
	}
}

// Error is the single typed error envelope returned across the tool boundary.
type Error struct {
	Kind    ErrorKind
	Message string
}

// NewError creates an Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Code returns the JSON-RPC error code.
func (e *Error) Code() int {
	return e.Kind.Code()
}

// Object renders the error for the wire.
func (e *Error) Object() *ErrorObject {
	return &ErrorObject{
		Code:    e.Code(),
		Message: e.Message,
		Data:    &ErrorData{Kind: e.Kind},
	}
}

// ErrorObject is the JSON-RPC error member.
type ErrorObject struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData always names the error kind.
type ErrorData struct {
	Kind ErrorKind `json:"kind"`
}
