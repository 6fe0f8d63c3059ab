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

import (
	"bytes"
	"encoding/json"
)

// Version is the only JSON-RPC version accepted.
const Version = "2.0"

// Request is an inbound JSON-RPC request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and so gets no reply.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Validate checks the envelope shape.
func (r *Request) Validate() *Error {
	if r.JSONRPC != Version {
		return NewError(KindInvalidRequest, "jsonrpc must be %q", Version)
	}
	if r.Method == "" {
		return NewError(KindInvalidRequest, "method is required")
	}
	if len(r.ID) > 0 {
		switch r.ID[0] {
		case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		default:
			return NewError(KindInvalidRequest, "id must be a string, number or null")
		}
	}
	return nil
}

// Response is an outbound JSON-RPC response. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// NewResult builds a success response.
func NewResult(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewErrorResponse builds an error response. A nil id is sent as null.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err.Object()}
}

// Notification is an outbound server-initiated message.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// NewNotification builds a notification.
func NewNotification(method string, params interface{}) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// ParseMessage decodes a single request or a batch. A batch is reported
// with batch=true even when it holds one element.
func ParseMessage(data []byte) (reqs []json.RawMessage, batch bool, perr *Error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, NewError(KindParseError, "empty message")
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, true, NewError(KindParseError, "invalid JSON: %v", err)
		}
		if len(reqs) == 0 {
			return nil, true, NewError(KindInvalidRequest, "empty batch")
		}
		return reqs, true, nil
	}

	if !json.Valid(trimmed) {
		return nil, false, NewError(KindParseError, "invalid JSON")
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, false, nil
}

// DecodeRequest decodes and validates one element of a message.
func DecodeRequest(raw json.RawMessage) (*Request, *Error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewError(KindInvalidRequest, "invalid request: %v", err)
	}
	if perr := req.Validate(); perr != nil {
		return &req, perr
	}
	return &req, nil
}
