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

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"storagemcp/platform/agent/protocol"
	"storagemcp/platform/agent/session"
	"storagemcp/platform/connectors/base"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "Mcp-Session-Id"

const (
	maxRequestBody    = 4 << 20
	defaultKeepAlive  = 25 * time.Second
	sseContentType    = "text/event-stream"
	jsonContentType   = "application/json"
	headerContentType = "Content-Type"
)

// HTTPHandler serves the streamable HTTP transport on a single endpoint:
// POST carries requests, GET opens the push stream, DELETE terminates.
type HTTPHandler struct {
	server    *Server
	keepAlive time.Duration
}

// NewHTTPHandler creates the /mcp handler.
func NewHTTPHandler(server *Server) *HTTPHandler {
	return &HTTPHandler{server: server, keepAlive: defaultKeepAlive}
}

// RegisterMCPHandlers mounts the MCP endpoint on r.
func RegisterMCPHandlers(r *mux.Router, h *HTTPHandler) {
	r.Handle("/mcp", instrument(h))
	log.Println("[MCP] Registered MCP endpoint handler")
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		sendRPCError(w, http.StatusMethodNotAllowed,
			protocol.NewError(protocol.KindInvalidRequest, "method %s not allowed", r.Method))
	}
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		sendRPCError(w, http.StatusBadRequest, protocol.NewError(protocol.KindParseError, "failed to read request body: %v", err))
		return
	}

	reqs, batch, perr := protocol.ParseMessage(body)
	if perr != nil {
		sendRPCError(w, http.StatusBadRequest, perr)
		return
	}
	initializing := containsMethod(reqs, protocol.MethodInitialize)

	sessions := h.server.Sessions()
	id := r.Header.Get(SessionHeader)

	var sess *session.Session
	switch {
	case id == "":
		if !initializing {
			sendRPCError(w, http.StatusBadRequest,
				protocol.NewError(protocol.KindInvalidRequest, "missing %s header", SessionHeader))
			return
		}
		sess = sessions.Resolve("")
	default:
		sess, err = sessions.Get(id)
		if err != nil {
			if !initializing {
				sendRPCError(w, http.StatusNotFound, protocol.NewError(protocol.KindNotFound, "session not found: %s", id))
				return
			}
			sess = sessions.Resolve(id)
			log.Printf("[MCP] Unknown session %s re-initialized as %s", base.SanitizeLogString(id), sess.ID())
		} else {
			sess.Touch(time.Now())
			if !initializing {
				_ = sessions.MarkActive(sess.ID())
			}
		}
	}

	w.Header().Set(SessionHeader, sess.ID())

	out := h.server.handleParsed(r.Context(), sess, reqs, batch)

	if sess.Terminated() {
		sendRPCError(w, http.StatusNotFound, protocol.NewError(protocol.KindNotFound, "session terminated: %s", sess.ID()))
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set(headerContentType, jsonContentType)
	if _, err := w.Write(out); err != nil {
		log.Printf("[MCP] Error writing response for session %s: %v", sess.ID(), err)
	}
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendRPCError(w, http.StatusInternalServerError, protocol.NewError(protocol.KindInternalError, "streaming unsupported"))
		return
	}

	stream, err := h.server.Sessions().AttachStream(sess.ID())
	if err != nil {
		if errors.Is(err, session.ErrStreamBusy) {
			sendRPCError(w, http.StatusConflict, protocol.NewError(protocol.KindInvalidRequest, "session %s already has an open stream", sess.ID()))
			return
		}
		sendRPCError(w, http.StatusNotFound, protocol.NewError(protocol.KindNotFound, "session not found: %s", sess.ID()))
		return
	}
	defer h.server.Sessions().DetachStream(stream)

	w.Header().Set(headerContentType, sseContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(SessionHeader, sess.ID())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg := <-stream.Messages():
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-stream.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.server.Sessions().Terminate(sess.ID()); err != nil {
		sendRPCError(w, http.StatusNotFound, protocol.NewError(protocol.KindNotFound, "session not found: %s", sess.ID()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookup rejects missing or unknown session ids before any mutation.
func (h *HTTPHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		sendRPCError(w, http.StatusBadRequest, protocol.NewError(protocol.KindInvalidRequest, "missing %s header", SessionHeader))
		return nil, false
	}
	sess, err := h.server.Sessions().Get(id)
	if err != nil {
		sendRPCError(w, http.StatusNotFound, protocol.NewError(protocol.KindNotFound, "session not found: %s", id))
		return nil, false
	}
	return sess, true
}

func containsMethod(reqs []json.RawMessage, method string) bool {
	for _, raw := range reqs {
		var probe struct {
			Method string `json:"method"`
		}
		if json.Unmarshal(raw, &probe) == nil && probe.Method == method {
			return true
		}
	}
	return false
}

// sendRPCError writes a JSON-RPC error object with a null id.
func sendRPCError(w http.ResponseWriter, statusCode int, perr *protocol.Error) {
	w.Header().Set(headerContentType, jsonContentType)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(protocol.NewErrorResponse(nil, perr)); err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}
