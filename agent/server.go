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
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"storagemcp/platform/agent/dispatch"
	"storagemcp/platform/agent/protocol"
	"storagemcp/platform/agent/ratelimit"
	"storagemcp/platform/agent/session"
	"storagemcp/platform/agent/tools"
	"storagemcp/platform/connectors/base"
	"storagemcp/platform/shared/logger"
)

// ServiceName is reported by initialize and /health.
const ServiceName = "storage-mcp"

// Version is overridden at build time with -ldflags.
var Version = "1.0.0"

const serverInstructions = "Tools for managing S3-compatible object storage. " +
	"Use bucket to list, create, delete or locate buckets, object to list, upload, download, delete " +
	"or inspect objects, and presign to issue temporary URLs."

// Server handles MCP methods for any transport.
type Server struct {
	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	limiter    ratelimit.Limiter
	backend    base.Connector
	logger     *logger.Logger
	now        func() time.Time
}

// ServerOptions holds the optional collaborators of a Server.
type ServerOptions struct {
	// Limiter caps tool calls per session. Nil disables limiting.
	Limiter ratelimit.Limiter
	// Backend is probed by /health. Nil reports no backend.
	Backend base.Connector
	Logger  *logger.Logger
}

// NewServer wires the MCP method handlers.
func NewServer(registry *tools.Registry, dispatcher *dispatch.Dispatcher, sessions *session.Manager, opts ServerOptions) *Server {
	s := &Server{
		registry:   registry,
		dispatcher: dispatcher,
		sessions:   sessions,
		limiter:    opts.Limiter,
		backend:    opts.Backend,
		logger:     opts.Logger,
		now:        time.Now,
	}
	if s.logger == nil {
		s.logger = logger.New("mcp")
	}
	return s
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// HandleMessage processes a raw JSON-RPC message, single or batch, for
// sess. It returns nil when nothing needs to be sent back.
func (s *Server) HandleMessage(ctx context.Context, sess *session.Session, data []byte) []byte {
	reqs, batch, perr := protocol.ParseMessage(data)
	if perr != nil {
		return mustMarshal(protocol.NewErrorResponse(nil, perr))
	}
	return s.handleParsed(ctx, sess, reqs, batch)
}

func (s *Server) handleParsed(ctx context.Context, sess *session.Session, reqs []json.RawMessage, batch bool) []byte {
	var responses []*protocol.Response
	for _, raw := range reqs {
		if resp := s.handleRaw(ctx, sess, raw); resp != nil {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		return nil
	}
	if !batch {
		return mustMarshal(responses[0])
	}
	return mustMarshal(responses)
}

func (s *Server) handleRaw(ctx context.Context, sess *session.Session, raw json.RawMessage) *protocol.Response {
	req, perr := protocol.DecodeRequest(raw)
	if perr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		return protocol.NewErrorResponse(id, perr)
	}

	result, perr := s.handleRequest(ctx, sess, req)
	if req.IsNotification() {
		return nil
	}
	if perr != nil {
		return protocol.NewErrorResponse(req.ID, perr)
	}
	return protocol.NewResult(req.ID, result)
}

func (s *Server) handleRequest(ctx context.Context, sess *session.Session, req *protocol.Request) (interface{}, *protocol.Error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.initialize(sess, req)
	case protocol.MethodInitialized:
		_ = s.sessions.MarkActive(sess.ID())
		return struct{}{}, nil
	case protocol.MethodCancelled:
		return struct{}{}, nil
	case protocol.MethodPing:
		return struct{}{}, nil
	case protocol.MethodToolsList:
		return &protocol.ToolsListResult{Tools: s.registry.List()}, nil
	case protocol.MethodToolsCall:
		return s.callTool(ctx, sess, req)
	default:
		return nil, protocol.NewError(protocol.KindMethodNotFound, "method not found: %s", req.Method)
	}
}

func (s *Server) initialize(sess *session.Session, req *protocol.Request) (interface{}, *protocol.Error) {
	var params protocol.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, protocol.NewError(protocol.KindInvalidParams, "invalid initialize params: %v", err)
		}
	}

	version := protocol.NegotiateVersion(params.ProtocolVersion)
	s.logger.Info(sess.ID(), idString(req.ID), "session initialized", map[string]interface{}{
		"client":           params.ClientInfo.Name,
		"client_version":   params.ClientInfo.Version,
		"protocol_version": version,
	})

	return &protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities: protocol.ServerCapabilities{
			Tools: &protocol.ToolsCapability{ListChanged: false},
		},
		ServerInfo:   protocol.Implementation{Name: ServiceName, Version: Version},
		Instructions: serverInstructions,
	}, nil
}

func (s *Server) callTool(ctx context.Context, sess *session.Session, req *protocol.Request) (interface{}, *protocol.Error) {
	var params protocol.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || len(req.Params) == 0 {
		return nil, protocol.NewError(protocol.KindInvalidParams, "invalid tools/call params")
	}
	if params.Name == "" {
		return nil, protocol.NewError(protocol.KindInvalidParams, "missing required parameter: name")
	}

	action, _ := params.Arguments["action"].(string)
	requestID := idString(req.ID)

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, sess.ID()); err != nil {
			promRateLimited.Inc()
			msg := err.Error()
			if !errors.Is(err, ratelimit.ErrLimitExceeded) {
				msg = "rate limit exceeded: " + msg
			}
			s.logger.Warn(sess.ID(), requestID, "tool call rejected by rate limiter", map[string]interface{}{
				"tool": params.Name,
			})
			return nil, protocol.NewError(protocol.KindInternalError, "%s", msg)
		}
	}

	var token interface{}
	if params.Meta != nil {
		token = params.Meta.ProgressToken
	}
	s.progress(sess, token, 0, "started "+params.Name)

	start := s.now()
	res := s.dispatcher.Dispatch(ctx, params.Name, params.Arguments)
	elapsed := s.now().Sub(start)

	s.progress(sess, token, 1, "completed "+params.Name)

	if res.Err != nil {
		s.logger.ToolCall(sess.ID(), requestID, params.Name, action, elapsed, string(res.Err.Kind), base.SanitizeLogString(res.Err.Message))
		recordToolCall(params.Name, action, elapsed, string(res.Err.Kind))
		return nil, res.Err
	}
	s.logger.ToolCall(sess.ID(), requestID, params.Name, action, elapsed, "", "")
	recordToolCall(params.Name, action, elapsed, "")
	return res.Value, nil
}

// progress pushes notifications/progress when the caller asked for it.
func (s *Server) progress(sess *session.Session, token interface{}, done float64, message string) {
	if token == nil {
		return
	}
	n := protocol.NewNotification(protocol.MethodNotificationsProgress, &protocol.ProgressParams{
		ProgressToken: token,
		Progress:      done,
		Total:         1,
		Message:       message,
	})
	sess.Notify(mustMarshal(n))
}

// BackendHealth probes the storage backend.
func (s *Server) BackendHealth(ctx context.Context) *base.HealthStatus {
	if s.backend == nil {
		return nil
	}
	status, err := s.backend.HealthCheck(ctx)
	if err != nil {
		return &base.HealthStatus{Healthy: false, Timestamp: s.now(), Error: err.Error()}
	}
	return status
}

// idString renders a request id for logs.
func idString(id json.RawMessage) string {
	return strings.Trim(string(id), `"`)
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(protocol.NewErrorResponse(nil,
			protocol.NewError(protocol.KindInternalError, "failed to encode response: %v", err)))
	}
	return data
}
