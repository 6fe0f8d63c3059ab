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
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"storagemcp/platform/agent/dispatch"
	"storagemcp/platform/agent/ratelimit"
	"storagemcp/platform/agent/session"
	"storagemcp/platform/agent/tools"
	"storagemcp/platform/connectors/config"
	"storagemcp/platform/connectors/s3"
	"storagemcp/platform/connectors/sdk"
	"storagemcp/platform/shared/logger"
)

// DefaultIdleTimeout is how long a session without a stream may stay idle.
const DefaultIdleTimeout = 30 * time.Minute

// Options are the process-level settings supplied by the command line.
type Options struct {
	// Port overrides the configured port when non-zero.
	Port int
	// ConfigFile overrides STORAGE_MCP_CONFIG_FILE.
	ConfigFile string
	// IdleTimeout overrides DefaultIdleTimeout.
	IdleTimeout time.Duration
}

// Build connects to the storage backend and wires a Server. The returned
// cleanup releases the backend and the rate limiter.
func Build(ctx context.Context, cfg *config.ServerConfig) (*Server, func(), error) {
	conn := s3.NewS3Connector()
	conn.SetVersion(Version)
	if err := conn.Connect(ctx, cfg.ConnectorConfig()); err != nil {
		return nil, nil, fmt.Errorf("failed to connect storage backend: %w", err)
	}

	var limiter *ratelimit.RedisLimiter
	if cfg.RedisURL != "" {
		l, err := ratelimit.NewRedisLimiter(ctx, cfg.RedisURL, cfg.RateLimitPerMinute)
		if err != nil {
			_ = conn.Disconnect(ctx)
			return nil, nil, err
		}
		limiter = l
		log.Printf("[MCP] Rate limiting enabled: %d tool calls per session per minute", cfg.RateLimitPerMinute)
	}

	mcpLogger := logger.New("mcp")
	registry := tools.NewRegistry()
	dispatcher := dispatch.New(registry, conn, dispatch.WithLogger(mcpLogger))
	sessionOpts := []session.Option{session.WithObserver(func(n int) {
		promActiveSessions.Set(float64(n))
	})}
	if limiter != nil {
		sessionOpts = append(sessionOpts, session.WithTerminateHook(releaseRateLimit(limiter)))
	}
	sessions := session.NewManager(sessionOpts...)

	opts := ServerOptions{Backend: conn, Logger: mcpLogger}
	if limiter != nil {
		opts.Limiter = limiter
	}
	srv := NewServer(registry, dispatcher, sessions, opts)

	cleanup := func() {
		sessions.Close()
		if limiter != nil {
			_ = limiter.Close()
		}
		_ = conn.Disconnect(context.Background())
	}
	return srv, cleanup, nil
}

type windowResetter interface {
	Reset(ctx context.Context, key string) error
}

// releaseRateLimit drops the call window of a session once it ends.
func releaseRateLimit(r windowResetter) func(id string) {
	return func(id string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := r.Reset(ctx, id); err != nil {
			log.Printf("[MCP] Failed to release rate limit window for %s: %v", id, err)
		}
	}
}

// NewRouter builds the HTTP handler: /mcp, /health and /prometheus behind CORS.
func NewRouter(srv *Server) http.Handler {
	router := mux.NewRouter()

	RegisterMCPHandlers(router, NewHTTPHandler(srv))
	router.HandleFunc("/health", srv.healthHandler).Methods("GET")
	router.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{SessionHeader},
	})
	return c.Handler(router)
}

// statsSource is implemented by connectors built on sdk.BaseConnector.
type statsSource interface {
	GetMetrics() *sdk.ConnectorMetrics
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	var backend map[string]interface{}
	if h := s.BackendHealth(ctx); h != nil {
		backend = map[string]interface{}{
			"healthy":    h.Healthy,
			"latency_ms": h.Latency.Milliseconds(),
		}
		if h.Details != nil {
			backend["details"] = h.Details
		}
		if !h.Healthy {
			status = "degraded"
			backend["error"] = h.Error
		}
		if src, ok := s.backend.(statsSource); ok {
			stats := src.GetMetrics().GetStats()
			backend["operations"] = map[string]interface{}{
				"queries":        stats.QueriesTotal,
				"executes":       stats.ExecutesTotal,
				"errors":         stats.ErrorsTotal,
				"query_p95_ms":   stats.QueryLatencyP95.Milliseconds(),
				"execute_p95_ms": stats.ExecuteLatencyP95.Milliseconds(),
			}
		}
	}

	w.Header().Set(headerContentType, jsonContentType)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"service":   ServiceName,
		"version":   Version,
		"timestamp": time.Now().UTC(),
		"sessions":  s.sessions.Count(),
		"backend":   backend,
	}); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// reapIdle periodically terminates idle sessions until ctx is done.
func reapIdle(ctx context.Context, sessions *session.Manager, idle time.Duration) {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.ReapIdle(idle); n > 0 {
				log.Printf("[MCP] Reaped %d idle sessions", n)
			}
		}
	}
}

func loadConfig(ctx context.Context, opts Options) (*config.ServerConfig, error) {
	cfg, err := config.Load(ctx, config.LoadOptions{FilePath: opts.ConfigFile})
	if err != nil {
		return nil, err
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Run serves the HTTP transport until ctx is cancelled, then shuts down
// gracefully. Missing configuration is returned before anything starts.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return err
	}

	srv, cleanup, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go reapIdle(reapCtx, srv.sessions, idle)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[MCP] %s %s listening on port %d (endpoint %s, region %s)",
			ServiceName, Version, cfg.Port, cfg.S3.Endpoint, cfg.S3.Region)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("[MCP] Shutting down...")
	srv.sessions.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Println("[MCP] Server stopped")
	return nil
}

// RunStdio serves the stdio transport on in and out.
func RunStdio(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return err
	}

	srv, cleanup, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return srv.ServeStdio(ctx, in, out)
}
