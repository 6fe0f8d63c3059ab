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
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_mcp_tool_calls_total",
			Help: "Total number of tool calls by tool, action and outcome",
		},
		[]string{"tool", "action", "status"},
	)
	promToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_mcp_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
	promActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_mcp_active_sessions",
			Help: "Number of live MCP sessions",
		},
	)
	promHTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_mcp_http_requests_total",
			Help: "Total number of HTTP requests on the MCP endpoint",
		},
		[]string{"method", "code"},
	)
	promRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_mcp_rate_limited_total",
			Help: "Total number of tool calls rejected by the rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(promToolCalls)
	prometheus.MustRegister(promToolDuration)
	prometheus.MustRegister(promActiveSessions)
	prometheus.MustRegister(promHTTPRequests)
	prometheus.MustRegister(promRateLimited)
}

func recordToolCall(tool, action string, d time.Duration, errKind string) {
	status := "success"
	if errKind != "" {
		status = errKind
	}
	promToolCalls.WithLabelValues(tool, action, status).Inc()
	promToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// statusRecorder captures the response code and keeps streaming working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		promHTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
