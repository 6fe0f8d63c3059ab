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

package sdk

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	backendOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_mcp_backend_operations_total",
			Help: "Total storage backend operations by connector, operation and status",
		},
		[]string{"connector", "operation", "status"},
	)
	backendOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_mcp_backend_operation_duration_seconds",
			Help:    "Storage backend operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector", "operation"},
	)
)

func init() {
	prometheus.MustRegister(backendOperations, backendOperationDuration)
}

// ConnectorMetrics tracks metrics for a connector. Reads (listings, GETs,
// HEADs, presigning) count as queries; mutations count as executes.
type ConnectorMetrics struct {
	connectorType string

	// Counters
	queriesTotal     int64
	executesTotal    int64
	errorsTotal      int64
	connectsTotal    int64
	disconnectsTotal int64

	// Durations (nanoseconds)
	queryDurationTotal   int64
	executeDurationTotal int64

	connected int32

	queryLatencies   *LatencyHistogram
	executeLatencies *LatencyHistogram
}

// NewConnectorMetrics creates a new metrics collector
func NewConnectorMetrics(connectorType string) *ConnectorMetrics {
	return &ConnectorMetrics{
		connectorType:    connectorType,
		queryLatencies:   NewLatencyHistogram(),
		executeLatencies: NewLatencyHistogram(),
	}
}

// RecordQuery records a read operation
func (m *ConnectorMetrics) RecordQuery(duration time.Duration, err error) {
	atomic.AddInt64(&m.queriesTotal, 1)
	atomic.AddInt64(&m.queryDurationTotal, int64(duration))
	if err != nil {
		atomic.AddInt64(&m.errorsTotal, 1)
	}
	m.queryLatencies.Record(duration)
}

// RecordExecute records a write operation
func (m *ConnectorMetrics) RecordExecute(duration time.Duration, err error) {
	atomic.AddInt64(&m.executesTotal, 1)
	atomic.AddInt64(&m.executeDurationTotal, int64(duration))
	if err != nil {
		atomic.AddInt64(&m.errorsTotal, 1)
	}
	m.executeLatencies.Record(duration)
}

// ReadRecorder returns a recorder that files the named backend operation
// as a query, both in the snapshot counters and in Prometheus.
func (m *ConnectorMetrics) ReadRecorder(operation string) func(time.Duration, error) {
	return func(d time.Duration, err error) {
		m.RecordQuery(d, err)
		m.observe(operation, d, err)
	}
}

// WriteRecorder is ReadRecorder for mutating operations.
func (m *ConnectorMetrics) WriteRecorder(operation string) func(time.Duration, error) {
	return func(d time.Duration, err error) {
		m.RecordExecute(d, err)
		m.observe(operation, d, err)
	}
}

func (m *ConnectorMetrics) observe(operation string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	backendOperations.WithLabelValues(m.connectorType, operation, status).Inc()
	backendOperationDuration.WithLabelValues(m.connectorType, operation).Observe(d.Seconds())
}

// RecordConnect records a connect operation
func (m *ConnectorMetrics) RecordConnect() {
	atomic.AddInt64(&m.connectsTotal, 1)
	atomic.StoreInt32(&m.connected, 1)
}

// RecordDisconnect records a disconnect operation
func (m *ConnectorMetrics) RecordDisconnect() {
	atomic.AddInt64(&m.disconnectsTotal, 1)
	atomic.StoreInt32(&m.connected, 0)
}

// GetStats returns current metrics
func (m *ConnectorMetrics) GetStats() *MetricsSnapshot {
	queries := atomic.LoadInt64(&m.queriesTotal)
	executes := atomic.LoadInt64(&m.executesTotal)

	var avgQueryLatency, avgExecuteLatency time.Duration
	if queries > 0 {
		avgQueryLatency = time.Duration(atomic.LoadInt64(&m.queryDurationTotal) / queries)
	}
	if executes > 0 {
		avgExecuteLatency = time.Duration(atomic.LoadInt64(&m.executeDurationTotal) / executes)
	}

	return &MetricsSnapshot{
		ConnectorType:     m.connectorType,
		QueriesTotal:      queries,
		ExecutesTotal:     executes,
		ErrorsTotal:       atomic.LoadInt64(&m.errorsTotal),
		ConnectsTotal:     atomic.LoadInt64(&m.connectsTotal),
		DisconnectsTotal:  atomic.LoadInt64(&m.disconnectsTotal),
		Connected:         atomic.LoadInt32(&m.connected) == 1,
		AvgQueryLatency:   avgQueryLatency,
		AvgExecuteLatency: avgExecuteLatency,
		QueryLatencyP50:   m.queryLatencies.Percentile(0.5),
		QueryLatencyP95:   m.queryLatencies.Percentile(0.95),
		QueryLatencyP99:   m.queryLatencies.Percentile(0.99),
		ExecuteLatencyP50: m.executeLatencies.Percentile(0.5),
		ExecuteLatencyP95: m.executeLatencies.Percentile(0.95),
		ExecuteLatencyP99: m.executeLatencies.Percentile(0.99),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	ConnectorType     string        `json:"connector_type"`
	QueriesTotal      int64         `json:"queries_total"`
	ExecutesTotal     int64         `json:"executes_total"`
	ErrorsTotal       int64         `json:"errors_total"`
	ConnectsTotal     int64         `json:"connects_total"`
	DisconnectsTotal  int64         `json:"disconnects_total"`
	Connected         bool          `json:"connected"`
	AvgQueryLatency   time.Duration `json:"avg_query_latency"`
	AvgExecuteLatency time.Duration `json:"avg_execute_latency"`
	QueryLatencyP50   time.Duration `json:"query_latency_p50"`
	QueryLatencyP95   time.Duration `json:"query_latency_p95"`
	QueryLatencyP99   time.Duration `json:"query_latency_p99"`
	ExecuteLatencyP50 time.Duration `json:"execute_latency_p50"`
	ExecuteLatencyP95 time.Duration `json:"execute_latency_p95"`
	ExecuteLatencyP99 time.Duration `json:"execute_latency_p99"`
}

// LatencyHistogram provides simple percentile calculations
type LatencyHistogram struct {
	samples []time.Duration
	maxSize int
	mu      sync.Mutex
}

// NewLatencyHistogram creates a new latency histogram
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		samples: make([]time.Duration, 0, 1000),
		maxSize: 10000,
	}
}

// Record adds a latency sample
func (h *LatencyHistogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		// drop the oldest half
		h.samples = h.samples[len(h.samples)/2:]
	}
	h.samples = append(h.samples, d)
}

// Percentile calculates the given percentile
func (h *LatencyHistogram) Percentile(p float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(h.samples))
	copy(sorted, h.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// OperationTimer provides convenient timing for operations
type OperationTimer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *OperationTimer {
	return &OperationTimer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was started
func (t *OperationTimer) Duration() time.Duration {
	return time.Since(t.start)
}

// RecordTo records the duration to the given callback
func (t *OperationTimer) RecordTo(record func(time.Duration, error), err error) {
	record(t.Duration(), err)
}
