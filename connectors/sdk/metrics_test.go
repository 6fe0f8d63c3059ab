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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConnectorMetrics(t *testing.T) {
	t.Run("record query", func(t *testing.T) {
		metrics := NewConnectorMetrics("test-connector")

		metrics.RecordQuery(100*time.Millisecond, nil)
		metrics.RecordQuery(200*time.Millisecond, nil)
		metrics.RecordQuery(50*time.Millisecond, fmt.Errorf("error"))

		stats := metrics.GetStats()
		if stats.QueriesTotal != 3 {
			t.Errorf("expected 3 queries, got %d", stats.QueriesTotal)
		}
		if stats.ErrorsTotal != 1 {
			t.Errorf("expected 1 error, got %d", stats.ErrorsTotal)
		}
		if stats.AvgQueryLatency < 100*time.Millisecond || stats.AvgQueryLatency > 130*time.Millisecond {
			t.Errorf("unexpected average latency: %v", stats.AvgQueryLatency)
		}
	})

	t.Run("record execute", func(t *testing.T) {
		metrics := NewConnectorMetrics("test-connector")

		metrics.RecordExecute(50*time.Millisecond, nil)
		metrics.RecordExecute(100*time.Millisecond, fmt.Errorf("error"))

		stats := metrics.GetStats()
		if stats.ExecutesTotal != 2 {
			t.Errorf("expected 2 executes, got %d", stats.ExecutesTotal)
		}
		if stats.ErrorsTotal != 1 {
			t.Errorf("expected 1 error, got %d", stats.ErrorsTotal)
		}
		if stats.AvgExecuteLatency != 75*time.Millisecond {
			t.Errorf("expected 75ms average, got %v", stats.AvgExecuteLatency)
		}
	})

	t.Run("connect and disconnect", func(t *testing.T) {
		metrics := NewConnectorMetrics("test-connector")

		metrics.RecordConnect()
		if !metrics.GetStats().Connected {
			t.Error("expected connected")
		}
		metrics.RecordDisconnect()
		stats := metrics.GetStats()
		if stats.Connected {
			t.Error("expected disconnected")
		}
		if stats.ConnectsTotal != 1 || stats.DisconnectsTotal != 1 {
			t.Errorf("unexpected counts: %+v", stats)
		}
	})
}

func TestOperationRecorders(t *testing.T) {
	metrics := NewConnectorMetrics("recorder-test")

	read := metrics.ReadRecorder("HeadObject")
	write := metrics.WriteRecorder("PutObject")

	read(time.Millisecond, nil)
	read(time.Millisecond, fmt.Errorf("NotFound"))
	write(2*time.Millisecond, nil)

	stats := metrics.GetStats()
	if stats.QueriesTotal != 2 || stats.ExecutesTotal != 1 || stats.ErrorsTotal != 1 {
		t.Errorf("unexpected snapshot: %+v", stats)
	}

	if got := testutil.ToFloat64(backendOperations.WithLabelValues("recorder-test", "HeadObject", "success")); got != 1 {
		t.Errorf("expected 1 successful HeadObject, got %v", got)
	}
	if got := testutil.ToFloat64(backendOperations.WithLabelValues("recorder-test", "HeadObject", "error")); got != 1 {
		t.Errorf("expected 1 failed HeadObject, got %v", got)
	}
	if got := testutil.ToFloat64(backendOperations.WithLabelValues("recorder-test", "PutObject", "success")); got != 1 {
		t.Errorf("expected 1 successful PutObject, got %v", got)
	}
}

func TestLatencyHistogram(t *testing.T) {
	t.Run("percentiles", func(t *testing.T) {
		h := NewLatencyHistogram()
		for i := 1; i <= 100; i++ {
			h.Record(time.Duration(i) * time.Millisecond)
		}

		if p50 := h.Percentile(0.5); p50 < 49*time.Millisecond || p50 > 51*time.Millisecond {
			t.Errorf("unexpected p50: %v", p50)
		}
		if p99 := h.Percentile(0.99); p99 < 98*time.Millisecond {
			t.Errorf("unexpected p99: %v", p99)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if NewLatencyHistogram().Percentile(0.5) != 0 {
			t.Error("expected 0 for empty histogram")
		}
	})

	t.Run("bounded size", func(t *testing.T) {
		h := NewLatencyHistogram()
		for i := 0; i < 15000; i++ {
			h.Record(time.Millisecond)
		}
		if n := len(h.samples); n > 10000 {
			t.Errorf("expected at most 10000 samples, got %d", n)
		}
	})

	t.Run("concurrent", func(t *testing.T) {
		h := NewLatencyHistogram()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					h.Record(time.Millisecond)
				}
			}()
		}
		wg.Wait()
		if n := len(h.samples); n != 1000 {
			t.Errorf("expected 1000 samples, got %d", n)
		}
	})
}

func TestOperationTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)

	var recorded time.Duration
	var recordedErr error
	want := fmt.Errorf("boom")
	timer.RecordTo(func(d time.Duration, err error) {
		recorded = d
		recordedErr = err
	}, want)

	if recorded < 5*time.Millisecond {
		t.Errorf("expected at least 5ms, got %v", recorded)
	}
	if recordedErr != want {
		t.Errorf("expected error to be passed through")
	}
}
