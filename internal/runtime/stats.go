package runtime

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"
)

const latencySampleSize = 256

// LoopStats tracks the processing counters of one queue loop. All methods are
// safe for concurrent use; the queue loop updates it on every delivery and
// the introspection endpoint reads snapshots.
type LoopStats struct {
	mu sync.Mutex `json:"-"`

	loopName string `json:"-"`
	queue    string `json:"-"`

	Processed       uint64    `json:"processed"`
	Failed          uint64    `json:"failed"`
	Quarantined     uint64    `json:"quarantined"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	LastError       string    `json:"last_error,omitempty"`

	Latency LatencyMetrics `json:"latency"`

	latencyWindow *latencyWindow `json:"-"`
}

// LoopInfo pairs a queue loop's identity with its live stats.
type LoopInfo struct {
	Name  string     `json:"name"`
	Queue string     `json:"queue"`
	Stats *LoopStats `json:"stats"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

func newLoopStats(name, queue string) *LoopStats {
	return &LoopStats{
		loopName:      name,
		queue:         queue,
		latencyWindow: newLatencyWindow(latencySampleSize),
	}
}

func (s *LoopStats) observe(duration time.Duration, err error, quarantined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Processed++
	if err != nil {
		s.Failed++
		s.LastError = err.Error()
	}
	if quarantined {
		s.Quarantined++
	}
	s.LastProcessedAt = time.Now().UTC()

	if s.latencyWindow != nil {
		s.latencyWindow.Add(duration)
		snapshot := s.latencyWindow.Snapshot()
		snapshot.LastNs = int64(duration)
		s.Latency = snapshot
	}
}

func (s *LoopStats) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type Alias LoopStats
	return json.Marshal((*Alias)(s))
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var metrics LatencyMetrics
	if lw == nil || lw.filled == 0 {
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	metrics.LastNs = lw.last
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}
