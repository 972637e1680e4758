package runtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks the routing pipeline's Prometheus collectors. A nil
// receiver is valid everywhere so components can run unmetered in tests.
type PipelineMetrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	routedTotal        *prometheus.CounterVec
	violationsTotal    *prometheus.CounterVec
	quarantinedTotal   *prometheus.CounterVec
	publishedTotal     prometheus.Counter
	publisherPos       prometheus.Gauge
	rebuildSeconds     prometheus.Gauge
	rebuildRecordCount prometheus.Gauge
}

func newPipelineCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventspine",
			Subsystem: "pipeline",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newPipelineGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventspine",
		Subsystem: "pipeline",
		Name:      name,
		Help:      help,
	})
}

// NewPipelineMetrics creates the pipeline collectors. Passing nil uses the
// default registerer.
func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PipelineMetrics{
		registerer:      registerer,
		routedTotal:     newPipelineCounterVec("routed_total", "Commands routed, by destination queue", []string{"queue"}),
		violationsTotal: newPipelineCounterVec("protocol_violations_total", "Events rejected on the routing ingress, by kind", []string{"kind"}),
		quarantinedTotal: newPipelineCounterVec(
			"quarantined_total", "Envelopes isolated in the error container, by original queue", []string{"queue"}),
		publishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventspine",
			Subsystem: "pipeline",
			Name:      "published_total",
			Help:      "Store records forwarded to the event-processing queue",
		}),
		publisherPos:       newPipelineGauge("publisher_checkpoint", "Last store position published and checkpointed"),
		rebuildSeconds:     newPipelineGauge("rebuild_duration_seconds", "Duration of the last startup projection rebuild"),
		rebuildRecordCount: newPipelineGauge("rebuild_records", "Records replayed by the last startup projection rebuild"),
	}
}

// Register registers the collectors. Safe to call more than once.
func (m *PipelineMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}
	collectors := []prometheus.Collector{
		m.routedTotal,
		m.violationsTotal,
		m.quarantinedTotal,
		m.publishedTotal,
		m.publisherPos,
		m.rebuildSeconds,
		m.rebuildRecordCount,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, already := err.(prometheus.AlreadyRegisteredError); already {
				continue
			}
			return err
		}
	}
	m.registered = true
	return nil
}

func (m *PipelineMetrics) observeRouted(queue string) {
	if m == nil {
		return
	}
	m.routedTotal.WithLabelValues(queue).Inc()
}

func (m *PipelineMetrics) observeProtocolViolation(kind string) {
	if m == nil {
		return
	}
	m.violationsTotal.WithLabelValues(kind).Inc()
}

func (m *PipelineMetrics) observeQuarantined(queue string) {
	if m == nil {
		return
	}
	m.quarantinedTotal.WithLabelValues(queue).Inc()
}

func (m *PipelineMetrics) observePublished(pos uint64) {
	if m == nil {
		return
	}
	m.publishedTotal.Inc()
	m.publisherPos.Set(float64(pos))
}

func (m *PipelineMetrics) observeRebuild(seconds float64, records int) {
	if m == nil {
		return
	}
	m.rebuildSeconds.Set(seconds)
	m.rebuildRecordCount.Set(float64(records))
}
