package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gaitcore"

// Metrics are the Prometheus instruments updated by the control loop, the
// transport and the telemetry publisher.
type Metrics struct {
	// CycleDuration is the busy time of a cycle, excluding the period sleep.
	CycleDuration prometheus.Histogram
	// InferenceLatency is the policy call latency.
	InferenceLatency prometheus.Histogram
	// Overruns counts cycles whose busy time exceeded the period.
	Overruns prometheus.Counter
	// Cycles counts completed cycles.
	Cycles prometheus.Counter
	// Phase is the current loop phase index (0 soft, 1 firm, 2 run).
	Phase prometheus.Gauge
	// Frames counts wire frames decoded by the transport.
	Frames prometheus.Counter
	// BadFrames counts wire frames dropped by the transport codec.
	// Labels: reason (length, crc)
	BadFrames *prometheus.CounterVec
	// TelemetryDropped counts frames not delivered to a slow subscriber.
	TelemetryDropped prometheus.Counter
}

// NewMetrics registers the instruments with reg. A nil reg uses a private
// registry, which keeps tests independent of the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "cycle_duration_seconds",
			Help:      "Busy time of one control cycle in seconds",
			Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.015, 0.02, 0.025, 0.05, 0.1},
		}),
		InferenceLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "inference_seconds",
			Help:      "Policy inference latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02},
		}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "overruns_total",
			Help:      "Cycles that exceeded the control period",
		}),
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "cycles_total",
			Help:      "Completed control cycles",
		}),
		Phase: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "phase",
			Help:      "Current control phase (0 soft start, 1 firm start, 2 run)",
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Wire frames accepted by the codec",
		}),
		BadFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bad_frames_total",
			Help:      "Wire frames dropped by the codec",
		}, []string{"reason"}),
		TelemetryDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "dropped_total",
			Help:      "Telemetry frames dropped for slow subscribers",
		}),
	}
}

// AddFrame counts one accepted wire frame.
func (m *Metrics) AddFrame(int) { m.Frames.Inc() }

// AddDropped counts one rejected wire frame.
func (m *Metrics) AddDropped(reason string) { m.BadFrames.WithLabelValues(reason).Inc() }
