package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests        *prometheus.CounterVec
	CounterSessionEvents   *prometheus.CounterVec
	CounterSetTransitions  *prometheus.CounterVec
	CounterActivityOutcome *prometheus.CounterVec
	CounterPartialFailures prometheus.Counter

	// gauges
	GaugeStreamClients prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("ironlog", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("ironlog", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterSessionEvents := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_events",
		Help:      "Workout session lifecycle events",
	}, []string{"event"})
	counterSetTransitions := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "set_transitions",
		Help:      "Set confirm and unconfirm transitions",
	}, []string{"transition"})
	counterActivityOutcome := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "activity_outcome",
		Help:      "Outcome of recording workout-completed activities",
	}, []string{"outcome"})
	counterPartialFailures := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "template_partial_failures",
		Help:      "Template instantiations that created a session but not all of its rows",
	})

	gaugeStreamClients := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "progress_stream_clients",
		Help:      "Currently connected progress event streams",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})

	return &Manager{
		CounterRequests:          counterRequests,
		CounterSessionEvents:     counterSessionEvents,
		CounterSetTransitions:    counterSetTransitions,
		CounterActivityOutcome:   counterActivityOutcome,
		CounterPartialFailures:   counterPartialFailures,
		GaugeStreamClients:       gaugeStreamClients,
		HistogramRequestDuration: histogramRequestDuration,
	}
}

// SessionEvent counts a lifecycle event such as "started" or "discarded".
func (m *Manager) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.CounterSessionEvents.WithLabelValues(event).Inc()
}

// SetTransition counts a "confirm" or "unconfirm".
func (m *Manager) SetTransition(transition string) {
	if m == nil {
		return
	}
	m.CounterSetTransitions.WithLabelValues(transition).Inc()
}

// ActivityOutcome counts how a completion activity was recorded.
func (m *Manager) ActivityOutcome(outcome string) {
	if m == nil {
		return
	}
	m.CounterActivityOutcome.WithLabelValues(outcome).Inc()
}

// PartialFailure counts a template instantiation that did not fully succeed.
func (m *Manager) PartialFailure() {
	if m == nil {
		return
	}
	m.CounterPartialFailures.Inc()
}
