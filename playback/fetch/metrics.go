package fetch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeOK             = "ok"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeNetwork        = "network"
	OutcomeHTTPStatus     = "http_status"
	OutcomeInvalidTrace   = "invalid_trace"
)

// Metrics bundles Prometheus collectors for trace fetches.
// A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec
	Steps     *prometheus.GaugeVec
}

// NewMetrics registers fetch metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "traceplay_fetch_requests_total",
		Help: "Total number of trace fetches, labeled by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	if err := reg.Register(requests); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		if requests, ok = are.ExistingCollector.(*prometheus.CounterVec); !ok {
			return nil, fmt.Errorf("collector traceplay_fetch_requests_total already registered with incompatible type")
		}
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traceplay_fetch_duration_seconds",
		Help:    "Trace fetch latency in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
	if err := reg.Register(durations); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		if durations, ok = are.ExistingCollector.(*prometheus.HistogramVec); !ok {
			return nil, fmt.Errorf("collector traceplay_fetch_duration_seconds already registered with incompatible type")
		}
	}

	steps := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traceplay_trace_steps",
		Help: "Step count of the most recently fetched trace per endpoint.",
	}, []string{"endpoint"})
	if err := reg.Register(steps); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		if steps, ok = are.ExistingCollector.(*prometheus.GaugeVec); !ok {
			return nil, fmt.Errorf("collector traceplay_trace_steps already registered with incompatible type")
		}
	}

	return &Metrics{
		gatherer:  gatherer,
		Requests:  requests,
		Durations: durations,
		Steps:     steps,
	}, nil
}

func (m *Metrics) observe(endpoint, outcome string, elapsed time.Duration, steps int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, outcome).Inc()
	m.Durations.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		m.Steps.WithLabelValues(endpoint).Set(float64(steps))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
