package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

// Metrics records client call counts and latencies.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the client collectors and registers them with reg.
// Collectors already registered by another client are shared.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chirpstore_client_calls_total",
		Help: "Calls made by chirpstore clients, by method and outcome.",
	}, []string{"method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chirpstore_client_call_duration_seconds",
		Help:    "Round-trip latency of chirpstore client calls.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"method"})

	if err := reg.Register(calls); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		calls = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &Metrics{calls: calls, duration: duration}, nil
}

// Outcome labels
const (
	outcomeOK       = "ok"
	outcomeService  = "service_error"
	outcomeProtocol = "protocol_error"
	outcomeConn     = "conn_error"
	outcomeOther    = "error"
)

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case protocol.IsProtocolError(err):
		return outcomeProtocol
	case IsFatal(err):
		return outcomeConn
	}
	if _, ok := protocol.AsServiceError(err); ok {
		return outcomeService
	}
	return outcomeOther
}

func (m *Metrics) observe(method protocol.Method, start time.Time, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(string(method), outcome(err)).Inc()
	m.duration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
}
