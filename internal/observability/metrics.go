package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for notary calls and UI actions.
type Metrics struct {
	registry *prometheus.Registry

	ContractCallsTotal   *prometheus.CounterVec
	ContractCallDuration *prometheus.HistogramVec
	NotarizeSkippedTotal prometheus.Counter
	ActionsTotal         *prometheus.CounterVec
	FilesHashedTotal     prometheus.Counter
	BytesHashedTotal     prometheus.Counter
	RPCsTotal            *prometheus.CounterVec
	RPCDuration          *prometheus.HistogramVec
}

// NewMetrics creates the metrics on a private registry so several instances
// (one per test, say) never collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ContractCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docnotary_contract_calls_total",
				Help: "Contract calls by method and result kind",
			},
			[]string{"method", "result"},
		),

		ContractCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docnotary_contract_call_duration_seconds",
				Help:    "Contract call latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method"},
		),

		NotarizeSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docnotary_notarize_skipped_total",
				Help: "Notarizations short-circuited by an existing record",
			},
		),

		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docnotary_actions_total",
				Help: "UI actions by name and outcome",
			},
			[]string{"action", "outcome"},
		),

		FilesHashedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docnotary_files_hashed_total",
				Help: "Files hashed",
			},
		),

		BytesHashedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docnotary_bytes_hashed_total",
				Help: "Bytes hashed",
			},
		),

		RPCsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docnotary_grpc_requests_total",
				Help: "Gateway requests by method and status code",
			},
			[]string{"method", "code"},
		),

		RPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docnotary_grpc_request_duration_seconds",
				Help:    "Gateway request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// ObserveCall records one contract call. result is "ok" or an error kind.
func (m *Metrics) ObserveCall(method, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ContractCallsTotal.WithLabelValues(method, result).Inc()
	m.ContractCallDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveSkip records a notarization skipped because the hash was already recorded.
func (m *Metrics) ObserveSkip() {
	if m == nil {
		return
	}
	m.NotarizeSkippedTotal.Inc()
}

// ObserveAction records the outcome of a UI action.
func (m *Metrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveHash records a hashed file.
func (m *Metrics) ObserveHash(size int64) {
	if m == nil {
		return
	}
	m.FilesHashedTotal.Inc()
	m.BytesHashedTotal.Add(float64(size))
}

// ObserveRPC records one gateway request.
func (m *Metrics) ObserveRPC(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RPCsTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
