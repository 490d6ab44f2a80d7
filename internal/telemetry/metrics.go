package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "unitledger"

// Metrics holds the ledger and HTTP collectors.
type Metrics struct {
	operationsTotal     *prometheus.CounterVec
	operationAmount     *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ ledger.OperationLogger = (*Metrics)(nil)

// NewMetrics registers every collector on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Ledger operations processed, labeled by outcome and error kind",
		}, []string{"operation", "status", "kind"}),
		operationAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operation_amount_cents_total",
			Help:      "Units moved by successful ledger operations, in cents",
		}, []string{"operation", "channel"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed, labeled by status code",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP requests",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
	}
}

func (metrics *Metrics) LogOperation(_ context.Context, entry ledger.OperationLog) {
	kind := ""
	if entry.Error != nil {
		kind = string(ledger.KindOf(entry.Error))
	}
	metrics.operationsTotal.WithLabelValues(entry.Operation, entry.Status, kind).Inc()
	if entry.Status == ledger.OperationStatusOK && entry.Amount > 0 {
		metrics.operationAmount.WithLabelValues(entry.Operation, entry.Channel).Add(float64(entry.Amount.Int64()))
	}
}

// ObserveHTTP records one served request.
func (metrics *Metrics) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	metrics.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	metrics.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
