// Package metrics exposes Prometheus collectors fed from bus events.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/membergraph/internal/eventbus"
	events "github.com/hanpama/membergraph/internal/events"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DepthRejections   prometheus.Counter
	LoaderBatches     *prometheus.CounterVec
	LoaderBatchSize   *prometheus.HistogramVec
	LoaderErrors      *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membergraph_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "membergraph_graphql_operation_duration_seconds",
				Help:    "Duration of GraphQL operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"type", "outcome"},
		),
		DepthRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "membergraph_graphql_depth_rejections_total",
			Help: "Operations refused for exceeding the maximum depth",
		}),
		LoaderBatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membergraph_loader_batches_total",
				Help: "Batch function calls per loader",
			},
			[]string{"loader"},
		),
		LoaderBatchSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "membergraph_loader_batch_keys",
				Help:    "Number of keys per batch function call",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"loader"},
		),
		LoaderErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membergraph_loader_errors_total",
				Help: "Failed batch function calls per loader",
			},
			[]string{"loader"},
		),
	}
}

// Subscribe feeds m from events published on b.
func (m *Metrics) Subscribe(b *eventbus.Bus) (unsubscribe func()) {
	offs := []func(){
		eventbus.On(b, func(_ context.Context, e events.HTTPFinish) {
			m.HTTPRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
		}),
		eventbus.On(b, func(_ context.Context, e events.GraphQLFinish) {
			outcome := "ok"
			if len(e.Errors) > 0 {
				outcome = "error"
			}
			m.OperationDuration.WithLabelValues(e.OperationType, outcome).Observe(e.Duration.Seconds())
		}),
		eventbus.On(b, func(context.Context, events.DepthRejected) {
			m.DepthRejections.Inc()
		}),
		eventbus.On(b, func(_ context.Context, e events.LoaderDispatchFinish) {
			m.LoaderBatches.WithLabelValues(e.Loader).Inc()
			m.LoaderBatchSize.WithLabelValues(e.Loader).Observe(float64(e.Keys))
			if e.Err != nil {
				m.LoaderErrors.WithLabelValues(e.Loader).Inc()
			}
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
