// Package metrics exports request and execution counters for Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/gqlserve/internal/eventbus"
	events "github.com/hanpama/gqlserve/internal/events"
)

const namespace = "gqlserve"

// Collector holds the gqlserve metrics. It is fed by bus events.
type Collector struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     prometheus.Histogram
	rejected         *prometheus.CounterVec
	operations       *prometheus.CounterVec
	executionFailure prometheus.Counter
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by status code.",
		}, []string{"code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent handling HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Requests that could not be turned into a GraphQL request, by reason.",
		}, []string{"reason"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_operations_total",
			Help:      "Executed GraphQL requests, by operation type and result.",
		}, []string{"type", "result"}),
		executionFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_execution_failures_total",
			Help:      "Executions that failed without producing a result.",
		}),
	}
	for _, col := range []prometheus.Collector{c.httpRequests, c.httpDuration, c.rejected, c.operations, c.executionFailure} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Subscribe updates the metrics from events published on bus.
func (c *Collector) Subscribe(bus *eventbus.Bus) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(bus, func(_ context.Context, e events.HTTPFinish) {
			c.httpRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
			c.httpDuration.Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.RequestRejected) {
			c.rejected.WithLabelValues(e.Reason).Inc()
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.GraphQLFinish) {
			opType := e.OperationType
			if opType == "" {
				opType = "unknown"
			}
			result := "success"
			if len(e.Errors) > 0 {
				result = "error"
			}
			c.operations.WithLabelValues(opType, result).Inc()
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.ExecutionFailed) {
			c.executionFailure.Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
