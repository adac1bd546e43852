// Package metrics provides Prometheus instrumentation for rulekeeper.
//
// All metrics are registered in a custom [prometheus.Registry] (not the global
// default) so that only rulekeeper metrics appear on the /metrics endpoint.
package metrics

import (
	"context"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/rules"
)

// Metrics holds all Prometheus collectors used by rulekeeper.
type Metrics struct {
	Registry *prometheus.Registry

	GRPCRequestsTotal   *prometheus.CounterVec
	GRPCRequestDuration *prometheus.HistogramVec
	RulesConsidered     *prometheus.CounterVec
	ActionsExecuted     *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	RunResults          *prometheus.HistogramVec
	StoreWriteFailures  *prometheus.CounterVec
}

var _ rules.Recorder = (*Metrics)(nil)

// New creates and registers all rulekeeper metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rulekeeper_grpc_requests_total",
			Help: "Total number of gRPC requests.",
		}, []string{"method", "status"}),

		GRPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rulekeeper_grpc_request_duration_seconds",
			Help:    "gRPC request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),

		RulesConsidered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rulekeeper_rules_considered_total",
			Help: "Rules considered during runs, by outcome.",
		}, []string{"rule_type", "outcome"}),

		ActionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rulekeeper_actions_executed_total",
			Help: "Actions executed, by kind and success.",
		}, []string{"kind", "success"}),

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rulekeeper_run_duration_seconds",
			Help:    "Latency of FindAndExecuteRules in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"rule_type"}),

		RunResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rulekeeper_run_results",
			Help:    "Number of action results produced per run.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}, []string{"rule_type"}),

		StoreWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rulekeeper_store_write_failures_total",
			Help: "Best-effort store writes that failed.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.RulesConsidered,
		m.ActionsExecuted,
		m.RunDuration,
		m.RunResults,
		m.StoreWriteFailures,
	)

	return m
}

// Handler returns an [http.Handler] that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// UnaryServerInterceptor returns a gRPC unary interceptor that records
// request count and latency for each method.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		method := path.Base(info.FullMethod)
		code := status.Code(err).String()
		m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
		m.GRPCRequestDuration.WithLabelValues(method, code).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// RuleConsidered counts one rule visited by the engine.
func (m *Metrics) RuleConsidered(ruleType, outcome string) {
	m.RulesConsidered.WithLabelValues(ruleType, outcome).Inc()
}

// ActionExecuted counts one action handler invocation.
func (m *Metrics) ActionExecuted(kind string, success bool) {
	m.ActionsExecuted.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

// RunCompleted records the latency and result count of one run.
func (m *Metrics) RunCompleted(ruleType string, d time.Duration, results int) {
	m.RunDuration.WithLabelValues(ruleType).Observe(d.Seconds())
	m.RunResults.WithLabelValues(ruleType).Observe(float64(results))
}

// StoreWriteFailed counts a failed audit or counter write.
func (m *Metrics) StoreWriteFailed(op string) {
	m.StoreWriteFailures.WithLabelValues(op).Inc()
}
