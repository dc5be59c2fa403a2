package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Optimizations counts optimize calls by outcome (ok, cached, input_error, failed)
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_optimizations_total", Help: "Route optimize calls by outcome."},
		[]string{"outcome"},
	)
	// OptimizeLatency tracks end-to-end optimize latency in milliseconds
	OptimizeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "route_optimize_latency_ms", Help: "Optimize latency in ms.", Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000, 2000, 5000}},
		[]string{"outcome"},
	)
	// StrategyRuns counts strategy runs by algorithm and status, and wins by algorithm
	StrategyRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_strategy_runs_total", Help: "Strategy runs by algorithm and status (ok, failed, selected)."},
		[]string{"algorithm", "status"},
	)
	// StrategyLatency tracks per-strategy run time in milliseconds
	StrategyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "route_strategy_latency_ms", Help: "Strategy run time in ms.", Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000, 4000}},
		[]string{"algorithm"},
	)
	// CacheLookups counts route cache lookups by result (hit, miss, error)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_cache_lookups_total", Help: "Route cache lookups by result."},
		[]string{"result"},
	)
	// ContextSignals counts context signals used per call by kind (crowd, weather)
	ContextSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_context_signals_total", Help: "Context signals gathered by kind."},
		[]string{"kind"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Optimizations)
		Registry.MustRegister(OptimizeLatency)
		Registry.MustRegister(StrategyRuns)
		Registry.MustRegister(StrategyLatency)
		Registry.MustRegister(CacheLookups)
		Registry.MustRegister(ContextSignals)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
