package opt

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"tourroute/internal/metrics"
	"tourroute/internal/model"
)

// Recorder keeps one PlanMetrics row per computed route.
type Recorder interface {
	SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error
}

// Event kinds emitted by OptimizeStream.
const (
	EventContext  = "context"
	EventStrategy = "strategy"
	EventSelected = "selected"
	EventDone     = "done"
)

// Event is a progress notification of one optimize call.
type Event struct {
	Kind         string                 `json:"kind"`
	CrowdSignals int                    `json:"crowdSignals,omitempty"`
	Weather      bool                   `json:"weather,omitempty"`
	Strategy     *model.StrategyOutcome `json:"strategy,omitempty"`
	Algorithm    string                 `json:"algorithm,omitempty"`
	Cached       bool                   `json:"cached,omitempty"`
	Route        *model.OptimizedRoute  `json:"route,omitempty"`
}

// Engine runs the full optimize flow. Only Cache is shared between calls;
// everything else an optimize call touches is built per call.
type Engine struct {
	Strategies     []Strategy
	Cache          RouteCache      // optional
	Provider       ContextProvider // optional
	Recorder       Recorder        // optional
	Logger         log.Logger
	Timeout        time.Duration // per-call cap for the pool, default 4s
	ContextTimeout time.Duration // default 500ms
	Weights        Weights
}

// NewEngine returns an engine with the default pool and weights.
func NewEngine(seed int64) *Engine {
	return &Engine{
		Strategies:     DefaultStrategies(seed),
		Logger:         log.NewNopLogger(),
		Timeout:        4 * time.Second,
		ContextTimeout: 500 * time.Millisecond,
		Weights:        DefaultWeights,
	}
}

// Optimize returns the best itinerary for wps under c, starting at start.
func (e *Engine) Optimize(ctx context.Context, wps []model.Waypoint, c model.RouteConstraints, start model.GeoPoint) (*model.OptimizedRoute, error) {
	return e.OptimizeStream(ctx, wps, c, start, nil)
}

// OptimizeStream is Optimize that also reports progress on events. The
// caller owns the channel and must keep draining it until the call returns.
func (e *Engine) OptimizeStream(ctx context.Context, wps []model.Waypoint, c model.RouteConstraints, start model.GeoPoint, events chan<- Event) (*model.OptimizedRoute, error) {
	began := time.Now()
	logger := log.With(e.logger(), "op", "optimize")
	emit := func(ev Event) {
		if events == nil {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	done := func(outcome string) {
		metrics.Optimizations.WithLabelValues(outcome).Inc()
		metrics.OptimizeLatency.WithLabelValues(outcome).Observe(sinceMs(began))
	}

	c = c.Normalize()
	if err := ValidateConstraints(c); err != nil {
		done("input_error")
		return nil, err
	}

	key := CacheKey(wps, c, start)
	if e.Cache != nil {
		cached, err := e.Cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("error").Inc()
			level.Warn(logger).Log("msg", "cache get failed", "err", err)
		case cached != nil:
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			cached.Metadata.OptimizationTime = sinceMs(began)
			done("cached")
			level.Debug(logger).Log("msg", "cache hit", "route", cached.ID)
			emit(Event{Kind: EventDone, Cached: true, Algorithm: cached.Metadata.Algorithm, Route: cached})
			return cached, nil
		default:
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	valid := ValidateWaypoints(wps, c)
	if len(valid) == 0 {
		done("input_error")
		return nil, fmt.Errorf("optimize: %d waypoints in, none pass the filters: %w", len(wps), ErrNoWaypoints)
	}

	snap := GatherContext(ctx, e.Provider, valid, e.ContextTimeout)
	metrics.ContextSignals.WithLabelValues("crowd").Add(float64(len(snap.Crowd)))
	if snap.Weather != nil {
		metrics.ContextSignals.WithLabelValues("weather").Inc()
	}
	emit(Event{Kind: EventContext, CrowdSignals: len(snap.Crowd), Weather: snap.Weather != nil})

	p := NewProblem(valid, c, start, snap)
	runCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	results, outcomes := RunPool(runCtx, e.strategies(), p, func(o model.StrategyOutcome) {
		emit(Event{Kind: EventStrategy, Strategy: &o})
	})
	for _, o := range outcomes {
		metrics.StrategyRuns.WithLabelValues(o.Algorithm, o.Status).Inc()
		metrics.StrategyLatency.WithLabelValues(o.Algorithm).Observe(float64(o.ElapsedMs))
		if o.Status != "ok" {
			level.Info(logger).Log("msg", "strategy failed", "algorithm", o.Algorithm, "err", o.Error)
		}
	}
	if len(results) == 0 {
		done("failed")
		level.Error(logger).Log("msg", "every strategy failed", "strategies", len(outcomes))
		return nil, fmt.Errorf("optimize: all %d strategies failed: %w", len(outcomes), ErrOptimizationFailed)
	}

	best, scored := Select(p, results, e.weights())
	for i := range outcomes {
		for _, s := range scored {
			if s.Result.Algorithm == outcomes[i].Algorithm {
				outcomes[i].Total = math.Round(s.Total*1000) / 1000
			}
		}
	}
	metrics.StrategyRuns.WithLabelValues(best.Result.Algorithm, "selected").Inc()
	emit(Event{Kind: EventSelected, Algorithm: best.Result.Algorithm})

	route := Assemble(p, best.Result.Order)
	route.Quality = EvaluateQuality(p, best.Result.Order)
	route.Metadata = model.RouteMetadata{
		Algorithm:         best.Result.Algorithm,
		Confidence:        confidence(best.Result.Confidence, snap, len(valid)),
		WeatherConsidered: snap.Weather != nil,
		CrowdDataUsed:     len(snap.Crowd) > 0,
		Strategies:        outcomes,
	}
	route.Metadata.OptimizationTime = sinceMs(began)

	if e.Cache != nil {
		if err := e.Cache.Set(ctx, key, &route); err != nil {
			level.Warn(logger).Log("msg", "cache set failed", "err", err)
		}
	}
	if e.Recorder != nil {
		pm := model.PlanMetrics{
			ID:         uuid.NewString(),
			CacheKey:   key,
			RouteID:    route.ID,
			Algorithm:  route.Metadata.Algorithm,
			Confidence: route.Metadata.Confidence,
			Quality:    route.Quality.Score,
			Waypoints:  len(route.Waypoints),
			DurationMs: int64(route.Metadata.OptimizationTime),
			Strategies: outcomes,
			CreatedAt:  time.Now().UTC(),
		}
		if err := e.Recorder.SavePlanMetrics(ctx, pm); err != nil {
			level.Warn(logger).Log("msg", "plan metrics not saved", "err", err)
		}
	}

	done("ok")
	level.Info(logger).Log("msg", "route optimized", "algorithm", route.Metadata.Algorithm,
		"waypoints", len(route.Waypoints), "quality", route.Quality.Score, "dur_ms", route.Metadata.OptimizationTime)
	emit(Event{Kind: EventDone, Algorithm: route.Metadata.Algorithm, Route: &route})
	return &route, nil
}

// confidence scales the winner's confidence down when live context is missing.
func confidence(base float64, snap model.ContextSnapshot, n int) float64 {
	factor := 0.9
	if snap.Weather != nil {
		factor += 0.05
	}
	if n > 0 {
		factor += 0.05 * math.Min(1, float64(len(snap.Crowd))/float64(n))
	}
	return math.Round(base*factor*100) / 100
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func (e *Engine) logger() log.Logger {
	if e.Logger == nil {
		return log.NewNopLogger()
	}
	return e.Logger
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout <= 0 {
		return 4 * time.Second
	}
	return e.Timeout
}

func (e *Engine) strategies() []Strategy {
	if len(e.Strategies) == 0 {
		return DefaultStrategies(0)
	}
	return e.Strategies
}

func (e *Engine) weights() Weights {
	if e.Weights == (Weights{}) {
		return DefaultWeights
	}
	return e.Weights
}
