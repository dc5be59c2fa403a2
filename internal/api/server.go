package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"tourroute/internal/cache"
	"tourroute/internal/config"
	"tourroute/internal/contextdata"
	"tourroute/internal/metrics"
	"tourroute/internal/opt"
	"tourroute/internal/store"
)

type Server struct {
	Store   store.Store
	Engine  *opt.Engine
	Broker  EventBroker
	Config  config.Config
	Logger  log.Logger
	limiter *rate.Limiter
	closers []func() error
}

// NewServer wires the store, cache, context provider and engine from cfg.
// Without DATABASE_URL it uses the in-memory store; without REDIS_URL the
// in-memory cache, broker and static context provider.
func NewServer(cfg config.Config, logger log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{Config: cfg, Logger: logger}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s.Store = store.NewMemory()
	} else {
		sq, err := store.NewSQL(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := sq.Migrate(context.Background()); err != nil {
			_ = sq.Close()
			return nil, err
		}
		s.closers = append(s.closers, sq.Close)
		s.Store = sq
	}

	eng := opt.NewEngine(cfg.Optimizer.Seed)
	eng.Strategies = cfg.Optimizer.Strategies()
	eng.Timeout = cfg.Optimizer.Timeout
	eng.ContextTimeout = cfg.Optimizer.ContextTimeout
	eng.Weights = cfg.Optimizer.Weights
	eng.Recorder = s.Store
	eng.Logger = log.With(logger, "component", "optimizer")

	if cfg.RedisURL != "" {
		provider, err := contextdata.NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("context provider: %w", err)
		}
		s.closers = append(s.closers, provider.Close)
		eng.Provider = provider
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			s.Broker = rb
		} else {
			level.Warn(logger).Log("msg", "redis broker unavailable, using in-memory", "err", err)
		}
	} else {
		eng.Provider = contextdata.NewStatic(cfg.Context.Crowd, cfg.Context.Weather.Reading())
	}
	if s.Broker == nil {
		s.Broker = NewBroker()
	}

	if cfg.CacheBackend == "redis" && cfg.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("route cache: %w", err)
		}
		s.closers = append(s.closers, rc.Close)
		eng.Cache = rc
	} else {
		eng.Cache = cache.NewMemory(cfg.CacheEntries)
	}
	s.Engine = eng

	if cfg.RateRPS > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateRPS) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), burst)
	}
	return s, nil
}

// Routes mounts every endpoint behind the logging, metrics and rate-limit middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Optimization
	mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
	mux.HandleFunc("/v1/optimize/ws", s.OptimizeWSHandler)
	mux.HandleFunc("/v1/optimize/events", s.OptimizeEventsHandler)
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)

	// Waypoint source
	mux.HandleFunc("/v1/waypoint-sets/", s.WaypointSetHandler)

	// Admin
	mux.HandleFunc("/v1/admin/plan-metrics", s.PlanMetricsHandler)

	// Health, docs, debug
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.logMiddleware(metricsMiddleware(s.rateLimit(mux)))
}

// Close releases database and Redis connections.
func (s *Server) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
