package api

import (
	"net/http"
	"time"

	"tourroute/internal/buildinfo"
)

// DebugJSON reports build info and which backends this process runs with.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":             cfg.Port,
			"DB_DRIVER":        cfg.DBDriver,
			"CACHE_BACKEND":    cfg.CacheBackend,
			"LOG_LEVEL":        cfg.LogLevel,
			"RATE_RPS":         cfg.RateRPS,
			"RATE_BURST":       cfg.RateBurst,
			"HAS_DATABASE_URL": cfg.DatabaseURL != "",
			"HAS_REDIS_URL":    cfg.RedisURL != "",
		},
	})
}
