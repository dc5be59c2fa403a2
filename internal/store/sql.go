package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"tourroute/internal/model"
)

// SQL is the database/sql backed store. driver is "pgx" for Postgres or
// "sqlite" for an embedded database file (":memory:" in tests).
type SQL struct {
	db     *sql.DB
	driver string
}

func NewSQL(driver, dsn string) (*SQL, error) {
	switch driver {
	case "pgx", "sqlite":
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one connection keeps a :memory: database alive and serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQL{db: db, driver: driver}, nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS waypoint_sets (
        id TEXT PRIMARY KEY,
        waypoints TEXT NOT NULL,
        updated_at_ns BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS plan_metrics (
        id TEXT PRIMARY KEY,
        cache_key TEXT NOT NULL,
        route_id TEXT NOT NULL,
        algorithm TEXT NOT NULL,
        confidence DOUBLE PRECISION NOT NULL,
        quality DOUBLE PRECISION NOT NULL,
        waypoints INTEGER NOT NULL,
        duration_ms BIGINT NOT NULL,
        strategies TEXT NOT NULL,
        created_at_ns BIGINT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS plan_metrics_algo_created ON plan_metrics (algorithm, created_at_ns)`,
}

// Migrate creates the tables if they do not exist yet.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQL) rebind(q string) string {
	if s.driver != "pgx" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) PutWaypointSet(ctx context.Context, id string, wps []model.Waypoint) error {
	if err := checkUnique(wps); err != nil {
		return err
	}
	js, err := json.Marshal(wps)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO waypoint_sets (id, waypoints, updated_at_ns) VALUES (?,?,?)
        ON CONFLICT (id) DO UPDATE SET waypoints=excluded.waypoints, updated_at_ns=excluded.updated_at_ns`),
		id, string(js), time.Now().UnixNano())
	return err
}

func (s *SQL) GetWaypointSet(ctx context.Context, id string) ([]model.Waypoint, error) {
	var js string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT waypoints FROM waypoint_sets WHERE id=?`), id).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var wps []model.Waypoint
	if err := json.Unmarshal([]byte(js), &wps); err != nil {
		return nil, fmt.Errorf("store: decode waypoint set %s: %w", id, err)
	}
	return wps, nil
}

func (s *SQL) SavePlanMetrics(ctx context.Context, pm model.PlanMetrics) error {
	strategies, err := json.Marshal(pm.Strategies)
	if err != nil {
		return err
	}
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO plan_metrics (id, cache_key, route_id, algorithm, confidence, quality, waypoints, duration_ms, strategies, created_at_ns)
        VALUES (?,?,?,?,?,?,?,?,?,?)`),
		pm.ID, pm.CacheKey, pm.RouteID, pm.Algorithm, pm.Confidence, pm.Quality, pm.Waypoints, pm.DurationMs, string(strategies), pm.CreatedAt.UnixNano())
	return err
}

// ListPlanMetrics returns the newest records first, optionally for one algorithm.
func (s *SQL) ListPlanMetrics(ctx context.Context, algorithm string, limit int) ([]model.PlanMetrics, error) {
	base := `SELECT id, cache_key, route_id, algorithm, confidence, quality, waypoints, duration_ms, strategies, created_at_ns FROM plan_metrics`
	args := []any{}
	if algorithm != "" {
		base += ` WHERE algorithm=?`
		args = append(args, algorithm)
	}
	base += ` ORDER BY created_at_ns DESC, id LIMIT ?`
	args = append(args, clampLimit(limit))
	rows, err := s.db.QueryContext(ctx, s.rebind(base), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PlanMetrics{}
	for rows.Next() {
		var pm model.PlanMetrics
		var strategies string
		var created int64
		if err := rows.Scan(&pm.ID, &pm.CacheKey, &pm.RouteID, &pm.Algorithm, &pm.Confidence, &pm.Quality, &pm.Waypoints, &pm.DurationMs, &strategies, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(strategies), &pm.Strategies); err != nil {
			return nil, fmt.Errorf("store: decode strategies of %s: %w", pm.ID, err)
		}
		pm.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, pm)
	}
	return out, rows.Err()
}
