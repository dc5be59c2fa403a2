package store

import (
	"context"
	"errors"

	"tourroute/internal/model"
)

// Store is the persistence interface used by the API server: the waypoint
// source for optimize calls and the plan-metrics log written by the engine.
type Store interface {
	// Waypoint sets
	PutWaypointSet(ctx context.Context, id string, wps []model.Waypoint) error
	GetWaypointSet(ctx context.Context, id string) ([]model.Waypoint, error)

	// Metrics
	SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error
	ListPlanMetrics(ctx context.Context, algorithm string, limit int) ([]model.PlanMetrics, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// ErrDuplicateWaypoint rejects sets that repeat a waypoint id; the engine
// assumes its input is deduplicated.
var ErrDuplicateWaypoint = errors.New("duplicate waypoint id")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
