package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"tourroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu     sync.Mutex
	sets   map[string][]model.Waypoint // id -> waypoints
	planMx []model.PlanMetrics         // append order
}

func NewMemory() *Memory {
	return &Memory{sets: map[string][]model.Waypoint{}}
}

func (m *Memory) PutWaypointSet(ctx context.Context, id string, wps []model.Waypoint) error {
	if err := checkUnique(wps); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[id] = append([]model.Waypoint(nil), wps...)
	return nil
}

func (m *Memory) GetWaypointSet(ctx context.Context, id string) ([]model.Waypoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wps, ok := m.sets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]model.Waypoint(nil), wps...), nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, pm model.PlanMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.planMx = append(m.planMx, pm)
	return nil
}

// ListPlanMetrics returns the newest records first, optionally for one algorithm.
func (m *Memory) ListPlanMetrics(ctx context.Context, algorithm string, limit int) ([]model.PlanMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := lo.Reverse(append([]model.PlanMetrics(nil), m.planMx...))
	if algorithm != "" {
		items = lo.Filter(items, func(pm model.PlanMetrics, _ int) bool { return pm.Algorithm == algorithm })
	}
	if n := clampLimit(limit); len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func checkUnique(wps []model.Waypoint) error {
	dups := lo.FindDuplicatesBy(wps, func(w model.Waypoint) string { return w.ID })
	if len(dups) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateWaypoint, dups[0].ID)
	}
	return nil
}
