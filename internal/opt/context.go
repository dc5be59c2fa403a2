package opt

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tourroute/internal/model"
)

// ContextProvider supplies live crowd and weather signals. Both calls are
// best-effort: a nil result or an error means "unknown".
type ContextProvider interface {
	CrowdLevel(ctx context.Context, waypointID string) (*model.CrowdLevel, error)
	Weather(ctx context.Context) (*model.WeatherReading, error)
}

// GatherContext starts one crowd lookup per waypoint and one weather lookup
// at once and returns whatever completed before timeout. It never fails.
func GatherContext(ctx context.Context, provider ContextProvider, wps []model.Waypoint, timeout time.Duration) model.ContextSnapshot {
	snap := model.ContextSnapshot{Crowd: map[string]model.CrowdLevel{}}
	if provider == nil {
		return snap
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range wps {
		id := w.ID
		g.Go(func() error {
			lvl, err := provider.CrowdLevel(gctx, id)
			if err != nil || lvl == nil {
				return nil
			}
			mu.Lock()
			snap.Crowd[id] = *lvl
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		r, err := provider.Weather(gctx)
		if err != nil || r == nil {
			return nil
		}
		mu.Lock()
		snap.Weather = r
		mu.Unlock()
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	out := model.ContextSnapshot{Crowd: make(map[string]model.CrowdLevel, len(snap.Crowd)), Weather: snap.Weather}
	for k, v := range snap.Crowd {
		out.Crowd[k] = v
	}
	return out
}
