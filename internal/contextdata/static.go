// Package contextdata provides the live crowd and weather signals consumed by
// the optimizer's context gatherer.
package contextdata

import (
	"context"
	"sync"

	"tourroute/internal/model"
)

// Static serves signals held in memory; operators or tests update them.
type Static struct {
	mu      sync.RWMutex
	crowd   map[string]model.CrowdLevel
	weather *model.WeatherReading
}

func NewStatic(crowd map[string]model.CrowdLevel, weather *model.WeatherReading) *Static {
	s := &Static{crowd: map[string]model.CrowdLevel{}}
	for k, v := range crowd {
		s.crowd[k] = v
	}
	if weather != nil {
		w := *weather
		s.weather = &w
	}
	return s
}

func (s *Static) CrowdLevel(ctx context.Context, waypointID string) (*model.CrowdLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	lvl, ok := s.crowd[waypointID]
	if !ok {
		return nil, nil
	}
	return &lvl, nil
}

func (s *Static) Weather(ctx context.Context) (*model.WeatherReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.weather == nil {
		return nil, nil
	}
	w := *s.weather
	return &w, nil
}

func (s *Static) SetCrowd(waypointID string, lvl model.CrowdLevel) {
	s.mu.Lock()
	s.crowd[waypointID] = lvl
	s.mu.Unlock()
}

func (s *Static) SetWeather(w *model.WeatherReading) {
	s.mu.Lock()
	s.weather = w
	s.mu.Unlock()
}
