// Package cache holds the RouteCache implementations used by the optimizer.
package cache

import (
	"context"
	"encoding/json"
	"sync"

	"tourroute/internal/model"
)

// DefaultMemoryEntries bounds the in-memory cache.
const DefaultMemoryEntries = 1024

// Memory keeps JSON-encoded routes so every Get hands out a fresh copy.
// Once full, the oldest key is evicted first.
type Memory struct {
	mu    sync.RWMutex
	max   int
	items map[string][]byte
	order []string // insertion order for eviction
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &Memory{max: maxEntries, items: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) (*model.OptimizedRoute, error) {
	m.mu.RLock()
	b, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var r model.OptimizedRoute
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *Memory) Set(_ context.Context, key string, route *model.OptimizedRoute) error {
	b, err := json.Marshal(route)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		m.order = append(m.order, key)
	}
	m.items[key] = b
	for len(m.order) > m.max {
		delete(m.items, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// Len reports the number of cached routes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
