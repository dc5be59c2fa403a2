package opt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"tourroute/internal/model"
)

// RouteCache memoizes optimized routes. A nil route with a nil error is a miss.
// Implementations must be safe for concurrent use.
type RouteCache interface {
	Get(ctx context.Context, key string) (*model.OptimizedRoute, error)
	Set(ctx context.Context, key string, route *model.OptimizedRoute) error
}

// CacheKey hashes the waypoints sorted by id, the normalized constraints and
// the start location. Each waypoint is hashed by its full content, so an edited
// stop under an unchanged id misses. Waypoint order in the request does not matter.
func CacheKey(wps []model.Waypoint, c model.RouteConstraints, start model.GeoPoint) string {
	sorted := append([]model.Waypoint(nil), wps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	c = c.Normalize()
	c.Interests = append([]string(nil), c.Interests...)
	sort.Strings(c.Interests)
	cj, _ := json.Marshal(c)

	h := sha256.New()
	for _, w := range sorted {
		wj, _ := json.Marshal(w)
		h.Write(wj)
		h.Write([]byte{0})
	}
	h.Write(cj)
	fmt.Fprintf(h, "|%.6f,%.6f", start.Lat, start.Lng)
	return hex.EncodeToString(h.Sum(nil))
}
