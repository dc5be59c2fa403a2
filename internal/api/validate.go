package api

import (
	"fmt"

	"tourroute/internal/model"
)

// maxRequestWaypoints bounds the work one optimize call may ask for.
const maxRequestWaypoints = 200

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if req.WaypointSetID != "" && len(req.Waypoints) > 0 {
		return fmt.Errorf("give either waypointSetId or waypoints, not both")
	}
	if req.WaypointSetID == "" && len(req.Waypoints) == 0 {
		return fmt.Errorf("waypoints or waypointSetId required")
	}
	if req.Start != nil {
		if err := validatePoint(*req.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	return validateWaypoints(req.Waypoints)
}

func validateWaypoints(wps []model.Waypoint) error {
	if len(wps) > maxRequestWaypoints {
		return fmt.Errorf("at most %d waypoints per request, got %d", maxRequestWaypoints, len(wps))
	}
	seen := map[string]struct{}{}
	for i, w := range wps {
		if w.ID == "" {
			return fmt.Errorf("waypoints[%d]: id required", i)
		}
		if _, dup := seen[w.ID]; dup {
			return fmt.Errorf("waypoints[%d]: duplicate id %s", i, w.ID)
		}
		seen[w.ID] = struct{}{}
		if err := validatePoint(w.Location); err != nil {
			return fmt.Errorf("waypoints[%d]: %w", i, err)
		}
		if w.EstimatedDuration < 0 {
			return fmt.Errorf("waypoints[%d]: estimatedDuration must be >= 0", i)
		}
		switch w.Type {
		case "", model.TypeStart, model.TypePOI, model.TypeRest, model.TypeViewpoint, model.TypeEnd:
		default:
			return fmt.Errorf("waypoints[%d]: unknown type %s", i, w.Type)
		}
	}
	return nil
}

func validatePoint(p model.GeoPoint) error {
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("coordinates out of range: %v,%v", p.Lat, p.Lng)
	}
	return nil
}
