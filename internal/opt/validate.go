package opt

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"tourroute/internal/model"
)

var (
	// ErrInvalidConstraints is returned for non-positive budgets or unknown enum values.
	ErrInvalidConstraints = errors.New("opt: invalid constraints")
	// ErrNoWaypoints is returned when no waypoint survives validation.
	ErrNoWaypoints = errors.New("opt: no waypoints satisfy the constraints")
	// ErrTooManyWaypoints is returned by bounded strategies that refuse large inputs.
	ErrTooManyWaypoints = errors.New("opt: too many waypoints for strategy")
	// ErrOptimizationFailed is returned when every strategy of the pool failed.
	ErrOptimizationFailed = errors.New("opt: route optimization failed")
)

// IsInputError reports errors caused by the caller's request.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidConstraints) || errors.Is(err, ErrNoWaypoints)
}

// ValidateConstraints checks budgets and enum fields of normalized constraints.
func ValidateConstraints(c model.RouteConstraints) error {
	if c.MaxDuration <= 0 {
		return fmt.Errorf("%w: maxDuration must be > 0", ErrInvalidConstraints)
	}
	if c.MaxDistance <= 0 {
		return fmt.Errorf("%w: maxDistance must be > 0", ErrInvalidConstraints)
	}
	if c.MaxDifficulty.Rank() == 0 {
		return fmt.Errorf("%w: unknown maxDifficulty %q", ErrInvalidConstraints, c.MaxDifficulty)
	}
	if _, ok := paceSpeed[c.PreferredPace]; !ok {
		return fmt.Errorf("%w: unknown preferredPace %q", ErrInvalidConstraints, c.PreferredPace)
	}
	if _, ok := bandClock[c.TimeOfDay]; !ok {
		return fmt.Errorf("%w: unknown timeOfDay %q", ErrInvalidConstraints, c.TimeOfDay)
	}
	if c.DayType != "weekday" && c.DayType != "weekend" {
		return fmt.Errorf("%w: unknown dayType %q", ErrInvalidConstraints, c.DayType)
	}
	return nil
}

// ValidateWaypoints drops waypoints that break the hard constraints:
// difficulty above the ceiling, or no wheelchair access when it is needed.
// Remaining waypoints keep their order and are not modified.
func ValidateWaypoints(wps []model.Waypoint, c model.RouteConstraints) []model.Waypoint {
	ceiling := c.MaxDifficulty.Rank()
	if ceiling == 0 {
		ceiling = model.DifficultyChallenging.Rank()
	}
	return lo.Filter(wps, func(w model.Waypoint, _ int) bool {
		if w.Difficulty.Rank() > ceiling {
			return false
		}
		if c.AccessibilityNeeds && !w.WheelchairFriendly() {
			return false
		}
		return true
	})
}
