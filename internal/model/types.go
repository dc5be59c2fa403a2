package model

import "time"

// Core domain types shared by the engine, the store and the API.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type WaypointType string

const (
	TypeStart     WaypointType = "start"
	TypePOI       WaypointType = "poi"
	TypeRest      WaypointType = "rest"
	TypeViewpoint WaypointType = "viewpoint"
	TypeEnd       WaypointType = "end"
)

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityEssential Priority = "essential"
)

type Difficulty string

const (
	DifficultyEasy        Difficulty = "easy"
	DifficultyModerate    Difficulty = "moderate"
	DifficultyChallenging Difficulty = "challenging"
)

// Rank maps a difficulty onto 1..3; unknown values rank 0.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyModerate:
		return 2
	case DifficultyChallenging:
		return 3
	}
	return 0
}

type CrowdLevel string

const (
	CrowdLow    CrowdLevel = "low"
	CrowdMedium CrowdLevel = "medium"
	CrowdHigh   CrowdLevel = "high"
)

type Pace string

const (
	PaceSlow     Pace = "slow"
	PaceModerate Pace = "moderate"
	PaceFast     Pace = "fast"
)

type Shelter struct {
	Indoor    bool `json:"indoor"`
	Sheltered bool `json:"sheltered"`
}

type Accessibility struct {
	WheelchairFriendly bool `json:"wheelchairFriendly"`
	Stairs             int  `json:"stairs"`
}

// OpenHours uses "HH:MM" clock strings; Days holds weekdays with 0=Sunday.
type OpenHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
	Days  []int  `json:"days,omitempty"`
}

// Waypoint is an immutable point of interest supplied by the caller.
type Waypoint struct {
	ID                string         `json:"id"`
	Location          GeoPoint       `json:"location"`
	Name              string         `json:"name"`
	Type              WaypointType   `json:"type"`
	EstimatedDuration float64        `json:"estimatedDuration"` // minutes
	Priority          Priority       `json:"priority"`
	Difficulty        Difficulty     `json:"difficulty"`
	CrowdLevel        *CrowdLevel    `json:"crowdLevel,omitempty"`
	Weather           *Shelter       `json:"weather,omitempty"`
	Accessibility     *Accessibility `json:"accessibility,omitempty"`
	OpenHours         *OpenHours     `json:"openHours,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
}

// Indoor reports whether the waypoint is protected from the weather.
func (w Waypoint) Indoor() bool {
	return w.Weather != nil && (w.Weather.Indoor || w.Weather.Sheltered)
}

// WheelchairFriendly reports a known wheelchair-friendly waypoint.
func (w Waypoint) WheelchairFriendly() bool {
	return w.Accessibility != nil && w.Accessibility.WheelchairFriendly
}

// RouteConstraints describes the trip the caller wants to take.
type RouteConstraints struct {
	MaxDuration        float64    `json:"maxDuration"` // minutes
	MaxDistance        float64    `json:"maxDistance"` // meters
	MaxDifficulty      Difficulty `json:"maxDifficulty"`
	PreferredPace      Pace       `json:"preferredPace"`
	AvoidCrowds        bool       `json:"avoidCrowds"`
	WeatherSensitive   bool       `json:"weatherSensitive"`
	AccessibilityNeeds bool       `json:"accessibilityNeeds"`
	Interests          []string   `json:"interests,omitempty"`
	TimeOfDay          string     `json:"timeOfDay"` // morning, afternoon, evening, night
	DayType            string     `json:"dayType"`   // weekday, weekend
	GroupSize          int        `json:"groupSize"`
	EnergyLevel        string     `json:"energyLevel"` // low, medium, high
}

// Normalize fills the optional fields with engine defaults.
func (c RouteConstraints) Normalize() RouteConstraints {
	if c.MaxDifficulty == "" {
		c.MaxDifficulty = DifficultyChallenging
	}
	if c.PreferredPace == "" {
		c.PreferredPace = PaceModerate
	}
	if c.GroupSize <= 0 {
		c.GroupSize = 1
	}
	if c.EnergyLevel == "" {
		c.EnergyLevel = "medium"
	}
	if c.TimeOfDay == "" {
		c.TimeOfDay = "afternoon"
	}
	if c.DayType == "" {
		c.DayType = "weekday"
	}
	return c
}

// ApplyClockDefaults derives the time band, day type and distance budget
// the way mobile clients do when the request leaves them out.
func (c RouteConstraints) ApplyClockDefaults(now time.Time) RouteConstraints {
	if c.TimeOfDay == "" {
		switch h := now.Hour(); {
		case h < 12:
			c.TimeOfDay = "morning"
		case h < 17:
			c.TimeOfDay = "afternoon"
		case h < 21:
			c.TimeOfDay = "evening"
		default:
			c.TimeOfDay = "night"
		}
	}
	if c.DayType == "" {
		if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
			c.DayType = "weekend"
		} else {
			c.DayType = "weekday"
		}
	}
	if c.MaxDistance == 0 && c.MaxDuration > 0 {
		c.MaxDistance = c.MaxDuration * 100 // ~100 m per minute
	}
	return c
}

type WeatherReading struct {
	Condition    string  `json:"condition"`
	TemperatureC float64 `json:"temperatureC"`
}

// ContextSnapshot holds best-effort live signals for one optimization call.
type ContextSnapshot struct {
	Crowd   map[string]CrowdLevel `json:"crowd,omitempty"`
	Weather *WeatherReading       `json:"weather,omitempty"`
}

type Segment struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // minutes
	Mode     string  `json:"mode"`     // walking, transit, taxi
}

type RouteDetail struct {
	Coordinates  [][2]float64 `json:"coordinates"`
	Instructions []string     `json:"instructions"`
	Segments     []Segment    `json:"segments"`
}

type Alternative struct {
	Reason        string   `json:"reason"`
	Waypoints     []string `json:"waypoints"`
	TimeSaved     float64  `json:"timeSaved,omitempty"`
	DistanceSaved float64  `json:"distanceSaved,omitempty"`
	Benefits      []string `json:"benefits"`
	Tradeoff      string   `json:"tradeoff,omitempty"`
}

type Quality struct {
	Score         float64 `json:"score"`
	Efficiency    float64 `json:"efficiency"`
	Satisfaction  float64 `json:"satisfaction"`
	Accessibility float64 `json:"accessibility"`
	Timing        float64 `json:"timing"`
}

// StrategyOutcome records how one algorithm of the pool settled.
type StrategyOutcome struct {
	Algorithm  string  `json:"algorithm"`
	Status     string  `json:"status"` // ok, failed
	Score      float64 `json:"score,omitempty"`
	Total      float64 `json:"total,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
	ElapsedMs  int64   `json:"elapsedMs"`
	Error      string  `json:"error,omitempty"`
}

type RouteMetadata struct {
	OptimizationTime  float64           `json:"optimizationTime"` // ms
	Algorithm         string            `json:"algorithm"`
	Confidence        float64           `json:"confidence"`
	WeatherConsidered bool              `json:"weatherConsidered"`
	CrowdDataUsed     bool              `json:"crowdDataUsed"`
	Strategies        []StrategyOutcome `json:"strategies,omitempty"`
}

// OptimizedRoute is the engine's output; callers own it once returned.
type OptimizedRoute struct {
	ID                   string        `json:"id"`
	Waypoints            []Waypoint    `json:"waypoints"`
	TotalDuration        float64       `json:"totalDuration"`
	TotalDistance        float64       `json:"totalDistance"`
	EstimatedWalkingTime float64       `json:"estimatedWalkingTime"`
	AverageDifficulty    float64       `json:"averageDifficulty"`
	Route                RouteDetail   `json:"route"`
	Alternatives         []Alternative `json:"alternatives"`
	Quality              Quality       `json:"quality"`
	Metadata             RouteMetadata `json:"metadata"`
}

// PlanMetrics is the per-call record kept by the store.
type PlanMetrics struct {
	ID         string            `json:"id"`
	CacheKey   string            `json:"cacheKey"`
	RouteID    string            `json:"routeId"`
	Algorithm  string            `json:"algorithm"`
	Confidence float64           `json:"confidence"`
	Quality    float64           `json:"quality"`
	Waypoints  int               `json:"waypoints"`
	DurationMs int64             `json:"durationMs"`
	Strategies []StrategyOutcome `json:"strategies"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// OptimizeRequest is the HTTP/WebSocket body for an optimize call.
type OptimizeRequest struct {
	WaypointSetID string           `json:"waypointSetId,omitempty"`
	Waypoints     []Waypoint       `json:"waypoints,omitempty"`
	Constraints   RouteConstraints `json:"constraints"`
	Start         *GeoPoint        `json:"start"`
}
