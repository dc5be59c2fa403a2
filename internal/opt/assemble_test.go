package opt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourroute/internal/model"
)

func tourProblem(t *testing.T) (*Problem, []int) {
	t.Helper()
	wps := []model.Waypoint{
		{ID: "hotel", Name: "Hotel", Type: model.TypeStart, Location: center, Difficulty: model.DifficultyEasy},
		{ID: "museum", Name: "Museum", Type: model.TypePOI, Location: model.GeoPoint{Lat: center.Lat + 0.004, Lng: center.Lng}, EstimatedDuration: 40, Priority: model.PriorityEssential, Difficulty: model.DifficultyEasy, Tags: []string{"art"}},
		{ID: "tower", Name: "Tower", Type: model.TypeViewpoint, Location: model.GeoPoint{Lat: center.Lat + 0.004, Lng: center.Lng + 0.004}, EstimatedDuration: 20, Priority: model.PriorityLow, Difficulty: model.DifficultyChallenging, Tags: []string{"views"}},
		{ID: "cafe", Name: "Cafe", Type: model.TypeRest, Location: model.GeoPoint{Lat: center.Lat, Lng: center.Lng + 0.004}, EstimatedDuration: 15, Priority: model.PriorityMedium, Difficulty: model.DifficultyEasy, Accessibility: &model.Accessibility{WheelchairFriendly: true}},
	}
	p := NewProblem(wps, constraints(150), center, model.ContextSnapshot{})
	return p, []int{0, 1, 2, 3}
}

func TestAssembleRoute(t *testing.T) {
	p, seq := tourProblem(t)
	r := Assemble(p, seq)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, []string{"hotel", "museum", "tower", "cafe"}, waypointIDs(r.Waypoints))
	require.Len(t, r.Route.Coordinates, 5)
	assert.Equal(t, [2]float64{center.Lng, center.Lat}, r.Route.Coordinates[0])
	assert.Equal(t, [2]float64{center.Lng, center.Lat + 0.004}, r.Route.Coordinates[2])

	require.Len(t, r.Route.Segments, 4)
	assert.Equal(t, "start", r.Route.Segments[0].From)
	assert.Equal(t, "hotel", r.Route.Segments[1].From)
	assert.Equal(t, "museum", r.Route.Segments[1].To)
	assert.Equal(t, "walking", r.Route.Segments[1].Mode)

	require.Len(t, r.Route.Instructions, 4)
	assert.Equal(t, "Begin at Hotel", r.Route.Instructions[0])
	assert.True(t, strings.HasPrefix(r.Route.Instructions[1], "Walk 445 m north to Museum"), r.Route.Instructions[1])
	assert.Contains(t, r.Route.Instructions[2], "east to Tower")

	st := p.Evaluate(seq)
	assert.Equal(t, round1(st.Duration()), r.TotalDuration)
	assert.Equal(t, round1(st.Distance), r.TotalDistance)
	assert.Equal(t, round1(st.TravelMinutes), r.EstimatedWalkingTime)
	assert.InDelta(t, 75+st.TravelMinutes, r.TotalDuration, 0.05)
	assert.Equal(t, 1.5, r.AverageDifficulty)
}

func TestAlternativesSkipOptionalStops(t *testing.T) {
	p, seq := tourProblem(t)
	alts := Assemble(p, seq).Alternatives
	require.Len(t, alts, 2, "only the tower and the cafe are optional")

	assert.Equal(t, []string{"hotel", "museum", "cafe"}, alts[0].Waypoints)
	assert.True(t, strings.HasPrefix(alts[0].Reason, "Skip Tower to save"), alts[0].Reason)
	assert.Contains(t, alts[0].Benefits, "Skips a challenging stop")
	assert.Equal(t, "Misses Tower (views)", alts[0].Tradeoff)
	assert.Greater(t, alts[0].TimeSaved, 20.0)

	assert.Equal(t, []string{"hotel", "museum"}, alts[1].Waypoints)
	assert.True(t, strings.HasPrefix(alts[1].Reason, "Skip Tower and Cafe"), alts[1].Reason)
	assert.Greater(t, alts[1].TimeSaved, alts[0].TimeSaved)
}

func TestAssembleStartOnly(t *testing.T) {
	p, _ := tourProblem(t)
	r := Assemble(p, []int{0})
	assert.Empty(t, r.Alternatives)
	assert.Zero(t, r.TotalDistance)
	assert.Equal(t, 1.0, r.AverageDifficulty)
}

func TestEvaluateQuality(t *testing.T) {
	p, seq := tourProblem(t)
	q := EvaluateQuality(p, seq)
	for _, v := range []float64{q.Efficiency, q.Satisfaction, q.Accessibility, q.Timing, q.Score} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	assert.InDelta(t, (q.Efficiency+q.Satisfaction+q.Accessibility+q.Timing)/4, q.Score, 0.06)
	// three of four stops lack wheelchair data
	assert.Equal(t, 77.5, q.Accessibility)
	// the only essential stop is visited and there are no interests
	assert.Equal(t, 100.0, q.Satisfaction)

	empty := EvaluateQuality(p, nil)
	assert.Equal(t, 100.0, empty.Accessibility)
}

func TestTimingPenalizesClosedStops(t *testing.T) {
	p, seq := tourProblem(t)
	open := timing(p, seq, p.Evaluate(seq))
	p.Waypoints[1].OpenHours = &model.OpenHours{Open: "18:00", Close: "22:00"}
	closed := timing(p, seq, p.Evaluate(seq))
	assert.InDelta(t, 0.125, open-closed, 1e-9)
}
