package opt

import (
	"sort"
	"strconv"
	"strings"

	"tourroute/internal/model"
)

const (
	// Per-leg transition cost weights.
	costPerMeter  = 0.01
	costPerMinute = 0.1
	// Penalties for going over the budgets.
	overMinutePenalty = 10.0
	overMeterPenalty  = 0.1

	eps = 1e-9
)

// bandClock maps a time-of-day band to a representative clock time in minutes.
var bandClock = map[string]int{
	"morning":   9 * 60,
	"afternoon": 14 * 60,
	"evening":   18 * 60,
	"night":     21 * 60,
}

// Problem is the read-only input shared by every strategy of one call.
// Indices refer to Waypoints; -1 stands for the start location.
type Problem struct {
	Waypoints   []model.Waypoint
	Constraints model.RouteConstraints
	Start       model.GeoPoint
	Context     model.ContextSnapshot

	// Candidates are the indices strategies may order; anchors are excluded.
	Candidates []int
	Head, Tail int

	value     []float64
	dist      [][]float64
	travel    [][]float64
	startDist []float64
	startTime []float64

	availableValue float64
	availableVisit float64
}

// Stats summarizes one walked sequence.
type Stats struct {
	Value         float64
	VisitMinutes  float64
	TravelMinutes float64
	Distance      float64
	Cost          float64
}

// Duration is visit plus travel time in minutes.
func (s Stats) Duration() float64 { return s.VisitMinutes + s.TravelMinutes }

// NewProblem precomputes values and the leg matrices from Distance and TravelTime.
func NewProblem(wps []model.Waypoint, c model.RouteConstraints, start model.GeoPoint, snap model.ContextSnapshot) *Problem {
	n := len(wps)
	p := &Problem{
		Waypoints:   wps,
		Constraints: c,
		Start:       start,
		Context:     snap,
		Head:        -1,
		Tail:        -1,
		value:       make([]float64, n),
		dist:        make([][]float64, n),
		travel:      make([][]float64, n),
		startDist:   make([]float64, n),
		startTime:   make([]float64, n),
	}
	for i, w := range wps {
		switch {
		case w.Type == model.TypeStart && p.Head < 0:
			p.Head = i
		case w.Type == model.TypeEnd && p.Tail < 0:
			p.Tail = i
		default:
			p.Candidates = append(p.Candidates, i)
		}
		p.value[i] = waypointValue(w, c, snap)
		p.availableValue += p.value[i]
		p.availableVisit += w.EstimatedDuration
		p.startDist[i] = Distance(start, w.Location)
		p.startTime[i] = TravelTime(start, w.Location, c.PreferredPace)
		p.dist[i] = make([]float64, n)
		p.travel[i] = make([]float64, n)
		for j, o := range wps {
			if i == j {
				continue
			}
			p.dist[i][j] = Distance(w.Location, o.Location)
			p.travel[i][j] = TravelTime(w.Location, o.Location, c.PreferredPace)
		}
	}
	p.fitAnchors()
	return p
}

// fitAnchors demotes an anchor to a plain candidate when the anchors-only
// walk already breaks a budget. Decode then drops it like any other stop
// that does not fit.
func (p *Problem) fitAnchors() {
	fits := func(seq []int) bool {
		st := p.Evaluate(seq)
		return st.Duration() <= p.Constraints.MaxDuration+eps && st.Distance <= p.Constraints.MaxDistance+eps
	}
	demoted := false
	if p.Head >= 0 && !fits([]int{p.Head}) {
		p.Candidates = append(p.Candidates, p.Head)
		p.Head, demoted = -1, true
	}
	if p.Tail >= 0 && !fits(p.Sequence(nil)) {
		p.Candidates = append(p.Candidates, p.Tail)
		p.Tail, demoted = -1, true
	}
	if demoted {
		sort.Ints(p.Candidates)
	}
}

// Value is the worth of visiting waypoint i under this call's constraints and context.
func (p *Problem) Value(i int) float64 { return p.value[i] }

// Leg returns meters and minutes from a (or the start when a < 0) to b.
func (p *Problem) Leg(a, b int) (float64, float64) {
	if a < 0 {
		return p.startDist[b], p.startTime[b]
	}
	return p.dist[a][b], p.travel[a][b]
}

func legCost(meters, minutes float64) float64 {
	return meters*costPerMeter + minutes*costPerMinute
}

// Sequence wraps a candidate tour with the start and end anchors.
func (p *Problem) Sequence(tour []int) []int {
	seq := make([]int, 0, len(tour)+2)
	if p.Head >= 0 {
		seq = append(seq, p.Head)
	}
	seq = append(seq, tour...)
	if p.Tail >= 0 {
		seq = append(seq, p.Tail)
	}
	return seq
}

// Evaluate walks seq leg by leg from the start location.
func (p *Problem) Evaluate(seq []int) Stats {
	var s Stats
	prev := -1
	for _, idx := range seq {
		d, t := p.Leg(prev, idx)
		s.Distance += d
		s.TravelMinutes += t
		s.Cost += legCost(d, t)
		s.VisitMinutes += p.Waypoints[idx].EstimatedDuration
		s.Value += p.value[idx]
		prev = idx
	}
	return s
}

// Score is value collected minus travel cost and budget violations.
// Every strategy reports this so results compare across algorithms.
func (p *Problem) Score(s Stats) float64 {
	score := s.Value - s.Cost
	if over := s.Duration() - p.Constraints.MaxDuration; over > 0 {
		score -= over * overMinutePenalty
	}
	if over := s.Distance - p.Constraints.MaxDistance; over > 0 {
		score -= over * overMeterPenalty
	}
	return score
}

// ScoreTour scores a candidate tour wrapped with its anchors.
func (p *Problem) ScoreTour(tour []int) float64 {
	return p.Score(p.Evaluate(p.Sequence(tour)))
}

// Decode keeps the waypoints of perm, in order, that still fit both budgets
// once the end anchor is reached.
func (p *Problem) Decode(perm []int) []int {
	maxT, maxD := p.Constraints.MaxDuration, p.Constraints.MaxDistance
	cur := -1
	var elapsed, walked float64
	if p.Head >= 0 {
		d, t := p.Leg(-1, p.Head)
		elapsed = t + p.Waypoints[p.Head].EstimatedDuration
		walked = d
		cur = p.Head
	}
	tour := make([]int, 0, len(perm))
	for _, idx := range perm {
		d, t := p.Leg(cur, idx)
		nt := elapsed + t + p.Waypoints[idx].EstimatedDuration
		nd := walked + d
		tt, td := p.tailFrom(idx)
		if nt+tt > maxT+eps || nd+td > maxD+eps {
			continue
		}
		tour = append(tour, idx)
		elapsed, walked, cur = nt, nd, idx
	}
	return tour
}

// tailFrom is the minutes and meters still needed after idx to finish at the end anchor.
func (p *Problem) tailFrom(idx int) (float64, float64) {
	if p.Tail < 0 {
		return 0, 0
	}
	d, t := p.Leg(idx, p.Tail)
	return t + p.Waypoints[p.Tail].EstimatedDuration, d
}

// UpperBound is the value of visiting every waypoint, used to normalize fitness.
func (p *Problem) UpperBound() float64 { return p.availableValue }

func waypointValue(w model.Waypoint, c model.RouteConstraints, snap model.ContextSnapshot) float64 {
	v := 10.0
	switch w.Priority {
	case model.PriorityEssential:
		v += 20
	case model.PriorityHigh:
		v += 10
	case model.PriorityMedium:
		v += 5
	}
	v += 5 * float64(interestMatches(w.Tags, c.Interests))

	crowd, known := crowdFor(w, snap)
	if known && c.AvoidCrowds {
		switch crowd {
		case model.CrowdHigh:
			v *= 0.5
		case model.CrowdMedium:
			v *= 0.8
		case model.CrowdLow:
			v += 3
		}
	}
	if known && crowd == model.CrowdHigh && c.GroupSize > 6 {
		v *= 0.8
	}
	if c.WeatherSensitive && snap.Weather != nil && adverseWeather(*snap.Weather) {
		if w.Indoor() {
			v += 3
		} else {
			v *= 0.5
		}
	}
	if !openDuring(w, c) {
		v *= 0.2
	}
	if c.EnergyLevel == "low" && w.Difficulty == model.DifficultyChallenging {
		v *= 0.7
	}
	return v
}

func interestMatches(tags, interests []string) int {
	n := 0
	for _, t := range tags {
		for _, in := range interests {
			if strings.EqualFold(t, in) {
				n++
				break
			}
		}
	}
	return n
}

// crowdFor prefers the live snapshot over the waypoint's static attribute.
func crowdFor(w model.Waypoint, snap model.ContextSnapshot) (model.CrowdLevel, bool) {
	if lvl, ok := snap.Crowd[w.ID]; ok {
		return lvl, true
	}
	if w.CrowdLevel != nil {
		return *w.CrowdLevel, true
	}
	return "", false
}

func adverseWeather(r model.WeatherReading) bool {
	cond := strings.ToLower(r.Condition)
	for _, bad := range []string{"rain", "snow", "storm", "thunder", "sleet", "hail"} {
		if strings.Contains(cond, bad) {
			return true
		}
	}
	return r.TemperatureC < 5 || r.TemperatureC > 32
}

// openDuring reports whether w is open in the constraints' day type and time band.
// Missing or unparsable hours count as open.
func openDuring(w model.Waypoint, c model.RouteConstraints) bool {
	h := w.OpenHours
	if h == nil {
		return true
	}
	if len(h.Days) > 0 {
		ok := false
		for _, d := range h.Days {
			weekend := d == 0 || d == 6
			if weekend == (c.DayType == "weekend") {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	open, err1 := parseClock(h.Open)
	closing, err2 := parseClock(h.Close)
	clock, known := bandClock[c.TimeOfDay]
	if err1 != nil || err2 != nil || !known {
		return true
	}
	if open <= closing {
		return clock >= open && clock < closing
	}
	return clock >= open || clock < closing
}

func parseClock(s string) (int, error) {
	hh, mm, found := strings.Cut(strings.TrimSpace(s), ":")
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m := 0
	if found {
		if m, err = strconv.Atoi(mm); err != nil {
			return 0, err
		}
	}
	return h*60 + m, nil
}
