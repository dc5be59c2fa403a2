package opt

import (
	"math"
	"strings"

	"github.com/samber/lo"

	"tourroute/internal/model"
)

// Weights of the multi-criteria score.
type Weights struct {
	Efficiency   float64 `yaml:"efficiency" json:"efficiency"`
	Satisfaction float64 `yaml:"satisfaction" json:"satisfaction"`
	Compliance   float64 `yaml:"compliance" json:"compliance"`
	Diversity    float64 `yaml:"diversity" json:"diversity"`
	Practicality float64 `yaml:"practicality" json:"practicality"`
}

// DefaultWeights favour value per minute, then user satisfaction.
var DefaultWeights = Weights{Efficiency: 0.30, Satisfaction: 0.25, Compliance: 0.20, Diversity: 0.15, Practicality: 0.10}

// Criteria are the per-route sub-scores in 0..1.
type Criteria struct {
	Efficiency   float64
	Satisfaction float64
	Compliance   float64
	Diversity    float64
	Practicality float64
}

func (c Criteria) total(w Weights) float64 {
	return c.Efficiency*w.Efficiency + c.Satisfaction*w.Satisfaction + c.Compliance*w.Compliance +
		c.Diversity*w.Diversity + c.Practicality*w.Practicality
}

// Scored pairs a strategy result with its criteria and weighted total.
type Scored struct {
	Result   AlgorithmResult
	Criteria Criteria
	Total    float64
}

// Select scores every result and returns the winner. Ties go to the higher
// confidence, then to the more exhaustive algorithm. results must be non-empty.
func Select(p *Problem, results []AlgorithmResult, w Weights) (Scored, []Scored) {
	scored := make([]Scored, len(results))
	for i, r := range results {
		c := Assess(p, r.Order)
		scored[i] = Scored{Result: r, Criteria: c, Total: c.total(w)}
	}
	best := scored[0]
	for _, s := range scored[1:] {
		if better(s, best) {
			best = s
		}
	}
	return best, scored
}

func better(a, b Scored) bool {
	if math.Abs(a.Total-b.Total) > 1e-9 {
		return a.Total > b.Total
	}
	if a.Result.Confidence != b.Result.Confidence {
		return a.Result.Confidence > b.Result.Confidence
	}
	return algoRank[a.Result.Algorithm] > algoRank[b.Result.Algorithm]
}

// Assess computes the selection criteria for a full sequence.
func Assess(p *Problem, seq []int) Criteria {
	st := p.Evaluate(seq)
	return Criteria{
		Efficiency:   efficiency(p, st),
		Satisfaction: satisfaction(p, seq),
		Compliance:   compliance(p, seq, st),
		Diversity:    diversity(p, seq),
		Practicality: practicality(p, seq),
	}
}

func clamp01(v float64) float64 {
	return lo.Clamp(v, 0, 1)
}

// efficiency rewards value per minute relative to visiting everything with no
// walking, and the share of available value collected.
func efficiency(p *Problem, st Stats) float64 {
	if p.availableValue <= 0 || st.Duration() <= 0 {
		return 0
	}
	rate := st.Value / st.Duration()
	ideal := p.availableValue / math.Max(p.availableVisit, 1)
	return 0.5*clamp01(rate/ideal) + 0.5*clamp01(st.Value/p.availableValue)
}

// satisfaction rewards covering the caller's interests and the important stops.
func satisfaction(p *Problem, seq []int) float64 {
	interests := 1.0
	if len(p.Constraints.Interests) > 0 {
		covered := 0
		for _, in := range p.Constraints.Interests {
			if lo.ContainsBy(seq, func(idx int) bool {
				return lo.ContainsBy(p.Waypoints[idx].Tags, func(t string) bool { return strings.EqualFold(t, in) })
			}) {
				covered++
			}
		}
		interests = float64(covered) / float64(len(p.Constraints.Interests))
	}
	important := 1.0
	want := 0
	for _, w := range p.Waypoints {
		if w.Priority == model.PriorityEssential || w.Priority == model.PriorityHigh {
			want++
		}
	}
	if want > 0 {
		got := lo.CountBy(seq, func(idx int) bool {
			pr := p.Waypoints[idx].Priority
			return pr == model.PriorityEssential || pr == model.PriorityHigh
		})
		important = float64(got) / float64(want)
	}
	return 0.5*interests + 0.5*important
}

// headroom is 1 up to 90% of a budget, falls to 0.5 at the budget and 0 past it.
func headroom(used, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	u := used / budget
	switch {
	case u <= 0.9:
		return 1
	case u <= 1+eps:
		return 1 - (u-0.9)*5
	}
	return 0
}

func compliance(p *Problem, seq []int, st Stats) float64 {
	c := (headroom(st.Duration(), p.Constraints.MaxDuration) + headroom(st.Distance, p.Constraints.MaxDistance)) / 2
	if len(seq) > 0 {
		ceiling := p.Constraints.MaxDifficulty.Rank()
		atCeiling := lo.CountBy(seq, func(idx int) bool { return p.Waypoints[idx].Difficulty.Rank() == ceiling })
		c -= 0.2 * float64(atCeiling) / float64(len(seq))
	}
	return clamp01(c)
}

func diversity(p *Problem, seq []int) float64 {
	if len(seq) == 0 {
		return 0
	}
	types := lo.Uniq(lo.Map(seq, func(idx int, _ int) model.WaypointType { return p.Waypoints[idx].Type }))
	var tags []string
	for _, idx := range seq {
		for _, t := range p.Waypoints[idx].Tags {
			tags = append(tags, strings.ToLower(t))
		}
	}
	typeScore := float64(len(types)) / math.Min(float64(len(seq)), 4)
	tagScore := 0.0
	if len(tags) > 0 {
		tagScore = float64(len(lo.Uniq(tags))) / float64(len(tags))
	}
	return 0.5*clamp01(typeScore) + 0.5*tagScore
}

// practicality penalizes doubling back: turns sharper than 135 degrees.
func practicality(p *Problem, seq []int) float64 {
	points := p.points(seq)
	var bearings []float64
	for i := 1; i < len(points); i++ {
		if Distance(points[i-1], points[i]) < 1 {
			continue
		}
		bearings = append(bearings, Bearing(points[i-1], points[i]))
	}
	if len(bearings) < 2 {
		return 1
	}
	sharp := 0
	for i := 1; i < len(bearings); i++ {
		if turnAngle(bearings[i-1], bearings[i]) > 135 {
			sharp++
		}
	}
	return 1 - float64(sharp)/float64(len(bearings)-1)
}

// points is the polyline of seq starting at the start location.
func (p *Problem) points(seq []int) []model.GeoPoint {
	pts := make([]model.GeoPoint, 0, len(seq)+1)
	pts = append(pts, p.Start)
	for _, idx := range seq {
		pts = append(pts, p.Waypoints[idx].Location)
	}
	return pts
}
