package opt

import (
	"github.com/samber/lo"

	"tourroute/internal/model"
)

// EvaluateQuality reports 0..100 sub-scores for a chosen sequence and their
// unweighted mean. It never changes the route.
func EvaluateQuality(p *Problem, seq []int) model.Quality {
	st := p.Evaluate(seq)
	q := model.Quality{
		Efficiency:    round1(100 * efficiency(p, st)),
		Satisfaction:  round1(100 * satisfaction(p, seq)),
		Accessibility: round1(100 * accessibility(p, seq)),
		Timing:        round1(100 * timing(p, seq, st)),
	}
	q.Score = round1((q.Efficiency + q.Satisfaction + q.Accessibility + q.Timing) / 4)
	return q
}

func accessibility(p *Problem, seq []int) float64 {
	if len(seq) == 0 {
		return 1
	}
	total := 0.0
	for _, idx := range seq {
		w := p.Waypoints[idx]
		s := 0.7
		if w.WheelchairFriendly() {
			s = 1
		}
		if w.Accessibility != nil {
			s -= float64(w.Accessibility.Stairs) / 200
		}
		total += clamp01(s)
	}
	return total / float64(len(seq))
}

// timing likes routes that use at least three quarters of the time budget
// without exceeding it, at stops that are open in the requested band.
func timing(p *Problem, seq []int, st Stats) float64 {
	budget := 0.0
	if u := st.Duration() / p.Constraints.MaxDuration; u <= 1+eps {
		budget = clamp01(u / 0.75)
	}
	open := 1.0
	if len(seq) > 0 {
		open = float64(lo.CountBy(seq, func(idx int) bool { return openDuring(p.Waypoints[idx], p.Constraints) })) / float64(len(seq))
	}
	return 0.5*budget + 0.5*open
}
