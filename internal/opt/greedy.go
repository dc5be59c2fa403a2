package opt

import (
	"context"
	"math"
	"time"
)

// Greedy repeatedly takes the remaining waypoint with the best value per
// minute (travel plus visit) that still fits the budgets, then untangles the
// chosen order with 2-opt.
type Greedy struct{}

func (Greedy) Name() string { return AlgoGreedy }

func (Greedy) Optimize(_ context.Context, p *Problem) (AlgorithmResult, error) {
	start := time.Now()
	maxT, maxD := p.Constraints.MaxDuration, p.Constraints.MaxDistance
	cur := -1
	var elapsed, walked float64
	if p.Head >= 0 {
		d, t := p.Leg(-1, p.Head)
		elapsed, walked, cur = t+p.Waypoints[p.Head].EstimatedDuration, d, p.Head
	}
	used := make([]bool, len(p.Waypoints))
	tour := []int{}
	steps := 0
	for {
		steps++
		best, bestRatio := -1, math.Inf(-1)
		var bestT, bestD float64
		for _, idx := range p.Candidates {
			if used[idx] {
				continue
			}
			d, t := p.Leg(cur, idx)
			visit := p.Waypoints[idx].EstimatedDuration
			tt, td := p.tailFrom(idx)
			if elapsed+t+visit+tt > maxT+eps || walked+d+td > maxD+eps {
				continue
			}
			ratio := p.value[idx] / math.Max(t+visit, 1)
			// strict comparison keeps the lowest index on ties
			if ratio > bestRatio {
				best, bestRatio, bestT, bestD = idx, ratio, t+visit, d
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		tour = append(tour, best)
		elapsed += bestT
		walked += bestD
		cur = best
	}
	tour = p.ImproveOrder2Opt(tour, 10)
	res := finish(p, AlgoGreedy, 0.8, tour, 0, steps, start)
	res.Fitness = res.Score
	return res, nil
}
