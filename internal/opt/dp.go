package opt

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"time"
)

// DefaultDPLimit is the largest waypoint count the exact solver accepts.
const DefaultDPLimit = 20

// DynamicProgramming solves the subset-and-order problem exactly over
// (visited set, last waypoint) states, growing sets one waypoint at a time.
//
// For a fixed state every path collects the same value and the same visit
// time, and its travel cost and travel time are both linear in its length,
// so keeping only the shortest path per state loses nothing. States already
// over the duration or distance budget (end leg included) are never expanded.
type DynamicProgramming struct {
	MaxWaypoints int // default 20
}

func (d *DynamicProgramming) Name() string { return AlgoDP }

func (d *DynamicProgramming) Optimize(ctx context.Context, p *Problem) (AlgorithmResult, error) {
	start := time.Now()
	limit := d.MaxWaypoints
	if limit <= 0 || limit > DefaultDPLimit {
		limit = DefaultDPLimit
	}
	if len(p.Waypoints) > limit {
		return AlgorithmResult{}, fmt.Errorf("%w: %d > %d", ErrTooManyWaypoints, len(p.Waypoints), limit)
	}

	cands := p.Candidates
	n := len(cands)
	maxT, maxD := p.Constraints.MaxDuration, p.Constraints.MaxDistance
	speed := Speed(p.Constraints.PreferredPace) * 60 // meters per minute

	origin := -1
	var head Stats
	if p.Head >= 0 {
		head = p.Evaluate([]int{p.Head})
		origin = p.Head
	}
	baseT, baseD := head.Duration(), head.Distance

	// Legs between candidates and the cost of finishing after each one.
	legs := make([][]float64, n)
	tailM := make([]float64, n)
	tailMin := make([]float64, n)
	tailCost := make([]float64, n)
	tailVisit := 0.0
	tailValue := 0.0
	if p.Tail >= 0 {
		tailVisit = p.Waypoints[p.Tail].EstimatedDuration
		tailValue = p.value[p.Tail]
	}
	for i := 0; i < n; i++ {
		legs[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			legs[i][j], _ = p.Leg(cands[i], cands[j])
		}
		if p.Tail >= 0 {
			tailM[i], tailMin[i] = p.Leg(cands[i], p.Tail)
			tailCost[i] = legCost(tailM[i], tailMin[i])
		}
	}

	size := 1 << n
	visit := make([]float64, size)
	value := make([]float64, size)
	for mask := 1; mask < size; mask++ {
		low := bits.TrailingZeros(uint(mask))
		prev := mask &^ (1 << low)
		visit[mask] = visit[prev] + p.Waypoints[cands[low]].EstimatedDuration
		value[mask] = value[prev] + p.value[cands[low]]
	}

	// Rows are allocated only for reachable sets, which the budgets keep small
	// for realistic tours.
	states := make([]*dpRow, size)
	row := func(mask int) *dpRow {
		if states[mask] == nil {
			states[mask] = newRow(n)
		}
		return states[mask]
	}
	feasible := func(mask, last int, meters float64) bool {
		elapsed := baseT + visit[mask] + meters/speed
		return elapsed+tailMin[last]+tailVisit <= maxT+eps && baseD+meters+tailM[last] <= maxD+eps
	}
	// score is the shared Score of the shortest path ending at (mask, last),
	// computed without walking it: inner legs are linear in their length.
	score := func(mask, last int, meters float64) float64 {
		return p.Score(Stats{
			Value:         head.Value + value[mask] + tailValue,
			VisitMinutes:  head.VisitMinutes + visit[mask] + tailVisit,
			TravelMinutes: head.TravelMinutes + meters/speed + tailMin[last],
			Distance:      baseD + meters + tailM[last],
			Cost:          head.Cost + legCost(meters, meters/speed) + tailCost[last],
		})
	}

	for i := 0; i < n; i++ {
		m, _ := p.Leg(origin, cands[i])
		if feasible(1<<i, i, m) {
			r := row(1 << i)
			r.walk[i] = m
			r.parent[i] = -1
		}
	}

	// The empty tour is the baseline.
	bestScore := p.ScoreTour(nil)
	bestMask, bestLast := 0, -1
	iters := 0
	for mask := 1; mask < size; mask++ {
		if mask&0xfff == 0 && ctx.Err() != nil {
			return AlgorithmResult{}, fmt.Errorf("dynamic programming: %w", ctx.Err())
		}
		r := states[mask]
		if r == nil {
			continue
		}
		// Every predecessor of mask is a smaller set, so its row is final here.
		for last := 0; last < n; last++ {
			cur := r.walk[last]
			if math.IsInf(cur, 1) {
				continue
			}
			if s := score(mask, last, cur); s > bestScore+eps {
				bestScore, bestMask, bestLast = s, mask, last
			}
			for nx := 0; nx < n; nx++ {
				if mask&(1<<nx) != 0 {
					continue
				}
				iters++
				nm := mask | 1<<nx
				cand := cur + legs[last][nx]
				if !feasible(nm, nx, cand) {
					continue
				}
				nr := row(nm)
				if cand >= nr.walk[nx] {
					continue
				}
				nr.walk[nx] = cand
				nr.parent[nx] = int8(last)
			}
		}
	}

	tour := []int{}
	if bestLast >= 0 {
		tour = rebuild(states, cands, bestMask, bestLast)
	}
	return finish(p, AlgoDP, 0.95, tour, bestScore, iters, start), nil
}

type dpRow struct {
	walk   []float64 // shortest meters ending at each candidate, +Inf if unreachable
	parent []int8
}

func newRow(n int) *dpRow {
	r := &dpRow{walk: make([]float64, n), parent: make([]int8, n)}
	for i := range r.walk {
		r.walk[i] = math.Inf(1)
	}
	return r
}

func rebuild(states []*dpRow, cands []int, mask, last int) []int {
	rev := []int{}
	for last >= 0 {
		rev = append(rev, cands[last])
		prev := int(states[mask].parent[last])
		mask &^= 1 << last
		last = prev
	}
	tour := make([]int, len(rev))
	for i, v := range rev {
		tour[len(rev)-1-i] = v
	}
	return tour
}
