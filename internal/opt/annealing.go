package opt

import (
	"context"
	"math"
	"time"
)

// Annealing runs simulated annealing over candidate permutations using
// two-element swaps, keeping the best decoded tour seen.
type Annealing struct {
	Iterations  int     // default 1000
	InitialTemp float64 // default 100
	Cooling     float64 // geometric decay per step, default 0.95
	Seed        int64
}

func (a *Annealing) Name() string { return AlgoAnnealing }

func (a *Annealing) Optimize(ctx context.Context, p *Problem) (AlgorithmResult, error) {
	start := time.Now()
	iters := a.Iterations
	if iters <= 0 {
		iters = 1000
	}
	temp := a.InitialTemp
	if temp <= 0 {
		temp = 100
	}
	cool := 0.95
	if a.Cooling > 0 && a.Cooling < 1 {
		cool = a.Cooling
	}
	rng := newRand(a.Seed)

	curr := shuffled(rng, p.Candidates)
	currScore := p.ScoreTour(p.Decode(curr))
	best := append([]int(nil), curr...)
	bestScore := currScore
	n := len(curr)

	it := 0
	for ; it < iters && n >= 2; it++ {
		if it%100 == 0 && ctx.Err() != nil {
			break
		}
		i, j := rng.Intn(n), rng.Intn(n)
		neighbor := append([]int(nil), curr...)
		neighbor[i], neighbor[j] = neighbor[j], neighbor[i]
		score := p.ScoreTour(p.Decode(neighbor))
		delta := score - currScore
		if delta > 0 || rng.Float64() < math.Exp(delta/(temp+eps)) {
			curr, currScore = neighbor, score
			if currScore > bestScore {
				best = append(best[:0], curr...)
				bestScore = currScore
			}
		}
		temp *= cool
	}
	tour := p.ImproveOrder2Opt(p.Decode(best), 10)
	return finish(p, AlgoAnnealing, 0.85, tour, bestScore, it, start), nil
}
