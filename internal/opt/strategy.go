package opt

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"tourroute/internal/model"
)

// Algorithm names, also used as metric labels.
const (
	AlgoGreedy    = "greedy"
	AlgoAnnealing = "simulated_annealing"
	AlgoGenetic   = "genetic"
	AlgoDP        = "dynamic_programming"
)

// algoRank orders strategies for ties: the more exhaustive method wins.
var algoRank = map[string]int{
	AlgoGreedy:    0,
	AlgoAnnealing: 1,
	AlgoGenetic:   2,
	AlgoDP:        3,
}

// AlgorithmResult is one strategy's best ordering for a call.
type AlgorithmResult struct {
	Algorithm  string
	Order      []int // full sequence including anchors
	Score      float64
	Fitness    float64 // strategy-internal
	Confidence float64
	Iterations int
	Elapsed    time.Duration
}

// Strategy is one optimization algorithm of the pool.
type Strategy interface {
	Name() string
	Optimize(ctx context.Context, p *Problem) (AlgorithmResult, error)
}

// DefaultStrategies returns the four pool members with their default tuning.
func DefaultStrategies(seed int64) []Strategy {
	return []Strategy{
		Greedy{},
		&Genetic{Seed: seed},
		&DynamicProgramming{},
		&Annealing{Seed: seed},
	}
}

// newRand returns a private source; seed 0 draws from the clock.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func shuffled(rng *rand.Rand, xs []int) []int {
	out := append([]int(nil), xs...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func finish(p *Problem, name string, conf float64, tour []int, fitness float64, iters int, start time.Time) AlgorithmResult {
	seq := p.Sequence(tour)
	return AlgorithmResult{
		Algorithm:  name,
		Order:      seq,
		Score:      p.Score(p.Evaluate(seq)),
		Fitness:    fitness,
		Confidence: conf,
		Iterations: iters,
		Elapsed:    time.Since(start),
	}
}

// RunPool runs every strategy concurrently over the same problem and waits
// for all of them to settle. Failed strategies are absent from the results
// but present in the outcomes. onSettle, if set, is called from the worker
// goroutines as each strategy finishes.
func RunPool(ctx context.Context, strategies []Strategy, p *Problem, onSettle func(model.StrategyOutcome)) ([]AlgorithmResult, []model.StrategyOutcome) {
	type settled struct {
		res AlgorithmResult
		out model.StrategyOutcome
		ok  bool
	}
	rp := pool.NewWithResults[settled]().WithContext(ctx)
	for _, s := range strategies {
		s := s
		rp.Go(func(ctx context.Context) (st settled, err error) {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					st = settled{out: model.StrategyOutcome{Algorithm: s.Name(), Status: "failed", Error: fmt.Sprint("panic: ", r), ElapsedMs: time.Since(start).Milliseconds()}}
				}
				if onSettle != nil {
					onSettle(st.out)
				}
			}()
			res, err := s.Optimize(ctx, p)
			if err != nil {
				return settled{out: model.StrategyOutcome{Algorithm: s.Name(), Status: "failed", Error: err.Error(), ElapsedMs: time.Since(start).Milliseconds()}}, nil
			}
			return settled{res: res, ok: true, out: model.StrategyOutcome{Algorithm: res.Algorithm, Status: "ok", Score: res.Score, Iterations: res.Iterations, ElapsedMs: res.Elapsed.Milliseconds()}}, nil
		})
	}
	all, _ := rp.Wait()
	sort.Slice(all, func(i, j int) bool { return algoRank[all[i].out.Algorithm] < algoRank[all[j].out.Algorithm] })

	var results []AlgorithmResult
	outcomes := make([]model.StrategyOutcome, 0, len(all))
	for _, st := range all {
		outcomes = append(outcomes, st.out)
		if st.ok {
			results = append(results, st.res)
		}
	}
	return results, outcomes
}
