package opt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourroute/internal/model"
)

func assertFeasible(t *testing.T, p *Problem, res AlgorithmResult) {
	t.Helper()
	st := p.Evaluate(res.Order)
	assert.LessOrEqual(t, st.Duration(), p.Constraints.MaxDuration+0.1, res.Algorithm)
	assert.LessOrEqual(t, st.Distance, p.Constraints.MaxDistance+0.1, res.Algorithm)
	seen := map[int]bool{}
	for _, idx := range res.Order {
		assert.False(t, seen[idx], "%s visits %d twice", res.Algorithm, idx)
		seen[idx] = true
	}
	if p.Head >= 0 {
		require.NotEmpty(t, res.Order)
		assert.Equal(t, p.Head, res.Order[0], res.Algorithm)
	}
	assert.InDelta(t, p.Score(st), res.Score, 1e-6, res.Algorithm)
}

func TestStrategiesRespectBudgets(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		p := NewProblem(cityWalk(12, seed), constraints(90), center, model.ContextSnapshot{})
		for _, s := range DefaultStrategies(seed) {
			res, err := s.Optimize(context.Background(), p)
			require.NoError(t, err, s.Name())
			assert.Equal(t, s.Name(), res.Algorithm)
			assertFeasible(t, p, res)
		}
	}
}

func TestDynamicProgrammingBeatsGreedy(t *testing.T) {
	for seed := int64(1); seed <= 6; seed++ {
		p := NewProblem(cityWalk(14, seed), constraints(120), center, model.ContextSnapshot{})
		g, err := Greedy{}.Optimize(context.Background(), p)
		require.NoError(t, err)
		dp, err := (&DynamicProgramming{}).Optimize(context.Background(), p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, dp.Score, g.Score-1e-6, "seed %d", seed)
	}
}

func TestDynamicProgrammingAtSizeLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("explores every subset of 19 stops")
	}
	// 19 stops plus the start is the largest input the exact solver takes,
	// and a loose budget keeps nearly every subset reachable
	p := NewProblem(cityWalk(19, 3), constraints(600), center, model.ContextSnapshot{})
	require.Len(t, p.Waypoints, DefaultDPLimit)
	g, err := Greedy{}.Optimize(context.Background(), p)
	require.NoError(t, err)
	dp, err := (&DynamicProgramming{}).Optimize(context.Background(), p)
	require.NoError(t, err)
	assertFeasible(t, p, dp)
	assert.GreaterOrEqual(t, dp.Score, g.Score-1e-6)
	assert.Less(t, dp.Elapsed, 4*time.Second, "must finish inside the default pool timeout")
}

func TestDynamicProgrammingRefusesLargeInputs(t *testing.T) {
	p := NewProblem(cityWalk(25, 1), constraints(600), center, model.ContextSnapshot{})
	_, err := (&DynamicProgramming{}).Optimize(context.Background(), p)
	assert.ErrorIs(t, err, ErrTooManyWaypoints)

	_, err = (&DynamicProgramming{MaxWaypoints: 5}).Optimize(context.Background(), NewProblem(cityWalk(3, 1), constraints(60), center, model.ContextSnapshot{}))
	assert.NoError(t, err)

	// a configured limit above the default is capped
	_, err = (&DynamicProgramming{MaxWaypoints: 30}).Optimize(context.Background(), NewProblem(cityWalk(22, 1), constraints(60), center, model.ContextSnapshot{}))
	assert.ErrorIs(t, err, ErrTooManyWaypoints)
}

func TestSeededStrategiesAreDeterministic(t *testing.T) {
	p := NewProblem(cityWalk(12, 9), constraints(90), center, model.ContextSnapshot{})
	for _, mk := range []func() Strategy{
		func() Strategy { return &Genetic{Seed: 42} },
		func() Strategy { return &Annealing{Seed: 42} },
	} {
		a, err := mk().Optimize(context.Background(), p)
		require.NoError(t, err)
		b, err := mk().Optimize(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, a.Order, b.Order, a.Algorithm)
	}
}

func TestStrategiesHandleTrivialProblems(t *testing.T) {
	only := []model.Waypoint{{ID: "s", Type: model.TypeStart, Location: center}}
	p := NewProblem(only, constraints(30), center, model.ContextSnapshot{})
	for _, s := range DefaultStrategies(1) {
		res, err := s.Optimize(context.Background(), p)
		require.NoError(t, err, s.Name())
		assert.Equal(t, []int{0}, res.Order, s.Name())
	}
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }
func (panicky) Optimize(context.Context, *Problem) (AlgorithmResult, error) {
	panic("boom")
}

type failing struct{ name string }

func (f failing) Name() string { return f.name }
func (f failing) Optimize(context.Context, *Problem) (AlgorithmResult, error) {
	return AlgorithmResult{}, errors.New("no route")
}

type sleepy struct{}

func (sleepy) Name() string { return AlgoDP }
func (sleepy) Optimize(ctx context.Context, _ *Problem) (AlgorithmResult, error) {
	<-ctx.Done()
	return AlgorithmResult{}, ctx.Err()
}

func TestRunPoolIsolatesFailures(t *testing.T) {
	p := NewProblem(cityWalk(6, 1), constraints(60), center, model.ContextSnapshot{})
	var mu sync.Mutex
	var settled []string
	results, outcomes := RunPool(context.Background(), []Strategy{panicky{}, Greedy{}, failing{"genetic"}}, p, func(o model.StrategyOutcome) {
		mu.Lock()
		settled = append(settled, o.Algorithm)
		mu.Unlock()
	})

	require.Len(t, results, 1)
	assert.Equal(t, AlgoGreedy, results[0].Algorithm)
	require.Len(t, outcomes, 3)
	assert.ElementsMatch(t, []string{"panicky", AlgoGreedy, "genetic"}, settled)

	byAlgo := map[string]model.StrategyOutcome{}
	for _, o := range outcomes {
		byAlgo[o.Algorithm] = o
	}
	assert.Equal(t, "failed", byAlgo["panicky"].Status)
	assert.Contains(t, byAlgo["panicky"].Error, "boom")
	assert.Equal(t, "failed", byAlgo["genetic"].Status)
	assert.Equal(t, "ok", byAlgo[AlgoGreedy].Status)
}

func TestRunPoolHonoursDeadline(t *testing.T) {
	p := NewProblem(cityWalk(6, 1), constraints(60), center, model.ContextSnapshot{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	began := time.Now()
	results, outcomes := RunPool(ctx, []Strategy{sleepy{}, Greedy{}}, p, nil)
	assert.Less(t, time.Since(began), 2*time.Second)
	require.Len(t, results, 1)
	assert.Equal(t, AlgoGreedy, outcomes[0].Algorithm, "sorted by rank")
	assert.Equal(t, "failed", outcomes[1].Status)
}
