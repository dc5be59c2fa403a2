package opt

import (
	"context"
	"math/rand"
	"sort"
	"time"
)

// Genetic evolves permutations of the candidate indices. Each permutation
// is decoded into the feasible tour it implies and scored with Problem.Score.
type Genetic struct {
	Population   int     // default 50
	Generations  int     // default 100
	MutationRate float64 // default 0.1
	GoodEnough   float64 // normalized fitness for early exit, default 0.95
	Elite        int     // default 2
	Seed         int64
}

func (g *Genetic) Name() string { return AlgoGenetic }

func (g *Genetic) defaults() Genetic {
	c := *g
	if c.Population <= 1 {
		c.Population = 50
	}
	if c.Generations <= 0 {
		c.Generations = 100
	}
	if c.MutationRate <= 0 {
		c.MutationRate = 0.1
	}
	if c.GoodEnough <= 0 {
		c.GoodEnough = 0.95
	}
	if c.Elite <= 0 {
		c.Elite = 2
	}
	if c.Elite >= c.Population {
		c.Elite = c.Population - 1
	}
	return c
}

type individual struct {
	perm    []int
	score   float64
	fitness float64
}

func (g *Genetic) Optimize(ctx context.Context, p *Problem) (AlgorithmResult, error) {
	start := time.Now()
	cfg := g.defaults()
	rng := newRand(cfg.Seed)
	if len(p.Candidates) < 2 {
		tour := p.Decode(p.Candidates)
		return finish(p, AlgoGenetic, 0.9, tour, 1, 0, start), nil
	}

	bound := p.UpperBound()
	eval := func(perm []int) individual {
		score := p.ScoreTour(p.Decode(perm))
		fit := 0.0
		if bound > 0 {
			fit = score / bound
		}
		return individual{perm: perm, score: score, fitness: fit}
	}

	pop := make([]individual, cfg.Population)
	for i := range pop {
		pop[i] = eval(shuffled(rng, p.Candidates))
	}
	sortPopulation(pop)
	best := pop[0]

	gen := 0
	for gen < cfg.Generations && best.fitness < cfg.GoodEnough {
		gen++
		next := make([]individual, 0, cfg.Population)
		next = append(next, pop[:cfg.Elite]...)
		for len(next) < cfg.Population {
			a := tournament(rng, pop, 3)
			b := tournament(rng, pop, 3)
			child := orderCrossover(rng, a.perm, b.perm)
			if rng.Float64() < cfg.MutationRate {
				i, j := rng.Intn(len(child)), rng.Intn(len(child))
				child[i], child[j] = child[j], child[i]
			}
			next = append(next, eval(child))
		}
		sortPopulation(next)
		pop = next
		if pop[0].score > best.score {
			best = pop[0]
		}
		if ctx.Err() != nil {
			break
		}
	}
	return finish(p, AlgoGenetic, 0.9, p.Decode(best.perm), best.fitness, gen, start), nil
}

func sortPopulation(pop []individual) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].score > pop[j].score })
}

func tournament(rng *rand.Rand, pop []individual, k int) individual {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < k; i++ {
		c := pop[rng.Intn(len(pop))]
		if c.score > best.score {
			best = c
		}
	}
	return best
}

// orderCrossover (OX1) copies a slice of a and fills the rest in b's order.
func orderCrossover(rng *rand.Rand, a, b []int) []int {
	n := len(a)
	i, j := rng.Intn(n), rng.Intn(n)
	if i > j {
		i, j = j, i
	}
	child := make([]int, n)
	taken := make(map[int]bool, j-i+1)
	for k := i; k <= j; k++ {
		child[k] = a[k]
		taken[a[k]] = true
	}
	pos := (j + 1) % n
	for k := 0; k < n; k++ {
		v := b[(j+1+k)%n]
		if taken[v] {
			continue
		}
		child[pos] = v
		pos = (pos + 1) % n
	}
	return child
}
