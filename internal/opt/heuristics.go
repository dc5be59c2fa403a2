package opt

// ImproveOrder2Opt reverses sub-paths of a candidate tour while that shortens
// the walk. The waypoint set is unchanged and the anchors stay pinned, so a
// feasible tour stays feasible.
func (p *Problem) ImproveOrder2Opt(tour []int, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]int(nil), tour...)
	if len(best) < 2 {
		return best
	}
	bestDist := p.Evaluate(p.Sequence(best)).Distance
	n := len(best)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				next := twoOptSwap(best, i, k)
				d := p.Evaluate(p.Sequence(next)).Distance
				if d+1e-3 < bestDist {
					best, bestDist = next, d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
