package tune

import (
	"math/rand/v2"
	"sort"

	"github.com/harvestlab/cropml/regressors"
)

// GridSpace expands a per-parameter value grid into the full cartesian
// product of combinations. Parameter names are iterated in sorted order
// so the output sequence is stable across runs.
func GridSpace(grid map[string][]float64) []regressors.Params {
	if len(grid) == 0 {
		return []regressors.Params{{}}
	}

	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []regressors.Params{{}}
	for _, name := range names {
		values := grid[name]
		if len(values) == 0 {
			continue
		}
		next := make([]regressors.Params, 0, len(combos)*len(values))
		for _, base := range combos {
			for _, v := range values {
				p := base.Clone()
				p[name] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos
}

// RandomSpace draws up to n distinct combinations from the grid, one
// value per parameter uniformly at random. The draw is seeded; the same
// seed reproduces the same sample. When the grid holds fewer than n
// distinct combinations the full grid is returned instead.
func RandomSpace(grid map[string][]float64, n int, seed uint64) []regressors.Params {
	full := GridSpace(grid)
	if n <= 0 || n >= len(full) {
		return full
	}

	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)

	rng := rand.New(rand.NewPCG(seed, seed))
	seen := make(map[string]bool, n)
	out := make([]regressors.Params, 0, n)

	// Distinct combinations exist since n < len(full), so rejection
	// sampling terminates; the attempt cap is a safety valve.
	for attempts := 0; len(out) < n && attempts < 100*n; attempts++ {
		p := regressors.Params{}
		for _, name := range names {
			values := grid[name]
			if len(values) == 0 {
				continue
			}
			p[name] = values[rng.IntN(len(values))]
		}
		key := p.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
