package recipe

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/harvestlab/cropml/dataset"
	"github.com/harvestlab/cropml/pkg/errors"
)

// ---------------------------------------------------------------------------
// remove-columns
// ---------------------------------------------------------------------------

type removeStep struct {
	columns []string
}

func (s *removeStep) name() string { return "remove_columns" }

func (s *removeStep) fit(t *dataset.Table) (*dataset.Table, error) {
	return s.apply(t)
}

func (s *removeStep) apply(t *dataset.Table) (*dataset.Table, error) {
	return t.Drop(s.columns...)
}

// ---------------------------------------------------------------------------
// one-hot encode
// ---------------------------------------------------------------------------

type oneHotStep struct {
	policy UnseenPolicy

	// fitted vocabulary: column name -> sorted levels
	vocab map[string][]string
	// column order at fit time, to keep output schema stable
	catOrder []string
}

func (s *oneHotStep) name() string { return "one_hot" }

func (s *oneHotStep) fit(t *dataset.Table) (*dataset.Table, error) {
	s.vocab = make(map[string][]string)
	s.catOrder = nil

	for _, name := range t.ColumnNames() {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.Categorical {
			continue
		}

		seen := make(map[string]bool)
		var levels []string
		for _, lv := range c.Levels {
			if !seen[lv] {
				seen[lv] = true
				levels = append(levels, lv)
			}
		}
		sort.Strings(levels)

		s.vocab[name] = levels
		s.catOrder = append(s.catOrder, name)
	}

	return s.apply(t)
}

func (s *oneHotStep) apply(t *dataset.Table) (*dataset.Table, error) {
	if s.vocab == nil {
		return nil, errors.NewNotFittedError("oneHotStep", "apply")
	}

	n := t.NumRows()
	var cols []dataset.Column
	for _, name := range t.ColumnNames() {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.Categorical {
			cols = append(cols, *c)
			continue
		}

		levels, known := s.vocab[name]
		if !known {
			return nil, errors.NewValidationError("column",
				"categorical column absent at fit time", name)
		}

		levelIdx := make(map[string]int, len(levels))
		for i, lv := range levels {
			levelIdx[lv] = i
		}

		indicators := make([]dataset.Column, len(levels))
		for i, lv := range levels {
			indicators[i] = dataset.Column{
				Name:   name + "_" + lv,
				Kind:   dataset.Numeric,
				Values: make([]float64, n),
			}
		}

		for ri, lv := range c.Levels {
			idx, ok := levelIdx[lv]
			if !ok {
				if s.policy == UnseenError {
					return nil, errors.NewUnseenCategoryError(name, lv)
				}
				// UnseenIgnore: the row stays all-zeros for this feature
				continue
			}
			indicators[idx].Values[ri] = 1.0
		}

		cols = append(cols, indicators...)
	}

	return dataset.NewTable(cols)
}

// ---------------------------------------------------------------------------
// zero-variance filter
// ---------------------------------------------------------------------------

type zeroVarStep struct {
	drop []string
}

func (s *zeroVarStep) name() string { return "drop_zero_variance" }

func (s *zeroVarStep) fit(t *dataset.Table) (*dataset.Table, error) {
	s.drop = nil
	for _, name := range t.ColumnNames() {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.Numeric {
			continue
		}
		if stat.Variance(c.Values, nil) < 1e-12 {
			s.drop = append(s.drop, name)
		}
	}
	return s.apply(t)
}

func (s *zeroVarStep) apply(t *dataset.Table) (*dataset.Table, error) {
	if s.drop == nil {
		return t, nil
	}
	return t.Drop(s.drop...)
}

// ---------------------------------------------------------------------------
// correlation filter
// ---------------------------------------------------------------------------

type corrStep struct {
	threshold float64

	drop []string
}

func (s *corrStep) name() string { return "drop_correlated" }

func (s *corrStep) fit(t *dataset.Table) (*dataset.Table, error) {
	var names []string
	var data [][]float64
	for _, name := range t.ColumnNames() {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.Numeric {
			continue
		}
		names = append(names, name)
		data = append(data, c.Values)
	}

	s.drop = nil
	alive := make([]bool, len(names))
	for i := range alive {
		alive[i] = true
	}

	absCorr := func(i, j int) float64 {
		r := stat.Correlation(data[i], data[j], nil)
		if math.IsNaN(r) {
			return 0
		}
		return math.Abs(r)
	}

	// Repeatedly find the most correlated surviving pair above the
	// threshold and drop the member with the larger mean absolute
	// correlation to everything else (ties break toward the later column,
	// keeping the result deterministic).
	for {
		bestI, bestJ, bestC := -1, -1, s.threshold
		for i := 0; i < len(names); i++ {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < len(names); j++ {
				if !alive[j] {
					continue
				}
				if c := absCorr(i, j); c > bestC {
					bestI, bestJ, bestC = i, j, c
				}
			}
		}
		if bestI < 0 {
			break
		}

		meanCorr := func(k int) float64 {
			var sum float64
			var cnt int
			for m := 0; m < len(names); m++ {
				if m == k || !alive[m] {
					continue
				}
				sum += absCorr(k, m)
				cnt++
			}
			if cnt == 0 {
				return 0
			}
			return sum / float64(cnt)
		}

		victim := bestJ
		if meanCorr(bestI) > meanCorr(bestJ) {
			victim = bestI
		}
		alive[victim] = false
		s.drop = append(s.drop, names[victim])
	}

	return s.apply(t)
}

func (s *corrStep) apply(t *dataset.Table) (*dataset.Table, error) {
	if len(s.drop) == 0 {
		return t, nil
	}
	return t.Drop(s.drop...)
}

// ---------------------------------------------------------------------------
// standardize
// ---------------------------------------------------------------------------

type standardizeStep struct {
	mean  map[string]float64
	scale map[string]float64
}

func (s *standardizeStep) name() string { return "standardize" }

func (s *standardizeStep) fit(t *dataset.Table) (*dataset.Table, error) {
	s.mean = make(map[string]float64)
	s.scale = make(map[string]float64)

	for _, name := range t.ColumnNames() {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.Numeric {
			continue
		}
		mean := stat.Mean(c.Values, nil)
		sd := math.Sqrt(stat.Variance(c.Values, nil))
		// near-constant column: keep scale at 1 to avoid division by zero
		if math.Abs(sd) < 1e-8 {
			sd = 1.0
		}
		s.mean[name] = mean
		s.scale[name] = sd
	}

	return s.apply(t)
}

func (s *standardizeStep) apply(t *dataset.Table) (*dataset.Table, error) {
	if s.mean == nil {
		return nil, errors.NewNotFittedError("standardizeStep", "apply")
	}

	var cols []dataset.Column
	for _, name := range t.ColumnNames() {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.Numeric {
			cols = append(cols, *c)
			continue
		}
		mean, ok := s.mean[name]
		if !ok {
			return nil, errors.NewValidationError("column",
				"numeric column absent at fit time", name)
		}
		scale := s.scale[name]

		nc := dataset.Column{Name: name, Kind: dataset.Numeric, Values: make([]float64, len(c.Values))}
		for i, v := range c.Values {
			nc.Values[i] = (v - mean) / scale
		}
		cols = append(cols, nc)
	}

	return dataset.NewTable(cols)
}
