package regressors

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/pkg/errors"
)

// GradientBoostingRegressor fits shallow CART trees to least-squares
// residuals in sequence. The initial prediction is the training mean;
// every stage adds LearningRate times a tree fitted to what the
// ensemble so far still gets wrong. Subsample < 1 draws a fresh random
// row subset per stage (stochastic gradient boosting).
type GradientBoostingRegressor struct {
	model.BaseEstimator
	NTrees         int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	Subsample      float64
	Seed           uint64

	initValue float64
	trees     []*DecisionTreeRegressor
	nFeatures int
}

// NewGradientBoostingRegressor creates a boosting ensemble.
func NewGradientBoostingRegressor(nTrees int, learningRate float64, maxDepth int, seed uint64) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NTrees:         nTrees,
		LearningRate:   learningRate,
		MaxDepth:       maxDepth,
		MinSamplesLeaf: 1,
		Subsample:      1.0,
		Seed:           seed,
	}
}

func init() {
	Register(Family{
		Name:       "gbrt",
		Complexity: "trees",
		ComplexityOf: func(p Params) float64 {
			return float64(p.GetInt("trees", 100))
		},
		New: func(p Params) (model.Regressor, error) {
			trees := p.GetInt("trees", 100)
			lr := p.Get("learning_rate", 0.1)
			depth := p.GetInt("max_depth", 3)
			sub := p.Get("subsample", 1.0)
			if trees < 1 {
				return nil, errors.NewValidationError("trees", "must be at least 1", trees)
			}
			if lr <= 0 || lr > 1 {
				return nil, errors.NewValidationError("learning_rate", "must be in (0, 1]", lr)
			}
			if depth < 1 {
				return nil, errors.NewValidationError("max_depth", "must be at least 1", depth)
			}
			if sub <= 0 || sub > 1 {
				return nil, errors.NewValidationError("subsample", "must be in (0, 1]", sub)
			}
			gb := NewGradientBoostingRegressor(trees, lr, depth, uint64(p.GetInt("seed", 42)))
			gb.Subsample = sub
			return gb, nil
		},
		DefaultGrid: map[string][]float64{
			"trees":         {50, 100, 200},
			"learning_rate": {0.05, 0.1},
			"max_depth":     {2, 3, 4},
		},
	})
}

// Fit runs the boosting stages. Stages are inherently sequential since
// each one consumes the residuals of everything before it.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("GradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("GradientBoostingRegressor.Fit", "y must be a column vector")
	}

	gb.nFeatures = c
	rng := rand.New(rand.NewPCG(gb.Seed, gb.Seed))

	gb.initValue = 0
	for i := 0; i < r; i++ {
		gb.initValue += y.At(i, 0)
	}
	gb.initValue /= float64(r)

	current := make([]float64, r)
	for i := range current {
		current[i] = gb.initValue
	}

	subRows := r
	if gb.Subsample > 0 && gb.Subsample < 1 {
		subRows = int(gb.Subsample * float64(r))
		if subRows < 1 {
			subRows = 1
		}
	}

	gb.trees = make([]*DecisionTreeRegressor, 0, gb.NTrees)
	for m := 0; m < gb.NTrees; m++ {
		rows := make([]int, r)
		for i := range rows {
			rows[i] = i
		}
		if subRows < r {
			rng.Shuffle(r, func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
			rows = rows[:subRows]
		}

		sx := mat.NewDense(len(rows), c, nil)
		sy := mat.NewVecDense(len(rows), nil)
		for pos, i := range rows {
			for j := 0; j < c; j++ {
				sx.Set(pos, j, X.At(i, j))
			}
			sy.SetVec(pos, y.At(i, 0)-current[i])
		}

		tree := NewDecisionTreeRegressor(gb.MaxDepth, gb.MinSamplesLeaf)
		if err := tree.Fit(sx, sy); err != nil {
			return errors.Wrapf(err, "cropml: boosting stage %d failed", m)
		}
		gb.trees = append(gb.trees, tree)

		// Update the running prediction on the full training set.
		stagePred, err := tree.Predict(X)
		if err != nil {
			return errors.Wrapf(err, "cropml: boosting stage %d failed", m)
		}
		for i := 0; i < r; i++ {
			current[i] += gb.LearningRate * stagePred.At(i, 0)
		}
	}

	gb.SetFitted()
	return nil
}

// Predict sums the initial value and all scaled stage contributions.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}

	r, c := X.Dims()
	if c != gb.nFeatures {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", gb.nFeatures, c, 1)
	}

	out := make([]float64, r)
	for i := range out {
		out[i] = gb.initValue
	}
	for _, tree := range gb.trees {
		pred, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < r; i++ {
			out[i] += gb.LearningRate * pred.At(i, 0)
		}
	}

	predictions := mat.NewDense(r, 1, out)
	return predictions, nil
}

// NStages reports how many boosting stages were fitted.
func (gb *GradientBoostingRegressor) NStages() int { return len(gb.trees) }

// Score returns the coefficient of determination R² on X, y.
func (gb *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Of(y, pred)
}
