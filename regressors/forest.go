package regressors

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/core/parallel"
	"github.com/harvestlab/cropml/pkg/errors"
)

// RandomForestRegressor averages an ensemble of decorrelated CART trees.
// Each tree sees a bootstrap resample of the training rows and, at every
// split, a random subset of the features. Tree i draws from a PCG seeded
// with Seed+i, so a fixed Seed reproduces the whole ensemble regardless
// of how training is scheduled across goroutines.
type RandomForestRegressor struct {
	model.BaseEstimator
	NTrees         int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int // <= 0 means nFeatures/3, minimum 1
	Seed           uint64

	trees     []*DecisionTreeRegressor
	nFeatures int
}

// NewRandomForestRegressor creates a forest with the given ensemble size.
func NewRandomForestRegressor(nTrees, maxDepth int, seed uint64) *RandomForestRegressor {
	return &RandomForestRegressor{
		NTrees:         nTrees,
		MaxDepth:       maxDepth,
		MinSamplesLeaf: 1,
		Seed:           seed,
	}
}

func init() {
	Register(Family{
		Name:       "forest",
		Complexity: "trees",
		ComplexityOf: func(p Params) float64 {
			return float64(p.GetInt("trees", 100))
		},
		New: func(p Params) (model.Regressor, error) {
			trees := p.GetInt("trees", 100)
			depth := p.GetInt("max_depth", 8)
			if trees < 1 {
				return nil, errors.NewValidationError("trees", "must be at least 1", trees)
			}
			if depth < 1 {
				return nil, errors.NewValidationError("max_depth", "must be at least 1", depth)
			}
			rf := NewRandomForestRegressor(trees, depth, uint64(p.GetInt("seed", 42)))
			rf.MinSamplesLeaf = p.GetInt("min_samples_leaf", 1)
			return rf, nil
		},
		DefaultGrid: map[string][]float64{
			"trees":     {50, 100, 200},
			"max_depth": {4, 8, 12},
		},
	})
}

// Fit grows all trees. Trees are independent, so training fans out over
// the worker pool; the first tree error aborts the fit.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("RandomForestRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("RandomForestRegressor.Fit", "y must be a column vector")
	}

	rf.nFeatures = c
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = c / 3
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	rf.trees = make([]*DecisionTreeRegressor, rf.NTrees)
	errs := parallel.MapErr(rf.NTrees, 0, func(t int) error {
		seed := rf.Seed + uint64(t)
		rng := rand.New(rand.NewPCG(seed, seed))

		// Bootstrap resample of the rows.
		bx := mat.NewDense(r, c, nil)
		by := mat.NewVecDense(r, nil)
		for i := 0; i < r; i++ {
			src := rng.IntN(r)
			for j := 0; j < c; j++ {
				bx.Set(i, j, X.At(src, j))
			}
			by.SetVec(i, y.At(src, 0))
		}

		tree := NewDecisionTreeRegressor(rf.MaxDepth, rf.MinSamplesLeaf)
		tree.MaxFeatures = maxFeatures
		tree.Seed = seed
		if err := tree.Fit(bx, by); err != nil {
			return err
		}
		rf.trees[t] = tree
		return nil
	})
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, "cropml: forest tree fit failed")
		}
	}

	rf.SetFitted()
	return nil
}

// Predict returns the mean prediction across all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}

	r, c := X.Dims()
	if c != rf.nFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.nFeatures, c, 1)
	}

	// Per-tree predictions are gathered first and summed in tree order,
	// so the floating point result does not depend on goroutine timing.
	perTree := make([]mat.Matrix, len(rf.trees))
	errs := parallel.MapErr(len(rf.trees), 0, func(t int) error {
		pred, err := rf.trees[t].Predict(X)
		if err != nil {
			return err
		}
		perTree[t] = pred
		return nil
	})
	for _, err := range errs {
		if err != nil {
			return nil, errors.Wrap(err, "cropml: forest tree predict failed")
		}
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		sum := 0.0
		for _, pred := range perTree {
			sum += pred.At(i, 0)
		}
		predictions.Set(i, 0, sum/float64(len(rf.trees)))
	}
	return predictions, nil
}

// Score returns the coefficient of determination R² on X, y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Of(y, pred)
}
