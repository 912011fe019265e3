package regressors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/core/parallel"
	"github.com/harvestlab/cropml/pkg/errors"
)

// KNNRegressor predicts the uniform average of the targets of the K
// nearest training rows under Euclidean distance. Fit only stores the
// training data; all work happens at prediction time.
type KNNRegressor struct {
	model.BaseEstimator
	K int

	trainX *mat.Dense
	trainY []float64
}

// NewKNNRegressor creates a K-nearest-neighbors regressor.
func NewKNNRegressor(k int) *KNNRegressor {
	return &KNNRegressor{K: k}
}

func init() {
	Register(Family{
		Name:       "knn",
		Complexity: "neighbors",
		// Fewer neighbors means a more flexible fit.
		ComplexityOf: func(p Params) float64 {
			return 1.0 / float64(p.GetInt("neighbors", 5))
		},
		New: func(p Params) (model.Regressor, error) {
			k := p.GetInt("neighbors", 5)
			if k < 1 {
				return nil, errors.NewValidationError("neighbors", "must be at least 1", k)
			}
			return NewKNNRegressor(k), nil
		},
		DefaultGrid: map[string][]float64{
			"neighbors": {3, 5, 7, 11, 15},
		},
	})
}

// Fit stores the training data.
func (knn *KNNRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("KNNRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("KNNRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("KNNRegressor.Fit", "y must be a column vector")
	}
	if knn.K > r {
		return errors.NewValidationError("neighbors", "exceeds number of training rows", knn.K)
	}

	knn.trainX = mat.NewDense(r, c, nil)
	knn.trainX.Copy(X)
	knn.trainY = make([]float64, r)
	for i := 0; i < r; i++ {
		knn.trainY[i] = y.At(i, 0)
	}

	knn.SetFitted()
	return nil
}

// Predict averages the targets of the K closest training rows for each
// query row.
func (knn *KNNRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !knn.IsFitted() {
		return nil, errors.NewNotFittedError("KNNRegressor", "Predict")
	}

	r, c := X.Dims()
	nTrain, cTrain := knn.trainX.Dims()
	if c != cTrain {
		return nil, errors.NewDimensionError("KNNRegressor.Predict", cTrain, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, 100, func(start, end int) {
		dists := make([]float64, nTrain)
		order := make([]int, nTrain)
		for i := start; i < end; i++ {
			for t := 0; t < nTrain; t++ {
				sum := 0.0
				for j := 0; j < c; j++ {
					d := X.At(i, j) - knn.trainX.At(t, j)
					sum += d * d
				}
				dists[t] = sum
			}

			for t := range order {
				order[t] = t
			}
			sort.Slice(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

			sum := 0.0
			for t := 0; t < knn.K; t++ {
				sum += knn.trainY[order[t]]
			}
			predictions.Set(i, 0, sum/float64(knn.K))
		}
	})

	for i := 0; i < r; i++ {
		if math.IsNaN(predictions.At(i, 0)) {
			return nil, errors.NewValueError("KNNRegressor.Predict", "prediction produced NaN")
		}
	}
	return predictions, nil
}

// Score returns the coefficient of determination R² on X, y.
func (knn *KNNRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := knn.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Of(y, pred)
}
