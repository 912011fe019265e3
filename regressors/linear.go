package regressors

import (
	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/core/parallel"
	"github.com/harvestlab/cropml/metrics"
	"github.com/harvestlab/cropml/pkg/errors"
)

// LinearRegression fits ordinary least squares via the normal equations
// w = (X^T X)^(-1) X^T y.
type LinearRegression struct {
	model.BaseEstimator
	weights   *mat.VecDense
	intercept float64
	nFeatures int
}

// NewLinearRegression creates a new linear regression model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

func init() {
	Register(Family{
		Name: "linear",
		New: func(Params) (model.Regressor, error) {
			return NewLinearRegression(), nil
		},
		// OLS has no knobs; tuning degenerates to a single combination.
		DefaultGrid: map[string][]float64{},
	})
}

// Fit trains the model on X, y.
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	lr.nFeatures = c

	// Prepend an all-ones column for the intercept term.
	XWithIntercept := mat.NewDense(r, c+1, nil)

	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			XWithIntercept.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				XWithIntercept.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var XT mat.Dense
	XT.CloneFrom(XWithIntercept.T())

	var XTX mat.Dense
	XTX.Mul(&XT, XWithIntercept)

	var XTXInv mat.Dense
	if err := XTXInv.Inverse(&XTX); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	var XTy mat.VecDense
	XTy.MulVec(&XT, yVec)

	weights := mat.NewVecDense(c+1, nil)
	weights.MulVec(&XTXInv, &XTy)

	lr.intercept = weights.AtVec(0)
	lr.weights = mat.NewVecDense(c, nil)
	for i := 0; i < c; i++ {
		lr.weights.SetVec(i, weights.AtVec(i+1))
	}

	lr.SetFitted()
	return nil
}

// Predict returns predictions y = X*w + b for the input rows.
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}

	r, c := X.Dims()
	if c != lr.nFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.nFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			sum := lr.intercept
			for j := 0; j < c; j++ {
				sum += X.At(i, j) * lr.weights.AtVec(j)
			}
			predictions.Set(i, 0, sum)
		}
	})

	return predictions, nil
}

// Weights returns the learned coefficients.
func (lr *LinearRegression) Weights() []float64 {
	if lr.weights == nil {
		return nil
	}
	out := make([]float64, lr.weights.Len())
	copy(out, lr.weights.RawVector().Data)
	return out
}

// Intercept returns the learned intercept.
func (lr *LinearRegression) Intercept() float64 { return lr.intercept }

// Score returns the coefficient of determination R² on X, y.
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Of(y, pred)
}

// r2Of computes R² from column-vector matrices, shared by the families'
// Score methods.
func r2Of(y, pred mat.Matrix) (float64, error) {
	r, _ := y.Dims()
	yVec := mat.NewVecDense(r, nil)
	pVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
		pVec.SetVec(i, pred.At(i, 0))
	}
	return metrics.R2Score(yVec, pVec)
}
