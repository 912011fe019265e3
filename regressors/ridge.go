package regressors

import (
	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/pkg/errors"
)

// Ridge fits L2-regularized least squares via the regularized normal
// equations w = (X^T X + λI)^(-1) X^T y. The intercept is not penalized.
type Ridge struct {
	model.BaseEstimator
	Lambda float64

	weights   *mat.VecDense
	intercept float64
	nFeatures int
}

// NewRidge creates a ridge regression model with the given L2 penalty.
func NewRidge(lambda float64) *Ridge {
	return &Ridge{Lambda: lambda}
}

func init() {
	Register(Family{
		Name:       "ridge",
		Complexity: "lambda",
		// Weaker penalty means higher effective capacity.
		ComplexityOf: func(p Params) float64 {
			return 1.0 / (1.0 + p.Get("lambda", 1.0))
		},
		New: func(p Params) (model.Regressor, error) {
			lambda := p.Get("lambda", 1.0)
			if lambda < 0 {
				return nil, errors.NewValidationError("lambda", "must be non-negative", lambda)
			}
			return NewRidge(lambda), nil
		},
		DefaultGrid: map[string][]float64{
			"lambda": {0.01, 0.1, 1, 10, 100},
		},
	})
}

// Fit trains the model on X, y.
func (rd *Ridge) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("Ridge.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("Ridge.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("Ridge.Fit", "y must be a column vector")
	}

	rd.nFeatures = c

	XWithIntercept := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		XWithIntercept.Set(i, 0, 1.0)
		for j := 0; j < c; j++ {
			XWithIntercept.Set(i, j+1, X.At(i, j))
		}
	}

	var XT mat.Dense
	XT.CloneFrom(XWithIntercept.T())

	var XTX mat.Dense
	XTX.Mul(&XT, XWithIntercept)

	// Add λ to the diagonal, skipping the intercept column.
	for j := 1; j <= c; j++ {
		XTX.Set(j, j, XTX.At(j, j)+rd.Lambda)
	}

	var XTXInv mat.Dense
	if err := XTXInv.Inverse(&XTX); err != nil {
		return errors.NewModelError("Ridge.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	var XTy mat.VecDense
	XTy.MulVec(&XT, yVec)

	weights := mat.NewVecDense(c+1, nil)
	weights.MulVec(&XTXInv, &XTy)

	rd.intercept = weights.AtVec(0)
	rd.weights = mat.NewVecDense(c, nil)
	for i := 0; i < c; i++ {
		rd.weights.SetVec(i, weights.AtVec(i+1))
	}

	rd.SetFitted()
	return nil
}

// Predict returns predictions for the input rows.
func (rd *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rd.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Predict")
	}

	r, c := X.Dims()
	if c != rd.nFeatures {
		return nil, errors.NewDimensionError("Ridge.Predict", rd.nFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		sum := rd.intercept
		for j := 0; j < c; j++ {
			sum += X.At(i, j) * rd.weights.AtVec(j)
		}
		predictions.Set(i, 0, sum)
	}
	return predictions, nil
}

// Weights returns the learned coefficients.
func (rd *Ridge) Weights() []float64 {
	if rd.weights == nil {
		return nil
	}
	out := make([]float64, rd.weights.Len())
	copy(out, rd.weights.RawVector().Data)
	return out
}

// Intercept returns the learned intercept.
func (rd *Ridge) Intercept() float64 { return rd.intercept }

// Score returns the coefficient of determination R² on X, y.
func (rd *Ridge) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rd.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Of(y, pred)
}
