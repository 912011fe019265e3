package regressors

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/pkg/errors"
)

// ElasticNet fits a linear model with combined L1 and L2 penalties by
// cyclic coordinate descent on the objective
//
//	1/(2n) ||y - Xw - b||² + α·ρ·||w||₁ + α·(1-ρ)/2·||w||²
//
// where ρ is L1Ratio. With ρ = 1 this is the lasso. The intercept is
// handled by centering and is never penalized.
type ElasticNet struct {
	model.BaseEstimator
	Alpha   float64
	L1Ratio float64
	MaxIter int
	Tol     float64

	weights   *mat.VecDense
	intercept float64
	nFeatures int
	nIter     int
}

// NewElasticNet creates an elastic net model with the given penalty
// strength and L1/L2 mixing ratio.
func NewElasticNet(alpha, l1Ratio float64) *ElasticNet {
	return &ElasticNet{
		Alpha:   alpha,
		L1Ratio: l1Ratio,
		MaxIter: 1000,
		Tol:     1e-6,
	}
}

// NewLasso creates a pure-L1 elastic net.
func NewLasso(alpha float64) *ElasticNet {
	return NewElasticNet(alpha, 1.0)
}

func init() {
	Register(Family{
		Name:       "lasso",
		Complexity: "alpha",
		ComplexityOf: func(p Params) float64 {
			return 1.0 / (1.0 + p.Get("alpha", 1.0))
		},
		New: func(p Params) (model.Regressor, error) {
			alpha := p.Get("alpha", 1.0)
			if alpha < 0 {
				return nil, errors.NewValidationError("alpha", "must be non-negative", alpha)
			}
			return NewLasso(alpha), nil
		},
		DefaultGrid: map[string][]float64{
			"alpha": {0.001, 0.01, 0.1, 1, 10},
		},
	})

	Register(Family{
		Name:       "elasticnet",
		Complexity: "alpha",
		ComplexityOf: func(p Params) float64 {
			return 1.0 / (1.0 + p.Get("alpha", 1.0))
		},
		New: func(p Params) (model.Regressor, error) {
			alpha := p.Get("alpha", 1.0)
			ratio := p.Get("l1_ratio", 0.5)
			if alpha < 0 {
				return nil, errors.NewValidationError("alpha", "must be non-negative", alpha)
			}
			if ratio < 0 || ratio > 1 {
				return nil, errors.NewValidationError("l1_ratio", "must be in [0, 1]", ratio)
			}
			return NewElasticNet(alpha, ratio), nil
		},
		DefaultGrid: map[string][]float64{
			"alpha":    {0.001, 0.01, 0.1, 1, 10},
			"l1_ratio": {0.1, 0.5, 0.9},
		},
	})
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

// Fit trains the model on X, y.
func (en *ElasticNet) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("ElasticNet.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("ElasticNet.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("ElasticNet.Fit", "y must be a column vector")
	}

	en.nFeatures = c
	n := float64(r)

	// Center X and y so the intercept drops out of the descent loop.
	colMeans := make([]float64, c)
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += X.At(i, j)
		}
		colMeans[j] = sum / n
	}
	yMean := 0.0
	for i := 0; i < r; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= n

	Xc := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			Xc.Set(i, j, X.At(i, j)-colMeans[j])
		}
	}

	// Per-column squared norms, scaled by 1/n.
	colSq := make([]float64, c)
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			v := Xc.At(i, j)
			s += v * v
		}
		colSq[j] = s / n
	}

	w := make([]float64, c)
	residual := make([]float64, r)
	for i := 0; i < r; i++ {
		residual[i] = y.At(i, 0) - yMean
	}

	l1 := en.Alpha * en.L1Ratio
	l2 := en.Alpha * (1 - en.L1Ratio)

	maxIter := en.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}

	var iter int
	for iter = 0; iter < maxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < c; j++ {
			if colSq[j] == 0 {
				continue
			}
			old := w[j]
			// Partial residual correlation for coordinate j.
			rho := 0.0
			for i := 0; i < r; i++ {
				rho += Xc.At(i, j) * residual[i]
			}
			rho = rho/n + colSq[j]*old

			wj := softThreshold(rho, l1) / (colSq[j] + l2)
			if wj != old {
				diff := wj - old
				for i := 0; i < r; i++ {
					residual[i] -= diff * Xc.At(i, j)
				}
				w[j] = wj
				if d := math.Abs(diff); d > maxDelta {
					maxDelta = d
				}
			}
		}
		if maxDelta < en.Tol {
			iter++
			break
		}
	}
	en.nIter = iter

	en.weights = mat.NewVecDense(c, w)
	en.intercept = yMean
	for j := 0; j < c; j++ {
		en.intercept -= w[j] * colMeans[j]
	}

	en.SetFitted()
	return nil
}

// Predict returns predictions for the input rows.
func (en *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !en.IsFitted() {
		return nil, errors.NewNotFittedError("ElasticNet", "Predict")
	}

	r, c := X.Dims()
	if c != en.nFeatures {
		return nil, errors.NewDimensionError("ElasticNet.Predict", en.nFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		sum := en.intercept
		for j := 0; j < c; j++ {
			sum += X.At(i, j) * en.weights.AtVec(j)
		}
		predictions.Set(i, 0, sum)
	}
	return predictions, nil
}

// Weights returns the learned coefficients.
func (en *ElasticNet) Weights() []float64 {
	if en.weights == nil {
		return nil
	}
	out := make([]float64, en.weights.Len())
	copy(out, en.weights.RawVector().Data)
	return out
}

// Intercept returns the learned intercept.
func (en *ElasticNet) Intercept() float64 { return en.intercept }

// NIter reports how many coordinate descent sweeps ran.
func (en *ElasticNet) NIter() int { return en.nIter }

// Score returns the coefficient of determination R² on X, y.
func (en *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	pred, err := en.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Of(y, pred)
}
