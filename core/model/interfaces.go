// Package model provides the shared interfaces and base types for the
// pipeline's estimators. This file complements the interfaces in
// estimator.go
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models. Every model family in
// the registry produces a Regressor; the pipeline core never dispatches on
// anything more specific.
type Regressor interface {
	Fitter
	Predictor
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}
