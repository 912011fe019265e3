// Package evaluate fits the selected configuration on the full training
// split and reports held-out metrics, with the same metrics on the
// training split as an overfit diagnostic.
package evaluate

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/metrics"
	"github.com/harvestlab/cropml/pkg/errors"
	cropmllog "github.com/harvestlab/cropml/pkg/log"
	"github.com/harvestlab/cropml/regressors"
)

// SplitMetrics is one split's scorecard.
type SplitMetrics struct {
	RMSE        float64
	R2          float64
	Correlation float64
	// PredStdDev is the spread of the predictions themselves. A value
	// far below the target's spread means the model regresses toward
	// the mean.
	PredStdDev float64
}

// Report carries the final model's test scorecard plus the train-side
// numbers. The train side is informational only; decisions upstream were
// already made on cross-validation and the test comparison.
type Report struct {
	Family string
	Params regressors.Params
	Test   SplitMetrics
	Train  SplitMetrics
}

// FinalFit fits the winning configuration on the full training split,
// scores both splits, and returns the report together with the fitted
// model for downstream attribution.
func FinalFit(family regressors.Family, params regressors.Params, trainX mat.Matrix, trainY *mat.VecDense, testX mat.Matrix, testY *mat.VecDense) (*Report, model.Regressor, error) {
	m, err := family.New(params)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cropml: final fit construction failed")
	}
	if err := m.Fit(trainX, trainY); err != nil {
		return nil, nil, errors.Wrap(err, "cropml: final fit failed")
	}

	testMetrics, err := scoreSplit(m, testX, testY)
	if err != nil {
		return nil, nil, err
	}
	trainMetrics, err := scoreSplit(m, trainX, trainY)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		Family: family.Name,
		Params: params,
		Test:   testMetrics,
		Train:  trainMetrics,
	}

	slog.Info("final fit evaluated",
		slog.String(cropmllog.FamilyKey, family.Name),
		slog.String(cropmllog.CandidateKey, params.Key()),
		slog.Float64(cropmllog.RMSEKey, testMetrics.RMSE),
		slog.Float64(cropmllog.R2ScoreKey, testMetrics.R2),
		slog.Float64(cropmllog.CorrelationKey, testMetrics.Correlation),
		slog.Float64("train_rmse", trainMetrics.RMSE),
		slog.Float64("train_r2", trainMetrics.R2))

	return report, m, nil
}

func scoreSplit(m model.Regressor, X mat.Matrix, y *mat.VecDense) (SplitMetrics, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return SplitMetrics{}, err
	}

	r, _ := pred.Dims()
	predVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		predVec.SetVec(i, pred.At(i, 0))
	}

	var out SplitMetrics
	if out.RMSE, err = metrics.RMSE(y, predVec); err != nil {
		return SplitMetrics{}, err
	}
	if out.R2, err = metrics.R2Score(y, predVec); err != nil {
		return SplitMetrics{}, err
	}
	if out.Correlation, err = metrics.PearsonCorrelation(y, predVec); err != nil {
		return SplitMetrics{}, err
	}
	if out.PredStdDev, err = metrics.PredictionStdDev(predVec); err != nil {
		return SplitMetrics{}, err
	}
	return out, nil
}

// OverfitGap reports how much the model's training RMSE flatters the
// held-out RMSE, as a fraction of the held-out value.
func (r *Report) OverfitGap() float64 {
	if r.Test.RMSE == 0 {
		return 0
	}
	return (r.Test.RMSE - r.Train.RMSE) / r.Test.RMSE
}
