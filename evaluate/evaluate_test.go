package evaluate

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/regressors"
)

func syntheticData(n int, noise float64, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x0 := rng.Float64() * 10
		x1 := rng.Float64() * 10
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y.SetVec(i, 3*x0-2*x1+5+noise*rng.NormFloat64())
	}
	return X, y
}

func TestFinalFitReportsBothSplits(t *testing.T) {
	fam, err := regressors.Lookup("ridge")
	require.NoError(t, err)

	trainX, trainY := syntheticData(150, 0.5, 3)
	testX, testY := syntheticData(50, 0.5, 5)

	report, fitted, err := FinalFit(fam, regressors.Params{"lambda": 0.1}, trainX, trainY, testX, testY)
	require.NoError(t, err)
	require.NotNil(t, fitted)

	assert.Equal(t, "ridge", report.Family)
	assert.Greater(t, report.Test.R2, 0.95)
	assert.Greater(t, report.Test.Correlation, 0.95)
	assert.Positive(t, report.Test.RMSE)
	assert.Positive(t, report.Test.PredStdDev)
	assert.Positive(t, report.Train.RMSE)

	// The returned model is already fitted.
	pred, err := fitted.Predict(testX)
	require.NoError(t, err)
	rows, _ := pred.Dims()
	assert.Equal(t, 50, rows)
}

func TestOverfitGapFlagsMemorization(t *testing.T) {
	fam, err := regressors.Lookup("knn")
	require.NoError(t, err)

	trainX, trainY := syntheticData(100, 3.0, 7)
	testX, testY := syntheticData(50, 3.0, 11)

	// A single-neighbor model memorizes the training split, so its
	// train RMSE is zero and the gap approaches 1.
	report, _, err := FinalFit(fam, regressors.Params{"neighbors": 1}, trainX, trainY, testX, testY)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, report.Train.RMSE, 1e-9)
	assert.Greater(t, report.OverfitGap(), 0.9)
}

func TestFinalFitInvalidParams(t *testing.T) {
	fam, err := regressors.Lookup("ridge")
	require.NoError(t, err)

	trainX, trainY := syntheticData(50, 0.5, 13)
	_, _, err = FinalFit(fam, regressors.Params{"lambda": -1}, trainX, trainY, trainX, trainY)
	assert.Error(t, err)
}
