package explain

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/regressors"
)

func fittedLinearModel(t *testing.T) (*regressors.Ridge, *mat.Dense) {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 3))
	n := 120
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a := rng.Float64() * 10
		b := rng.Float64() * 10
		c := rng.Float64() * 10
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, c)
		// The third feature never influences the target.
		y.SetVec(i, 4*a-3*b+1)
	}

	m := regressors.NewRidge(1e-8)
	require.NoError(t, m.Fit(X, y))
	return m, X
}

func TestAttributionAdditivity(t *testing.T) {
	m, X := fittedLinearModel(t)

	exp := NewExplainer(m, X, []string{"temp", "precip", "noisecol"}).WithSimulations(20)
	attr, err := exp.Attribute(X)
	require.NoError(t, err)

	pred, err := m.Predict(X)
	require.NoError(t, err)

	nObs, nFeatures := attr.Values.Dims()
	for i := 0; i < nObs; i++ {
		sum := attr.BaseValue
		for j := 0; j < nFeatures; j++ {
			sum += attr.Values.At(i, j)
		}
		assert.InDelta(t, pred.At(i, 0), sum, 1e-9,
			"attributions plus base must reproduce the prediction for row %d", i)
	}
}

func TestAttributionRanksRelevantFeatures(t *testing.T) {
	m, X := fittedLinearModel(t)

	exp := NewExplainer(m, X, []string{"temp", "precip", "noisecol"}).WithSimulations(50)
	attr, err := exp.Attribute(X)
	require.NoError(t, err)

	ranking := attr.Importance()
	require.Len(t, ranking, 3)
	assert.Equal(t, "temp", ranking[0].Name, "the strongest coefficient must rank first")
	assert.Equal(t, "noisecol", ranking[2].Name, "the irrelevant feature must rank last")
	assert.Less(t, ranking[2].MeanAbs, ranking[0].MeanAbs/10)
}

func TestAttributionDeterministicPerSeed(t *testing.T) {
	m, X := fittedLinearModel(t)

	run := func() *Attribution {
		attr, err := NewExplainer(m, X, []string{"a", "b", "c"}).
			WithSimulations(10).WithSeed(99).Attribute(X)
		require.NoError(t, err)
		return attr
	}

	first, second := run(), run()
	assert.Equal(t, first.BaseValue, second.BaseValue)
	nObs, nFeatures := first.Values.Dims()
	for i := 0; i < nObs; i++ {
		for j := 0; j < nFeatures; j++ {
			assert.Equal(t, first.Values.At(i, j), second.Values.At(i, j))
		}
	}
}

func TestWaterfallAccumulatesToPrediction(t *testing.T) {
	m, X := fittedLinearModel(t)

	attr, err := NewExplainer(m, X, []string{"a", "b", "c"}).WithSimulations(20).Attribute(X)
	require.NoError(t, err)

	steps, err := attr.Waterfall(0)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	// Ordered by magnitude, and the last cumulative equals the prediction.
	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, math.Abs(steps[i-1].Delta), math.Abs(steps[i].Delta))
	}
	assert.InDelta(t, attr.Predictions[0], steps[len(steps)-1].Cumulative, 1e-9)

	_, err = attr.Waterfall(10_000)
	assert.Error(t, err)
}

func TestDimensionMismatchRejected(t *testing.T) {
	m, X := fittedLinearModel(t)

	narrow := mat.NewDense(5, 2, nil)
	_, err := NewExplainer(m, narrow, []string{"a", "b", "c"}).Attribute(X)
	assert.Error(t, err)
}

func TestPlotsRenderToPNG(t *testing.T) {
	m, X := fittedLinearModel(t)

	attr, err := NewExplainer(m, X, []string{"temp", "precip", "noisecol"}).
		WithSimulations(10).Attribute(X)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, attr.SaveImportancePlot(filepath.Join(dir, "importance.png")))
	require.NoError(t, attr.SaveBeeswarmPlot(filepath.Join(dir, "beeswarm.png")))
	require.NoError(t, attr.SaveWaterfallPlot(filepath.Join(dir, "waterfall.png"), 0))
}
