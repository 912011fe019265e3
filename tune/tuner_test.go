package tune

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/regressors"
)

func syntheticData(n int, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		temp := 15 + rng.Float64()*15
		precip := rng.Float64() * 100
		X.Set(i, 0, temp)
		X.Set(i, 1, precip)
		y.SetVec(i, 3*temp-2*precip+rng.NormFloat64())
	}
	return X, y
}

func TestTunerProducesOneTrialPerComboPerFold(t *testing.T) {
	fam, err := regressors.Lookup("ridge")
	require.NoError(t, err)

	X, y := syntheticData(100, 3)
	tuner := NewTuner(fam, NewKFold(5, true, 42)).
		WithSpace(GridSpace(map[string][]float64{"lambda": {0.1, 1, 10}}))

	table, err := tuner.Run(X, y)
	require.NoError(t, err)

	assert.Len(t, table.Trials, 15, "3 combinations x 5 folds")
	assert.Len(t, table.Summaries, 3)
	for _, s := range table.Summaries {
		assert.Equal(t, 5, s.Folds)
		assert.False(t, math.IsNaN(s.MeanRMSE))
		assert.Positive(t, s.SERMSE)
	}
}

func TestTunerIsDeterministicPerSeed(t *testing.T) {
	fam, err := regressors.Lookup("cart")
	require.NoError(t, err)

	X, y := syntheticData(80, 5)
	space := GridSpace(map[string][]float64{"max_depth": {2, 4}, "min_samples_leaf": {1, 5}})

	runOnce := func() *TrialTable {
		table, err := NewTuner(fam, NewKFold(4, true, 9)).WithSpace(space).Run(X, y)
		require.NoError(t, err)
		return table
	}

	a, b := runOnce(), runOnce()
	require.Equal(t, len(a.Summaries), len(b.Summaries))
	for i := range a.Summaries {
		assert.Equal(t, a.Summaries[i].Params.Key(), b.Summaries[i].Params.Key())
		assert.Equal(t, a.Summaries[i].MeanRMSE, b.Summaries[i].MeanRMSE)
	}
}

func TestTunerRecordsFailedTrialsWithoutAborting(t *testing.T) {
	fam, err := regressors.Lookup("knn")
	require.NoError(t, err)

	// neighbors=500 exceeds every fold's training size, so that
	// combination fails on all folds while the others complete.
	X, y := syntheticData(60, 7)
	tuner := NewTuner(fam, NewKFold(3, true, 11)).
		WithSpace(GridSpace(map[string][]float64{"neighbors": {3, 5, 500}}))

	table, err := tuner.Run(X, y)
	require.NoError(t, err)

	assert.Len(t, table.Trials, 9)
	failed := 0
	for _, tr := range table.Trials {
		if tr.Failed {
			failed++
			assert.True(t, math.IsNaN(tr.RMSE))
			assert.True(t, math.IsNaN(tr.R2))
		}
	}
	assert.Equal(t, 3, failed, "the degenerate combination fails on every fold")
	assert.Len(t, table.Summaries, 2, "failed combinations are excluded from summaries")
}

func TestTunerEmptySpaceIsTypedError(t *testing.T) {
	fam, err := regressors.Lookup("ridge")
	require.NoError(t, err)

	X, y := syntheticData(40, 13)
	tuner := NewTuner(fam, NewKFold(3, true, 1)).WithSpace(nil)
	_, err = tuner.Run(X, y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search space is empty")
}

func TestTunerAllCombinationsFailIsTypedError(t *testing.T) {
	fam, err := regressors.Lookup("knn")
	require.NoError(t, err)

	X, y := syntheticData(30, 17)
	tuner := NewTuner(fam, NewKFold(3, true, 1)).
		WithSpace(GridSpace(map[string][]float64{"neighbors": {500, 1000}}))
	_, err = tuner.Run(X, y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no combination completed all folds")
}

func TestRacingEliminatesTrailingCombos(t *testing.T) {
	fam, err := regressors.Lookup("ridge")
	require.NoError(t, err)

	// An absurd penalty flattens the model to near-constant predictions,
	// so its fold RMSE trails the sensible penalties by far more than
	// the 10% margin once burn-in completes.
	X, y := syntheticData(120, 19)
	tuner := NewTuner(fam, NewKFold(5, true, 23)).
		WithSpace(GridSpace(map[string][]float64{"lambda": {0.01, 0.1, 1e9}})).
		WithRacing(2, 0.10)

	table, err := tuner.Run(X, y)
	require.NoError(t, err)

	assert.Less(t, len(table.Trials), 15, "racing must shrink the trial table")
	assert.Len(t, table.Summaries, 2, "the eliminated combination is absent from summaries")

	// Survivors still share the complete fold set.
	for _, s := range table.Summaries {
		assert.Equal(t, 5, s.Folds)
	}
}

func TestSelectAndCompareRanksByTestRMSE(t *testing.T) {
	fam, err := regressors.Lookup("ridge")
	require.NoError(t, err)

	trainX, trainY := syntheticData(150, 29)
	testX, testY := syntheticData(50, 31)

	table, err := NewTuner(fam, NewKFold(5, true, 37)).
		WithSpace(GridSpace(map[string][]float64{"lambda": {0.01, 1, 100}})).
		Run(trainX, trainY)
	require.NoError(t, err)

	report, err := NewSelector(fam).SelectAndCompare(table, trainX, trainY, testX, testY)
	require.NoError(t, err)

	require.NotEmpty(t, report.Candidates)
	for i := 1; i < len(report.Candidates); i++ {
		assert.LessOrEqual(t, report.Candidates[i-1].TestRMSE, report.Candidates[i].TestRMSE)
	}
	assert.Equal(t, report.Candidates[0].Params.Key(), report.Winner.Params.Key())
	assert.Less(t, report.Winner.TestRMSE, 2.0, "a near-linear target should be fit tightly")
}
