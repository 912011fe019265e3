package dataset

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func yieldTable(t *testing.T, n int, seed uint64) *Table {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	yield := make([]float64, n)
	temp := make([]float64, n)
	for i := 0; i < n; i++ {
		temp[i] = 15 + rng.Float64()*15
		yield[i] = 3*temp[i] + rng.NormFloat64()*5
	}
	table, err := NewTable([]Column{
		{Name: "temp", Kind: Numeric, Values: temp},
		{Name: "yield", Kind: Numeric, Values: yield},
	})
	require.NoError(t, err)
	return table
}

func TestStratifiedSplitSizesAndDisjointness(t *testing.T) {
	table := yieldTable(t, 200, 3)

	split, err := StratifiedSplit(table, "yield", SplitOptions{Fraction: 0.75, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 200, split.Train.NumRows()+split.Test.NumRows())
	assert.InDelta(t, 150, split.Train.NumRows(), 4, "train share close to the requested fraction")

	seen := make(map[int]bool)
	for _, i := range split.TrainIndices {
		seen[i] = true
	}
	for _, i := range split.TestIndices {
		assert.False(t, seen[i], "row %d appears on both sides", i)
	}
}

func TestStratifiedSplitMatchesTargetDistribution(t *testing.T) {
	table := yieldTable(t, 400, 5)

	split, err := StratifiedSplit(table, "yield", SplitOptions{Fraction: 0.75, Bins: 4, Seed: 7})
	require.NoError(t, err)

	trainY, err := split.Train.TargetVector("yield")
	require.NoError(t, err)
	testY, err := split.Test.TargetVector("yield")
	require.NoError(t, err)

	trainMean := stat.Mean(trainY.RawVector().Data, nil)
	testMean := stat.Mean(testY.RawVector().Data, nil)
	popSD := stat.StdDev(trainY.RawVector().Data, nil)

	assert.InDelta(t, trainMean, testMean, popSD/4,
		"stratification keeps the side means close")
}

func TestStratifiedSplitDeterministicPerSeed(t *testing.T) {
	table := yieldTable(t, 100, 9)

	a, err := StratifiedSplit(table, "yield", SplitOptions{Fraction: 0.7, Seed: 11})
	require.NoError(t, err)
	b, err := StratifiedSplit(table, "yield", SplitOptions{Fraction: 0.7, Seed: 11})
	require.NoError(t, err)
	c, err := StratifiedSplit(table, "yield", SplitOptions{Fraction: 0.7, Seed: 12})
	require.NoError(t, err)

	assert.Equal(t, a.TrainIndices, b.TrainIndices)
	assert.Equal(t, a.TestIndices, b.TestIndices)
	assert.NotEqual(t, a.TrainIndices, c.TrainIndices, "a different seed should shuffle differently")
}

func TestStratifiedSplitRejectsDegenerateFraction(t *testing.T) {
	table := yieldTable(t, 50, 13)

	for _, frac := range []float64{0, 1, -0.5, 1.5} {
		_, err := StratifiedSplit(table, "yield", SplitOptions{Fraction: frac})
		assert.Error(t, err, "fraction %v must be rejected", frac)
	}
}

func TestStratifiedSplitEmptySideIsError(t *testing.T) {
	// Four rows at 0.9: every bin rounds to keeping all rows in train.
	table := yieldTable(t, 4, 17)
	_, err := StratifiedSplit(table, "yield", SplitOptions{Fraction: 0.9, Bins: 2})
	assert.Error(t, err)
}

func TestStratifiedSplitUnknownTarget(t *testing.T) {
	table := yieldTable(t, 20, 19)
	_, err := StratifiedSplit(table, "missing", SplitOptions{Fraction: 0.75})
	assert.Error(t, err)
}
