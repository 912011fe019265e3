package tune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridSpaceCartesianProduct(t *testing.T) {
	grid := map[string][]float64{
		"max_depth": {2, 4, 6},
		"trees":     {50, 100},
	}

	combos := GridSpace(grid)
	require.Len(t, combos, 6)

	seen := make(map[string]bool)
	for _, p := range combos {
		seen[p.Key()] = true
	}
	assert.Len(t, seen, 6, "all combinations must be distinct")
}

func TestGridSpaceEmptyGridIsSingleEmptyCombo(t *testing.T) {
	combos := GridSpace(nil)
	require.Len(t, combos, 1)
	assert.Empty(t, combos[0])
}

func TestGridSpaceOrderIsStable(t *testing.T) {
	grid := map[string][]float64{
		"b": {1, 2},
		"a": {10, 20},
	}

	first := GridSpace(grid)
	second := GridSpace(grid)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
	}
}

func TestRandomSpaceSampleSizeAndSeed(t *testing.T) {
	grid := map[string][]float64{
		"alpha":    {0.001, 0.01, 0.1, 1, 10},
		"l1_ratio": {0.1, 0.5, 0.9},
	}

	a := RandomSpace(grid, 6, 42)
	b := RandomSpace(grid, 6, 42)
	require.Len(t, a, 6)

	seen := make(map[string]bool)
	for i := range a {
		assert.Equal(t, a[i].Key(), b[i].Key(), "same seed must reproduce the sample")
		seen[a[i].Key()] = true
	}
	assert.Len(t, seen, 6, "sampled combinations must be distinct")

	c := RandomSpace(grid, 6, 43)
	different := false
	for i := range a {
		if a[i].Key() != c[i].Key() {
			different = true
			break
		}
	}
	assert.True(t, different, "different seeds should draw different samples")
}

func TestRandomSpaceLargerThanGridReturnsFullGrid(t *testing.T) {
	grid := map[string][]float64{"neighbors": {3, 5, 7}}
	combos := RandomSpace(grid, 100, 1)
	assert.Len(t, combos, 3)
}

func TestKFoldCoversEveryRowExactlyOnce(t *testing.T) {
	kf := NewKFold(4, true, 42)
	folds := kf.Split(23)
	require.Len(t, folds, 4)

	testCount := make(map[int]int)
	for _, fold := range folds {
		assert.Equal(t, 23, len(fold.TrainIndices)+len(fold.TestIndices))
		inTrain := make(map[int]bool)
		for _, i := range fold.TrainIndices {
			inTrain[i] = true
		}
		for _, i := range fold.TestIndices {
			assert.False(t, inTrain[i], "row %d in both sides of a fold", i)
			testCount[i]++
		}
	}
	for i := 0; i < 23; i++ {
		assert.Equal(t, 1, testCount[i], "row %d must be held out exactly once", i)
	}
}

func TestKFoldDeterministicPerSeed(t *testing.T) {
	a := NewKFold(5, true, 7).Split(50)
	b := NewKFold(5, true, 7).Split(50)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].TestIndices, b[i].TestIndices)
	}
}
