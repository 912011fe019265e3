package pipeline

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlab/cropml/dataset"
	"github.com/harvestlab/cropml/recipe"
)

// yieldTable samples 200 field observations where
// yield = 3*temp - 2*precip + noise, plus a categorical variety column
// that carries no signal.
func yieldTable(t *testing.T) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewPCG(11, 11))
	n := 200

	temp := make([]float64, n)
	precip := make([]float64, n)
	variety := make([]string, n)
	yield := make([]float64, n)
	names := []string{"koshihikari", "akitakomachi", "hitomebore"}
	for i := 0; i < n; i++ {
		temp[i] = 15 + rng.Float64()*15
		precip[i] = rng.Float64() * 50
		variety[i] = names[rng.IntN(len(names))]
		yield[i] = 3*temp[i] - 2*precip[i] + rng.NormFloat64()
	}

	table, err := dataset.NewTable([]dataset.Column{
		{Name: "temp", Kind: dataset.Numeric, Values: temp},
		{Name: "precip", Kind: dataset.Numeric, Values: precip},
		{Name: "variety", Kind: dataset.Categorical, Levels: variety},
		{Name: "yield", Kind: dataset.Numeric, Values: yield},
	})
	require.NoError(t, err)
	return table
}

func TestRunTableEndToEnd(t *testing.T) {
	table := yieldTable(t)

	result, err := RunTable(table, Config{
		Target:      "yield",
		Family:      "linear",
		Folds:       5,
		SplitSeed:   42,
		FoldSeed:    42,
		ExplainSeed: 42,
		Simulations: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, result.TrainRows+result.TestRows)
	assert.Greater(t, result.Evaluation.Test.R2, 0.8,
		"a linear family on a linear target must fit tightly")
	assert.NotEmpty(t, result.Selection.Candidates)
	assert.Equal(t, result.Selection.Candidates[0].Params.Key(), result.Selection.Winner.Params.Key())

	// The one-hot variety columns survive preprocessing.
	assert.Greater(t, len(result.FeatureNames), 2)

	// Attribution covers every test row.
	nObs, nFeatures := result.Attribution.Values.Dims()
	assert.Equal(t, result.TestRows, nObs)
	assert.Equal(t, len(result.FeatureNames), nFeatures)
}

func TestRunTableIsDeterministic(t *testing.T) {
	table := yieldTable(t)
	cfg := Config{
		Target:      "yield",
		Family:      "ridge",
		Folds:       4,
		SplitSeed:   7,
		FoldSeed:    7,
		ExplainSeed: 7,
		Simulations: 10,
	}

	a, err := RunTable(table, cfg)
	require.NoError(t, err)
	b, err := RunTable(table, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Selection.Winner.Params.Key(), b.Selection.Winner.Params.Key())
	assert.Equal(t, a.Evaluation.Test.RMSE, b.Evaluation.Test.RMSE)
	assert.Equal(t, a.Attribution.BaseValue, b.Attribution.BaseValue)
}

func TestRunTableWithRacingAndCustomRecipe(t *testing.T) {
	table := yieldTable(t)

	result, err := RunTable(table, Config{
		Target: "yield",
		Family: "cart",
		Grid: map[string][]float64{
			"max_depth":        {2, 4, 8},
			"min_samples_leaf": {1, 5},
		},
		Recipe: recipe.New("yield").
			OneHot(recipe.UnseenIgnore).
			DropZeroVariance().
			DropCorrelated(0.95).
			Standardize(),
		Folds:        5,
		RacingBurnIn: 2,
		RacingMargin: 0.2,
		Simulations:  10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Trials.Summaries)
	assert.Positive(t, result.Evaluation.Test.RMSE)
}

func TestRunReadsCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fields.csv")
	csv := "temp,precip,variety,yield\n" +
		"20,10,koshihikari,41\n" +
		"25,30,akitakomachi,16\n" +
		"18,5,koshihikari,45\n" +
		"30,40,hitomebore,9\n" +
		"22,12,akitakomachi,43\n" +
		"27,33,hitomebore,15\n" +
		"19,8,koshihikari,42\n" +
		"28,35,akitakomachi,12\n" +
		"21,11,hitomebore,40\n" +
		"26,31,koshihikari,17\n" +
		"17,4,akitakomachi,44\n" +
		"29,38,hitomebore,10\n" +
		"23,14,koshihikari,39\n" +
		"24,28,akitakomachi,20\n" +
		"16,3,hitomebore,46\n" +
		"31,42,koshihikari,8\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	result, err := Run(Config{
		CSVPath:     path,
		Schema:      dataset.Schema{Categorical: []string{"variety"}},
		Target:      "yield",
		Family:      "knn",
		Grid:        map[string][]float64{"neighbors": {1, 2}},
		Folds:       2,
		StrataBins:  2,
		Simulations: 5,
	})
	require.NoError(t, err)
	assert.Positive(t, result.TestRows)
}

func TestConfigValidation(t *testing.T) {
	table := yieldTable(t)

	_, err := RunTable(table, Config{Family: "linear"})
	assert.Error(t, err, "missing target must be rejected")

	_, err = RunTable(table, Config{Target: "yield", Family: "unknown"})
	assert.Error(t, err, "unknown family must be rejected")

	_, err = RunTable(table, Config{Target: "yield", Family: "linear", TestFraction: 1.5})
	assert.Error(t, err, "impossible test fraction must be rejected")
}
