// Package pipeline chains the full modeling run: load, split,
// preprocess, tune, select, evaluate, attribute. Stages run strictly in
// order; every stochastic stage takes its seed from the config.
package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/harvestlab/cropml/dataset"
	"github.com/harvestlab/cropml/evaluate"
	"github.com/harvestlab/cropml/explain"
	"github.com/harvestlab/cropml/pkg/errors"
	cropmllog "github.com/harvestlab/cropml/pkg/log"
	"github.com/harvestlab/cropml/recipe"
	"github.com/harvestlab/cropml/regressors"
	"github.com/harvestlab/cropml/tune"
)

// Config is a complete run description. Zero values fall back to the
// documented defaults in Validate.
type Config struct {
	// Data
	CSVPath string
	Schema  dataset.Schema
	Target  string

	// Split
	TestFraction float64 // default 0.25
	StrataBins   int     // default 4
	SplitSeed    uint64

	// Preprocessing; nil builds OneHot + DropZeroVariance + Standardize
	// with the error unseen-level policy.
	Recipe *recipe.Recipe

	// Search
	Family        string
	Grid          map[string][]float64 // nil uses the family default
	RandomSearchN int                  // 0 means exhaustive grid
	SearchSeed    uint64
	Folds         int // default 5
	FoldSeed      uint64
	RacingBurnIn  int     // 0 disables racing
	RacingMargin  float64 // used when RacingBurnIn > 0
	TolerancePct  float64 // default 2

	// Attribution
	Simulations int // default 100
	ExplainSeed uint64
	PlotDir     string // "" skips plot rendering
}

// Validate fills defaults and rejects impossible configurations.
func (c *Config) Validate() error {
	if c.Target == "" {
		return errors.NewValidationError("Target", "must name the target column", c.Target)
	}
	if c.Family == "" {
		return errors.NewValidationError("Family", "must name a registered model family", c.Family)
	}
	if _, err := regressors.Lookup(c.Family); err != nil {
		return err
	}
	if c.TestFraction == 0 {
		c.TestFraction = 0.25
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return errors.NewValidationError("TestFraction", "must be in (0, 1)", c.TestFraction)
	}
	if c.StrataBins == 0 {
		c.StrataBins = 4
	}
	if c.Folds == 0 {
		c.Folds = 5
	}
	if c.Folds < 2 {
		return errors.NewValidationError("Folds", "must be at least 2", c.Folds)
	}
	if c.TolerancePct == 0 {
		c.TolerancePct = 2
	}
	if c.Simulations == 0 {
		c.Simulations = 100
	}
	return nil
}

// Result gathers every stage's output.
type Result struct {
	TrainRows    int
	TestRows     int
	FeatureNames []string
	Trials       *tune.TrialTable
	Selection    *tune.SelectionReport
	Evaluation   *evaluate.Report
	Attribution  *explain.Attribution
}

// Run loads the CSV and executes the full pipeline.
func Run(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, err := dataset.LoadCSV(cfg.CSVPath, cfg.Schema)
	if err != nil {
		return nil, err
	}
	return RunTable(table, cfg)
}

// RunTable executes the pipeline on an already loaded table.
func RunTable(table *dataset.Table, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	family, err := regressors.Lookup(cfg.Family)
	if err != nil {
		return nil, err
	}

	slog.Info("pipeline started",
		slog.String(cropmllog.OperationKey, "run"),
		slog.String(cropmllog.TargetKey, cfg.Target),
		slog.String(cropmllog.FamilyKey, cfg.Family),
		slog.Int(cropmllog.SamplesKey, table.NumRows()))

	// Split before any preprocessing so the recipe never sees Test.
	split, err := dataset.StratifiedSplit(table, cfg.Target, dataset.SplitOptions{
		Fraction: 1 - cfg.TestFraction,
		Bins:     cfg.StrataBins,
		Seed:     int(cfg.SplitSeed),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("split complete",
		slog.Int(cropmllog.TrainRowsKey, split.Train.NumRows()),
		slog.Int(cropmllog.TestRowsKey, split.Test.NumRows()),
		slog.Uint64(cropmllog.SeedKey, cfg.SplitSeed))

	rec := cfg.Recipe
	if rec == nil {
		rec = recipe.New(cfg.Target).
			OneHot(recipe.UnseenError).
			DropZeroVariance().
			Standardize()
	}
	trainX, featureNames, err := rec.FitTransform(split.Train)
	if err != nil {
		return nil, err
	}
	testX, _, err := rec.Transform(split.Test)
	if err != nil {
		return nil, err
	}
	trainY, err := split.Train.TargetVector(cfg.Target)
	if err != nil {
		return nil, err
	}
	testY, err := split.Test.TargetVector(cfg.Target)
	if err != nil {
		return nil, err
	}
	slog.Info("recipe applied", slog.Int(cropmllog.FeaturesKey, len(featureNames)))

	space := searchSpace(family, cfg)
	tuner := tune.NewTuner(family, tune.NewKFold(cfg.Folds, true, cfg.FoldSeed)).WithSpace(space)
	if cfg.RacingBurnIn > 0 {
		tuner = tuner.WithRacing(cfg.RacingBurnIn, cfg.RacingMargin)
	}
	trials, err := tuner.Run(trainX, trainY)
	if err != nil {
		return nil, err
	}

	selector := tune.NewSelector(family)
	selector.TolerancePct = cfg.TolerancePct
	selection, err := selector.SelectAndCompare(trials, trainX, trainY, testX, testY)
	if err != nil {
		return nil, err
	}

	evaluation, fitted, err := evaluate.FinalFit(family, selection.Winner.Params, trainX, trainY, testX, testY)
	if err != nil {
		return nil, err
	}

	explainer := explain.NewExplainer(fitted, trainX, featureNames).
		WithSimulations(cfg.Simulations).
		WithSeed(cfg.ExplainSeed)
	attribution, err := explainer.Attribute(testX)
	if err != nil {
		return nil, err
	}

	if cfg.PlotDir != "" {
		if err := renderPlots(attribution, cfg.PlotDir); err != nil {
			return nil, err
		}
	}

	slog.Info("pipeline finished",
		slog.String(cropmllog.WinnerKey, selection.Winner.Params.Key()),
		slog.Float64(cropmllog.RMSEKey, evaluation.Test.RMSE),
		slog.Float64(cropmllog.R2ScoreKey, evaluation.Test.R2))

	return &Result{
		TrainRows:    split.Train.NumRows(),
		TestRows:     split.Test.NumRows(),
		FeatureNames: featureNames,
		Trials:       trials,
		Selection:    selection,
		Evaluation:   evaluation,
		Attribution:  attribution,
	}, nil
}

func searchSpace(family regressors.Family, cfg Config) []regressors.Params {
	grid := cfg.Grid
	if grid == nil {
		grid = family.DefaultGrid
	}
	if cfg.RandomSearchN > 0 {
		return tune.RandomSpace(grid, cfg.RandomSearchN, cfg.SearchSeed)
	}
	return tune.GridSpace(grid)
}

func renderPlots(attr *explain.Attribution, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "cropml: create plot dir %s", dir)
	}
	if err := attr.SaveImportancePlot(filepath.Join(dir, "importance.png")); err != nil {
		return err
	}
	if err := attr.SaveBeeswarmPlot(filepath.Join(dir, "beeswarm.png")); err != nil {
		return err
	}
	return attr.SaveWaterfallPlot(filepath.Join(dir, "waterfall.png"), 0)
}
