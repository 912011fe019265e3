package tune

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/parallel"
	"github.com/harvestlab/cropml/metrics"
	"github.com/harvestlab/cropml/pkg/errors"
	cropmllog "github.com/harvestlab/cropml/pkg/log"
	"github.com/harvestlab/cropml/regressors"
)

// TrialResult is one (combination, fold) row of the trial table. Failed
// trials carry NaN metrics and Failed=true; they never abort a pass.
type TrialResult struct {
	Params regressors.Params
	Fold   int
	RMSE   float64
	R2     float64
	Failed bool
}

// TrialSummary aggregates one combination's rows across all folds.
type TrialSummary struct {
	Params     regressors.Params
	Complexity float64
	Folds      int
	MeanRMSE   float64
	SERMSE     float64 // standard error of the fold RMSEs
	MeanR2     float64
	SER2       float64
}

// TrialTable holds every trial the tuner ran plus the combinations that
// survived to the final fold with all folds succeeded.
type TrialTable struct {
	Trials    []TrialResult
	Summaries []TrialSummary
}

// RacingOptions configures early elimination of trailing combinations.
// Eliminations happen only at fold boundaries, so every surviving
// combination is always scored on an identical set of folds.
type RacingOptions struct {
	// BurnInFolds is how many folds every combination completes before
	// any elimination is considered.
	BurnInFolds int
	// Margin is the relative slack: a combination is eliminated when its
	// running mean RMSE exceeds the current best by more than this
	// fraction (0.1 means 10% worse than the leader).
	Margin float64
}

// Tuner evaluates a search space for one model family under k-fold
// cross-validation.
type Tuner struct {
	Family  regressors.Family
	Space   []regressors.Params
	Folds   *KFold
	Racing  *RacingOptions // nil disables racing
	Workers int            // <= 0 selects NumCPU
}

// NewTuner creates a tuner over the family's default grid.
func NewTuner(family regressors.Family, folds *KFold) *Tuner {
	return &Tuner{
		Family: family,
		Space:  GridSpace(family.DefaultGrid),
		Folds:  folds,
	}
}

// WithSpace replaces the search space.
func (t *Tuner) WithSpace(space []regressors.Params) *Tuner {
	t.Space = space
	return t
}

// WithRacing enables racing elimination.
func (t *Tuner) WithRacing(burnInFolds int, margin float64) *Tuner {
	t.Racing = &RacingOptions{BurnInFolds: burnInFolds, Margin: margin}
	return t
}

// Run executes every (combination, fold) trial and returns the table.
// Trials within a fold fan out over the worker pool; folds advance in
// order so racing decisions see complete fold results.
func (t *Tuner) Run(X mat.Matrix, y *mat.VecDense) (*TrialTable, error) {
	if len(t.Space) == 0 {
		return nil, errors.NewEmptyGridError(t.Family.Name, "search space is empty")
	}
	nSamples, _ := X.Dims()
	if nSamples == 0 {
		return nil, errors.NewModelError("Tuner.Run", "empty data", errors.ErrEmptyData)
	}

	folds := t.Folds.Split(nSamples)
	nFolds := len(folds)

	slog.Info("starting hyperparameter search",
		slog.String(cropmllog.FamilyKey, t.Family.Name),
		slog.Int(cropmllog.CombinationsKey, len(t.Space)),
		slog.Int(cropmllog.FoldKey, nFolds),
		slog.Int(cropmllog.SamplesKey, nSamples))

	table := &TrialTable{}
	surviving := make([]regressors.Params, len(t.Space))
	copy(surviving, t.Space)

	for foldIdx, fold := range folds {
		trainX, trainY := extractRows(X, y, fold.TrainIndices)
		testX, testY := extractRows(X, y, fold.TestIndices)

		results := make([]TrialResult, len(surviving))
		parallel.MapErr(len(surviving), t.Workers, func(c int) error {
			results[c] = t.runTrial(surviving[c], foldIdx, trainX, trainY, testX, testY)
			return nil
		})
		table.Trials = append(table.Trials, results...)

		if t.Racing != nil && foldIdx+1 >= t.Racing.BurnInFolds && foldIdx+1 < nFolds {
			surviving = t.eliminate(table, surviving, foldIdx+1)
		}
	}

	table.Summaries = summarize(t.Family, table.Trials, surviving, nFolds)
	if len(table.Summaries) == 0 {
		return nil, errors.NewEmptyGridError(t.Family.Name,
			"no combination completed all folds successfully")
	}
	return table, nil
}

// runTrial fits one combination on one fold's train side and scores its
// held-out side. Construction, fit, or predict failures all degrade to a
// failed trial with a warning.
func (t *Tuner) runTrial(params regressors.Params, fold int, trainX *mat.Dense, trainY *mat.VecDense, testX *mat.Dense, testY *mat.VecDense) TrialResult {
	failed := func(reason string) TrialResult {
		errors.Warn(errors.NewTrialFailureWarning(t.Family.Name, params.Key(), fold, reason))
		return TrialResult{Params: params, Fold: fold, RMSE: math.NaN(), R2: math.NaN(), Failed: true}
	}

	model, err := t.Family.New(params)
	if err != nil {
		return failed(err.Error())
	}

	err = errors.SafeExecute(fmt.Sprintf("%s fold %d fit", t.Family.Name, fold), func() error {
		return model.Fit(trainX, trainY)
	})
	if err != nil {
		return failed(err.Error())
	}

	pred, err := model.Predict(testX)
	if err != nil {
		return failed(err.Error())
	}
	predVec := columnVec(pred)

	rmse, err := metrics.RMSE(testY, predVec)
	if err != nil {
		return failed(err.Error())
	}
	r2, err := metrics.R2Score(testY, predVec)
	if err != nil {
		return failed(err.Error())
	}

	return TrialResult{Params: params, Fold: fold, RMSE: rmse, R2: r2}
}

// eliminate drops combinations whose running mean RMSE over the folds
// completed so far trails the leader by more than the racing margin.
// Combinations with any failed fold are dropped outright.
func (t *Tuner) eliminate(table *TrialTable, surviving []regressors.Params, foldsDone int) []regressors.Params {
	means := make(map[string]float64, len(surviving))
	best := math.Inf(1)
	for _, p := range surviving {
		mean, ok := runningMeanRMSE(table.Trials, p.Key(), foldsDone)
		if !ok {
			mean = math.Inf(1)
		}
		means[p.Key()] = mean
		if mean < best {
			best = mean
		}
	}
	if math.IsInf(best, 1) {
		return surviving
	}

	cutoff := best * (1 + t.Racing.Margin)
	kept := surviving[:0]
	eliminated := 0
	for _, p := range surviving {
		if means[p.Key()] <= cutoff {
			kept = append(kept, p)
		} else {
			eliminated++
		}
	}

	if eliminated > 0 {
		slog.Info("racing eliminated trailing combinations",
			slog.String(cropmllog.FamilyKey, t.Family.Name),
			slog.Int(cropmllog.FoldKey, foldsDone),
			slog.Int(cropmllog.EliminatedKey, eliminated),
			slog.Int(cropmllog.CombinationsKey, len(kept)))
	}
	return kept
}

func runningMeanRMSE(trials []TrialResult, key string, foldsDone int) (float64, bool) {
	sum, n := 0.0, 0
	for _, tr := range trials {
		if tr.Fold >= foldsDone || tr.Params.Key() != key {
			continue
		}
		if tr.Failed {
			return 0, false
		}
		sum += tr.RMSE
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// summarize reduces the trial rows to one summary per combination that
// survived to the final fold with every fold succeeded. Summaries come
// back sorted by parameter key so downstream selection is deterministic.
func summarize(family regressors.Family, trials []TrialResult, surviving []regressors.Params, nFolds int) []TrialSummary {
	byKey := make(map[string][]TrialResult)
	for _, tr := range trials {
		byKey[tr.Params.Key()] = append(byKey[tr.Params.Key()], tr)
	}

	summaries := make([]TrialSummary, 0, len(surviving))
	for _, p := range surviving {
		rows := byKey[p.Key()]
		if len(rows) != nFolds {
			continue
		}
		valid := true
		for _, row := range rows {
			if row.Failed {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}

		s := TrialSummary{Params: p, Folds: nFolds}
		if family.ComplexityOf != nil {
			s.Complexity = family.ComplexityOf(p)
		}
		for _, row := range rows {
			s.MeanRMSE += row.RMSE
			s.MeanR2 += row.R2
		}
		s.MeanRMSE /= float64(nFolds)
		s.MeanR2 /= float64(nFolds)

		if nFolds > 1 {
			var sqRMSE, sqR2 float64
			for _, row := range rows {
				sqRMSE += (row.RMSE - s.MeanRMSE) * (row.RMSE - s.MeanRMSE)
				sqR2 += (row.R2 - s.MeanR2) * (row.R2 - s.MeanR2)
			}
			nf := float64(nFolds)
			s.SERMSE = math.Sqrt(sqRMSE/(nf-1)) / math.Sqrt(nf)
			s.SER2 = math.Sqrt(sqR2/(nf-1)) / math.Sqrt(nf)
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(a, b int) bool {
		return summaries[a].Params.Key() < summaries[b].Params.Key()
	})
	return summaries
}

// columnVec views the first column of a prediction matrix as a vector.
func columnVec(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
