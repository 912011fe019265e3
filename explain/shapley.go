// Package explain computes Monte Carlo permutation Shapley attributions
// for a fitted regressor and projects them into importance rankings,
// beeswarm points, and waterfall decompositions.
package explain

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/core/parallel"
	"github.com/harvestlab/cropml/pkg/errors"
	cropmllog "github.com/harvestlab/cropml/pkg/log"
)

// Attribution holds per-observation, per-feature attributions. For every
// observation the attributions plus BaseValue reproduce the model's
// prediction exactly.
type Attribution struct {
	// Values is nObservations x nFeatures.
	Values       *mat.Dense
	BaseValue    float64
	FeatureNames []string
	// Features is the explained input, kept for value-colored projections.
	Features    *mat.Dense
	Predictions []float64
}

// Explainer runs the sampling. Background rows (normally the training
// split) supply the "feature absent" replacement values.
type Explainer struct {
	Model        model.Predictor
	Background   *mat.Dense
	FeatureNames []string
	Simulations  int // per observation; defaults to 100
	Seed         uint64
	Workers      int // <= 0 selects NumCPU
}

// NewExplainer creates an explainer with default simulation count.
func NewExplainer(m model.Predictor, background *mat.Dense, featureNames []string) *Explainer {
	return &Explainer{
		Model:        m,
		Background:   background,
		FeatureNames: featureNames,
		Simulations:  100,
		Seed:         42,
	}
}

// WithSimulations sets the Monte Carlo sample count per observation.
func (e *Explainer) WithSimulations(n int) *Explainer {
	e.Simulations = n
	return e
}

// WithSeed sets the sampling seed.
func (e *Explainer) WithSeed(seed uint64) *Explainer {
	e.Seed = seed
	return e
}

// Attribute explains every row of X. Observations fan out over the
// worker pool; row i draws from a PCG seeded with Seed+i, so results do
// not depend on scheduling.
func (e *Explainer) Attribute(X *mat.Dense) (*Attribution, error) {
	nObs, nFeatures := X.Dims()
	bgRows, bgCols := e.Background.Dims()

	if nObs == 0 || bgRows == 0 {
		return nil, errors.NewModelError("Explainer.Attribute", "empty data", errors.ErrEmptyData)
	}
	if bgCols != nFeatures {
		return nil, errors.NewDimensionError("Explainer.Attribute", bgCols, nFeatures, 1)
	}
	if len(e.FeatureNames) != nFeatures {
		return nil, errors.NewValueError("Explainer.Attribute", "feature name count does not match columns")
	}
	sims := e.Simulations
	if sims <= 0 {
		sims = 100
	}

	base, err := e.baseValue()
	if err != nil {
		return nil, err
	}

	preds, err := e.Model.Predict(X)
	if err != nil {
		return nil, err
	}
	predictions := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		predictions[i] = preds.At(i, 0)
	}

	slog.Info("computing attributions",
		slog.Int(cropmllog.SamplesKey, nObs),
		slog.Int(cropmllog.FeaturesKey, nFeatures),
		slog.Int("simulations", sims),
		slog.Uint64(cropmllog.SeedKey, e.Seed))

	values := mat.NewDense(nObs, nFeatures, nil)
	attrErrs := parallel.MapErr(nObs, e.Workers, func(i int) error {
		phi, err := e.attributeRow(X.RawRowView(i), sims, e.Seed+uint64(i))
		if err != nil {
			return err
		}

		// Efficiency correction: the Monte Carlo estimate leaves a small
		// residual between base+sum(phi) and the prediction. Spreading it
		// evenly keeps the decomposition exact without biasing the
		// ranking between features.
		sum := 0.0
		for _, v := range phi {
			sum += v
		}
		residual := (predictions[i] - base - sum) / float64(nFeatures)
		for j := 0; j < nFeatures; j++ {
			values.Set(i, j, phi[j]+residual)
		}
		return nil
	})
	for _, err := range attrErrs {
		if err != nil {
			return nil, errors.Wrap(err, "cropml: attribution failed")
		}
	}

	features := mat.NewDense(nObs, nFeatures, nil)
	features.Copy(X)

	return &Attribution{
		Values:       values,
		BaseValue:    base,
		FeatureNames: e.FeatureNames,
		Features:     features,
		Predictions:  predictions,
	}, nil
}

// baseValue is the mean model prediction over the background rows.
func (e *Explainer) baseValue() (float64, error) {
	pred, err := e.Model.Predict(e.Background)
	if err != nil {
		return 0, err
	}
	rows, _ := pred.Dims()
	sum := 0.0
	for i := 0; i < rows; i++ {
		sum += pred.At(i, 0)
	}
	return sum / float64(rows), nil
}

// attributeRow estimates one observation's raw Shapley values. Each
// simulation draws a feature permutation and a background row, then
// walks the permutation flipping features from background to observed
// values; the prediction delta at each flip is that feature's marginal
// contribution under this coalition ordering.
func (e *Explainer) attributeRow(x []float64, sims int, seed uint64) ([]float64, error) {
	nFeatures := len(x)
	bgRows, _ := e.Background.Dims()
	rng := rand.New(rand.NewPCG(seed, seed))

	phi := make([]float64, nFeatures)
	hybrid := make([]float64, nFeatures)

	// One batched predict per simulation: row 0 is the pure background
	// draw, row p+1 has the first p+1 permuted features flipped on.
	batch := mat.NewDense(nFeatures+1, nFeatures, nil)

	for s := 0; s < sims; s++ {
		perm := rng.Perm(nFeatures)
		bg := e.Background.RawRowView(rng.IntN(bgRows))

		copy(hybrid, bg)
		batch.SetRow(0, hybrid)
		for p, j := range perm {
			hybrid[j] = x[j]
			batch.SetRow(p+1, hybrid)
		}

		pred, err := e.Model.Predict(batch)
		if err != nil {
			return nil, err
		}
		for p, j := range perm {
			phi[j] += pred.At(p+1, 0) - pred.At(p, 0)
		}
	}

	for j := range phi {
		phi[j] /= float64(sims)
	}
	return phi, nil
}

// FeatureImportance is one row of the global ranking.
type FeatureImportance struct {
	Name    string
	MeanAbs float64
}

// Importance ranks features by mean absolute attribution, descending.
// Ties break on the feature name so the ranking is reproducible.
func (a *Attribution) Importance() []FeatureImportance {
	nObs, nFeatures := a.Values.Dims()
	out := make([]FeatureImportance, nFeatures)
	for j := 0; j < nFeatures; j++ {
		sum := 0.0
		for i := 0; i < nObs; i++ {
			sum += math.Abs(a.Values.At(i, j))
		}
		out[j] = FeatureImportance{Name: a.FeatureNames[j], MeanAbs: sum / float64(nObs)}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanAbs != out[j].MeanAbs {
			return out[i].MeanAbs > out[j].MeanAbs
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// WaterfallStep is one feature's contribution in a single observation's
// decomposition, ordered largest magnitude first.
type WaterfallStep struct {
	Name       string
	Value      float64 // the feature's input value
	Delta      float64 // its attribution
	Cumulative float64 // base value plus deltas so far
}

// Waterfall decomposes one observation's prediction. Walking the steps
// from BaseValue accumulates to the model's prediction exactly.
func (a *Attribution) Waterfall(obs int) ([]WaterfallStep, error) {
	nObs, nFeatures := a.Values.Dims()
	if obs < 0 || obs >= nObs {
		return nil, errors.NewValueError("Attribution.Waterfall", "observation index out of range")
	}

	order := make([]int, nFeatures)
	for j := range order {
		order[j] = j
	}
	sort.Slice(order, func(i, j int) bool {
		ai, aj := math.Abs(a.Values.At(obs, order[i])), math.Abs(a.Values.At(obs, order[j]))
		if ai != aj {
			return ai > aj
		}
		return a.FeatureNames[order[i]] < a.FeatureNames[order[j]]
	})

	steps := make([]WaterfallStep, nFeatures)
	running := a.BaseValue
	for rank, j := range order {
		running += a.Values.At(obs, j)
		steps[rank] = WaterfallStep{
			Name:       a.FeatureNames[j],
			Value:      a.Features.At(obs, j),
			Delta:      a.Values.At(obs, j),
			Cumulative: running,
		}
	}
	return steps, nil
}
