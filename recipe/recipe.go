// Package recipe implements fit-on-train, apply-anywhere preprocessing.
//
// A Recipe is a declarative list of steps (drop columns, one-hot encode,
// variance and correlation filters, standardize). Fit derives every step
// parameter from the training rows only; Transform is a pure function of
// those fitted parameters, so applying the same Recipe to Train and Test
// can never leak Test information into the features.
package recipe

import (
	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/dataset"
	"github.com/harvestlab/cropml/pkg/errors"
)

// UnseenPolicy decides what Transform does when a categorical level was not
// in the vocabulary learned during Fit.
type UnseenPolicy int

const (
	// UnseenError fails fast with an UnseenCategoryError. This is the
	// default: a variety name that never occurred in Train usually means a
	// data problem, not a new variety.
	UnseenError UnseenPolicy = iota
	// UnseenIgnore encodes the row as all-zeros across the feature's
	// indicator columns (a designated "unseen" bucket).
	UnseenIgnore
)

type step interface {
	name() string
	// fit learns the step's parameters from the (already partially
	// transformed) training table and returns the transformed table that
	// downstream steps fit on.
	fit(t *dataset.Table) (*dataset.Table, error)
	// apply transforms any table using the fitted parameters only.
	apply(t *dataset.Table) (*dataset.Table, error)
}

// Recipe is a fitted, reusable preprocessing transformation.
type Recipe struct {
	model.BaseEstimator

	target string
	steps  []step

	// fitted output schema, recorded for dimension checks
	featureNames []string
}

// New creates an empty Recipe for the given target column. The target is
// always excluded from the predictor matrix.
func New(target string) *Recipe {
	return &Recipe{target: target}
}

// RemoveColumns appends a step dropping identifier columns (plot IDs, row
// numbers) before encoding.
func (r *Recipe) RemoveColumns(names ...string) *Recipe {
	r.steps = append(r.steps, &removeStep{columns: names})
	return r
}

// OneHot appends a step replacing every categorical column with indicator
// columns, one per level seen during Fit.
func (r *Recipe) OneHot(policy UnseenPolicy) *Recipe {
	r.steps = append(r.steps, &oneHotStep{policy: policy})
	return r
}

// DropZeroVariance appends a step removing numeric columns whose training
// variance is (numerically) zero.
func (r *Recipe) DropZeroVariance() *Recipe {
	r.steps = append(r.steps, &zeroVarStep{})
	return r
}

// DropCorrelated appends a step removing numeric columns until no pair has
// absolute Pearson correlation above threshold on the training rows.
func (r *Recipe) DropCorrelated(threshold float64) *Recipe {
	r.steps = append(r.steps, &corrStep{threshold: threshold})
	return r
}

// Standardize appends a step centering and scaling every numeric column to
// training mean 0 and standard deviation 1.
func (r *Recipe) Standardize() *Recipe {
	r.steps = append(r.steps, &standardizeStep{})
	return r
}

// Fit learns all step parameters from the training table, in step order.
// Each step fits on the output of the previous one.
func (r *Recipe) Fit(train *dataset.Table) error {
	if train == nil || train.NumRows() == 0 {
		return errors.NewModelError("Recipe.Fit", "empty data", errors.ErrEmptyData)
	}

	cur, err := dropIfPresent(train, r.target)
	if err != nil {
		return err
	}

	for _, s := range r.steps {
		cur, err = s.fit(cur)
		if err != nil {
			return errors.Wrapf(err, "recipe: fit step %s", s.name())
		}
	}

	names, err := numericNames(cur)
	if err != nil {
		return err
	}
	r.featureNames = names

	r.SetFitted()
	return nil
}

// Transform applies the fitted steps to any table with the training schema
// and returns the predictor matrix plus feature names. The target column is
// dropped if present, so the same call serves Train, Test and
// prediction-only tables.
func (r *Recipe) Transform(t *dataset.Table) (*mat.Dense, []string, error) {
	if !r.IsFitted() {
		return nil, nil, errors.NewNotFittedError("Recipe", "Transform")
	}

	cur, err := dropIfPresent(t, r.target)
	if err != nil {
		return nil, nil, err
	}

	for _, s := range r.steps {
		cur, err = s.apply(cur)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "recipe: apply step %s", s.name())
		}
	}

	names, err := numericNames(cur)
	if err != nil {
		return nil, nil, err
	}
	if len(names) != len(r.featureNames) {
		return nil, nil, errors.NewDimensionError("Recipe.Transform", len(r.featureNames), len(names), 1)
	}

	X := mat.NewDense(cur.NumRows(), len(names), nil)
	for j, name := range names {
		col, err := cur.Column(name)
		if err != nil {
			return nil, nil, err
		}
		for i, v := range col.Values {
			X.Set(i, j, v)
		}
	}
	return X, names, nil
}

// FitTransform fits on the training table and returns its transformed
// predictors.
func (r *Recipe) FitTransform(train *dataset.Table) (*mat.Dense, []string, error) {
	if err := r.Fit(train); err != nil {
		return nil, nil, err
	}
	return r.Transform(train)
}

// FeatureNames returns the fitted output schema.
func (r *Recipe) FeatureNames() ([]string, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Recipe", "FeatureNames")
	}
	out := make([]string, len(r.featureNames))
	copy(out, r.featureNames)
	return out, nil
}

func dropIfPresent(t *dataset.Table, name string) (*dataset.Table, error) {
	if name == "" || !t.HasColumn(name) {
		return t, nil
	}
	return t.Drop(name)
}

// numericNames returns the column names of t, requiring every column to be
// numeric (i.e. categorical columns must already be encoded).
func numericNames(t *dataset.Table) ([]string, error) {
	names := t.ColumnNames()
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		if c.Kind == dataset.Categorical {
			return nil, errors.NewValidationError("column",
				"categorical column survived preprocessing; add an OneHot step", n)
		}
	}
	return names, nil
}
