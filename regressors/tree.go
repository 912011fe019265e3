package regressors

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/core/model"
	"github.com/harvestlab/cropml/pkg/errors"
)

// DecisionTreeRegressor is a CART regression tree. Splits are chosen by
// exhaustive scan over sorted feature values, picking the threshold that
// minimizes the weighted sum of squared errors of the two children.
//
// MaxFeatures and Seed exist so random forests can grow decorrelated
// trees; a standalone tree leaves them at their zero values and
// considers every feature at every split.
type DecisionTreeRegressor struct {
	model.BaseEstimator
	MaxDepth       int // <= 0 means unlimited
	MinSamplesLeaf int
	MaxFeatures    int // <= 0 means all features
	Seed           uint64

	root      *treeNode
	nFeatures int
	rng       *rand.Rand
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// NewDecisionTreeRegressor creates a regression tree.
func NewDecisionTreeRegressor(maxDepth, minSamplesLeaf int) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{MaxDepth: maxDepth, MinSamplesLeaf: minSamplesLeaf}
}

func init() {
	Register(Family{
		Name:       "cart",
		Complexity: "max_depth",
		ComplexityOf: func(p Params) float64 {
			return float64(p.GetInt("max_depth", 6))
		},
		New: func(p Params) (model.Regressor, error) {
			depth := p.GetInt("max_depth", 6)
			leaf := p.GetInt("min_samples_leaf", 5)
			if depth < 1 {
				return nil, errors.NewValidationError("max_depth", "must be at least 1", depth)
			}
			if leaf < 1 {
				return nil, errors.NewValidationError("min_samples_leaf", "must be at least 1", leaf)
			}
			return NewDecisionTreeRegressor(depth, leaf), nil
		},
		DefaultGrid: map[string][]float64{
			"max_depth":        {2, 4, 6, 8, 10},
			"min_samples_leaf": {1, 5, 10},
		},
	})
}

// Fit grows the tree on X, y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "y must be a column vector")
	}
	if dt.MinSamplesLeaf < 1 {
		dt.MinSamplesLeaf = 1
	}

	dt.nFeatures = c
	if dt.MaxFeatures > 0 && dt.MaxFeatures < c {
		dt.rng = rand.New(rand.NewPCG(dt.Seed, dt.Seed))
	}

	targets := make([]float64, r)
	for i := 0; i < r; i++ {
		targets[i] = y.At(i, 0)
	}
	indices := make([]int, r)
	for i := range indices {
		indices[i] = i
	}

	dt.root = dt.grow(X, targets, indices, 1)
	dt.SetFitted()
	return nil
}

func (dt *DecisionTreeRegressor) grow(X mat.Matrix, y []float64, indices []int, depth int) *treeNode {
	mean := 0.0
	for _, i := range indices {
		mean += y[i]
	}
	mean /= float64(len(indices))

	if (dt.MaxDepth > 0 && depth > dt.MaxDepth) || len(indices) < 2*dt.MinSamplesLeaf {
		return &treeNode{leaf: true, value: mean}
	}

	feature, threshold, ok := dt.bestSplit(X, y, indices)
	if !ok {
		return &treeNode{leaf: true, value: mean}
	}

	var left, right []int
	for _, i := range indices {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      dt.grow(X, y, left, depth+1),
		right:     dt.grow(X, y, right, depth+1),
	}
}

// bestSplit scans candidate features for the threshold minimizing the
// children's weighted SSE. Returns ok=false when no split satisfies
// MinSamplesLeaf or all candidate columns are constant.
func (dt *DecisionTreeRegressor) bestSplit(X mat.Matrix, y []float64, indices []int) (int, float64, bool) {
	candidates := dt.candidateFeatures()

	bestSSE := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, len(indices))
	for _, f := range candidates {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool { return X.At(order[a], f) < X.At(order[b], f) })

		// Running sums from the left so each candidate threshold is O(1).
		leftSum, leftSq := 0.0, 0.0
		totalSum, totalSq := 0.0, 0.0
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}
		n := len(order)

		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			nl := pos + 1
			nr := n - nl
			if nl < dt.MinSamplesLeaf || nr < dt.MinSamplesLeaf {
				continue
			}
			cur, next := X.At(i, f), X.At(order[pos+1], f)
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) +
				(rightSq - rightSum*rightSum/float64(nr))

			if bestFeature < 0 || sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func (dt *DecisionTreeRegressor) candidateFeatures() []int {
	if dt.rng == nil || dt.MaxFeatures <= 0 || dt.MaxFeatures >= dt.nFeatures {
		all := make([]int, dt.nFeatures)
		for j := range all {
			all[j] = j
		}
		return all
	}
	perm := dt.rng.Perm(dt.nFeatures)
	subset := perm[:dt.MaxFeatures]
	sort.Ints(subset)
	return subset
}

// Predict routes each row down the tree to its leaf mean.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}

	r, c := X.Dims()
	if c != dt.nFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", dt.nFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		node := dt.root
		for !node.leaf {
			if X.At(i, node.feature) <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		predictions.Set(i, 0, node.value)
	}
	return predictions, nil
}

// Depth returns the height of the fitted tree.
func (dt *DecisionTreeRegressor) Depth() int {
	return nodeDepth(dt.root)
}

func nodeDepth(n *treeNode) int {
	if n == nil || n.leaf {
		return 0
	}
	l, r := nodeDepth(n.left), nodeDepth(n.right)
	if l > r {
		return l + 1
	}
	return r + 1
}

// Score returns the coefficient of determination R² on X, y.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2Of(y, pred)
}
