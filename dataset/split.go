package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/harvestlab/cropml/pkg/errors"
)

// Split holds the result of a train/test partition. Membership is fixed once
// sampled: the index sets are disjoint and their union covers the source
// table.
type Split struct {
	Train        *Table
	Test         *Table
	TrainIndices []int
	TestIndices  []int
}

// SplitOptions configures StratifiedSplit.
type SplitOptions struct {
	// Fraction is the share of rows assigned to Train, in (0, 1).
	Fraction float64
	// Bins is the number of quantile bins the continuous target is cut into
	// for stratification. Values below 2 select the default of 4.
	Bins int
	// Seed drives the per-bin shuffle. The same seed reproduces the split.
	Seed int
}

// StratifiedSplit partitions the table into Train and Test so the target
// distribution is approximately matched between the two sides. The
// continuous target is quantile-binned and rows are sampled per bin with a
// seeded generator.
func StratifiedSplit(t *Table, target string, opts SplitOptions) (*Split, error) {
	if opts.Fraction <= 0 || opts.Fraction >= 1 {
		return nil, errors.NewValidationError("fraction", "must be in (0, 1)", opts.Fraction)
	}
	bins := opts.Bins
	if bins < 2 {
		bins = 4
	}

	y, err := t.TargetVector(target)
	if err != nil {
		return nil, err
	}
	n := y.Len()

	// Quantile edges from the sorted target. Empirical quantiles keep the
	// bins balanced even for skewed yields.
	sorted := make([]float64, n)
	copy(sorted, y.RawVector().Data)
	sort.Float64s(sorted)

	edges := make([]float64, bins-1)
	for k := 1; k < bins; k++ {
		edges[k-1] = stat.Quantile(float64(k)/float64(bins), stat.Empirical, sorted, nil)
	}

	binOf := func(v float64) int {
		b := 0
		for _, e := range edges {
			if v > e {
				b++
			}
		}
		return b
	}

	byBin := make([][]int, bins)
	for i := 0; i < n; i++ {
		b := binOf(y.AtVec(i))
		byBin[b] = append(byBin[b], i)
	}

	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)))

	var trainIdx, testIdx []int
	for _, members := range byBin {
		if len(members) == 0 {
			continue
		}
		shuffled := make([]int, len(members))
		copy(shuffled, members)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		nTrain := int(math.Round(opts.Fraction * float64(len(shuffled))))
		if nTrain > len(shuffled) {
			nTrain = len(shuffled)
		}
		trainIdx = append(trainIdx, shuffled[:nTrain]...)
		testIdx = append(testIdx, shuffled[nTrain:]...)
	}

	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, errors.NewValueError("dataset.StratifiedSplit",
			"requested fraction yields an empty train or test subset")
	}

	// Row order within each side is kept stable so the split is fully
	// determined by the seed.
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	train, err := t.Select(trainIdx)
	if err != nil {
		return nil, err
	}
	test, err := t.Select(testIdx)
	if err != nil {
		return nil, err
	}

	return &Split{
		Train:        train,
		Test:         test,
		TrainIndices: trainIdx,
		TestIndices:  testIdx,
	}, nil
}
