package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlab/cropml/pkg/errors"
)

func TestParallelizeCoversFullRange(t *testing.T) {
	var total int64
	Parallelize(1000, func(start, end int) {
		atomic.AddInt64(&total, int64(end-start))
	})
	assert.Equal(t, int64(1000), total)
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThresholdSequentialBelow(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls, "below threshold must run as one sequential chunk")
}

func TestMapErrRunsEveryIndexOnce(t *testing.T) {
	hits := make([]int64, 50)
	errs := MapErr(50, 4, func(i int) error {
		atomic.AddInt64(&hits[i], 1)
		return nil
	})

	require.Len(t, errs, 50)
	for i, h := range hits {
		assert.Equal(t, int64(1), h, "index %d", i)
		assert.NoError(t, errs[i])
	}
}

func TestMapErrAlignsErrorsWithIndices(t *testing.T) {
	errs := MapErr(10, 3, func(i int) error {
		if i%3 == 0 {
			return errors.Newf("item %d failed", i)
		}
		return nil
	})

	for i, err := range errs {
		if i%3 == 0 {
			assert.Error(t, err, "index %d", i)
		} else {
			assert.NoError(t, err, "index %d", i)
		}
	}
}

func TestMapErrFailedItemDoesNotAbortSiblings(t *testing.T) {
	var completed int64
	errs := MapErr(20, 2, func(i int) error {
		if i == 0 {
			return errors.New("first item failed")
		}
		atomic.AddInt64(&completed, 1)
		return nil
	})

	assert.Error(t, errs[0])
	assert.Equal(t, int64(19), completed)
}

func TestMapErrZeroItems(t *testing.T) {
	errs := MapErr(0, 4, func(i int) error { return nil })
	assert.Empty(t, errs)
}
