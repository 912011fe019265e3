package regressors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlab/cropml/pkg/errors"
)

func TestRegistryContainsAllFamilies(t *testing.T) {
	for _, name := range []string{"linear", "ridge", "lasso", "elasticnet", "knn", "cart", "forest", "gbrt"} {
		fam, err := Lookup(name)
		require.NoError(t, err, "family %s should be registered", name)
		assert.Equal(t, name, fam.Name)
		assert.NotNil(t, fam.New)
	}
}

func TestLookupUnknownFamily(t *testing.T) {
	_, err := Lookup("perceptron")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownFamily))
}

func TestParamsKeyCanonical(t *testing.T) {
	a := Params{"trees": 100, "max_depth": 4}
	b := Params{"max_depth": 4, "trees": 100}

	assert.Equal(t, a.Key(), b.Key(), "key must not depend on map iteration order")
	assert.NotEqual(t, a.Key(), Params{"trees": 200, "max_depth": 4}.Key())
}

func TestParamsCloneIsIndependent(t *testing.T) {
	a := Params{"lambda": 1.0}
	b := a.Clone()
	b["lambda"] = 2.0

	assert.Equal(t, 1.0, a.Get("lambda", 0))
	assert.Equal(t, 2.0, b.Get("lambda", 0))
}

func TestFamilyNewValidatesParams(t *testing.T) {
	tests := []struct {
		family string
		params Params
	}{
		{"ridge", Params{"lambda": -1}},
		{"lasso", Params{"alpha": -0.5}},
		{"elasticnet", Params{"alpha": 1, "l1_ratio": 1.5}},
		{"knn", Params{"neighbors": 0}},
		{"cart", Params{"max_depth": 0}},
		{"forest", Params{"trees": 0}},
		{"gbrt", Params{"learning_rate": 0}},
	}

	for _, tt := range tests {
		fam, err := Lookup(tt.family)
		require.NoError(t, err)
		_, err = fam.New(tt.params)
		assert.Error(t, err, "%s should reject %v", tt.family, tt.params)
	}
}

func TestComplexityOrdering(t *testing.T) {
	ridge, err := Lookup("ridge")
	require.NoError(t, err)
	assert.Greater(t, ridge.ComplexityOf(Params{"lambda": 0.01}), ridge.ComplexityOf(Params{"lambda": 100.0}),
		"weaker penalty means higher capacity")

	knn, err := Lookup("knn")
	require.NoError(t, err)
	assert.Greater(t, knn.ComplexityOf(Params{"neighbors": 3}), knn.ComplexityOf(Params{"neighbors": 15}))

	forest, err := Lookup("forest")
	require.NoError(t, err)
	assert.Greater(t, forest.ComplexityOf(Params{"trees": 200}), forest.ComplexityOf(Params{"trees": 50}))
}
