package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVTypesColumnsBySchema(t *testing.T) {
	csv := "temp,variety,yield\n20.5,koshihikari,41\n25,akitakomachi,16\n"

	table, err := ReadCSV(strings.NewReader(csv), Schema{Categorical: []string{"variety"}})
	require.NoError(t, err)

	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, []string{"temp", "variety", "yield"}, table.ColumnNames())

	variety, err := table.Column("variety")
	require.NoError(t, err)
	assert.Equal(t, Categorical, variety.Kind)
	assert.Equal(t, []string{"koshihikari", "akitakomachi"}, variety.Levels)

	temp, err := table.Column("temp")
	require.NoError(t, err)
	assert.Equal(t, Numeric, temp.Kind)
	assert.Equal(t, []float64{20.5, 25}, temp.Values)
}

func TestReadCSVRejectsNonNumericWithoutSchema(t *testing.T) {
	csv := "temp,variety\n20,koshihikari\n"

	_, err := ReadCSV(strings.NewReader(csv), Schema{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declare it categorical")
}

func TestReadCSVEmptyBody(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("temp,yield\n"), Schema{})
	assert.Error(t, err)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV("/nonexistent/fields.csv", Schema{})
	assert.Error(t, err)
}

func TestTableSelectCopiesRows(t *testing.T) {
	table, err := NewTable([]Column{
		{Name: "temp", Kind: Numeric, Values: []float64{1, 2, 3, 4}},
		{Name: "variety", Kind: Categorical, Levels: []string{"a", "b", "a", "b"}},
	})
	require.NoError(t, err)

	sub, err := table.Select([]int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NumRows())

	temp, err := sub.Column("temp")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, temp.Values)

	// Mutating the subset must not reach back into the source.
	temp.Values[0] = 99
	orig, err := table.Column("temp")
	require.NoError(t, err)
	assert.Equal(t, 1.0, orig.Values[0])
}

func TestTableSelectOutOfRange(t *testing.T) {
	table, err := NewTable([]Column{{Name: "x", Kind: Numeric, Values: []float64{1, 2}}})
	require.NoError(t, err)

	_, err = table.Select([]int{5})
	assert.Error(t, err)
}

func TestTableDrop(t *testing.T) {
	table, err := NewTable([]Column{
		{Name: "temp", Kind: Numeric, Values: []float64{1, 2}},
		{Name: "block", Kind: Categorical, Levels: []string{"x", "y"}},
	})
	require.NoError(t, err)

	dropped, err := table.Drop("block")
	require.NoError(t, err)
	assert.False(t, dropped.HasColumn("block"))
	assert.True(t, table.HasColumn("block"), "source table is immutable")
}

func TestTargetVectorRequiresNumeric(t *testing.T) {
	table, err := NewTable([]Column{
		{Name: "yield", Kind: Numeric, Values: []float64{10, 20}},
		{Name: "variety", Kind: Categorical, Levels: []string{"a", "b"}},
	})
	require.NoError(t, err)

	y, err := table.TargetVector("yield")
	require.NoError(t, err)
	assert.Equal(t, 2, y.Len())
	assert.Equal(t, 10.0, y.AtVec(0))

	_, err = table.TargetVector("variety")
	assert.Error(t, err)

	_, err = table.TargetVector("missing")
	assert.Error(t, err)
}

func TestNewTableRejectsRaggedAndDuplicateColumns(t *testing.T) {
	_, err := NewTable([]Column{
		{Name: "a", Kind: Numeric, Values: []float64{1, 2}},
		{Name: "b", Kind: Numeric, Values: []float64{1}},
	})
	assert.Error(t, err)

	_, err = NewTable([]Column{
		{Name: "a", Kind: Numeric, Values: []float64{1}},
		{Name: "a", Kind: Numeric, Values: []float64{2}},
	})
	assert.Error(t, err)
}
