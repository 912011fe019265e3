// Package dataset provides the column-typed in-memory table the pipeline
// runs on: CSV loading, categorical/numeric column handling, and the seeded
// stratified train/test split.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/pkg/errors"
)

// ColumnKind distinguishes numeric predictors from categorical ones.
type ColumnKind int

const (
	// Numeric columns hold float64 values
	Numeric ColumnKind = iota
	// Categorical columns hold string levels
	Categorical
)

// Column is one named column of a Table. Exactly one of Values/Levels is
// populated, according to Kind.
type Column struct {
	Name   string
	Kind   ColumnKind
	Values []float64 // Kind == Numeric
	Levels []string  // Kind == Categorical
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Levels)
	}
	return len(c.Values)
}

// Table is an ordered collection of rows sharing a fixed schema. Tables are
// treated as immutable once built; subsetting operations return new Tables
// sharing no mutable state with the source.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// NewTable builds a Table from columns. All columns must be non-empty and
// share the same length.
func NewTable(cols []Column) (*Table, error) {
	if len(cols) == 0 {
		return nil, errors.NewModelError("dataset.NewTable", "no columns", errors.ErrEmptyData)
	}

	rows := cols[0].Len()
	if rows == 0 {
		return nil, errors.NewModelError("dataset.NewTable", "no rows", errors.ErrEmptyData)
	}

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Len() != rows {
			return nil, errors.NewDimensionError("dataset.NewTable", rows, c.Len(), 0)
		}
		if _, dup := index[c.Name]; dup {
			return nil, errors.NewValidationError("columns", "duplicate column name", c.Name)
		}
		index[c.Name] = i
	}

	return &Table{cols: cols, index: index, rows: rows}, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnNames returns the column names in schema order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "no such column", name)
	}
	return &t.cols[i], nil
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Select returns a new Table containing the given rows, in order. Indices
// may repeat; each must be in range.
func (t *Table) Select(indices []int) (*Table, error) {
	if len(indices) == 0 {
		return nil, errors.NewModelError("dataset.Select", "empty index set", errors.ErrEmptyData)
	}

	cols := make([]Column, len(t.cols))
	for ci, c := range t.cols {
		nc := Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Categorical {
			nc.Levels = make([]string, len(indices))
			for ri, idx := range indices {
				if idx < 0 || idx >= t.rows {
					return nil, errors.NewValueError("dataset.Select", "row index out of range")
				}
				nc.Levels[ri] = c.Levels[idx]
			}
		} else {
			nc.Values = make([]float64, len(indices))
			for ri, idx := range indices {
				if idx < 0 || idx >= t.rows {
					return nil, errors.NewValueError("dataset.Select", "row index out of range")
				}
				nc.Values[ri] = c.Values[idx]
			}
		}
		cols[ci] = nc
	}

	return NewTable(cols)
}

// Drop returns a new Table without the named columns. Unknown names are
// ignored so recipes can share step lists across schemas.
func (t *Table) Drop(names ...string) (*Table, error) {
	dropped := make(map[string]bool, len(names))
	for _, n := range names {
		dropped[n] = true
	}

	kept := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !dropped[c.Name] {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil, errors.NewValueError("dataset.Drop", "all columns dropped")
	}
	return NewTable(kept)
}

// TargetVector extracts a numeric column as a column vector, the shape the
// model families consume.
func (t *Table) TargetVector(name string) (*mat.VecDense, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, errors.NewValidationError("target", "target column must be numeric", name)
	}
	v := mat.NewVecDense(t.rows, nil)
	for i, x := range c.Values {
		v.SetVec(i, x)
	}
	return v, nil
}
