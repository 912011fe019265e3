package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/harvestlab/cropml/pkg/errors"
)

// Schema declares how CSV columns are typed. Columns named in Categorical
// are kept as string levels; every other column is parsed as float64.
// No further validation happens here: wrong shapes surface later as typed
// failures during preprocessing or fitting.
type Schema struct {
	// Categorical names the columns to keep as string levels
	// (e.g. variety, sowing date category, year, block).
	Categorical []string
}

// LoadCSV reads a headered CSV file into a Table.
func LoadCSV(path string, schema Schema) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f, schema)
}

// ReadCSV reads headered CSV data into a Table.
func ReadCSV(r io.Reader, schema Schema) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "dataset: read header")
	}

	catSet := make(map[string]bool, len(schema.Categorical))
	for _, name := range schema.Categorical {
		catSet[name] = true
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{Name: name}
		if catSet[name] {
			cols[i].Kind = Categorical
		}
	}

	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "dataset: read row %d", row+1)
		}

		for i, field := range record {
			if cols[i].Kind == Categorical {
				cols[i].Levels = append(cols[i].Levels, field)
				continue
			}
			v, perr := strconv.ParseFloat(field, 64)
			if perr != nil {
				return nil, errors.Wrapf(perr,
					"dataset: row %d column %s: not numeric (declare it categorical?)", row+1, cols[i].Name)
			}
			cols[i].Values = append(cols[i].Values, v)
		}
		row++
	}

	if row == 0 {
		return nil, errors.NewModelError("dataset.ReadCSV", "no data rows", errors.ErrEmptyData)
	}

	return NewTable(cols)
}
