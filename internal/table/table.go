// Package table provides immutable in-memory expression tables and the loaders
// that read them from delimited text and spreadsheet files.
package table

import (
	"fmt"
	"math"
	"slices"
)

// Table is a row-per-gene, column-per-sample numeric table.
// Missing values are stored as NaN. A Table is never modified after construction;
// operations that change shape return a new Table.
type Table struct {
	name    string
	columns []string
	colIdx  map[string]int
	ids     []string
	values  [][]float64
}

// New creates a table from row IDs and row-major values.
// The inputs are copied, so callers may reuse their slices.
func New(name string, columns []string, ids []string, values [][]float64) (*Table, error) {
	if len(ids) != len(values) {
		return nil, fmt.Errorf("table %s: %d ids for %d rows", name, len(ids), len(values))
	}

	colIdx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := colIdx[c]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %q", name, c)
		}
		colIdx[c] = i
	}

	rows := make([][]float64, len(values))
	for i, row := range values {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("table %s: row %s has %d values, expected %d", name, ids[i], len(row), len(columns))
		}
		rows[i] = slices.Clone(row)
	}

	return &Table{
		name:    name,
		columns: slices.Clone(columns),
		colIdx:  colIdx,
		ids:     slices.Clone(ids),
		values:  rows,
	}, nil
}

// Name returns the dataset name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the sample column names.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.ids) }

// ID returns the gene identifier of row i.
func (t *Table) ID(i int) string { return t.ids[i] }

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIdx[name]
	return ok
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.colIdx[name]; ok {
		return i
	}
	return -1
}

// Value returns the value at row i for the named column.
// ok is false when the column does not exist or the value is missing.
func (t *Table) Value(i int, column string) (v float64, ok bool) {
	j, found := t.colIdx[column]
	if !found {
		return 0, false
	}
	v = t.values[i][j]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 {
	return slices.Clone(t.values[i])
}

// WithIDs returns a new table built from the rows selected by index, with their IDs
// replaced. It is used to re-key a table without touching the receiver.
func (t *Table) WithIDs(rows []int, ids []string) (*Table, error) {
	if len(rows) != len(ids) {
		return nil, fmt.Errorf("table %s: %d rows selected for %d ids", t.name, len(rows), len(ids))
	}
	values := make([][]float64, len(rows))
	for k, i := range rows {
		values[k] = t.values[i]
	}
	return New(t.name, t.columns, ids, values)
}
