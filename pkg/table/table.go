// Package table holds centerline metrics as named numeric columns and
// persists them as CSV, Apache Arrow IPC files or SQLite runs.
package table

import (
	"fmt"

	"centerlinemetrics/internal/models"
)

// Default column names
const (
	DistanceColumn = "Distance"
	DiameterColumn = "Diameter"
)

// Column is a named series of float64 values
type Column struct {
	Name   string
	Values []float64
}

// Table is an ordered set of equal length columns
type Table struct {
	Name    string
	Columns []*Column
}

// New creates an empty table
func New(name string) *Table {
	return &Table{Name: name}
}

// FromResult builds a two column table from a MetricsResult. Empty column
// names fall back to DistanceColumn and DiameterColumn.
func FromResult(name string, result *models.MetricsResult, distanceCol, diameterCol string) (*Table, error) {
	if result == nil {
		return nil, fmt.Errorf("nil metrics result")
	}
	if len(result.Distance) != len(result.Diameter) {
		return nil, fmt.Errorf("distance has %d rows but diameter has %d", len(result.Distance), len(result.Diameter))
	}
	if distanceCol == "" {
		distanceCol = DistanceColumn
	}
	if diameterCol == "" {
		diameterCol = DiameterColumn
	}
	if distanceCol == diameterCol {
		return nil, fmt.Errorf("distance and diameter columns share the name %q", distanceCol)
	}

	t := New(name)
	t.EnsureColumn(distanceCol).Values = append([]float64(nil), result.Distance...)
	t.EnsureColumn(diameterCol).Values = append([]float64(nil), result.Diameter...)
	return t, nil
}

// Column returns the column called name, or nil
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// EnsureColumn returns the column called name, appending an empty one if
// the table has none.
func (t *Table) EnsureColumn(name string) *Column {
	if c := t.Column(name); c != nil {
		return c
	}
	c := &Column{Name: name}
	t.Columns = append(t.Columns, c)
	return c
}

// NumRows returns the length of the longest column
func (t *Table) NumRows() int {
	n := 0
	for _, c := range t.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// Validate checks that every column has the same length and a unique name
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	rows := -1
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if rows >= 0 && len(c.Values) != rows {
			return fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), rows)
		}
		rows = len(c.Values)
	}
	return nil
}

// XY returns the values of two columns for plotting
func (t *Table) XY(xName, yName string) (xs, ys []float64, err error) {
	x := t.Column(xName)
	if x == nil {
		return nil, nil, fmt.Errorf("table %q has no column %q", t.Name, xName)
	}
	y := t.Column(yName)
	if y == nil {
		return nil, nil, fmt.Errorf("table %q has no column %q", t.Name, yName)
	}
	if len(x.Values) != len(y.Values) {
		return nil, nil, fmt.Errorf("columns %q and %q differ in length", xName, yName)
	}
	return x.Values, y.Values, nil
}
