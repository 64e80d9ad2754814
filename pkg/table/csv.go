package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes the table with a header row of column names
func WriteCSV(w io.Writer, t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}

	row := make([]string, len(t.Columns))
	for r := 0; r < t.NumRows(); r++ {
		for i, c := range t.Columns {
			row[i] = strconv.FormatFloat(c.Values[r], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv write row %d: %w", r, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV
func ReadCSV(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("csv table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("csv read header: %w", err)
	}

	t := New(name)
	for _, h := range header {
		if t.Column(h) != nil {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		t.EnsureColumn(h)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read row: %w", err)
		}
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[i], err)
			}
			t.Columns[i].Values = append(t.Columns[i].Values, v)
		}
	}
	return t, nil
}
