package centerline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"centerlinemetrics/internal/models"
)

// ReadCSV reads a centerline from CSV with a header row naming the columns
// x, y, z and radius (case-insensitive, in any order). Extra columns are
// ignored. radiusColumn overrides the radius column name when non-empty.
func ReadCSV(r io.Reader, radiusColumn string) (*models.CenterlineSample, error) {
	if radiusColumn == "" {
		radiusColumn = DefaultRadiusArray
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	idx := map[string]int{"x": -1, "y": -1, "z": -1, "radius": -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.EqualFold(name, radiusColumn):
			name = "radius"
		case name == "radius":
			// a custom radius column shadows the default one
			continue
		}
		if _, ok := idx[name]; ok {
			idx[name] = i
		}
	}
	for _, col := range []string{"x", "y", "z"} {
		if idx[col] < 0 {
			return nil, fmt.Errorf("csv header missing column %q", col)
		}
	}
	if idx["radius"] < 0 {
		return nil, fmt.Errorf("%w: csv header missing column %q", ErrMissingRadius, radiusColumn)
	}

	sample := &models.CenterlineSample{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		var p models.Point
		for axis, col := range []string{"x", "y", "z"} {
			v, err := parseField(rec, idx[col])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, col, err)
			}
			p[axis] = v
		}
		radius, err := parseField(rec, idx["radius"])
		if err != nil {
			return nil, fmt.Errorf("line %d column radius: %w", line, err)
		}

		sample.Points = append(sample.Points, p)
		sample.Radii = append(sample.Radii, radius)
	}

	return sample, nil
}

func parseField(rec []string, i int) (float64, error) {
	if i >= len(rec) {
		return 0, errors.New("missing value")
	}
	return strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
}

// Load reads a centerline from path, choosing the parser by extension
// (.vtk or .csv). The sample is named after the file.
func Load(path, radiusArray string) (*models.CenterlineSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open centerline: %w", err)
	}
	defer f.Close()

	var sample *models.CenterlineSample
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".vtk":
		sample, err = ReadVTK(f, radiusArray)
	case ".csv":
		sample, err = ReadCSV(f, radiusArray)
	default:
		return nil, fmt.Errorf("unsupported centerline file extension %q (expected .vtk or .csv)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	sample.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return sample, nil
}
