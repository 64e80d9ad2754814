package interpolation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"centerlinemetrics/internal/models"
	"centerlinemetrics/pkg/metrics"
)

// MaxResampleRows bounds the rows Resample may produce, closing row included
const MaxResampleRows = 1 << 20

// Series is a piecewise-linear diameter profile over a non-decreasing distance.
// Rows that repeat a distance keep the first diameter seen.
type Series struct {
	pl   interp.PiecewiseLinear
	x    []float64
	y    []float64
	flat bool
}

// NewSeries fits the diameter profile of result. The distances must not decrease,
// which holds for cumulative results; projected ones are checked row by row.
func NewSeries(result *models.MetricsResult) (*Series, error) {
	if result == nil || len(result.Distance) == 0 {
		return nil, fmt.Errorf("%w: empty metrics result", metrics.ErrInvalidInput)
	}
	if len(result.Distance) != len(result.Diameter) {
		return nil, fmt.Errorf("%w: %d distances but %d diameters",
			metrics.ErrInvalidInput, len(result.Distance), len(result.Diameter))
	}

	s := &Series{
		x: []float64{result.Distance[0]},
		y: []float64{result.Diameter[0]},
	}
	for i := 1; i < len(result.Distance); i++ {
		d := result.Distance[i]
		last := s.x[len(s.x)-1]
		switch {
		case d < last:
			return nil, fmt.Errorf("%w: distance decreases at row %d (%g < %g)",
				metrics.ErrInvalidInput, i, d, last)
		case d == last:
			continue
		}
		s.x = append(s.x, d)
		s.y = append(s.y, result.Diameter[i])
	}

	// A single distinct distance cannot be fitted
	if len(s.x) < 2 {
		s.flat = true
		return s, nil
	}
	if err := s.pl.Fit(s.x, s.y); err != nil {
		return nil, err
	}
	return s, nil
}

// Span returns the first and last distance of the series
func (s *Series) Span() (float64, float64) {
	return s.x[0], s.x[len(s.x)-1]
}

// DiameterAt returns the interpolated diameter at distance d, clamped to the end values
func (s *Series) DiameterAt(d float64) float64 {
	if s.flat {
		return s.y[0]
	}
	return s.pl.Predict(d)
}

// Resample returns the profile at evenly spaced distances, starting at the first
// distance and always ending at the last one
func (s *Series) Resample(step float64) (*models.MetricsResult, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: resample step must be positive, got %g", metrics.ErrInvalidInput, step)
	}

	start, end := s.Span()
	rows := math.Floor((end-start)/step) + 1
	if math.IsInf(rows, 0) || math.IsNaN(rows) || rows > MaxResampleRows {
		return nil, fmt.Errorf("%w: resample step %g over span %g exceeds %d rows",
			metrics.ErrInvalidInput, step, end-start, MaxResampleRows)
	}
	n := int(rows)

	// Close the profile unless the last sample already lands on the end
	closing := end-(start+float64(n-1)*step) > step*1e-9
	if closing && n == MaxResampleRows {
		return nil, fmt.Errorf("%w: resample step %g over span %g exceeds %d rows",
			metrics.ErrInvalidInput, step, end-start, MaxResampleRows)
	}

	out := &models.MetricsResult{
		Distance: make([]float64, 0, n+1),
		Diameter: make([]float64, 0, n+1),
	}
	for i := 0; i < n; i++ {
		d := start + float64(i)*step
		out.Distance = append(out.Distance, d)
		out.Diameter = append(out.Diameter, s.DiameterAt(d))
	}
	if closing {
		out.Distance = append(out.Distance, end)
		out.Diameter = append(out.Diameter, s.DiameterAt(end))
	}
	return out, nil
}

// Resample is shorthand for NewSeries followed by Series.Resample
func Resample(result *models.MetricsResult, step float64) (*models.MetricsResult, error) {
	s, err := NewSeries(result)
	if err != nil {
		return nil, err
	}
	return s.Resample(step)
}
