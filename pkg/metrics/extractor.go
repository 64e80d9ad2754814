// Package metrics derives vessel diameter and longitudinal distance series
// from a centerline and its per-point radii.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"centerlinemetrics/internal/models"
)

// ErrInvalidInput is wrapped by every error caused by malformed input.
// Such inputs fail the same way on every call.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Extractor computes MetricsResults. It holds no state; the zero value is
// ready to use and safe for concurrent use.
type Extractor struct{}

// Extract runs Extract with the receiver
func (Extractor) Extract(sample *models.CenterlineSample, mode models.DistanceMode, axis models.Axis) (*models.MetricsResult, error) {
	return Extract(sample, mode, axis)
}

// ComputeDiameters returns 2*radius for each point.
// points is used only to check that the sequences are aligned.
func ComputeDiameters(points []models.Point, radii []float64) ([]float64, error) {
	if len(points) != len(radii) {
		return nil, invalid("%d points but %d radii", len(points), len(radii))
	}
	if err := checkRadii(radii); err != nil {
		return nil, err
	}

	diameters := make([]float64, len(radii))
	floats.ScaleTo(diameters, 2, radii)
	for i, d := range diameters {
		if math.IsInf(d, 0) {
			return nil, invalid("diameter %d overflows for radius %v", i, radii[i])
		}
	}
	return diameters, nil
}

// ComputeCumulativeDistances returns the chordal arc length from the first
// point to each point along the polyline. The first distance is always 0.
func ComputeCumulativeDistances(points []models.Point) ([]float64, error) {
	if len(points) == 0 {
		return nil, invalid("centerline has no points")
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}

	distances := make([]float64, len(points))
	prev := vec(points[0])
	for i := 1; i < len(points); i++ {
		cur := vec(points[i])
		distances[i] = distances[i-1] + r3.Norm(r3.Sub(cur, prev))
		if math.IsInf(distances[i], 0) {
			return nil, invalid("cumulative distance overflows at point %d", i)
		}
		prev = cur
	}
	return distances, nil
}

// ComputeProjectedDistances returns the raw coordinate of each point along
// axis. The result is not an offset and is not monotonic in general.
func ComputeProjectedDistances(points []models.Point, axis models.Axis) ([]float64, error) {
	if !axis.Valid() {
		return nil, invalid("axis %v out of range", axis)
	}
	if err := checkPoints(points); err != nil {
		return nil, err
	}

	distances := make([]float64, len(points))
	for i, p := range points {
		distances[i] = p[axis]
	}
	return distances, nil
}

// Extract validates sample and computes its distance and diameter series.
// axis is only consulted when mode is Projected, where it is required.
// On error no result is returned.
func Extract(sample *models.CenterlineSample, mode models.DistanceMode, axis models.Axis) (*models.MetricsResult, error) {
	if sample == nil {
		return nil, invalid("nil centerline sample")
	}
	if len(sample.Points) == 0 {
		return nil, invalid("centerline has no points")
	}
	if len(sample.Points) != len(sample.Radii) {
		return nil, invalid("%d points but %d radii", len(sample.Points), len(sample.Radii))
	}
	if err := checkPoints(sample.Points); err != nil {
		return nil, err
	}
	if err := checkRadii(sample.Radii); err != nil {
		return nil, err
	}

	var distances []float64
	var err error
	switch mode {
	case models.Cumulative:
		distances, err = ComputeCumulativeDistances(sample.Points)
	case models.Projected:
		if axis == models.NoAxis {
			return nil, invalid("projected distance requires an axis")
		}
		distances, err = ComputeProjectedDistances(sample.Points, axis)
	default:
		return nil, invalid("unknown distance mode %v", mode)
	}
	if err != nil {
		return nil, err
	}

	diameters, err := ComputeDiameters(sample.Points, sample.Radii)
	if err != nil {
		return nil, err
	}

	return &models.MetricsResult{
		Distance: distances,
		Diameter: diameters,
	}, nil
}

// Summary condenses a MetricsResult for reporting
type Summary struct {
	Count        int     `json:"count"`
	Length       float64 `json:"length"`
	MinDiameter  float64 `json:"minDiameter"`
	MaxDiameter  float64 `json:"maxDiameter"`
	MeanDiameter float64 `json:"meanDiameter"`
}

// Summarize computes a Summary. Length is the span covered by the distance
// series, which for cumulative mode is the total centerline length.
func Summarize(result *models.MetricsResult) Summary {
	if result == nil || len(result.Diameter) == 0 {
		return Summary{}
	}

	s := Summary{
		Count:        len(result.Diameter),
		MinDiameter:  floats.Min(result.Diameter),
		MaxDiameter:  floats.Max(result.Diameter),
		MeanDiameter: stat.Mean(result.Diameter, nil),
	}
	if len(result.Distance) > 0 {
		s.Length = floats.Max(result.Distance) - floats.Min(result.Distance)
	}
	return s
}

func checkRadii(radii []float64) error {
	for i, r := range radii {
		if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
			return invalid("radius %d is %v", i, r)
		}
	}
	return nil
}

func checkPoints(points []models.Point) error {
	for i, p := range points {
		for _, c := range p {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return invalid("point %d has non-finite coordinate %v", i, c)
			}
		}
	}
	return nil
}

func vec(p models.Point) r3.Vec {
	return r3.Vec{X: p[0], Y: p[1], Z: p[2]}
}
