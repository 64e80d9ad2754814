package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"centerlinemetrics/internal/models"
)

// helixSample builds a centerline along a helix with a tapering radius
func helixSample(n int) *models.CenterlineSample {
	s := &models.CenterlineSample{Name: "helix"}
	for i := 0; i < n; i++ {
		t := float64(i) * 0.1
		s.Points = append(s.Points, models.Point{math.Cos(t) * 5, math.Sin(t) * 5, t * 2})
		s.Radii = append(s.Radii, 3.0-float64(i)/float64(n))
	}
	return s
}

// TestComputeDiameters verifies diameters are twice the radii
func TestComputeDiameters(t *testing.T) {
	cases := []struct {
		radii []float64
		want  []float64
	}{
		{[]float64{0}, []float64{0}},
		{[]float64{1.5, 2.0}, []float64{3.0, 4.0}},
		{[]float64{0.25, 0, 7}, []float64{0.5, 0, 14}},
	}

	for _, tc := range cases {
		points := make([]models.Point, len(tc.radii))
		got, err := ComputeDiameters(points, tc.radii)
		if err != nil {
			t.Fatalf("ComputeDiameters(%v) returned error: %v", tc.radii, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ComputeDiameters(%v) mismatch (-want +got):\n%s", tc.radii, diff)
		}

		// Round trip back to radii
		for i := range got {
			if got[i]/2 != tc.radii[i] {
				t.Errorf("Round trip failed at %d: %f/2 != %f", i, got[i], tc.radii[i])
			}
		}
	}
}

// TestComputeDiametersRejectsBadRadii verifies length and sign checks
func TestComputeDiametersRejectsBadRadii(t *testing.T) {
	points := make([]models.Point, 2)

	if _, err := ComputeDiameters(points, []float64{1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for length mismatch, got %v", err)
	}
	if _, err := ComputeDiameters(points, []float64{1, -0.5}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative radius, got %v", err)
	}
	if _, err := ComputeDiameters(points, []float64{math.NaN(), 1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for NaN radius, got %v", err)
	}
	if _, err := ComputeDiameters(points, []float64{math.Inf(1), 1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for infinite radius, got %v", err)
	}
}

// TestComputeCumulativeDistances checks collinear additivity and the single point case
func TestComputeCumulativeDistances(t *testing.T) {
	got, err := ComputeCumulativeDistances([]models.Point{{0, 0, 0}, {1, 0, 0}, {3, 0, 0}})
	if err != nil {
		t.Fatalf("ComputeCumulativeDistances returned error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1, 3}, got); diff != "" {
		t.Errorf("Collinear distances mismatch (-want +got):\n%s", diff)
	}

	got, err = ComputeCumulativeDistances([]models.Point{{4, 5, 6}})
	if err != nil {
		t.Fatalf("ComputeCumulativeDistances returned error: %v", err)
	}
	if diff := cmp.Diff([]float64{0}, got); diff != "" {
		t.Errorf("Single point distances mismatch (-want +got):\n%s", diff)
	}

	// 3-4-5 triangle legs and a coincident point
	got, err = ComputeCumulativeDistances([]models.Point{{0, 0, 0}, {3, 4, 0}, {3, 4, 0}, {3, 4, 12}})
	if err != nil {
		t.Fatalf("ComputeCumulativeDistances returned error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 5, 5, 17}, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Distances mismatch (-want +got):\n%s", diff)
	}

	if _, err := ComputeCumulativeDistances(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty centerline, got %v", err)
	}
}

// TestCumulativeMonotonic verifies distances start at zero and never decrease
func TestCumulativeMonotonic(t *testing.T) {
	sample := helixSample(200)
	got, err := ComputeCumulativeDistances(sample.Points)
	if err != nil {
		t.Fatalf("ComputeCumulativeDistances returned error: %v", err)
	}

	if got[0] != 0 {
		t.Errorf("Expected first distance 0, got %f", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("Distance decreased at %d: %f < %f", i, got[i], got[i-1])
		}
	}
}

// TestComputeProjectedDistances checks axis selection
func TestComputeProjectedDistances(t *testing.T) {
	points := []models.Point{{1, 2, 3}, {4, 5, 6}}

	got, err := ComputeProjectedDistances(points, models.AxisThird)
	if err != nil {
		t.Fatalf("ComputeProjectedDistances returned error: %v", err)
	}
	if diff := cmp.Diff([]float64{3, 6}, got); diff != "" {
		t.Errorf("Third axis mismatch (-want +got):\n%s", diff)
	}

	got, err = ComputeProjectedDistances(points, models.AxisFirst)
	if err != nil {
		t.Fatalf("ComputeProjectedDistances returned error: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 4}, got); diff != "" {
		t.Errorf("First axis mismatch (-want +got):\n%s", diff)
	}

	got, err = ComputeProjectedDistances(points[:1], models.AxisSecond)
	if err != nil {
		t.Fatalf("ComputeProjectedDistances returned error: %v", err)
	}
	if diff := cmp.Diff([]float64{2}, got); diff != "" {
		t.Errorf("Single point mismatch (-want +got):\n%s", diff)
	}

	for _, axis := range []models.Axis{models.NoAxis, 3, 42} {
		if _, err := ComputeProjectedDistances(points, axis); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for axis %d, got %v", axis, err)
		}
	}
}

// TestExtract exercises both distance modes through the dispatcher
func TestExtract(t *testing.T) {
	sample := &models.CenterlineSample{
		Points: []models.Point{{0, 0, 0}, {1, 0, 0}, {3, 0, 0}},
		Radii:  []float64{1.5, 2.0, 0},
	}

	result, err := Extract(sample, models.Cumulative, models.NoAxis)
	if err != nil {
		t.Fatalf("Extract cumulative returned error: %v", err)
	}
	want := &models.MetricsResult{
		Distance: []float64{0, 1, 3},
		Diameter: []float64{3, 4, 0},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("Cumulative result mismatch (-want +got):\n%s", diff)
	}

	result, err = Extract(sample, models.Projected, models.AxisFirst)
	if err != nil {
		t.Fatalf("Extract projected returned error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1, 3}, result.Distance); diff != "" {
		t.Errorf("Projected distance mismatch (-want +got):\n%s", diff)
	}

	// Axis is ignored in cumulative mode
	withAxis, err := Extractor{}.Extract(sample, models.Cumulative, models.AxisThird)
	if err != nil {
		t.Fatalf("Extract cumulative with axis returned error: %v", err)
	}
	if diff := cmp.Diff(want, withAxis); diff != "" {
		t.Errorf("Cumulative result with axis mismatch (-want +got):\n%s", diff)
	}
}

// TestExtractRejectsInvalidInput verifies every structural precondition
func TestExtractRejectsInvalidInput(t *testing.T) {
	mismatched := &models.CenterlineSample{
		Points: []models.Point{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
		Radii:  []float64{1, 1},
	}
	good := &models.CenterlineSample{
		Points: []models.Point{{0, 0, 0}, {1, 0, 0}},
		Radii:  []float64{1, 1},
	}
	negative := &models.CenterlineSample{
		Points: []models.Point{{0, 0, 0}, {1, 0, 0}},
		Radii:  []float64{1, -1},
	}
	infinite := &models.CenterlineSample{
		Points: []models.Point{{0, 0, 0}, {1, 0, math.Inf(1)}},
		Radii:  []float64{1, 1},
	}
	nanPoint := &models.CenterlineSample{
		Points: []models.Point{{math.NaN(), 0, 0}, {1, 0, 0}},
		Radii:  []float64{1, 1},
	}
	overflow := &models.CenterlineSample{
		Points: []models.Point{{-1e308, 0, 0}, {1e308, 0, 0}},
		Radii:  []float64{1, 1},
	}
	hugeRadius := &models.CenterlineSample{
		Points: []models.Point{{0, 0, 0}, {1, 0, 0}},
		Radii:  []float64{1, math.MaxFloat64},
	}

	cases := []struct {
		name   string
		sample *models.CenterlineSample
		mode   models.DistanceMode
		axis   models.Axis
	}{
		{"mismatch cumulative", mismatched, models.Cumulative, models.NoAxis},
		{"mismatch projected", mismatched, models.Projected, models.AxisThird},
		{"missing axis", good, models.Projected, models.NoAxis},
		{"axis out of range", good, models.Projected, 3},
		{"unknown mode", good, models.DistanceMode(7), models.AxisFirst},
		{"negative radius", negative, models.Cumulative, models.NoAxis},
		{"infinite coordinate", infinite, models.Cumulative, models.NoAxis},
		{"infinite coordinate projected", infinite, models.Projected, models.AxisFirst},
		{"nan coordinate", nanPoint, models.Projected, models.AxisSecond},
		{"distance overflow", overflow, models.Cumulative, models.NoAxis},
		{"diameter overflow", hugeRadius, models.Cumulative, models.NoAxis},
		{"empty", &models.CenterlineSample{}, models.Cumulative, models.NoAxis},
		{"nil", nil, models.Cumulative, models.NoAxis},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Extract(tc.sample, tc.mode, tc.axis)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
			if result != nil {
				t.Errorf("Expected no result on failure, got %+v", result)
			}
		})
	}
}

// TestExtractIdempotent verifies repeated calls produce bit-identical output
func TestExtractIdempotent(t *testing.T) {
	sample := helixSample(500)

	for _, mode := range []models.DistanceMode{models.Cumulative, models.Projected} {
		first, err := Extract(sample, mode, models.AxisSecond)
		if err != nil {
			t.Fatalf("Extract returned error: %v", err)
		}
		second, err := Extract(sample, mode, models.AxisSecond)
		if err != nil {
			t.Fatalf("Extract returned error: %v", err)
		}

		for i := range first.Distance {
			if math.Float64bits(first.Distance[i]) != math.Float64bits(second.Distance[i]) ||
				math.Float64bits(first.Diameter[i]) != math.Float64bits(second.Diameter[i]) {
				t.Fatalf("%v: outputs differ at %d", mode, i)
			}
		}
	}
}

// TestExtractDoesNotMutateInput verifies the sample is treated as read-only
func TestExtractDoesNotMutateInput(t *testing.T) {
	sample := helixSample(20)
	points := append([]models.Point(nil), sample.Points...)
	radii := append([]float64(nil), sample.Radii...)

	result, err := Extract(sample, models.Cumulative, models.NoAxis)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	result.Diameter[0] = -1

	if diff := cmp.Diff(points, sample.Points); diff != "" {
		t.Errorf("Points were modified:\n%s", diff)
	}
	if diff := cmp.Diff(radii, sample.Radii); diff != "" {
		t.Errorf("Radii were modified:\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	result := &models.MetricsResult{
		Distance: []float64{0, 1, 3},
		Diameter: []float64{2, 4, 6},
	}

	got := Summarize(result)
	want := Summary{Count: 3, Length: 3, MinDiameter: 2, MaxDiameter: 6, MeanDiameter: 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}

	if got := Summarize(nil); got != (Summary{}) {
		t.Errorf("Expected zero summary for nil result, got %+v", got)
	}
}
