package models

import (
	"fmt"
	"strings"
)

// Point is a position in 3D space
type Point [3]float64

// CenterlineSample represents an ordered centerline with per-point radii
type CenterlineSample struct {
	// Name identifies the centerline model, used for plot and table titles
	Name string

	// Points are ordered from one endpoint of the centerline to the other
	Points []Point

	// Radii holds the local vessel radius at each point, aligned by index
	Radii []float64
}

// Len returns the number of points in the sample
func (s *CenterlineSample) Len() int {
	return len(s.Points)
}

// MetricsResult holds the per-point metrics derived from a centerline.
// Both slices have the same length as the input sample.
type MetricsResult struct {
	// Distance is the longitudinal position of each point
	Distance []float64

	// Diameter is twice the local radius
	Diameter []float64
}

// DistanceMode selects how the distance series is computed
type DistanceMode int

const (
	// Cumulative accumulates chordal arc length along the polyline
	Cumulative DistanceMode = iota
	// Projected uses the raw coordinate along a single axis
	Projected
)

var modeNames = map[DistanceMode]string{
	Cumulative: "cumulative",
	Projected:  "projected",
}

func (m DistanceMode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("DistanceMode(%d)", int(m))
}

// ParseDistanceMode converts a mode name into a DistanceMode
func ParseDistanceMode(s string) (DistanceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cumulative", "arc", "":
		return Cumulative, nil
	case "projected", "axis":
		return Projected, nil
	}
	return 0, fmt.Errorf("unknown distance mode %q (must be cumulative or projected)", s)
}

// Axis is an index into a Point. The mapping to anatomical directions
// depends on the coordinate convention of whoever produced the points.
type Axis int

const (
	// NoAxis means no axis was selected
	NoAxis Axis = -1

	AxisFirst  Axis = 0
	AxisSecond Axis = 1
	AxisThird  Axis = 2
)

// Valid reports whether the axis indexes a Point component
func (a Axis) Valid() bool {
	return a >= AxisFirst && a <= AxisThird
}

func (a Axis) String() string {
	if a == NoAxis {
		return "none"
	}
	return fmt.Sprintf("%d", int(a))
}

// ParseAxis accepts 0/1/2, x/y/z or r/a/s (case-insensitive).
// An empty string yields NoAxis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoAxis, nil
	case "0", "x", "r":
		return AxisFirst, nil
	case "1", "y", "a":
		return AxisSecond, nil
	case "2", "z", "s":
		return AxisThird, nil
	}
	return NoAxis, fmt.Errorf("invalid axis %q (must be 0, 1 or 2)", s)
}
