// Package interpolation maps positions and distances onto centerline metric rows.
package interpolation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"centerlinemetrics/internal/models"
	"centerlinemetrics/pkg/metrics"
)

// indexedPoint is a centerline point that remembers its row
type indexedPoint struct {
	models.Point
	Row int
}

// Compare implements the kdtree.Comparable interface
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	if d < 0 || d > 2 {
		panic("illegal dimension")
	}
	return p.Point[d] - q.Point[d]
}

// Dims returns the number of dimensions for the KD-tree
func (p indexedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	dx := p.Point[0] - q.Point[0]
	dy := p.Point[1] - q.Point[1]
	dz := p.Point[2] - q.Point[2]
	return dx*dx + dy*dy + dz*dz
}

// indexedPoints satisfies kdtree.Interface
type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{indexedPoints: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{indexedPoints: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for indexedPoints
type pointPlane struct {
	indexedPoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.indexedPoints[i].Point[p.Dim] < p.indexedPoints[j].Point[p.Dim]
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{indexedPoints: p.indexedPoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// Locator finds the centerline row closest to an arbitrary position,
// e.g. a cursor placed on an image slice.
type Locator struct {
	tree *kdtree.Tree
	n    int
}

// NewLocator indexes points; row i of the metrics table corresponds to points[i]
func NewLocator(points []models.Point) (*Locator, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: locator needs at least one point", metrics.ErrInvalidInput)
	}

	// kdtree.New reorders its input, so build from a copy
	indexed := make(indexedPoints, len(points))
	for i, p := range points {
		indexed[i] = indexedPoint{Point: p, Row: i}
	}

	return &Locator{tree: kdtree.New(indexed, false), n: len(points)}, nil
}

// Len returns the number of indexed points
func (l *Locator) Len() int { return l.n }

// Nearest returns the row of the closest centerline point and its Euclidean distance to p
func (l *Locator) Nearest(p models.Point) (int, float64) {
	c, d2 := l.tree.Nearest(indexedPoint{Point: p})
	return c.(indexedPoint).Row, math.Sqrt(d2)
}

// NearestN returns the rows of the k closest points ordered by distance
func (l *Locator) NearestN(p models.Point, k int) []int {
	if k <= 0 {
		return nil
	}
	if k > l.n {
		k = l.n
	}

	keeper := kdtree.NewNKeeper(k)
	l.tree.NearestSet(keeper, indexedPoint{Point: p})

	items := make([]kdtree.ComparableDist, 0, keeper.Len())
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		items = append(items, item)
	}
	// The keeper is a max-heap
	sort.Slice(items, func(i, j int) bool { return items[i].Dist < items[j].Dist })

	rows := make([]int, len(items))
	for i, item := range items {
		rows[i] = item.Comparable.(indexedPoint).Row
	}
	return rows
}
