package cluster

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// kdPoint adapts a foreground pixel coordinate to gonum's kdtree.Point,
// which natively implements kdtree.Comparable with a squared-Euclidean
// Distance method.
type kdPoint struct {
	kdtree.Point
	idx int
}

// regionIndex answers "which points lie within eps of point i" for a
// slice of 2D coordinates, choosing a kd-tree or a linear scan depending
// on whether the metric is kd-tree-compatible (see Metric.usesKDTree).
type regionIndex struct {
	coords []([2]float64)
	metric Metric
	tree   *kdtree.Tree
	kdpts  []kdPoint
}

func newRegionIndex(coords [][2]float64, metric Metric) *regionIndex {
	ri := &regionIndex{coords: coords, metric: metric}
	if metric.usesKDTree() {
		ri.kdpts = make([]kdPoint, len(coords))
		pts := make(kdtree.Points, len(coords))
		for i, c := range coords {
			ri.kdpts[i] = kdPoint{Point: kdtree.Point{c[0], c[1]}, idx: i}
			pts[i] = kdtree.Point{c[0], c[1]}
		}
		tree := kdtree.New(pts, false)
		ri.tree = tree
	}
	return ri
}

// neighbours returns the indices of every point within eps of point i
// (i itself included, matching the usual DBSCAN convention of a point
// belonging to its own neighbourhood).
func (ri *regionIndex) neighbours(i int, eps float64) []int {
	if ri.tree == nil {
		return ri.neighboursLinear(i, eps)
	}
	// kdtree.Point.Distance is squared Euclidean; over-collect with a
	// DistKeeper sized to eps^2 for the Euclidean/SquaredEuclidean
	// families, then filter with the exact metric to be precise for
	// SquaredEuclidean (whose caller-supplied eps is already squared
	// distance, not a radius) versus Euclidean (radius).
	keeperRadius := eps * eps
	if ri.metric.kind == squaredEuclidean {
		keeperRadius = eps
	}
	q := kdtree.Point{ri.coords[i][0], ri.coords[i][1]}
	keeper := kdtree.NewDistKeeper(keeperRadius)
	ri.tree.NearestSet(keeper, q)

	out := make([]int, 0, keeper.Len())
	for _, h := range keeper.Heap {
		p := h.Comparable.(kdtree.Point)
		idx := ri.indexOf(p)
		if idx < 0 {
			continue
		}
		if ri.metric.distance(ri.coords[i], ri.coords[idx]) <= eps {
			out = append(out, idx)
		}
	}
	return out
}

// indexOf recovers the original slice index for a kdtree.Point returned
// from a query. The kd-tree stores copies, so we match on coordinates;
// acceptable since survey pixel coordinates are integers promoted to
// float64 and therefore compare exactly.
func (ri *regionIndex) indexOf(p kdtree.Point) int {
	for _, kp := range ri.kdpts {
		if kp.Point[0] == p[0] && kp.Point[1] == p[1] {
			return kp.idx
		}
	}
	return -1
}

func (ri *regionIndex) neighboursLinear(i int, eps float64) []int {
	out := make([]int, 0)
	for j := range ri.coords {
		if ri.metric.distance(ri.coords[i], ri.coords[j]) <= eps {
			out = append(out, j)
		}
	}
	return out
}

const (
	unclassified = -2
	noise        = -1
)

// DBSCAN labels a set of 2D points under density reachability, per
// Returned labels are either `noise` (-1) or a zero-based
// cluster index; callers renumber to the 1..N label space the data model
// requires.
func DBSCAN(points [][2]float64, eps float64, minSamples int, metric Metric) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unclassified
	}
	if len(points) == 0 {
		return labels
	}

	ri := newRegionIndex(points, metric)
	nextLabel := 0

	for i := range points {
		if labels[i] != unclassified {
			continue
		}
		neighbours := ri.neighbours(i, eps)
		if len(neighbours) < minSamples {
			labels[i] = noise
			continue
		}
		labels[i] = nextLabel
		seeds := append([]int(nil), neighbours...)
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == noise {
				labels[j] = nextLabel
			}
			if labels[j] != unclassified {
				continue
			}
			labels[j] = nextLabel
			jn := ri.neighbours(j, eps)
			if len(jn) >= minSamples {
				seeds = append(seeds, jn...)
			}
		}
		nextLabel++
	}
	return labels
}
