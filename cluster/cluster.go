// Package cluster extracts connected regions of interest from a binary
// image via DBSCAN density clustering.
package cluster

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/epsic-dls/autodc/autodcimg"
)

// ErrNotBinary is returned when Extract is given an image with more than
// two distinct grey levels.
var ErrNotBinary = errors.New("cluster: image is not binary")

// ErrTooManyClusters is returned when the label count would exceed the
// downstream colour-encoding limit of 765.
var ErrTooManyClusters = errors.New("cluster: too many clusters (limit 765)")

// MaxClusters is the downstream colour-encoding limit names.
const MaxClusters = 765

// Cluster is a connected region of interest, identified by a unique
// positive label and owning a binary mask the size of the source image.
type Cluster struct {
	Label      int
	Mask       autodcimg.Image // Grey, same size as the source image; 255 = inside cluster
	MinXY      autodcimg.Point
	MaxXY      autodcimg.Point
	Locked     bool
}

// Width and Height return the tight bounding box extents.
func (c Cluster) Width() int  { return c.MaxXY.X - c.MinXY.X + 1 }
func (c Cluster) Height() int { return c.MaxXY.Y - c.MinXY.Y + 1 }

// Contains reports whether (x, y) is inside the cluster's mask — the
// point-in-mask test the region manager's Mark operation relies on.
func (c Cluster) Contains(x, y int) bool {
	if x < 0 || y < 0 || x >= c.Mask.Width || y >= c.Mask.Height {
		return false
	}
	return c.Mask.At(x, y)[0] != 0
}

// Extract runs DBSCAN over every foreground pixel of a binary image and
// returns one Cluster per resulting label, 1..N with no gaps (testable
// property 3). Noise points are dropped. An empty foreground succeeds
// with a nil slice.
func Extract(binary autodcimg.Image, eps float64, minSamples int, metric Metric) ([]Cluster, error) {
	if !binary.IsBinary() {
		return nil, ErrNotBinary
	}
	if len(binary.DistinctLevels()) < 2 {
		// A single grey level has no minority level, so no foreground.
		return nil, nil
	}

	fg := foregroundValue(binary)
	points := make([][2]float64, 0)
	coordsXY := make([]autodcimg.Point, 0)
	for y := 0; y < binary.Height; y++ {
		for x := 0; x < binary.Width; x++ {
			if binary.At(x, y)[0] == fg {
				points = append(points, [2]float64{float64(x), float64(y)})
				coordsXY = append(coordsXY, autodcimg.Point{X: x, Y: y})
			}
		}
	}
	if len(points) == 0 {
		return nil, nil
	}

	labels := DBSCAN(points, eps, minSamples, metric)

	// Renumber dense 0..K-1 labels (dropping noise) to dense 1..N.
	remap := make(map[int]int)
	for _, l := range labels {
		if l == noise {
			continue
		}
		if _, ok := remap[l]; !ok {
			remap[l] = len(remap) + 1
		}
	}
	if len(remap) > MaxClusters {
		return nil, ErrTooManyClusters
	}

	clusters := make([]Cluster, len(remap))
	for i := range clusters {
		clusters[i] = Cluster{
			Label: i + 1,
			Mask:  autodcimg.NewGrey(binary.Width, binary.Height),
			MinXY: autodcimg.Point{X: binary.Width, Y: binary.Height},
			MaxXY: autodcimg.Point{X: -1, Y: -1},
		}
	}
	for i, l := range labels {
		if l == noise {
			continue
		}
		idx := remap[l] - 1
		p := coordsXY[i]
		clusters[idx].Mask.Set(p.X, p.Y, 255)
		if p.X < clusters[idx].MinXY.X {
			clusters[idx].MinXY.X = p.X
		}
		if p.Y < clusters[idx].MinXY.Y {
			clusters[idx].MinXY.Y = p.Y
		}
		if p.X > clusters[idx].MaxXY.X {
			clusters[idx].MaxXY.X = p.X
		}
		if p.Y > clusters[idx].MaxXY.Y {
			clusters[idx].MaxXY.Y = p.Y
		}
	}

	return clusters, nil
}

// foregroundValue picks the minority grey level of a binary image as the
// foreground value, matching the usual white-background/black-object
// (or vice versa) convention produced by Threshold/Edge.
func foregroundValue(img autodcimg.Image) uint8 {
	var zero, nonzero int
	for _, v := range img.Data {
		if v == 0 {
			zero++
		} else {
			nonzero++
		}
	}
	if nonzero == 0 {
		return 0
	}
	if zero <= nonzero {
		// zero is foreground (e.g. thresholded objects are 0/black)
		return 0
	}
	// find the actual non-zero level present (binary guarantees exactly one)
	for _, v := range img.Data {
		if v != 0 {
			return v
		}
	}
	return 255
}

// Match compares a measured extent against a limit.
type Match int

const (
	NoLower Match = iota
	Exact
	NoHigher
)

func (m Match) ok(value, limit int) bool {
	switch m {
	case NoLower:
		return value >= limit
	case NoHigher:
		return value <= limit
	default:
		return value == limit
	}
}

// FilterBySize keeps only clusters whose bounding box satisfies the
// comparison on both axes, a post-filter applied after Extract.
func FilterBySize(clusters []Cluster, w, h int, match Match) []Cluster {
	return lo.Filter(clusters, func(c Cluster, _ int) bool {
		return match.ok(c.Width(), w) && match.ok(c.Height(), h)
	})
}

func validateBoundingBox(c Cluster) error {
	if c.MaxXY.X < c.MinXY.X || c.MaxXY.Y < c.MinXY.Y {
		return fmt.Errorf("cluster: label %d has an empty bounding box", c.Label)
	}
	return nil
}
