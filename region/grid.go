package region

import (
	"errors"
	"fmt"

	"github.com/epsic-dls/autodc/cluster"
)

// Overlap is a bitmask selecting which axes of a grid's regions are
// shifted by the overlap offset. XY (both bits set) applies both
// offsets simultaneously, per the Open Question resolved in
type Overlap int

const (
	OverlapNone Overlap = 0
	OverlapX    Overlap = 1 << 0
	OverlapY    Overlap = 1 << 1
	OverlapXY   Overlap = OverlapX | OverlapY
)

// AllOverlaps is the set iterated by Cluster.Divide: one Grid per
// direction, {None, X, Y, X|Y}.
var AllOverlaps = []Overlap{OverlapNone, OverlapX, OverlapY, OverlapXY}

// ErrNoGridsRemaining is returned by Tighten when every loose region is
// filtered out.
var ErrNoGridsRemaining = errors.New("region: no grids remaining after tightening")

// Cluster wraps a cluster.Cluster with a weak reference (by label, not
// ownership) — grids reference clusters but the cluster extraction
// package owns the underlying mask.
type Cluster struct {
	Label  int
	mask   *cluster.Cluster
	Locked bool
}

// WrapCluster builds a region.Cluster view over an extracted cluster.
func WrapCluster(c *cluster.Cluster) *Cluster {
	return &Cluster{Label: c.Label, mask: c}
}

// Grid is the relationship entity tying a cluster to its tiling.
type Grid struct {
	ClusterLabel int
	PitchSize    int
	Offset       int
	Resolution   Resolution
	Overlap      Overlap
	LooseRegions []ScanRegion
	TightRegions []ScanRegion
	IsTight      bool
}

// Divide tiles the cluster's bounding box into pitch x pitch regions for
// every overlap direction, producing one Grid per direction. overlapFraction is the configured overlap between adjacent
// squares in [0, 1); overlapOffset = (1 - overlapFraction) * pitch.
func (c *Cluster) Divide(pitch int, overlapFraction float64, directions []Overlap, res Resolution, imgSize int) ([]Grid, error) {
	if pitch <= 0 {
		return nil, fmt.Errorf("region: pitch must be positive, got %d", pitch)
	}
	minXY, maxXY := c.mask.MinXY, c.mask.MaxXY

	padLeft, padRight, err := padAxis(minXY.X, maxXY.X, pitch, imgSize)
	if err != nil {
		return nil, err
	}
	padTop, padBottom, err := padAxis(minXY.Y, maxXY.Y, pitch, imgSize)
	if err != nil {
		return nil, err
	}

	offset := int((1 - overlapFraction) * float64(pitch))

	grids := make([]Grid, 0, len(directions))
	for _, dir := range directions {
		regions := make([]ScanRegion, 0)
		for y := padTop; y+pitch <= padBottom; y += pitch {
			for x := padLeft; x+pitch <= padRight; x += pitch {
				left, top := x, y
				if dir&OverlapX != 0 {
					left += offset - pitch
				}
				if dir&OverlapY != 0 {
					top += offset - pitch
				}
				if left < 0 {
					left = 0
				}
				if top < 0 {
					top = 0
				}
				r, err := NewScanRegion(left, top, pitch, res)
				if err != nil {
					return nil, err
				}
				regions = append(regions, r)
			}
		}
		grids = append(grids, Grid{
			ClusterLabel: c.Label,
			PitchSize:    pitch,
			Offset:       offset,
			Resolution:   res,
			Overlap:      dir,
			LooseRegions: regions,
		})
	}
	return grids, nil
}

// padAxis pads [lo, hi] to the next multiple of pitch, alternating which
// side absorbs the padding, clamped at [0, imgSize).
func padAxis(lo, hi, pitch, imgSize int) (paddedLo, paddedHi int, err error) {
	span := hi - lo + 1
	deficit := pitch - span%pitch
	if deficit == pitch {
		deficit = 0
	}
	left := deficit / 2
	right := deficit - left
	paddedLo, paddedHi = lo-left, hi+right

	// alternate which side gets the remainder when deficit is odd by
	// preferring to grow right first, then falling back to left if that
	// overruns the image bounds.
	if paddedHi >= imgSize {
		overflow := paddedHi - imgSize + 1
		paddedHi -= overflow
		paddedLo -= overflow
	}
	if paddedLo < 0 {
		shortfall := -paddedLo
		paddedLo = 0
		paddedHi += shortfall
	}
	if paddedLo < 0 || paddedHi >= imgSize {
		return 0, 0, errImpossiblePadding
	}
	return paddedLo, paddedHi + 1, nil
}

// Tighten filters the loose regions down to those whose overlap with the
// cluster's mask covers at least matchFraction of the region's area.
// Tightening is monotonic: tighten(m2).len() <= tighten(m1).len() for
// m1 <= m2.
func (g *Grid) Tighten(c *Cluster, matchFraction float64) error {
	threshold := matchFraction * float64(g.PitchSize*g.PitchSize)
	tight := make([]ScanRegion, 0, len(g.LooseRegions))
	for _, r := range g.LooseRegions {
		count := countForeground(c.mask, r)
		if float64(count) >= threshold {
			tight = append(tight, r)
		}
	}
	if len(tight) == 0 {
		return ErrNoGridsRemaining
	}
	g.TightRegions = tight
	g.LooseRegions = nil
	g.IsTight = true
	return nil
}

func countForeground(c *cluster.Cluster, r ScanRegion) int {
	count := 0
	for y := r.Top; y < r.Bottom; y++ {
		for x := r.Left; x < r.Right; x++ {
			if c.Contains(x, y) {
				count++
			}
		}
	}
	return count
}
