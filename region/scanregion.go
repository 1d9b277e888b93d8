// Package region implements the grid overlay and scan-region model:
// dividing a cluster's bounding box into a tiling of square
// high-resolution scan targets, tightening that tiling against the
// cluster's mask, and the manager that drives the whole process.
package region

import (
	"errors"
	"fmt"
)

// Resolution is the survey size a ScanRegion's coordinates are expressed
// in — "scan_resolution reference".
type Resolution int

// ScanRegion is an axis-aligned, square sub-rectangle of a survey image
// slated for high-resolution acquisition.
type ScanRegion struct {
	Left, Top, Right, Bottom int
	Resolution               Resolution
	Disabled                 bool
}

// NewScanRegion constructs a square region and validates the data
// model's invariants: width == height, non-negative coordinates.
func NewScanRegion(left, top, side int, res Resolution) (ScanRegion, error) {
	if left < 0 || top < 0 {
		return ScanRegion{}, fmt.Errorf("region: negative coordinate (%d, %d)", left, top)
	}
	if side <= 0 {
		return ScanRegion{}, fmt.Errorf("region: non-positive side %d", side)
	}
	return ScanRegion{Left: left, Top: top, Right: left + side, Bottom: top + side, Resolution: res}, nil
}

// Side returns the region's side length.
func (r ScanRegion) Side() int { return r.Right - r.Left }

// Square reports whether width == height, the data model invariant.
func (r ScanRegion) Square() bool { return r.Right-r.Left == r.Bottom-r.Top }

// InBounds reports whether the region lies entirely within [0, size)^2.
func (r ScanRegion) InBounds(size int) bool {
	return r.Left >= 0 && r.Top >= 0 && r.Right <= size && r.Bottom <= size
}

// Shift returns a copy of the region translated by (dx, dy); the
// receiver is not modified.
func (r ScanRegion) Shift(dx, dy int) ScanRegion {
	r.Left += dx
	r.Right += dx
	r.Top += dy
	r.Bottom += dy
	return r
}

// At rescales a region to a new survey resolution, returning a copy.
// Scaling is linear in the ratio of resolutions; non-integer ratios
// round to the nearest pixel, so composing two rescales can accumulate
// up to one pixel of rounding error.
func (r ScanRegion) At(newRes Resolution) ScanRegion {
	if r.Resolution == 0 || newRes == r.Resolution {
		out := r
		out.Resolution = newRes
		return out
	}
	scale := float64(newRes) / float64(r.Resolution)
	return ScanRegion{
		Left:       roundScale(r.Left, scale),
		Top:        roundScale(r.Top, scale),
		Right:      roundScale(r.Right, scale),
		Bottom:     roundScale(r.Bottom, scale),
		Resolution: newRes,
		Disabled:   r.Disabled,
	}
}

func roundScale(v int, scale float64) int {
	f := float64(v) * scale
	if f >= 0 {
		return int(f + 0.5)
	}
	return -int(-f + 0.5)
}

var errImpossiblePadding = errors.New("region: cannot pad bounding box to a pitch multiple within image bounds")
