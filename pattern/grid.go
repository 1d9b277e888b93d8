package pattern

import (
	"fmt"

	"github.com/epsic-dls/autodc/autodcimg"
)

// GridOrder selects row/column major traversal. The corner the lattice
// starts from is chosen separately, by Grid.Start.
type GridOrder int

const (
	RowMajor GridOrder = iota
	ColumnMajor
)

// Grid is a discrete lattice of points, one of the named pattern shapes
// (distinct from package region's Grid, which tiles whole scan regions
// rather than single points).
type Grid struct {
	GapX, GapY     int
	ShiftX, ShiftY int
	Order          GridOrder
	Start          Corner
	Coverage       Coverage
}

func (g Grid) Encode() ([]Pattern, error) {
	if g.GapX <= 0 || g.GapY <= 0 {
		return nil, fmt.Errorf("pattern: grid gaps must be positive, got (%d, %d)", g.GapX, g.GapY)
	}
	xs := lattice(g.Coverage.Left, g.Coverage.Right, g.GapX, g.ShiftX, g.Start == TopRight || g.Start == BottomRight)
	ys := lattice(g.Coverage.Top, g.Coverage.Bottom, g.GapY, g.ShiftY, g.Start == BottomLeft || g.Start == BottomRight)

	var points []Pattern
	if g.Order == RowMajor {
		for _, y := range ys {
			for _, x := range xs {
				points = append(points, Point{autodcimg.Point{X: x, Y: y}})
			}
		}
	} else {
		for _, x := range xs {
			for _, y := range ys {
				points = append(points, Point{autodcimg.Point{X: x, Y: y}})
			}
		}
	}
	return points, nil
}

func (g Grid) Draw(size int) (autodcimg.Image, error) {
	patterns, err := g.Encode()
	if err != nil {
		return autodcimg.Image{}, err
	}
	return drawPoints(size, flatten(patterns)), nil
}

// lattice builds the 1D coordinate sequence for one axis of a Grid
// pattern, walking from lo or hi depending on which corner the pattern
// starts from.
func lattice(lo, hi, gap, shift int, reversed bool) []int {
	var out []int
	if !reversed {
		for v := lo + shift; v < hi; v += gap {
			out = append(out, v)
		}
	} else {
		for v := hi - 1 - shift; v >= lo; v -= gap {
			out = append(out, v)
		}
	}
	return out
}
