// Package pattern generates scan-pattern shapes: the ordered pixel
// sequences a high-resolution acquisition steps the beam through within
// a single scan region.
package pattern

import (
	"github.com/epsic-dls/autodc/autodcimg"
)

// Pattern is either a single Point or a Stroke (a line segment), the two
// concrete shapes Design.encode() produces.
type Pattern interface {
	// Points expands this pattern element into its constituent pixel
	// coordinates, in visiting order.
	Points() []autodcimg.Point
}

// Point is a single scan position.
type Point struct{ autodcimg.Point }

func (p Point) Points() []autodcimg.Point { return []autodcimg.Point{p.Point} }

// Stroke is a straight line segment from Start to End, inclusive,
// visited in that order. Flyback between consecutive strokes is
// implicit — the scheduler/hardware layer, not this package, accounts
// for the time a probe takes to reposition between strokes.
type Stroke struct {
	Start, End autodcimg.Point
}

func (s Stroke) Points() []autodcimg.Point {
	dx := sign(s.End.X - s.Start.X)
	dy := sign(s.End.Y - s.Start.Y)
	var out []autodcimg.Point
	x, y := s.Start.X, s.Start.Y
	for {
		out = append(out, autodcimg.Point{X: x, Y: y})
		if x == s.End.X && y == s.End.Y {
			break
		}
		if x != s.End.X {
			x += dx
		}
		if y != s.End.Y {
			y += dy
		}
	}
	return out
}

func sign(v int) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

// Corner identifies a rectangle corner, used as a scan pattern's
// starting point.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

// Orientation selects which axis a raster/snake/spiral pattern's primary
// sweep runs along.
type Orientation int

const (
	AlongX Orientation = iota
	AlongY
)

// Coverage is the rectangle (within the scan square) a pattern is
// restricted to; a full square is Coverage{0, 0, size, size}.
type Coverage struct {
	Left, Top, Right, Bottom int
}

func (c Coverage) contains(p autodcimg.Point) bool {
	return p.X >= c.Left && p.X < c.Right && p.Y >= c.Top && p.Y < c.Bottom
}

// Design is a lazy object producing an ordered sequence of Pattern
// elements and a visual mask of the same size as the scan square.
type Design interface {
	Encode() ([]Pattern, error)
	Draw(size int) (autodcimg.Image, error)
}

// drawPoints renders a flattened point list onto a blank mask of the
// given size, used by every concrete Design's Draw method.
func drawPoints(size int, points []autodcimg.Point) autodcimg.Image {
	img := autodcimg.NewGrey(size, size)
	for _, p := range points {
		if p.X >= 0 && p.Y >= 0 && p.X < size && p.Y < size {
			img.Set(p.X, p.Y, 255)
		}
	}
	return img
}

// flatten concatenates every Pattern element's points into one ordered
// sequence.
func flatten(patterns []Pattern) []autodcimg.Point {
	var out []autodcimg.Point
	for _, p := range patterns {
		out = append(out, p.Points()...)
	}
	return out
}
