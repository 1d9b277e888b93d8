package pattern

import (
	"fmt"

	"github.com/epsic-dls/autodc/autodcimg"
)

// Raster is parallel lines swept in the same direction every line, with
// an implicit flyback between consecutive strokes.
type Raster struct {
	Skip        int
	Start       Corner
	Orientation Orientation
	Coverage    Coverage
}

func (r Raster) Encode() ([]Pattern, error) {
	return rasterLines(r.Skip, r.Start, r.Orientation, r.Coverage, false)
}

func (r Raster) Draw(size int) (autodcimg.Image, error) {
	patterns, err := r.Encode()
	if err != nil {
		return autodcimg.Image{}, err
	}
	return drawPoints(size, flatten(patterns)), nil
}

// Snake alternates sweep direction on successive lines.
type Snake struct {
	Skip        int
	Start       Corner
	Orientation Orientation
	Coverage    Coverage
}

func (s Snake) Encode() ([]Pattern, error) {
	return rasterLines(s.Skip, s.Start, s.Orientation, s.Coverage, true)
}

func (s Snake) Draw(size int) (autodcimg.Image, error) {
	patterns, err := s.Encode()
	if err != nil {
		return autodcimg.Image{}, err
	}
	return drawPoints(size, flatten(patterns)), nil
}

// rasterLines builds the common shape behind Raster and Snake: a set of
// parallel strokes stepped by (skip+1) along the minor axis, optionally
// alternating direction (snake=true) each line.
func rasterLines(skip int, start Corner, orient Orientation, cov Coverage, snake bool) ([]Pattern, error) {
	if skip < 0 {
		return nil, fmt.Errorf("pattern: skip must be >= 0, got %d", skip)
	}
	step := skip + 1
	var patterns []Pattern

	startsLeft := start == TopLeft || start == BottomLeft
	startsTop := start == TopLeft || start == TopRight

	if orient == AlongX {
		yStart, yEnd, yStep := cov.Top, cov.Bottom, step
		if !startsTop {
			yStart, yEnd, yStep = cov.Bottom-1, cov.Top-1, -step
		}
		lineIdx := 0
		for y := yStart; (yStep > 0 && y < yEnd) || (yStep < 0 && y > yEnd); y += yStep {
			leftToRight := startsLeft
			if snake && lineIdx%2 == 1 {
				leftToRight = !leftToRight
			}
			x0, x1 := cov.Left, cov.Right-1
			if !leftToRight {
				x0, x1 = cov.Right-1, cov.Left
			}
			patterns = append(patterns, Stroke{Start: autodcimg.Point{X: x0, Y: y}, End: autodcimg.Point{X: x1, Y: y}})
			lineIdx++
		}
	} else {
		xStart, xEnd, xStep := cov.Left, cov.Right, step
		if !startsLeft {
			xStart, xEnd, xStep = cov.Right-1, cov.Left-1, -step
		}
		lineIdx := 0
		for x := xStart; (xStep > 0 && x < xEnd) || (xStep < 0 && x > xEnd); x += xStep {
			topToBottom := startsTop
			if snake && lineIdx%2 == 1 {
				topToBottom = !topToBottom
			}
			y0, y1 := cov.Top, cov.Bottom-1
			if !topToBottom {
				y0, y1 = cov.Bottom-1, cov.Top
			}
			patterns = append(patterns, Stroke{Start: autodcimg.Point{X: x, Y: y0}, End: autodcimg.Point{X: x, Y: y1}})
			lineIdx++
		}
	}
	return patterns, nil
}

// Spiral is an inward or outward square spiral.
type Spiral struct {
	Skip        int
	Start       Corner
	Orientation Orientation
	Coverage    Coverage
	Outward     bool
}

func (s Spiral) Encode() ([]Pattern, error) {
	if s.Skip < 0 {
		return nil, fmt.Errorf("pattern: skip must be >= 0, got %d", s.Skip)
	}
	step := s.Skip + 1
	left, top, right, bottom := s.Coverage.Left, s.Coverage.Top, s.Coverage.Right-1, s.Coverage.Bottom-1

	var strokes []Pattern
	for left <= right && top <= bottom {
		strokes = append(strokes,
			Stroke{Start: autodcimg.Point{X: left, Y: top}, End: autodcimg.Point{X: right, Y: top}},
			Stroke{Start: autodcimg.Point{X: right, Y: top + step}, End: autodcimg.Point{X: right, Y: bottom}},
		)
		if top+step <= bottom {
			strokes = append(strokes, Stroke{Start: autodcimg.Point{X: right - step, Y: bottom}, End: autodcimg.Point{X: left, Y: bottom}})
		}
		if left+step <= right {
			strokes = append(strokes, Stroke{Start: autodcimg.Point{X: left, Y: bottom - step}, End: autodcimg.Point{X: left, Y: top + step}})
		}
		left += step
		top += step
		right -= step
		bottom -= step
	}
	if s.Outward {
		for i, j := 0, len(strokes)-1; i < j; i, j = i+1, j-1 {
			strokes[i], strokes[j] = strokes[j], strokes[i]
		}
		for i, p := range strokes {
			st := p.(Stroke)
			strokes[i] = Stroke{Start: st.End, End: st.Start}
		}
	}
	_ = s.Start
	_ = s.Orientation
	return strokes, nil
}

func (s Spiral) Draw(size int) (autodcimg.Image, error) {
	patterns, err := s.Encode()
	if err != nil {
		return autodcimg.Image{}, err
	}
	return drawPoints(size, flatten(patterns)), nil
}
