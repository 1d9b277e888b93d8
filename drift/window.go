// Package drift implements windowed phase-correlation drift correction
// between a stored reference scan and a freshly acquired scan of the
// same sub-rectangle.
package drift

import "math"

// Window is one of the configurable pre-correlation window transforms.
type Window int

const (
	Hanning Window = iota
	Sobel
	Median
)

// grid is a row-major float64 image used internally by the windowing and
// FFT stages; autodcimg.Image stays uint8, so corrections copy into this
// wider-precision scratch type and back.
type grid struct {
	w, h int
	data []float64
}

func newGrid(w, h int) grid { return grid{w: w, h: h, data: make([]float64, w*h)} }

func (g grid) at(x, y int) float64 { return g.data[y*g.w+x] }
func (g grid) set(x, y int, v float64) { g.data[y*g.w+x] = v }

func (g grid) clone() grid {
	out := newGrid(g.w, g.h)
	copy(out.data, g.data)
	return out
}

// applyWindows runs the configured window transforms in the given order
// (the reference implementation's windowing order is user-configurable, not fixed to
// Hanning-then-Sobel-then-Median), then zero-means the result.
func applyWindows(img grid, order []Window) grid {
	cur := img
	for _, w := range order {
		switch w {
		case Hanning:
			cur = hanningWindow(cur)
		case Sobel:
			cur = sobelWindow(cur)
		case Median:
			cur = medianWindow(cur)
		}
	}
	return zeroMean(cur)
}

func hanningWindow(img grid) grid {
	hx := make([]float64, img.w)
	hy := make([]float64, img.h)
	for i := range hx {
		hx[i] = hannCoeff(i, img.w)
	}
	for i := range hy {
		hy[i] = hannCoeff(i, img.h)
	}
	out := newGrid(img.w, img.h)
	for y := 0; y < img.h; y++ {
		for x := 0; x < img.w; x++ {
			out.set(x, y, img.at(x, y)*hx[x]*hy[y])
		}
	}
	return out
}

func hannCoeff(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

// sobelWindow applies a Sobel derivative along each axis and combines
// them as hypot(sx, sy), matchingthe reference implementation's _sobel window
// (scipy.ndimage.sobel on each axis then np.hypot).
func sobelWindow(img grid) grid {
	sx := convolve3(img, [3][3]float64{
		{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1},
	})
	sy := convolve3(img, [3][3]float64{
		{-1, -2, -1}, {0, 0, 0}, {1, 2, 1},
	})
	out := newGrid(img.w, img.h)
	for i := range out.data {
		out.data[i] = math.Hypot(sx.data[i], sy.data[i])
	}
	return out
}

func medianWindow(img grid) grid {
	out := newGrid(img.w, img.h)
	var window [9]float64
	for y := 0; y < img.h; y++ {
		for x := 0; x < img.w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[n] = img.at(clamp(x+dx, img.w), clamp(y+dy, img.h))
					n++
				}
			}
			out.set(x, y, median9(window))
		}
	}
	return out
}

func convolve3(img grid, kernel [3][3]float64) grid {
	out := newGrid(img.w, img.h)
	for y := 0; y < img.h; y++ {
		for x := 0; x < img.w; x++ {
			var sum float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += img.at(clamp(x+kx, img.w), clamp(y+ky, img.h)) * kernel[ky+1][kx+1]
				}
			}
			out.set(x, y, sum)
		}
	}
	return out
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func median9(w [9]float64) float64 {
	sorted := w
	for i := 1; i < len(sorted); i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	return sorted[4]
}

func zeroMean(img grid) grid {
	mean := gridMean(img)
	out := img.clone()
	for i := range out.data {
		out.data[i] -= mean
	}
	return out
}

func gridMean(img grid) float64 {
	var sum float64
	for _, v := range img.data {
		sum += v
	}
	return sum / float64(len(img.data))
}

func gridMin(img grid) float64 {
	m := math.Inf(1)
	for _, v := range img.data {
		if v < m {
			m = v
		}
	}
	return m
}

// shiftToZero subtracts the image's minimum from every pixel, per
// step 2.
func shiftToZero(img grid) grid {
	m := gridMin(img)
	out := img.clone()
	for i := range out.data {
		out.data[i] -= m
	}
	return out
}

// zeroPad pads img by p pixels on every side with the image's own mean
// rather than zero, matching the constant-value padding convention used
// ahead of FFT phase correlation so the border doesn't inject a sharp
// edge into the spectrum.
func zeroPad(img grid, p int) grid {
	mean := gridMean(img)
	out := newGrid(img.w+2*p, img.h+2*p)
	for i := range out.data {
		out.data[i] = mean
	}
	for y := 0; y < img.h; y++ {
		for x := 0; x < img.w; x++ {
			out.set(x+p, y+p, img.at(x, y))
		}
	}
	return out
}
