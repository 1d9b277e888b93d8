package drift

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// cgrid is a complex-valued row-major image, used only inside the 2D FFT
// phase correlation stage.
type cgrid struct {
	w, h int
	data []complex128
}

func newCgrid(w, h int) cgrid { return cgrid{w: w, h: h, data: make([]complex128, w*h)} }

func fromReal(g grid) cgrid {
	out := newCgrid(g.w, g.h)
	for i, v := range g.data {
		out.data[i] = complex(v, 0)
	}
	return out
}

// fft2 runs a separable forward or inverse 2D FFT (rows then columns),
// since gonum.org/v1/gonum/dsp/fourier only exposes 1D complex transforms.
func fft2(img cgrid, inverse bool) cgrid {
	rowTransform := fourier.NewCmplxFFT(img.w)
	out := newCgrid(img.w, img.h)
	row := make([]complex128, img.w)
	for y := 0; y < img.h; y++ {
		copy(row, img.data[y*img.w:(y+1)*img.w])
		var res []complex128
		if inverse {
			res = rowTransform.Sequence(nil, row)
		} else {
			res = rowTransform.Coefficients(nil, row)
		}
		copy(out.data[y*img.w:(y+1)*img.w], res)
	}

	colTransform := fourier.NewCmplxFFT(out.h)
	col := make([]complex128, out.h)
	for x := 0; x < out.w; x++ {
		for y := 0; y < out.h; y++ {
			col[y] = out.data[y*out.w+x]
		}
		var res []complex128
		if inverse {
			res = colTransform.Sequence(nil, col)
		} else {
			res = colTransform.Coefficients(nil, col)
		}
		for y := 0; y < out.h; y++ {
			out.data[y*out.w+x] = res[y]
		}
	}

	if inverse {
		n := complex(float64(out.w*out.h), 0)
		for i := range out.data {
			out.data[i] /= n
		}
	}
	return out
}

// crossPowerSpectrum computes F(a) * conj(F(b)) / |F(a) * conj(F(b))|,
// the normalized cross-power spectrum whose inverse FFT peaks at the
// translation between a and b.
func crossPowerSpectrum(fa, fb cgrid) cgrid {
	out := newCgrid(fa.w, fa.h)
	for i := range out.data {
		prod := fa.data[i] * cmplx.Conj(fb.data[i])
		mag := cmplx.Abs(prod)
		if mag < 1e-12 {
			out.data[i] = 0
			continue
		}
		out.data[i] = prod / complex(mag, 0)
	}
	return out
}

// peak finds the location of the largest-magnitude real part in corr and
// returns it as a signed shift relative to the image centre, wrapping the
// second half of each axis into negative offsets (standard FFT-shift
// convention for a correlation surface).
func peak(corr cgrid) (dx, dy int) {
	best := math.Inf(-1)
	bx, by := 0, 0
	for y := 0; y < corr.h; y++ {
		for x := 0; x < corr.w; x++ {
			v := real(corr.data[y*corr.w+x])
			if v > best {
				best = v
				bx, by = x, y
			}
		}
	}
	if bx > corr.w/2 {
		bx -= corr.w
	}
	if by > corr.h/2 {
		by -= corr.h
	}
	return bx, by
}

// phaseCorrelate returns the integer (dx, dy) translation of b relative
// to a via FFT phase correlation, negated perthe reference implementation's
// `shift = -corr` convention (the correlation peak points from b back
// toward a, so the drift applied to future scan coordinates is the
// negation of the raw peak).
func phaseCorrelate(a, b grid) (dx, dy int) {
	fa := fft2(fromReal(a), false)
	fb := fft2(fromReal(b), false)
	cross := crossPowerSpectrum(fa, fb)
	spatial := fft2(cross, true)
	px, py := peak(spatial)
	return -px, -py
}
