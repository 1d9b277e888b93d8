package preprocess

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/epsic-dls/autodc/autodcimg"
)

// matOp runs a function against a gocv.Mat view of img and converts the
// result back, centralising the ToMat/Close/FromMat boilerplate every
// operator below needs.
func matOp(img autodcimg.Image, f func(src, dst *gocv.Mat)) (autodcimg.Image, error) {
	src, err := img.ToMat()
	if err != nil {
		return autodcimg.Image{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	f(&src, &dst)

	return autodcimg.FromMat(dst)
}

// Blur is a box blur with an h x w kernel, both dimensions odd.
type Blur struct{ H, W int }

func (b Blur) Name() string { return "blur" }

func (b Blur) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if err := oddOrErr("blur.H", b.H); err != nil {
		return autodcimg.Image{}, err
	}
	if err := oddOrErr("blur.W", b.W); err != nil {
		return autodcimg.Image{}, err
	}
	return matOp(img, func(src, dst *gocv.Mat) {
		gocv.Blur(*src, dst, imagePoint(b.W, b.H))
	})
}

// GaussianBlur applies a Gaussian kernel. Sigma of zero is derived from
// the kernel size by gocv/OpenCV's own convention.
type GaussianBlur struct {
	H, W       int
	SigmaX     float64
	SigmaY     float64
}

func (g GaussianBlur) Name() string { return "gss_blur" }

func (g GaussianBlur) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if err := oddOrErr("gss_blur.H", g.H); err != nil {
		return autodcimg.Image{}, err
	}
	if err := oddOrErr("gss_blur.W", g.W); err != nil {
		return autodcimg.Image{}, err
	}
	return matOp(img, func(src, dst *gocv.Mat) {
		gocv.GaussianBlur(*src, dst, imagePoint(g.W, g.H), g.SigmaX, g.SigmaY, gocv.BorderDefault)
	})
}

// Sharpen applies Laplacian sharpening: size must be odd, scale >= 0.
type Sharpen struct {
	Size  int
	Scale float64
	Delta float64
}

func (s Sharpen) Name() string { return "sharpen" }

func (s Sharpen) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if err := oddOrErr("sharpen.Size", s.Size); err != nil {
		return autodcimg.Image{}, err
	}
	if s.Scale < 0 {
		return autodcimg.Image{}, fmt.Errorf("preprocess: sharpen.Scale must be >= 0, got %v", s.Scale)
	}
	return matOp(img, func(src, dst *gocv.Mat) {
		lap := gocv.NewMat()
		defer lap.Close()
		gocv.LaplacianWithParams(*src, &lap, gocv.MatTypeCV8U, s.Size, s.Scale, s.Delta, gocv.BorderDefault)
		gocv.Subtract(*src, lap, dst)
	})
}

// Median is a median filter with an odd kernel size.
type Median struct{ Size int }

func (m Median) Name() string { return "median" }

func (m Median) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if err := oddOrErr("median.Size", m.Size); err != nil {
		return autodcimg.Image{}, err
	}
	return matOp(img, func(src, dst *gocv.Mat) {
		gocv.MedianBlur(*src, dst, m.Size)
	})
}

// Edge is a Canny edge detector; result is optionally inverted.
type Edge struct {
	Size           int
	Minima, Maxima float32
	Invert         bool
}

func (e Edge) Name() string { return "edge" }

func (e Edge) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if err := oddOrErr("edge.Size", e.Size); err != nil {
		return autodcimg.Image{}, err
	}
	return matOp(img, func(src, dst *gocv.Mat) {
		gocv.Canny(*src, dst, e.Minima, e.Maxima)
		if e.Invert {
			gocv.BitwiseNot(*dst, dst)
		}
	})
}

// Threshold maps pixels in [Minima, Maxima] to black and everything else
// to white; Invert flips the polarity. OpenCV's own gocv.Threshold only
// supports a single cutoff, not a two-sided [Minima, Maxima] band, so
// Apply does the banding in pure Go, except when Maxima == 255: that
// band is one-sided and Apply delegates to applyMat.
type Threshold struct {
	Minima, Maxima uint8
	Invert         bool
}

func (t Threshold) Name() string { return "threshold" }

func (t Threshold) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if t.Maxima == 255 {
		return t.applyMat(img)
	}
	out := autodcimg.NewGrey(img.Width, img.Height)
	black, white := uint8(0), uint8(255)
	if t.Invert {
		black, white = white, black
	}
	for i, v := range img.Data {
		if v >= t.Minima && v <= t.Maxima {
			out.Data[i] = black
		} else {
			out.Data[i] = white
		}
	}
	return out, nil
}

// applyMat applies the one-sided band [Minima, 255] via gocv.Threshold,
// used by Apply when Maxima == 255 (no upper band): pixels >= Minima
// become black and the rest white, or the reverse when Invert is set.
func (t Threshold) applyMat(img autodcimg.Image) (autodcimg.Image, error) {
	return matOp(img, func(src, dst *gocv.Mat) {
		thresholdType := gocv.ThresholdBinaryInv
		if t.Invert {
			thresholdType = gocv.ThresholdBinary
		}
		gocv.Threshold(*src, dst, float32(t.Minima)-1, 255, thresholdType)
	})
}

// MorphShape selects the structuring element shape for morphological ops.
type MorphShape int

const (
	Rect MorphShape = iota
	Cross
	Ellipse
)

func (s MorphShape) toGocv() gocv.MorphShape {
	switch s {
	case Cross:
		return gocv.MorphCross
	case Ellipse:
		return gocv.MorphEllipse
	default:
		return gocv.MorphRect
	}
}

// morphOp is the common shape behind Open/Close/Gradient/IGradient/
// EGradient: a structuring element of H x W applied `repeats` times with
// the given morph kind, optionally scaled (scale is a post-op contrast
// stretch rather than an OpenCV morphology parameter, matching the
// "scale, repeats" parameter pair lists per morphological op).
func morphOp(img autodcimg.Image, h, w int, shape MorphShape, kind gocv.MorphType, scale float64, repeats int) (autodcimg.Image, error) {
	if err := oddOrErr("morph.H", h); err != nil {
		return autodcimg.Image{}, err
	}
	if err := oddOrErr("morph.W", w); err != nil {
		return autodcimg.Image{}, err
	}
	if repeats < 1 {
		return autodcimg.Image{}, fmt.Errorf("preprocess: morph repeats must be >= 1, got %d", repeats)
	}
	kernel := gocv.GetStructuringElement(shape.toGocv(), imagePoint(w, h))
	defer kernel.Close()

	out, err := matOp(img, func(src, dst *gocv.Mat) {
		cur := src.Clone()
		defer cur.Close()
		for i := 0; i < repeats; i++ {
			gocv.MorphologyEx(cur, dst, kind, kernel)
			if i < repeats-1 {
				cur.Close()
				cur = dst.Clone()
			}
		}
	})
	if err != nil {
		return out, err
	}
	if scale != 1 && scale != 0 {
		for i, v := range out.Data {
			out.Data[i] = scaleByte(v, scale)
		}
	}
	return out, nil
}

func scaleByte(v uint8, scale float64) uint8 {
	f := float64(v) * scale
	if f > 255 {
		return 255
	}
	if f < 0 {
		return 0
	}
	return uint8(f)
}

type Open struct {
	H, W    int
	Shape   MorphShape
	Scale   float64
	Repeats int
}

func (o Open) Name() string { return "open" }
func (o Open) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	return morphOp(img, o.H, o.W, o.Shape, gocv.MorphOpen, o.Scale, o.Repeats)
}

type Close struct {
	H, W    int
	Shape   MorphShape
	Scale   float64
	Repeats int
}

func (c Close) Name() string { return "close" }
func (c Close) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	return morphOp(img, c.H, c.W, c.Shape, gocv.MorphClose, c.Scale, c.Repeats)
}

type Gradient struct {
	H, W    int
	Shape   MorphShape
	Scale   float64
	Repeats int
}

func (g Gradient) Name() string { return "gradient" }
func (g Gradient) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	return morphOp(img, g.H, g.W, g.Shape, gocv.MorphGradient, g.Scale, g.Repeats)
}

// IGradient is the internal gradient: src - erode(src).
type IGradient struct {
	H, W    int
	Shape   MorphShape
	Scale   float64
	Repeats int
}

func (g IGradient) Name() string { return "i_gradient" }
func (g IGradient) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if err := oddOrErr("i_gradient.H", g.H); err != nil {
		return autodcimg.Image{}, err
	}
	if err := oddOrErr("i_gradient.W", g.W); err != nil {
		return autodcimg.Image{}, err
	}
	kernel := gocv.GetStructuringElement(g.Shape.toGocv(), imagePoint(g.W, g.H))
	defer kernel.Close()
	out, err := matOp(img, func(src, dst *gocv.Mat) {
		eroded := gocv.NewMat()
		defer eroded.Close()
		cur := *src
		for i := 0; i < g.Repeats; i++ {
			gocv.Erode(cur, &eroded, kernel)
			cur = eroded
		}
		gocv.Subtract(*src, eroded, dst)
	})
	if err != nil {
		return out, err
	}
	if g.Scale != 1 && g.Scale != 0 {
		for i, v := range out.Data {
			out.Data[i] = scaleByte(v, g.Scale)
		}
	}
	return out, nil
}

// EGradient is the external gradient: dilate(src) - src.
type EGradient struct {
	H, W    int
	Shape   MorphShape
	Scale   float64
	Repeats int
}

func (g EGradient) Name() string { return "e_gradient" }
func (g EGradient) Apply(img autodcimg.Image) (autodcimg.Image, error) {
	if err := oddOrErr("e_gradient.H", g.H); err != nil {
		return autodcimg.Image{}, err
	}
	if err := oddOrErr("e_gradient.W", g.W); err != nil {
		return autodcimg.Image{}, err
	}
	kernel := gocv.GetStructuringElement(g.Shape.toGocv(), imagePoint(g.W, g.H))
	defer kernel.Close()
	out, err := matOp(img, func(src, dst *gocv.Mat) {
		dilated := gocv.NewMat()
		defer dilated.Close()
		cur := *src
		for i := 0; i < g.Repeats; i++ {
			gocv.Dilate(cur, &dilated, kernel)
			cur = dilated
		}
		gocv.Subtract(dilated, *src, dst)
	})
	if err != nil {
		return out, err
	}
	if g.Scale != 1 && g.Scale != 0 {
		for i, v := range out.Data {
			out.Data[i] = scaleByte(v, g.Scale)
		}
	}
	return out, nil
}

func imagePoint(w, h int) image.Point {
	return image.Point{X: w, Y: h}
}
