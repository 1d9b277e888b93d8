// Package autodcimg provides the typed pixel buffer shared by every stage
// of the acquisition pipeline: the survey scan, the thresholded/clustered
// derivatives, and the per-region high-resolution captures.
//
// An Image is a rectangular buffer of either a single Grey channel or
// three packed RGB channels. Unlike the standard library's image.Image,
// an autodcimg.Image is a concrete value type sized exactly w*h*channels
// bytes, which keeps the HDF5 writer (package storage) and the gocv
// bridge (ToMat/FromMat) free of any interface indirection.
package autodcimg

import (
	"fmt"
)

// Channel identifies the pixel layout of an Image.
type Channel int

const (
	Grey Channel = iota
	RGB
)

func (c Channel) count() int {
	if c == RGB {
		return 3
	}
	return 1
}

func (c Channel) String() string {
	if c == RGB {
		return "RGB"
	}
	return "Grey"
}

// Point is an integer 2D coordinate, (x, y).
type Point struct {
	X, Y int
}

// Image is a rectangular pixel buffer. Data is laid out row-major, with
// one sample per channel of Chan per pixel (one for Grey, three for
// RGB); indexing is (x, y) as spec'd, i.e. x
// varies fastest within a row.
type Image struct {
	Width, Height int
	Chan          Channel
	Data          []uint8
}

// NewGrey allocates a zeroed single-channel image of the given size.
func NewGrey(w, h int) Image {
	return Image{Width: w, Height: h, Chan: Grey, Data: make([]uint8, w*h)}
}

// NewRGB allocates a zeroed three-channel image of the given size.
func NewRGB(w, h int) Image {
	return Image{Width: w, Height: h, Chan: RGB, Data: make([]uint8, w*h*3)}
}

// FromData wraps an existing buffer, validating the length invariant from
// the data model: len(data) == width*height*channel_count.
func FromData(w, h int, ch Channel, data []uint8) (Image, error) {
	want := w * h * ch.count()
	if len(data) != want {
		return Image{}, fmt.Errorf("autodcimg: data length %d does not match %dx%d %s (want %d)", len(data), w, h, ch, want)
	}
	return Image{Width: w, Height: h, Chan: ch, Data: data}, nil
}

func (img Image) valid(x, y int) bool {
	return x >= 0 && y >= 0 && x < img.Width && y < img.Height
}

// At returns the pixel value(s) at (x, y): one byte for Grey, three for RGB.
func (img Image) At(x, y int) []uint8 {
	if !img.valid(x, y) {
		panic(fmt.Sprintf("autodcimg: At(%d, %d) out of bounds for %dx%d image", x, y, img.Width, img.Height))
	}
	n := img.Chan.count()
	i := (y*img.Width + x) * n
	return img.Data[i : i+n]
}

// Set writes the pixel value(s) at (x, y). len(v) must equal the image's
// channel count. Set is the explicit "drawing access" the data model
// grants to an otherwise immutable-from-the-consumer's-viewpoint Image.
func (img Image) Set(x, y int, v ...uint8) {
	if !img.valid(x, y) {
		return
	}
	if len(v) != img.Chan.count() {
		panic(fmt.Sprintf("autodcimg: Set expected %d channel(s), got %d", img.Chan.count(), len(v)))
	}
	n := img.Chan.count()
	i := (y*img.Width + x) * n
	copy(img.Data[i:i+n], v)
}

// Clone returns an independent copy of the image.
func (img Image) Clone() Image {
	out := Image{Width: img.Width, Height: img.Height, Chan: img.Chan, Data: make([]uint8, len(img.Data))}
	copy(out.Data, img.Data)
	return out
}

// Promote converts a Grey image to RGB by replicating the single channel
// into all three. Promoting an already-RGB image returns a clone.
func (img Image) Promote() Image {
	if img.Chan == RGB {
		return img.Clone()
	}
	out := NewRGB(img.Width, img.Height)
	for i, v := range img.Data {
		out.Data[i*3] = v
		out.Data[i*3+1] = v
		out.Data[i*3+2] = v
	}
	return out
}

// Demote converts an RGB image to Grey. If channel is non-negative, that
// channel (0=R, 1=G, 2=B) is used directly. If channel is negative, all
// three channels must be equal at every pixel or Demote fails, per the
// data model invariant.
func (img Image) Demote(channel int) (Image, error) {
	if img.Chan == Grey {
		return img.Clone(), nil
	}
	n := img.Width * img.Height
	out := NewGrey(img.Width, img.Height)
	if channel >= 0 {
		if channel > 2 {
			return Image{}, fmt.Errorf("autodcimg: Demote channel %d out of range [0,2]", channel)
		}
		for i := 0; i < n; i++ {
			out.Data[i] = img.Data[i*3+channel]
		}
		return out, nil
	}
	for i := 0; i < n; i++ {
		r, g, b := img.Data[i*3], img.Data[i*3+1], img.Data[i*3+2]
		if r != g || g != b {
			return Image{}, fmt.Errorf("autodcimg: Demote requires equal RGB channels at pixel %d (got %d,%d,%d)", i, r, g, b)
		}
		out.Data[i] = r
	}
	return out, nil
}

// Region returns a copy of the sub-rectangle [tl, br) of the image.
func (img Image) Region(tl, br Point) Image {
	w, h := br.X-tl.X, br.Y-tl.Y
	n := img.Chan.count()
	out := Image{Width: w, Height: h, Chan: img.Chan, Data: make([]uint8, w*h*n)}
	for y := 0; y < h; y++ {
		srcI := ((tl.Y+y)*img.Width + tl.X) * n
		dstI := y * w * n
		copy(out.Data[dstI:dstI+w*n], img.Data[srcI:srcI+w*n])
	}
	return out
}

// FillRect draws a filled rectangle [tl, br) with the given colour. For a
// Grey image, only colour[0] is used. This is the "marker" operation the
// scheduler uses to annotate the survey canvas with completed regions,
// pure in-memory drawing, no hardware interaction.
func (img Image) FillRect(tl, br Point, colour ...uint8) {
	for y := tl.Y; y < br.Y; y++ {
		for x := tl.X; x < br.X; x++ {
			img.Set(x, y, colour...)
		}
	}
}

// DistinctLevels returns the distinct grey values present in the image,
// stopping as soon as a third value is found: for an image with more
// than two levels the result holds exactly three of them. Only
// meaningful for Grey images; used by the binary contract check.
func (img Image) DistinctLevels() map[uint8]struct{} {
	levels := make(map[uint8]struct{})
	for _, v := range img.Data {
		levels[v] = struct{}{}
		if len(levels) > 2 {
			break
		}
	}
	return levels
}

// IsBinary reports whether the image has at most two distinct grey
// levels, the contract the cluster extractor (package cluster) requires.
func (img Image) IsBinary() bool {
	if img.Chan != Grey {
		return false
	}
	return len(img.DistinctLevels()) <= 2
}

// Equal reports whether two images are byte-for-byte identical.
func (img Image) Equal(other Image) bool {
	if img.Width != other.Width || img.Height != other.Height || img.Chan != other.Chan {
		return false
	}
	if len(img.Data) != len(other.Data) {
		return false
	}
	for i := range img.Data {
		if img.Data[i] != other.Data[i] {
			return false
		}
	}
	return true
}
