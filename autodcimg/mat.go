package autodcimg

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ToMat bridges an Image into a gocv.Mat so that package preprocess can
// drive the underlying OpenCV operators. The returned Mat shares no
// memory with img; callers must Close() it.
func (img Image) ToMat() (gocv.Mat, error) {
	if img.Chan == Grey {
		mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8U, img.Data)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("autodcimg: ToMat: %w", err)
		}
		return mat, nil
	}
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("autodcimg: ToMat: %w", err)
	}
	return mat, nil
}

// FromMat copies a gocv.Mat back into an Image. The Mat must be 8-bit,
// single or triple channel, matching Grey or RGB respectively.
func FromMat(mat gocv.Mat) (Image, error) {
	w, h := mat.Cols(), mat.Rows()
	switch mat.Channels() {
	case 1:
		out := NewGrey(w, h)
		copy(out.Data, mat.ToBytes())
		return out, nil
	case 3:
		out := NewRGB(w, h)
		copy(out.Data, mat.ToBytes())
		return out, nil
	default:
		return Image{}, fmt.Errorf("autodcimg: FromMat: unsupported channel count %d", mat.Channels())
	}
}

// LoadFile reads an image file (BMP/PNG/JPEG, anything gocv's IMRead
// understands) as a Grey image, matching the survey-load step of the
// data model's Image lifecycle ("created by scan or file load").
func LoadFile(path string) (Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mat.Empty() {
		return Image{}, fmt.Errorf("autodcimg: LoadFile: could not read %q", path)
	}
	defer mat.Close()
	return FromMat(mat)
}
