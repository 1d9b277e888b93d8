package drift

import (
	"math"
	"testing"

	"github.com/epsic-dls/autodc/autodcimg"
)

func checkerboard(w, h, phaseX, phaseY int) autodcimg.Image {
	img := autodcimg.NewGrey(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x+phaseX)%8 < 4 != ((y+phaseY)%8 < 4) {
				v = 200
			}
			img.Set(x, y, v)
		}
	}
	return img
}

func TestUpdateIdenticalImagesYieldsZero(t *testing.T) {
	ref := checkerboard(64, 64, 0, 0)
	s, err := NewState(ref, Config{Order: []Window{Hanning}, Pad: 32, Resolution: 1, Scans: 10})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	dx, dy, err := s.Update(ref)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if dx != 0 || dy != 0 {
		t.Errorf("identical images drifted by (%d, %d), want (0, 0)", dx, dy)
	}
}

func TestUpdateDetectsOnePixelShift(t *testing.T) {
	ref := checkerboard(64, 64, 0, 0)
	shifted := checkerboard(64, 64, 1, 0)
	s, err := NewState(ref, Config{Order: []Window{Hanning}, Pad: 32, Resolution: 1, Scans: 10})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	dx, dy, err := s.Update(shifted)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if dy != 0 {
		t.Errorf("dy = %d, want 0", dy)
	}
	if math.Abs(float64(dx)) > 1 {
		t.Errorf("dx = %d, want magnitude <= 1", dx)
	}
}

func TestFractionalAccumulatorConservesSum(t *testing.T) {
	s := &State{cfg: Config{Resolution: 1}}
	var totalRaw, totalEmitted float64
	raws := []float64{0.3, 0.3, 0.3, 0.3, 0.3}
	for _, r := range raws {
		s.accX += r
		emit, frac := math.Modf(s.accX)
		s.accX = frac
		totalRaw += r
		totalEmitted += emit
	}
	if math.Abs(totalRaw-(totalEmitted+s.accX)) > 1e-9 {
		t.Errorf("emitted (%v) + remainder (%v) != raw total (%v)", totalEmitted, s.accX, totalRaw)
	}
}

func TestResetClearsAccumulatorAndCounter(t *testing.T) {
	ref := checkerboard(32, 32, 0, 0)
	s, err := NewState(ref, Config{Order: nil, Pad: 16, Resolution: 1, Scans: 2})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s.accX, s.accY = 0.7, 0.4
	s.Counter.Increase()
	s.Counter.Increase()
	s.Counter.Increase()
	if s.Counter.Check() {
		t.Fatalf("counter should need reset once scans exceed its limit")
	}
	if err := s.Reset(ref); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.accX != 0 || s.accY != 0 {
		t.Errorf("Reset left accumulator at (%v, %v), want (0, 0)", s.accX, s.accY)
	}
	if !s.Counter.Check() {
		t.Errorf("Reset did not clear the counter")
	}
}
