package focus

import (
	"math"
	"testing"

	"github.com/epsic-dls/autodc/autodcimg"
)

// peakedScan synthesizes a frame whose FoM peaks at lensValue == target,
// falling off quadratically, so Run should converge near target.
func peakedScan(target float64) ScanFunc {
	return func(lens float64) (autodcimg.Image, error) {
		img := autodcimg.NewGrey(16, 16)
		sharpness := math.Max(0, 40-4*(lens-target)*(lens-target))
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				v := 100
				if (x+y)%2 == 0 {
					v += int(sharpness)
				}
				if v > 255 {
					v = 255
				}
				img.Set(x, y, uint8(v))
			}
		}
		return img, nil
	}
}

func TestFoMHigherForSharperImage(t *testing.T) {
	sharp, _ := peakedScan(0)(0)
	flat := autodcimg.NewGrey(16, 16)
	for i := range flat.Data {
		flat.Data[i] = 100
	}
	sharpFoM, err := FoM(sharp)
	if err != nil {
		t.Fatalf("FoM sharp: %v", err)
	}
	flatFoM, err := FoM(flat)
	if err != nil {
		t.Fatalf("FoM flat: %v", err)
	}
	if sharpFoM <= flatFoM {
		t.Errorf("sharp FoM %v should exceed flat FoM %v", sharpFoM, flatFoM)
	}
}

func TestRunConvergesTowardPeak(t *testing.T) {
	s := NewState(-5, Config{
		CoarseRange: 6, CoarseStep: 2,
		FineRange: 2, FineStep: 0.5,
		Tolerance: 0.001, ChangeLimit: 20, ChangeDecay: 1, Scans: 10,
	})
	res, err := s.Run(peakedScan(0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if math.Abs(res.LensValue) > 1.5 {
		t.Errorf("LensValue = %v, want within 1.5 of 0", res.LensValue)
	}
	if res.RolledBack {
		t.Errorf("expected no rollback, target is within ChangeLimit")
	}
}

func TestRunRollsBackWhenChangeExceedsLimit(t *testing.T) {
	s := NewState(-5, Config{
		CoarseRange: 6, CoarseStep: 2,
		FineRange: 2, FineStep: 0.5,
		Tolerance: 0.001, ChangeLimit: 1, ChangeDecay: 1, Scans: 10,
	})
	res, err := s.Run(peakedScan(0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.RolledBack {
		t.Errorf("expected rollback: target is far outside ChangeLimit")
	}
	if res.LensValue != -5 {
		t.Errorf("LensValue = %v after rollback, want unchanged -5", res.LensValue)
	}
}

func TestParabolicRefineRejectsNonConcave(t *testing.T) {
	s := NewState(0, Config{FineStep: 1})
	s.cache = map[float64]float64{-1: 1, 0: 2, 1: 4} // monotonic, not a peak
	if _, ok := s.parabolicRefine(0); ok {
		t.Errorf("parabolicRefine should reject a monotonic triple")
	}
}
