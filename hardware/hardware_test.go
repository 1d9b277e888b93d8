package hardware

import (
	"errors"
	"testing"

	"github.com/epsic-dls/autodc/region"
)

func TestWithScanAreaRestoresPrevious(t *testing.T) {
	dev := &MockMicroscope{}
	h := NewHandle(dev)
	original, _ := region.NewScanRegion(0, 0, 32, 1)
	h.SetScanArea(original)

	temp, _ := region.NewScanRegion(10, 10, 8, 1)
	err := h.WithScanArea(temp, func() error {
		cur, _ := h.ScanArea()
		if cur != temp {
			t.Errorf("inside WithScanArea, area = %+v, want %+v", cur, temp)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithScanArea: %v", err)
	}
	cur, _ := h.ScanArea()
	if cur != original {
		t.Errorf("after WithScanArea, area = %+v, want restored %+v", cur, original)
	}
}

func TestWithScanAreaRestoresOnError(t *testing.T) {
	dev := &MockMicroscope{}
	h := NewHandle(dev)
	original, _ := region.NewScanRegion(0, 0, 32, 1)
	h.SetScanArea(original)

	temp, _ := region.NewScanRegion(5, 5, 8, 1)
	boom := errors.New("boom")
	err := h.WithScanArea(temp, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("WithScanArea error = %v, want %v", err, boom)
	}
	cur, _ := h.ScanArea()
	if cur != original {
		t.Errorf("area not restored after fn error: got %+v, want %+v", cur, original)
	}
}

func TestScanWrapsError(t *testing.T) {
	dev := &MockMicroscope{}
	h := NewHandle(dev)
	bad, _ := region.NewScanRegion(0, 0, 1, 1)
	bad.Right = bad.Left // force Side() <= 0
	_, err := h.Scan(bad)
	if err == nil {
		t.Fatalf("expected error for a degenerate scan region")
	}
	var herr *HardwareError
	if !errors.As(err, &herr) {
		t.Fatalf("error = %v, want *HardwareError", err)
	}
	if herr.Line != "scan" {
		t.Errorf("HardwareError.Line = %q, want %q", herr.Line, "scan")
	}
}

func TestWithLensRestoresPrevious(t *testing.T) {
	dev := &MockMicroscope{Lens: 1.5}
	h := NewHandle(dev)
	h.WithLens(9.9, func() error {
		v, _ := h.LensValue()
		if v != 9.9 {
			t.Errorf("inside WithLens, lens = %v, want 9.9", v)
		}
		return nil
	})
	v, _ := h.LensValue()
	if v != 1.5 {
		t.Errorf("after WithLens, lens = %v, want restored 1.5", v)
	}
}
