package autodcimg

import "testing"

func TestFromDataLengthInvariant(t *testing.T) {
	if _, err := FromData(4, 4, Grey, make([]uint8, 15)); err == nil {
		t.Error("expected error for short Grey buffer")
	}
	if _, err := FromData(2, 2, RGB, make([]uint8, 12)); err != nil {
		t.Errorf("unexpected error for valid RGB buffer: %v", err)
	}
}

func TestPromoteDemoteRoundTrip(t *testing.T) {
	grey := NewGrey(3, 2)
	for i := range grey.Data {
		grey.Data[i] = uint8(i * 10)
	}
	rgb := grey.Promote()
	back, err := rgb.Demote(-1)
	if err != nil {
		t.Fatalf("Demote: %v", err)
	}
	if !grey.Equal(back) {
		t.Error("promote/demote round trip changed pixel data")
	}
}

func TestDemoteUnequalChannelsFails(t *testing.T) {
	rgb := NewRGB(1, 1)
	rgb.Set(0, 0, 1, 2, 3)
	if _, err := rgb.Demote(-1); err == nil {
		t.Error("expected Demote to fail on unequal channels without an explicit channel selector")
	}
	grey, err := rgb.Demote(1)
	if err != nil {
		t.Fatalf("Demote(1): %v", err)
	}
	if grey.Data[0] != 2 {
		t.Errorf("Demote(1) = %d, want 2", grey.Data[0])
	}
}

func TestRegion(t *testing.T) {
	img := NewGrey(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, uint8(y*4+x))
		}
	}
	sub := img.Region(Point{1, 1}, Point{3, 3})
	if sub.Width != 2 || sub.Height != 2 {
		t.Fatalf("region size = %dx%d, want 2x2", sub.Width, sub.Height)
	}
	if sub.At(0, 0)[0] != 5 || sub.At(1, 1)[0] != 10 {
		t.Errorf("region data mismatch: %v", sub.Data)
	}
}

func TestIsBinary(t *testing.T) {
	img := NewGrey(2, 2)
	if !img.IsBinary() {
		t.Error("all-zero image should be binary")
	}
	img.Set(0, 0, 255)
	if !img.IsBinary() {
		t.Error("two-level image should be binary")
	}
	img.Set(1, 0, 128)
	if img.IsBinary() {
		t.Error("three-level image should not be binary")
	}
}

func TestEqual(t *testing.T) {
	a := NewGrey(2, 2)
	b := NewGrey(2, 2)
	if !a.Equal(b) {
		t.Error("two zeroed images of equal size should be equal")
	}
	b.Set(0, 0, 1)
	if a.Equal(b) {
		t.Error("images differing in one pixel should not be equal")
	}
}
