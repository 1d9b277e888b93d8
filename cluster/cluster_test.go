package cluster

import (
	"testing"

	"github.com/epsic-dls/autodc/autodcimg"
)

func TestExtractRejectsNonBinary(t *testing.T) {
	img := autodcimg.NewGrey(4, 4)
	img.Set(0, 0, 1)
	img.Set(1, 1, 2)
	img.Set(2, 2, 3)
	if _, err := Extract(img, 1.5, 1, Euclidean); err != ErrNotBinary {
		t.Fatalf("Extract on non-binary image: got %v, want ErrNotBinary", err)
	}
}

func TestExtractEmptyForeground(t *testing.T) {
	img := autodcimg.NewGrey(8, 8)
	clusters, err := Extract(img, 2, 2, Euclidean)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if clusters != nil {
		t.Errorf("expected nil clusters for empty foreground, got %v", clusters)
	}
}

func TestExtractLabelsDenseAndBoundingBox(t *testing.T) {
	img := autodcimg.NewGrey(10, 10)
	// two well separated 2x2 blobs
	for _, p := range [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}} {
		img.Set(p[0], p[1], 255)
	}
	for _, p := range [][2]int{{7, 7}, {7, 8}, {8, 7}, {8, 8}} {
		img.Set(p[0], p[1], 255)
	}

	clusters, err := Extract(img, 1.5, 2, Euclidean)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}

	seen := make(map[int]bool)
	for _, c := range clusters {
		seen[c.Label] = true
		if err := validateBoundingBox(c); err != nil {
			t.Errorf("bounding box invalid: %v", err)
		}
	}
	for l := 1; l <= len(clusters); l++ {
		if !seen[l] {
			t.Errorf("missing dense label %d", l)
		}
	}

	first := clusters[0]
	if first.MinXY.X < 0 || first.MinXY.Y < 0 {
		t.Errorf("bounding box min should be non-negative, got %+v", first.MinXY)
	}
	if first.Width() != 2 || first.Height() != 2 {
		t.Errorf("expected a 2x2 bounding box, got %dx%d", first.Width(), first.Height())
	}
}

func TestFilterBySize(t *testing.T) {
	clusters := []Cluster{
		{Label: 1, MinXY: autodcimg.Point{0, 0}, MaxXY: autodcimg.Point{9, 9}},
		{Label: 2, MinXY: autodcimg.Point{0, 0}, MaxXY: autodcimg.Point{2, 2}},
	}
	kept := FilterBySize(clusters, 5, 5, NoLower)
	if len(kept) != 1 || kept[0].Label != 1 {
		t.Errorf("FilterBySize(NoLower) = %v, want only label 1", kept)
	}
}
