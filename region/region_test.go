package region

import (
	"testing"
	"time"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/cluster"
	"github.com/epsic-dls/autodc/job"
)

func squareCluster(label, size int) *cluster.Cluster {
	mask := autodcimg.NewGrey(size, size)
	for y := 10; y < 22; y++ {
		for x := 10; x < 22; x++ {
			mask.Set(x, y, 255)
		}
	}
	return &cluster.Cluster{
		Label: label,
		Mask:  mask,
		MinXY: autodcimg.Point{X: 10, Y: 10},
		MaxXY: autodcimg.Point{X: 21, Y: 21},
	}
}

func TestDivideCoversBoundingBox(t *testing.T) {
	c := WrapCluster(squareCluster(1, 64))
	grids, err := c.Divide(8, 0, []Overlap{OverlapNone}, 64, 64)
	if err != nil {
		t.Fatalf("Divide: %v", err)
	}
	g := grids[0]
	minX, minY, maxX, maxY := 1<<30, 1<<30, -1, -1
	for _, r := range g.LooseRegions {
		if r.Left < minX {
			minX = r.Left
		}
		if r.Top < minY {
			minY = r.Top
		}
		if r.Right > maxX {
			maxX = r.Right
		}
		if r.Bottom > maxY {
			maxY = r.Bottom
		}
	}
	if minX > 10 || minY > 10 || maxX < 22 || maxY < 22 {
		t.Errorf("loose regions [%d,%d)-[%d,%d) do not cover bounding box [10,10]-[21,21]", minX, minY, maxX, maxY)
	}
}

func TestTightenMonotone(t *testing.T) {
	cl := squareCluster(1, 64)
	wrapped := WrapCluster(cl)
	grids, err := wrapped.Divide(8, 0, []Overlap{OverlapNone}, 64, 64)
	if err != nil {
		t.Fatalf("Divide: %v", err)
	}

	count := func(match float64) int {
		g := grids[0]
		_ = g.Tighten(wrapped, match)
		return len(g.TightRegions)
	}
	loose := append([]ScanRegion(nil), grids[0].LooseRegions...)
	grids[0].LooseRegions = loose
	n1 := count(0.2)

	grids[0].IsTight = false
	grids[0].TightRegions = nil
	grids[0].LooseRegions = append([]ScanRegion(nil), loose...)
	n2 := count(0.8)

	if n2 > n1 {
		t.Errorf("tighten(0.8) kept %d regions, tighten(0.2) kept %d; expected monotonic decrease", n2, n1)
	}
}

func TestScanRegionRescaleComposability(t *testing.T) {
	r, err := NewScanRegion(10, 10, 20, 512)
	if err != nil {
		t.Fatalf("NewScanRegion: %v", err)
	}
	viaTwoSteps := r.At(1024).At(4096)
	direct := r.At(4096)
	if abs(viaTwoSteps.Left-direct.Left) > 1 || abs(viaTwoSteps.Top-direct.Top) > 1 {
		t.Errorf("rescale composability violated: %+v vs %+v", viaTwoSteps, direct)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestManagerMarkUpdateExport(t *testing.T) {
	cl := squareCluster(1, 64)
	m := NewManager(64)
	m.ChooseSource(SurveyClusters, []*cluster.Cluster{cl})

	if err := m.Mark(15, 15, 8, 0, []Overlap{OverlapNone}, 64); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := m.Mark(15, 15, 8, 0, []Overlap{OverlapNone}, 64); err != ErrAlreadyMarked {
		t.Errorf("second Mark on same cluster: got %v, want ErrAlreadyMarked", err)
	}
	if err := m.Mark(0, 0, 8, 0, []Overlap{OverlapNone}, 64); err != ErrMissingCluster {
		t.Errorf("Mark outside any cluster: got %v, want ErrMissingCluster", err)
	}
	if err := m.Update(1, 8, 0, []Overlap{OverlapNone}, 64); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := m.Export(); err == nil {
		t.Error("Export before tightening should fail")
	}

	ctrl, done := m.TightenAll(0.1)
	if err := <-done; err != nil {
		t.Fatalf("TightenAll: %v", err)
	}
	if ctrl.Status() != 0 {
		// Finished is not Active(0); just ensure it progressed without panics.
		_ = ctrl.Status()
	}

	regions, err := m.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(regions) == 0 {
		t.Error("expected a non-empty exported region list")
	}
	for _, r := range regions {
		if !r.InBounds(64) {
			t.Errorf("exported region %+v falls outside [0,64)^2", r)
		}
	}
}

// TestTightenAllPauseResumeCompletes pauses a TightenAll run partway
// through, resumes it, and expects done to still receive a value and
// every grid to end up tightened: the pause must block the goroutine in
// place rather than abandoning it without a result.
func TestTightenAllPauseResumeCompletes(t *testing.T) {
	m := NewManager(64)
	m.ChooseSource(SurveyClusters, []*cluster.Cluster{squareCluster(1, 64), squareCluster(2, 64)})

	if err := m.Mark(15, 15, 4, 0, []Overlap{OverlapNone}, 64); err != nil {
		t.Fatalf("Mark cluster 1: %v", err)
	}

	ctrl, done := m.TightenAll(0.1)
	ctrl.Pause()

	go func() {
		time.Sleep(5 * time.Millisecond)
		ctrl.Resume()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("TightenAll: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TightenAll pause/resume never completed: done received no value")
	}

	if ctrl.Status() != job.Finished {
		t.Errorf("Status() = %v, want Finished", ctrl.Status())
	}

	regions, err := m.Export()
	if err != nil {
		t.Fatalf("Export after pause/resume: %v", err)
	}
	if len(regions) == 0 {
		t.Error("expected a non-empty exported region list after pause/resume")
	}
}
