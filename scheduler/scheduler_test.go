package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/drift"
	"github.com/epsic-dls/autodc/emission"
	"github.com/epsic-dls/autodc/focus"
	"github.com/epsic-dls/autodc/hardware"
	"github.com/epsic-dls/autodc/job"
	"github.com/epsic-dls/autodc/region"
	"github.com/epsic-dls/autodc/storage"
)

type memSink struct {
	mu      sync.Mutex
	written []region.ScanRegion

	// pauseAt and ctrl let a test pause the run synchronously after the
	// Nth region is written, from inside the scheduler's own producer
	// goroutine rather than racing it from the consumer side.
	pauseAt int
	ctrl    *job.Control
}

func (m *memSink) WriteRegion(r region.ScanRegion, _ autodcimg.Image, _ storage.Stages, _ *storage.MerlinMetadata) error {
	m.mu.Lock()
	m.written = append(m.written, r)
	n := len(m.written)
	m.mu.Unlock()

	if m.ctrl != nil && m.pauseAt > 0 && n == m.pauseAt {
		m.ctrl.Pause()
	}
	return nil
}

func regions(n int) []region.ScanRegion {
	out := make([]region.ScanRegion, n)
	for i := range out {
		r, _ := region.NewScanRegion(i*4, 0, 4, 64)
		out[i] = r
	}
	return out
}

func TestRunProcessesAllRegions(t *testing.T) {
	dev := &hardware.MockMicroscope{}
	hw := hardware.NewHandle(dev)
	sink := &memSink{}
	s := New(hw, sink, Corrections{}, Config{Workers: 1}, autodcimg.Image{})

	rs := regions(5)
	out := s.Run(context.Background(), rs)
	var count int
	for range out {
		count++
	}
	if count != len(rs) {
		t.Fatalf("got %d results, want %d", count, len(rs))
	}
	if dev.ScanCalls != len(rs) {
		t.Errorf("ScanCalls = %d, want %d", dev.ScanCalls, len(rs))
	}
}

func TestRunStopsOnCtrlStop(t *testing.T) {
	dev := &hardware.MockMicroscope{}
	hw := hardware.NewHandle(dev)
	s := New(hw, nil, Corrections{}, Config{Workers: 1}, autodcimg.Image{})
	s.Ctrl.Stop()

	out := s.Run(context.Background(), regions(5))
	var count int
	for range out {
		count++
	}
	if count != 0 {
		t.Errorf("got %d results after Stop, want 0", count)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	dev := &hardware.MockMicroscope{}
	hw := hardware.NewHandle(dev)
	s := New(hw, nil, Corrections{}, Config{Workers: 1}, autodcimg.Image{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := s.Run(ctx, regions(5))
	select {
	case _, ok := <-out:
		if ok {
			t.Errorf("expected no results once context is already cancelled")
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not close its output channel promptly")
	}
}

// TestRunPauseResumePreservesOrder is the E6 scenario: pause mid-run
// after the 2nd of 5 regions, resume, and expect all 5 results to
// arrive afterward in their original order.
func TestRunPauseResumePreservesOrder(t *testing.T) {
	dev := &hardware.MockMicroscope{}
	hw := hardware.NewHandle(dev)
	sink := &memSink{pauseAt: 2}
	s := New(hw, sink, Corrections{}, Config{Workers: 1}, autodcimg.Image{})
	sink.ctrl = s.Ctrl

	rs := regions(5)
	out := s.Run(context.Background(), rs)

	go func() {
		for {
			if s.Ctrl.Status() == job.Paused {
				s.Ctrl.Resume()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	var got []region.ScanRegion
	for res := range out {
		if res.Err != nil {
			t.Fatalf("unexpected region error: %v", res.Err)
		}
		got = append(got, res.Region)
	}

	if len(got) != len(rs) {
		t.Fatalf("got %d results, want %d", len(got), len(rs))
	}
	for i, r := range got {
		if r != rs[i] {
			t.Errorf("result[%d] = %+v, want %+v (pause/resume must preserve original order)", i, r, rs[i])
		}
	}
}

// TestRunWiresCorrections exercises a real Corrections{Drift, Focus,
// Emission} trio rather than the zero value, confirming the scheduler
// actually drives their cadence: with a Scans limit of 1, a correction
// falls due on the second scan (Counter strictly exceeds its limit) and
// fires, which for focus issues extra hardware scans beyond one per
// region.
func TestRunWiresCorrections(t *testing.T) {
	dev := &hardware.MockMicroscope{}
	hw := hardware.NewHandle(dev)

	rs := regions(3)
	reference, err := hw.Scan(rs[0])
	if err != nil {
		t.Fatalf("reference scan: %v", err)
	}

	driftState, err := drift.NewState(reference, drift.Config{Pad: 8, Resolution: 1, Scans: 1})
	if err != nil {
		t.Fatalf("drift.NewState: %v", err)
	}
	focusState := focus.NewState(0, focus.Config{
		CoarseRange: 0, CoarseStep: 1,
		FineRange: 0, FineStep: 1,
		ChangeLimit: 1000, ChangeDecay: 1, Scans: 1,
	})
	emissionMonitor := emission.NewMonitor(0, emission.Config{Tolerance: 1, Scans: 1})

	corr := Corrections{Drift: driftState, Focus: focusState, Emission: emissionMonitor}
	sink := &memSink{}
	s := New(hw, sink, corr, Config{Workers: 1}, autodcimg.Image{})

	out := s.Run(context.Background(), rs)
	var count int
	for res := range out {
		if res.Err != nil {
			t.Fatalf("unexpected region error: %v", res.Err)
		}
		count++
	}
	if count != len(rs) {
		t.Fatalf("got %d results, want %d", count, len(rs))
	}

	// One region scan per region, plus the focus correction's own
	// warm-up and baseline scans once its cadence fires.
	if dev.ScanCalls <= len(rs) {
		t.Errorf("ScanCalls = %d, want more than %d (focus correction should have run)", dev.ScanCalls, len(rs))
	}
	if driftState.Counter.Current != 1 {
		t.Errorf("drift Counter.Current = %v, want 1: reset after the 2nd scan, re-incremented by the 3rd", driftState.Counter.Current)
	}
}
