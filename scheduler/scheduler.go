// Package scheduler drives the acquisition run: walking the exported
// scan regions, serializing hardware access, interleaving the drift,
// focus and emission corrections between scans, and persisting each
// result, following a pause/stop state-transition table.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/alitto/pond"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/correct"
	"github.com/epsic-dls/autodc/drift"
	"github.com/epsic-dls/autodc/emission"
	"github.com/epsic-dls/autodc/focus"
	"github.com/epsic-dls/autodc/hardware"
	"github.com/epsic-dls/autodc/job"
	"github.com/epsic-dls/autodc/region"
	"github.com/epsic-dls/autodc/storage"
)

// Sink persists a completed scan; package storage provides the HDF5
// implementation, tests substitute an in-memory one. stages carries the
// optional pipeline-stage snapshots the run's Stages bitmask selected;
// merlin is non-nil only for a 4D Merlin acquisition.
type Sink interface {
	WriteRegion(r region.ScanRegion, img autodcimg.Image, stages storage.Stages, merlin *storage.MerlinMetadata) error
}

// Corrections bundles the optional drift, focus and emission state the
// scheduler interleaves between scans. Any field may be nil to disable
// that correction for the run.
type Corrections struct {
	Drift    *drift.State
	Focus    *focus.State
	Emission *emission.Monitor
}

// StageImages bundles the optional full-size pipeline-stage snapshots a
// run may attach to every region's output file, gated by Config.Stages.
type StageImages struct {
	Survey      autodcimg.Image
	Thresholded autodcimg.Image
	Clusters    autodcimg.Image
}

// MerlinConfig routes a region's acquisition through an external Merlin
// 4D-STEM camera server instead of the instrument's own detector.
// Capture replaces hardware.Handle.Scan for the duration of the run;
// Metadata is attached alongside every region's output.
type MerlinConfig struct {
	Capture  func(region.ScanRegion) (autodcimg.Image, error)
	Metadata storage.MerlinMetadata
}

// Config controls scheduler-level behavior not owned by any single
// correction: the size of the worker pool Run creates (regions are
// scanned one at a time on a single goroutine; no work is submitted to
// the pool), the dwell time to configure before each scan, which
// optional stage snapshots to persist, and an optional Merlin 4D path.
// Whether completed regions are drawn on a canvas depends on the marker
// passed to New, not on Config.
type Config struct {
	Workers     int
	DwellTime   float64
	Stages      storage.Stage
	StageImages StageImages
	Merlin      *MerlinConfig
}

// Result records the outcome of one scanned region.
type Result struct {
	Region region.ScanRegion
	Err    error
}

// Scheduler owns a job.Control so the caller can pause, resume or stop a
// run in progress, and a mutex-serialized hardware.Handle shared by the
// scan loop and any correction routine that needs the instrument.
type Scheduler struct {
	hw     *hardware.Handle
	sink   Sink
	corr   Corrections
	cfg    Config
	Ctrl   *job.Control
	marker autodcimg.Image
}

// New builds a Scheduler. marker is the survey-resolution canvas the
// scheduler paints completed regions onto; it may
// be the zero Image if the caller doesn't need visual feedback.
func New(hw *hardware.Handle, sink Sink, corr Corrections, cfg Config, marker autodcimg.Image) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Scheduler{hw: hw, sink: sink, corr: corr, cfg: cfg, Ctrl: job.NewControl(), marker: marker}
}

// Run walks regions in order, applying queued corrections between
// scans, until every region is processed, the context is cancelled, or
// Ctrl.Stop is called. Results stream out over the returned channel,
// which is closed when the run ends.
func (s *Scheduler) Run(ctx context.Context, regions []region.ScanRegion) <-chan Result {
	out := make(chan Result, len(regions))
	pool := pond.New(s.cfg.Workers, 0, pond.MinWorkers(s.cfg.Workers), pond.Context(ctx))

	go func() {
		defer close(out)
		defer pool.StopAndWait()
		defer func() {
			// A stopped run stays Dead rather than becoming Finished.
			if s.Ctrl.Status() != job.Dead {
				s.Ctrl.Finish()
			}
		}()

		for i := range regions {
			if s.Ctrl.Status() == job.Dead {
				s.Ctrl.SetProgress(0)
				return
			}
			for s.Ctrl.Status() == job.Paused {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
			if ctx.Err() != nil {
				return
			}
			s.Ctrl.SetProgress(i)

			if regions[i].Disabled {
				continue
			}

			img, result := s.runOne(regions[i])
			out <- result
			if result.Err == nil {
				s.markComplete(regions[i])
				s.advanceCorrections(regions, i, img)
			}
		}
	}()

	return out
}

// runOne performs a single scan-and-persist cycle for one region,
// serializing hardware access through s.hw: the scan area, detector and
// beam blank are scoped for the duration of the acquisition (spec.md
// §4.8 steps 6-7) and always restored afterward.
func (s *Scheduler) runOne(r region.ScanRegion) (autodcimg.Image, Result) {
	if s.cfg.DwellTime > 0 {
		if err := s.hw.SetDwellTime(s.cfg.DwellTime); err != nil {
			return autodcimg.Image{}, Result{Region: r, Err: fmt.Errorf("scheduler: set dwell time: %w", err)}
		}
	}

	var img autodcimg.Image
	err := s.hw.WithScanArea(r, func() error {
		return s.hw.WithDetectorInserted(true, func() error {
			return s.hw.WithBeamBlanked(false, func() error {
				var scanErr error
				if s.cfg.Merlin != nil {
					img, scanErr = s.cfg.Merlin.Capture(r)
				} else {
					img, scanErr = s.hw.Scan(r)
				}
				return scanErr
			})
		})
	})
	if err != nil {
		return img, Result{Region: r, Err: fmt.Errorf("scheduler: scan failed: %w", err)}
	}

	if s.sink != nil {
		var merlin *storage.MerlinMetadata
		if s.cfg.Merlin != nil {
			merlin = &s.cfg.Merlin.Metadata
		}
		if err := s.sink.WriteRegion(r, img, s.stagesFor(), merlin); err != nil {
			return img, Result{Region: r, Err: fmt.Errorf("scheduler: write failed: %w", err)}
		}
	}
	return img, Result{Region: r}
}

// stagesFor collects whichever optional pipeline-stage images Config.Stages
// selects, including the scheduler's own marker canvas for GridMarker.
func (s *Scheduler) stagesFor() storage.Stages {
	if s.cfg.Stages == 0 {
		return nil
	}
	out := make(storage.Stages)
	add := func(bit storage.Stage, img autodcimg.Image) {
		if s.cfg.Stages&bit != 0 && img.Data != nil {
			out[bit] = img
		}
	}
	add(storage.StageSurveyScan, s.cfg.StageImages.Survey)
	add(storage.StageThresholdedImage, s.cfg.StageImages.Thresholded)
	add(storage.StageClustersFound, s.cfg.StageImages.Clusters)
	add(storage.StageGridMarker, s.marker)
	if len(out) == 0 {
		return nil
	}
	return out
}

// markComplete paints the finished region onto the survey canvas (step
// 4), a pure in-memory annotation with no hardware interaction.
func (s *Scheduler) markComplete(r region.ScanRegion) {
	if s.marker.Data == nil {
		return
	}
	s.marker.FillRect(
		autodcimg.Point{X: r.Left, Y: r.Top},
		autodcimg.Point{X: r.Right, Y: r.Bottom},
		255,
	)
}

// advanceCorrections increments the drift and focus Counters once for
// the scan just completed (the emission Counter counts the monitor's
// own polls and is not incremented here), then runs whichever are due
// on their own cadence. A drift correction's measured (dx, dy) is
// applied to every region still pending in regions[idx+1:], shifting
// them and disabling any that now fall outside the survey (spec.md
// §4.5 step 7). Drift and focus corrections require hardware access
// for their own scans, so they run serialized against the same Handle
// as region scans.
func (s *Scheduler) advanceCorrections(regions []region.ScanRegion, idx int, scanned autodcimg.Image) {
	last := regions[idx]

	if s.corr.Drift != nil {
		s.corr.Drift.Counter.Increase()
		if s.corr.Drift.Counter.NeedsReset() {
			dx, dy, err := s.corr.Drift.Update(scanned)
			if err != nil {
				log.Println("scheduler: drift update failed:", err)
			} else {
				applyDrift(regions, idx+1, dx, dy)
			}
			if err := s.corr.Drift.Reset(scanned); err != nil {
				log.Println("scheduler: drift reset failed:", err)
			}
		}
	}

	if s.corr.Focus != nil {
		s.corr.Focus.Counter.Increase()
		if s.corr.Focus.Counter.NeedsReset() {
			res, err := s.corr.Focus.Run(s.focusScan(last))
			if err != nil {
				log.Println("scheduler: focus run failed:", err)
			} else if res.RolledBack {
				log.Println("scheduler: focus correction rolled back, exceeded change limit")
			}
		}
	}

	if s.corr.Emission != nil && s.corr.Emission.Counter.NeedsReset() {
		// The scheduler neither polls emission nor rebaselines the
		// monitor; it only checks the monitor's Counter and takes no
		// further action.
		_ = s.corr.Emission.Counter.Check()
	}
}

// applyDrift shifts every region in regions[from:] by (dx, dy),
// disabling any whose coordinates fall outside its own survey
// resolution after the shift. Already-scanned regions (regions[:from])
// are left untouched.
func applyDrift(regions []region.ScanRegion, from, dx, dy int) {
	for i := from; i < len(regions); i++ {
		if regions[i].Disabled {
			continue
		}
		shifted := regions[i].Shift(dx, dy)
		if !shifted.InBounds(int(shifted.Resolution)) {
			shifted.Disabled = true
		}
		regions[i] = shifted
	}
}

// focusScan adapts the scheduler's region-based hardware scan into the
// lens-value scan function package focus expects.
func (s *Scheduler) focusScan(r region.ScanRegion) focus.ScanFunc {
	return func(lens float64) (autodcimg.Image, error) {
		if err := s.hw.SetLensValue(lens); err != nil {
			return autodcimg.Image{}, err
		}
		return s.hw.Scan(r)
	}
}

// CorrectionCounters exposes the three correction Counters for status
// reporting (e.g. a CLI "status" subcommand), sharing package correct's
// single Match/Counter type across all three.
func (s *Scheduler) CorrectionCounters() map[string]*correct.Counter {
	counters := make(map[string]*correct.Counter)
	if s.corr.Drift != nil {
		counters["drift"] = s.corr.Drift.Counter
	}
	if s.corr.Focus != nil {
		counters["focus"] = s.corr.Focus.Counter
	}
	if s.corr.Emission != nil {
		counters["emission"] = s.corr.Emission.Counter
	}
	return counters
}
