// Package emission implements the background emission-current monitor:
// a periodic poll of beam emission compared against a baseline, raising
// a correction signal when it drifts outside tolerance.
package emission

import (
	"context"
	"fmt"
	"time"

	"github.com/epsic-dls/autodc/correct"
	"github.com/epsic-dls/autodc/job"
)

// ReadFunc samples the current emission current from hardware.
type ReadFunc func() (float64, error)

// Config holds the emission monitor's settings.
type Config struct {
	Interval  time.Duration
	Tolerance float64 // acceptable fractional deviation from Baseline
	Scans     float64 // Counter limit between baseline re-captures
}

// Alert is sent on Monitor's channel whenever a poll falls outside
// tolerance of the baseline.
type Alert struct {
	Reading   float64
	Baseline  float64
	Deviation float64
}

// Monitor polls emission current on a ticker and reports out-of-tolerance
// readings. It is a job.Control-driven background task so the scheduler
// can pause or stop it the same way it controls region tightening.
type Monitor struct {
	cfg      Config
	baseline float64
	Counter  *correct.Counter
	ctrl     *job.Control
	alerts   chan Alert
}

// NewMonitor starts tracking emission against the given baseline
// reading. Counter.Current counts polls since the last Rebaseline, so
// NoHigher is the mode that trips once it exceeds the configured Scans
// limit; the deviation-from-baseline check itself is independent of
// Counter and runs on every poll via deviationFrom.
func NewMonitor(baseline float64, cfg Config) *Monitor {
	return &Monitor{
		cfg:      cfg,
		baseline: baseline,
		Counter:  correct.NewCounter(cfg.Scans, correct.NoHigher),
		alerts:   make(chan Alert, 1),
	}
}

// Rebaseline replaces the reference emission value and clears the
// Counter, for use after a correction routine recalibrates the beam.
func (m *Monitor) Rebaseline(v float64) {
	m.baseline = v
	m.Counter.Set(0)
}

// Alerts returns the channel on which out-of-tolerance readings are
// delivered. Callers should drain it continuously; a full buffer drops
// the alert rather than blocking the poll loop.
func (m *Monitor) Alerts() <-chan Alert { return m.alerts }

// Start launches the polling goroutine and returns its job.Control.
// Start is idempotent only in the sense that calling it twice launches
// two independent pollers; callers should keep the returned Control.
func (m *Monitor) Start(ctx context.Context, read ReadFunc) *job.Control {
	ctrl := job.NewControl()
	m.ctrl = ctrl
	go m.loop(ctx, read, ctrl)
	return ctrl
}

func (m *Monitor) loop(ctx context.Context, read ReadFunc, ctrl *job.Control) {
	if m.cfg.Interval <= 0 {
		m.cfg.Interval = time.Second
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	defer ctrl.Finish()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctrl.ShouldSuspend() {
				continue
			}
			v, err := read()
			if err != nil {
				continue
			}
			m.poll(v)
			ctrl.SetProgress(ctrl.Progress() + 1)
		}
	}
}

func (m *Monitor) poll(v float64) {
	deviation := deviationFrom(m.baseline, v)
	if deviation > m.cfg.Tolerance {
		select {
		case m.alerts <- Alert{Reading: v, Baseline: m.baseline, Deviation: deviation}:
		default:
		}
	}
	m.Counter.Increase()
}

func deviationFrom(baseline, v float64) float64 {
	if baseline == 0 {
		if v == 0 {
			return 0
		}
		return 1
	}
	d := (v - baseline) / baseline
	if d < 0 {
		d = -d
	}
	return d
}

// Check is the synchronous counterpart to the polling loop, useful when
// the scheduler wants an on-demand reading rather than waiting on the
// Alerts channel.
func (m *Monitor) Check(v float64) (Alert, bool, error) {
	if v < 0 {
		return Alert{}, false, fmt.Errorf("emission: reading must be non-negative, got %v", v)
	}
	deviation := deviationFrom(m.baseline, v)
	m.Counter.Increase()
	if deviation > m.cfg.Tolerance {
		return Alert{Reading: v, Baseline: m.baseline, Deviation: deviation}, true, nil
	}
	return Alert{}, false, nil
}
