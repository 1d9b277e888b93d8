package drift

import (
	"fmt"
	"math"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/correct"
)

// DefaultPad is the zero-padding width the reference implementation always uses before
// phase correlation (see).
const DefaultPad = 256

// Config holds the per-session drift correction settings: config keys
// drift_scans, windowing, window_order and drift_resolution in the
// survey configuration (see package config).
type Config struct {
	// Order lists the window transforms to apply, in application order.
	Order []Window
	// Pad is the constant-mean padding width applied on every side
	// before phase correlation.
	Pad int
	// Resolution converts a raw pixel shift measured on the drift scan
	// into whole pixels at the survey's addressing resolution.
	Resolution float64
	// Scans is how many corrected scans occur before the drift
	// reference image must be reacquired (read by Counter.Limit).
	Scans float64
}

func (c Config) pad() int {
	if c.Pad <= 0 {
		return DefaultPad
	}
	return c.Pad
}

func (c Config) resolution() float64 {
	if c.Resolution <= 0 {
		return 1
	}
	return c.Resolution
}

// State tracks the drift reference image and the fractional remainder of
// shifts not yet large enough to emit a whole pixel of correction,
// DriftState.
type State struct {
	cfg     Config
	ref     grid
	accX    float64
	accY    float64
	Counter *correct.Counter
}

// NewState adopts reference as the drift baseline. Counter is shared
// with the scheduler, which increments it once per scan and resets the
// drift correction (via Reset) when Counter.NeedsReset fires: Current
// counts scans since the last reset, so NoHigher is the mode that
// trips once Current exceeds the configured Scans limit.
func NewState(reference autodcimg.Image, cfg Config) (*State, error) {
	g, err := toGrid(reference)
	if err != nil {
		return nil, err
	}
	return &State{
		cfg:     cfg,
		ref:     applyWindows(g, cfg.Order),
		Counter: correct.NewCounter(cfg.Scans, correct.NoHigher),
	}, nil
}

// Reset replaces the reference image and clears the fractional
// accumulator, for use when the drift Counter signals a reacquisition.
func (s *State) Reset(reference autodcimg.Image) error {
	g, err := toGrid(reference)
	if err != nil {
		return err
	}
	s.ref = applyWindows(g, s.cfg.Order)
	s.accX, s.accY = 0, 0
	s.Counter.Set(0)
	return nil
}

// Update runs one drift measurement against the current reference and
// returns the whole-pixel correction to apply this scan. The fractional
// remainder carries forward so repeated small drifts eventually emit a
// pixel rather than being silently discarded: summed emitted drift plus
// the final remainder equals the summed raw drift. Update does not
// touch Counter; the caller owns the per-scan increment and decides
// when to call Update against its own cadence.
func (s *State) Update(newScan autodcimg.Image) (dx, dy int, err error) {
	g, err := toGrid(newScan)
	if err != nil {
		return 0, 0, err
	}
	windowed := applyWindows(g, s.cfg.Order)

	a := zeroPad(shiftToZero(s.ref), s.cfg.pad())
	b := zeroPad(shiftToZero(windowed), s.cfg.pad())
	if a.w != b.w || a.h != b.h {
		return 0, 0, fmt.Errorf("drift: reference and new scan sizes differ (%dx%d vs %dx%d)", s.ref.w, s.ref.h, windowed.w, windowed.h)
	}

	rawX, rawY := phaseCorrelate(a, b)

	res := s.cfg.resolution()
	s.accX += float64(rawX) * res
	s.accY += float64(rawY) * res

	emitX, fracX := math.Modf(s.accX)
	emitY, fracY := math.Modf(s.accY)
	s.accX, s.accY = fracX, fracY

	return int(emitX), int(emitY), nil
}

func toGrid(img autodcimg.Image) (grid, error) {
	if img.Chan != autodcimg.Grey {
		return grid{}, fmt.Errorf("drift: image must be single-channel, got %s", img.Chan)
	}
	g := newGrid(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			g.set(x, y, float64(img.At(x, y)[0]))
		}
	}
	return g, nil
}
