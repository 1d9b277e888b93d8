// Package focus implements the autofocus correction: a coarse-then-fine
// lens value sweep scored by image sharpness, refined with a parabolic
// peak fit and guarded by a safety rollback.
package focus

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/correct"
)

// ScanFunc acquires a frame at the given lens value. The scheduler
// supplies one backed by package hardware; tests supply a synthetic
// function.
type ScanFunc func(lensValue float64) (autodcimg.Image, error)

// Config holds the per-session focus settings: config keys focus_scans,
// focus_change, change_decay, focus_tolerance and focus_limit.
type Config struct {
	CoarseRange float64 // half-width of the coarse sweep, in lens units
	CoarseStep  float64
	FineRange   float64 // half-width of the fine sweep around the coarse peak
	FineStep    float64
	Tolerance   float64 // minimum FoM improvement worth acting on
	ChangeLimit float64 // focus_limit: max allowed lens change from baseline
	ChangeDecay float64 // change_decay: shrinks ChangeLimit on repeated corrections
	Scans       float64 // focus_scans: Counter limit between focus runs
}

// Result reports what a focus run decided.
type Result struct {
	LensValue  float64
	FoM        float64
	RolledBack bool
}

// FoM (figure of merit) is the normalized variance of an image's pixel
// values: sharper in-focus images have higher local contrast and thus
// higher variance. Normalizing by the squared mean keeps the metric
// comparable across frames at different overall brightness.
func FoM(img autodcimg.Image) (float64, error) {
	if img.Chan != autodcimg.Grey {
		return 0, fmt.Errorf("focus: FoM requires a single-channel image")
	}
	vals := make([]float64, len(img.Data))
	for i, v := range img.Data {
		vals[i] = float64(v)
	}
	mean := stat.Mean(vals, nil)
	if mean == 0 {
		return 0, nil
	}
	variance := stat.Variance(vals, nil)
	return variance / (mean * mean), nil
}

// State tracks the current lens value and the Counter shared with the
// scheduler that decides when a focus run is due.
type State struct {
	cfg     Config
	Lens    float64
	Counter *correct.Counter
	// cache holds FoM values already measured at a given lens value
	// during a run, since the fine sweep revisits values the coarse
	// sweep already scanned.
	cache map[float64]float64
}

// NewState starts tracking focus at the given initial lens value.
// Counter.Current counts scans since the last Run, so NoHigher is the
// mode that trips once it exceeds the configured Scans limit; Run
// itself does not increment Counter, since the scheduler owns that.
func NewState(initialLens float64, cfg Config) *State {
	return &State{cfg: cfg, Lens: initialLens, Counter: correct.NewCounter(cfg.Scans, correct.NoHigher)}
}

func (s *State) measure(scan ScanFunc, lens float64) (float64, error) {
	if fom, ok := s.cache[lens]; ok {
		return fom, nil
	}
	img, err := scan(lens)
	if err != nil {
		return 0, err
	}
	fom, err := FoM(img)
	if err != nil {
		return 0, err
	}
	if s.cache == nil {
		s.cache = make(map[float64]float64)
	}
	s.cache[lens] = fom
	return fom, nil
}

// Run executes one full focus correction: a discarded warm-up scan at
// the current lens value, a baseline measurement, a coarse sweep and a
// parabola-refined fine sweep. The lens is left at its current value
// when the best FoM is below 1.01 times the baseline FoM or improves on
// it by less than Tolerance, and is rolled back (RolledBack set) when
// the result moved further than ChangeLimit from the current value.
func (s *State) Run(scan ScanFunc) (Result, error) {
	s.cache = make(map[float64]float64)

	// The first scan at a fixed lens position is discarded: the detector
	// has not yet settled from whatever scan preceded this correction.
	if _, err := scan(s.Lens); err != nil {
		return Result{}, err
	}
	baselineFoM, err := s.measure(scan, s.Lens)
	if err != nil {
		return Result{}, err
	}

	coarseBest, coarseFoM, err := s.sweep(scan, s.Lens, s.cfg.CoarseRange, s.cfg.CoarseStep)
	if err != nil {
		return Result{}, err
	}

	fineBest, fineFoM, err := s.sweep(scan, coarseBest, s.cfg.FineRange, s.cfg.FineStep)
	if err != nil {
		return Result{}, err
	}

	refined := fineBest
	if peak, ok := s.parabolicRefine(fineBest); ok {
		refined = peak
	}

	if fineFoM < coarseFoM {
		refined, fineFoM = coarseBest, coarseFoM
	}

	if fineFoM-baselineFoM < s.cfg.Tolerance || fineFoM < 1.01*baselineFoM {
		s.Counter.Set(0)
		return Result{LensValue: s.Lens, FoM: baselineFoM}, nil
	}

	limit := s.cfg.ChangeLimit
	if delta := math.Abs(refined - s.Lens); delta > limit*1.01 {
		s.Counter.Set(0)
		return Result{LensValue: s.Lens, FoM: baselineFoM, RolledBack: true}, nil
	}

	s.Lens = refined
	s.cfg.ChangeLimit *= s.cfg.ChangeDecay
	s.Counter.Set(0)
	return Result{LensValue: refined, FoM: fineFoM}, nil
}

// sweep scans lensValue-range..lensValue+range in steps of step and
// returns the argmax FoM position and its value.
func (s *State) sweep(scan ScanFunc, center, rng, step float64) (best, bestFoM float64, err error) {
	if step <= 0 {
		return center, 0, fmt.Errorf("focus: sweep step must be positive")
	}
	best = center
	bestFoM = math.Inf(-1)
	for v := center - rng; v <= center+rng; v += step {
		fom, err := s.measure(scan, v)
		if err != nil {
			return 0, 0, err
		}
		if fom > bestFoM {
			bestFoM = fom
			best = v
		}
	}
	return best, bestFoM, nil
}

// parabolicRefine fits a closed-form 3-point parabola through center and
// its two cached step-neighbours to locate a sub-step peak. gonum/stat
// has no 3-point special case, so the vertex formula is applied directly
// rather than pulled from a library. Returns ok=false if the three
// points are not concave (no interior peak to refine) or a neighbour was
// never measured.
func (s *State) parabolicRefine(center float64) (float64, bool) {
	step := s.cfg.FineStep
	if step <= 0 {
		return 0, false
	}
	y0, ok0 := s.cache[center-step]
	y1, ok1 := s.cache[center]
	y2, ok2 := s.cache[center+step]
	if !ok0 || !ok1 || !ok2 {
		return 0, false
	}
	denom := y0 - 2*y1 + y2
	if denom >= 0 {
		// Not concave: the three samples don't bracket a peak.
		return 0, false
	}
	offset := 0.5 * (y0 - y2) / denom
	if math.Abs(offset) > 1 {
		return 0, false
	}
	return center + offset*step, true
}
