// Package hardware abstracts the microscope control surface: scan
// triggering, detector/beam state, lens value, and the scoped-resource
// helpers the scheduler uses to temporarily change a setting and always
// restore it, with a single wrapped error type rather than a bespoke
// sentinel per vendor.
package hardware

import (
	"fmt"
	"sync"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/region"
)

// Microscope is the minimal control surface the acquisition engine
// needs from any vendor's instrument driver.
type Microscope interface {
	Scan(area region.ScanRegion) (autodcimg.Image, error)

	ScanArea() (region.ScanRegion, error)
	SetScanArea(region.ScanRegion) error

	DwellTime() (float64, error)
	SetDwellTime(float64) error

	FlybackTime() (float64, error)
	SetFlybackTime(float64) error

	DetectorInserted() (bool, error)
	SetDetectorInserted(bool) error

	BeamBlanked() (bool, error)
	SetBeamBlanked(bool) error

	LensValue() (float64, error)
	SetLensValue(float64) error

	ConnectTTL(line string) error
}

// HardwareError wraps a failure from a Microscope call with the control
// line that produced it, so logs can say which piece of hardware is at
// fault without every call site formatting its own message.
type HardwareError struct {
	Line  string
	Cause error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware: %s: %v", e.Line, e.Cause)
}

func (e *HardwareError) Unwrap() error { return e.Cause }

func wrap(line string, err error) error {
	if err == nil {
		return nil
	}
	return &HardwareError{Line: line, Cause: err}
}

// Handle serializes all access to a Microscope behind a mutex:
// scheduler, drift, focus and emission routines all issue hardware calls
// from independent goroutines, but a physical instrument has exactly one
// command channel.
type Handle struct {
	mu  sync.Mutex
	dev Microscope
}

// NewHandle wraps dev for serialized, error-annotated access.
func NewHandle(dev Microscope) *Handle { return &Handle{dev: dev} }

func (h *Handle) Scan(area region.ScanRegion) (autodcimg.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	img, err := h.dev.Scan(area)
	return img, wrap("scan", err)
}

func (h *Handle) ScanArea() (region.ScanRegion, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, err := h.dev.ScanArea()
	return r, wrap("scan_area", err)
}

func (h *Handle) SetScanArea(r region.ScanRegion) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wrap("scan_area", h.dev.SetScanArea(r))
}

func (h *Handle) DetectorInserted() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.dev.DetectorInserted()
	return v, wrap("detector_inserted", err)
}

func (h *Handle) SetDetectorInserted(v bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wrap("detector_inserted", h.dev.SetDetectorInserted(v))
}

func (h *Handle) BeamBlanked() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.dev.BeamBlanked()
	return v, wrap("beam_blanked", err)
}

func (h *Handle) SetBeamBlanked(v bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wrap("beam_blanked", h.dev.SetBeamBlanked(v))
}

func (h *Handle) LensValue() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.dev.LensValue()
	return v, wrap("lens_value", err)
}

func (h *Handle) SetLensValue(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wrap("lens_value", h.dev.SetLensValue(v))
}

func (h *Handle) DwellTime() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.dev.DwellTime()
	return v, wrap("dwell_time", err)
}

func (h *Handle) SetDwellTime(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wrap("dwell_time", h.dev.SetDwellTime(v))
}

func (h *Handle) FlybackTime() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.dev.FlybackTime()
	return v, wrap("flyback_time", err)
}

func (h *Handle) SetFlybackTime(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wrap("flyback_time", h.dev.SetFlybackTime(v))
}

func (h *Handle) ConnectTTL(line string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wrap("connect_ttl", h.dev.ConnectTTL(line))
}

// WithScanArea temporarily changes the scan area for the duration of fn,
// restoring the previous area afterward even if fn returns an error.
func (h *Handle) WithScanArea(area region.ScanRegion, fn func() error) error {
	prev, err := h.ScanArea()
	if err != nil {
		return err
	}
	if err := h.SetScanArea(area); err != nil {
		return err
	}
	defer h.SetScanArea(prev)
	return fn()
}

// WithDetectorInserted temporarily inserts (or retracts) the detector
// for the duration of fn.
func (h *Handle) WithDetectorInserted(inserted bool, fn func() error) error {
	prev, err := h.DetectorInserted()
	if err != nil {
		return err
	}
	if err := h.SetDetectorInserted(inserted); err != nil {
		return err
	}
	defer h.SetDetectorInserted(prev)
	return fn()
}

// WithBeamBlanked temporarily sets the beam blank state for fn.
func (h *Handle) WithBeamBlanked(blanked bool, fn func() error) error {
	prev, err := h.BeamBlanked()
	if err != nil {
		return err
	}
	if err := h.SetBeamBlanked(blanked); err != nil {
		return err
	}
	defer h.SetBeamBlanked(prev)
	return fn()
}

// WithLens temporarily sets the lens value for fn, used by package focus
// to sweep lens positions without permanently disturbing the column
// until a result is accepted.
func (h *Handle) WithLens(value float64, fn func() error) error {
	prev, err := h.LensValue()
	if err != nil {
		return err
	}
	if err := h.SetLensValue(value); err != nil {
		return err
	}
	defer h.SetLensValue(prev)
	return fn()
}
