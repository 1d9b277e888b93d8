package hardware

import (
	"fmt"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/region"
)

// MockMicroscope is an in-memory Microscope for tests: it has no
// physical side effects and returns a blank scan of the requested size.
type MockMicroscope struct {
	Area      region.ScanRegion
	Dwell     float64
	Flyback   float64
	Inserted  bool
	Blanked   bool
	Lens      float64
	Connected []string
	ScanCalls int
}

func (m *MockMicroscope) Scan(area region.ScanRegion) (autodcimg.Image, error) {
	m.ScanCalls++
	side := area.Side()
	if side <= 0 {
		return autodcimg.Image{}, fmt.Errorf("mock: non-positive scan side %d", side)
	}
	return autodcimg.NewGrey(side, side), nil
}

func (m *MockMicroscope) ScanArea() (region.ScanRegion, error)        { return m.Area, nil }
func (m *MockMicroscope) SetScanArea(r region.ScanRegion) error       { m.Area = r; return nil }
func (m *MockMicroscope) DwellTime() (float64, error)                 { return m.Dwell, nil }
func (m *MockMicroscope) SetDwellTime(v float64) error                { m.Dwell = v; return nil }
func (m *MockMicroscope) FlybackTime() (float64, error)               { return m.Flyback, nil }
func (m *MockMicroscope) SetFlybackTime(v float64) error              { m.Flyback = v; return nil }
func (m *MockMicroscope) DetectorInserted() (bool, error)             { return m.Inserted, nil }
func (m *MockMicroscope) SetDetectorInserted(v bool) error            { m.Inserted = v; return nil }
func (m *MockMicroscope) BeamBlanked() (bool, error)                  { return m.Blanked, nil }
func (m *MockMicroscope) SetBeamBlanked(v bool) error                 { m.Blanked = v; return nil }
func (m *MockMicroscope) LensValue() (float64, error)                 { return m.Lens, nil }
func (m *MockMicroscope) SetLensValue(v float64) error                { m.Lens = v; return nil }
func (m *MockMicroscope) ConnectTTL(line string) error {
	m.Connected = append(m.Connected, line)
	return nil
}
