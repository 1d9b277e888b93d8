package emission

import "testing"

func TestCheckWithinToleranceNoAlert(t *testing.T) {
	m := NewMonitor(100, Config{Tolerance: 0.05, Scans: 10})
	alert, triggered, err := m.Check(102)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if triggered {
		t.Errorf("unexpected alert %+v for a 2%% deviation within 5%% tolerance", alert)
	}
}

func TestCheckOutsideToleranceAlerts(t *testing.T) {
	m := NewMonitor(100, Config{Tolerance: 0.05, Scans: 10})
	alert, triggered, err := m.Check(120)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !triggered {
		t.Fatalf("expected alert for a 20%% deviation")
	}
	if alert.Baseline != 100 || alert.Reading != 120 {
		t.Errorf("alert = %+v, want baseline 100 reading 120", alert)
	}
}

func TestCheckRejectsNegativeReading(t *testing.T) {
	m := NewMonitor(100, Config{Tolerance: 0.05, Scans: 10})
	if _, _, err := m.Check(-1); err == nil {
		t.Errorf("expected error for a negative reading")
	}
}

func TestRebaselineResetsCounter(t *testing.T) {
	m := NewMonitor(100, Config{Tolerance: 0.05, Scans: 2})
	m.Counter.Increase()
	m.Counter.Increase()
	m.Counter.Increase()
	if m.Counter.Check() {
		t.Fatalf("counter should need reset once polls exceed its limit")
	}
	m.Rebaseline(150)
	if !m.Counter.Check() {
		t.Errorf("Rebaseline did not reset the counter")
	}
	if m.baseline != 150 {
		t.Errorf("baseline = %v, want 150", m.baseline)
	}
}

func TestCheckIncrementsCounter(t *testing.T) {
	m := NewMonitor(100, Config{Tolerance: 0.05, Scans: 10})
	m.Check(100)
	m.Check(100)
	if m.Counter.Current != 2 {
		t.Errorf("Counter.Current = %v, want 2", m.Counter.Current)
	}
}
