package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, fields map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func validFields() map[string]any {
	return map[string]any{
		"drift_scans":         10,
		"window_order":        []string{"hanning", "sobel"},
		"drift_resolution":    1024,
		"focus_scans":         20,
		"focus_change":        1,
		"change_decay":        0.9,
		"focus_tolerance":     0.01,
		"focus_limit":         5,
		"focus_coarse_range":  10,
		"focus_coarse_step":   2,
		"focus_fine_range":    2,
		"focus_fine_step":     0.5,
		"cluster_eps":         3,
		"cluster_min_samples": 4,
		"grid_pitch":          32,
		"survey_size":         2048,
		"init_dwell":          1,
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validFields())
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DriftScans != 10 {
		t.Errorf("DriftScans = %v, want 10", cfg.DriftScans)
	}
	if len(cfg.WindowOrder) != 2 {
		t.Errorf("WindowOrder = %v, want 2 entries", cfg.WindowOrder)
	}
}

func TestLoadMissingRequiredFieldFails(t *testing.T) {
	fields := validFields()
	delete(fields, "drift_scans")
	path := writeConfig(t, fields)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing drift_scans")
	}
}

func TestLoadDropsUnknownField(t *testing.T) {
	fields := validFields()
	fields["totally_unknown_key"] = 1
	path := writeConfig(t, fields)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DriftScans != 10 {
		t.Errorf("DriftScans = %v, want 10", cfg.DriftScans)
	}
}

func TestDriftConfigProjection(t *testing.T) {
	path := writeConfig(t, validFields())
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dc := cfg.DriftConfig()
	if len(dc.Order) != 2 {
		t.Errorf("DriftConfig.Order = %v, want 2 entries", dc.Order)
	}
	if dc.Scans != 10 {
		t.Errorf("DriftConfig.Scans = %v, want 10", dc.Scans)
	}
}
