// Package config loads and validates the JSON survey configuration: the
// drift, focus, emission, cluster and grid parameters, validated the
// way a TileDB schema builder validates struct tags, by parsing them
// with stagparser and reflecting over the populated struct rather than
// a hand-rolled field-by-field switch.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"

	stgpsr "github.com/yuin/stagparser"

	"github.com/epsic-dls/autodc/cluster"
	"github.com/epsic-dls/autodc/drift"
	"github.com/epsic-dls/autodc/emission"
	"github.com/epsic-dls/autodc/focus"
	"github.com/epsic-dls/autodc/region"
)

var ErrMissingRequired = errors.New("config: required field is missing or zero")

// Config is the complete survey configuration a run reads from disk. Its
// JSON keys match the acquisition software's configuration file verbatim
// (drift_scans, windowing, window_order, drift_resolution, focus_scans,
// focus_change, change_decay, focus_tolerance, focus_limit, ...) so an
// operator's existing config files carry over unchanged in meaning.
type Config struct {
	DriftScans      float64  `json:"drift_scans" schema:"required"`
	Windowing       bool     `json:"windowing"`
	WindowOrder     []string `json:"window_order" schema:"required"`
	DriftResolution float64  `json:"drift_resolution" schema:"required"`
	DriftPad        int      `json:"drift_pad"`

	FocusScans     float64 `json:"focus_scans" schema:"required"`
	FocusChange    float64 `json:"focus_change" schema:"required"`
	ChangeDecay    float64 `json:"change_decay" schema:"required"`
	FocusTolerance float64 `json:"focus_tolerance" schema:"required"`
	FocusLimit     float64 `json:"focus_limit" schema:"required"`
	CoarseRange    float64 `json:"focus_coarse_range" schema:"required"`
	CoarseStep     float64 `json:"focus_coarse_step" schema:"required"`
	FineRange      float64 `json:"focus_fine_range" schema:"required"`
	FineStep       float64 `json:"focus_fine_step" schema:"required"`

	EmissionScans     float64 `json:"emission_scans"`
	EmissionTolerance float64 `json:"emission_tolerance"`

	ClusterEps        float64 `json:"cluster_eps" schema:"required"`
	ClusterMinSamples int     `json:"cluster_min_samples" schema:"required"`

	GridPitch       int     `json:"grid_pitch" schema:"required"`
	GridOverlap     float64 `json:"grid_overlap"`
	GridMatch       float64 `json:"grid_match"`
	SurveySize      int     `json:"survey_size" schema:"required"`
	SchedulerWorkers int    `json:"scheduler_workers"`

	InitDwell float64 `json:"init_dwell" schema:"required"`
}

// windowNames maps config file window_order strings onto drift.Window
// values, since the wire format is lowercase strings but the drift
// package takes a typed enum.
var windowNames = map[string]drift.Window{
	"hanning": drift.Hanning,
	"sobel":   drift.Sobel,
	"median":  drift.Median,
}

// requiredFields parses the "schema" struct tag via stagparser and
// returns the set of JSON field names tagged required.
func requiredFields(t any) (map[string]bool, error) {
	defs, err := stgpsr.ParseStruct(t, "schema")
	if err != nil {
		return nil, fmt.Errorf("config: parsing schema tags: %w", err)
	}
	required := make(map[string]bool)
	rt := reflect.TypeOf(t).Elem()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		for _, d := range defs[field.Name] {
			if d.Name() == "required" {
				required[field.Name] = true
			}
		}
	}
	return required, nil
}

// Load reads and validates a JSON configuration file, aborting on the
// first invalid or missing required field rather than silently
// defaulting it — an operator-facing acquisition run should fail fast
// on a bad config rather than run with a guessed parameter.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	required, err := requiredFields(cfg)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(cfg).Elem()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		name := rt.Field(i).Name
		if !required[name] {
			continue
		}
		if rv.Field(i).IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingRequired, rt.Field(i).Tag.Get("json"))
		}
	}
	if cfg.ClusterMinSamples < 1 {
		return fmt.Errorf("config: cluster_min_samples must be >= 1, got %d", cfg.ClusterMinSamples)
	}
	return nil
}

// DriftConfig projects the shared Config into package drift's own
// Config shape.
func (c *Config) DriftConfig() drift.Config {
	order := make([]drift.Window, 0, len(c.WindowOrder))
	for _, name := range c.WindowOrder {
		if w, ok := windowNames[name]; ok {
			order = append(order, w)
		}
	}
	pad := c.DriftPad
	if pad <= 0 {
		pad = drift.DefaultPad
	}
	return drift.Config{
		Order:      order,
		Pad:        pad,
		Resolution: c.DriftResolution,
		Scans:      c.DriftScans,
	}
}

// FocusConfig projects the shared Config into package focus's Config.
func (c *Config) FocusConfig() focus.Config {
	return focus.Config{
		CoarseRange: c.CoarseRange,
		CoarseStep:  c.CoarseStep,
		FineRange:   c.FineRange,
		FineStep:    c.FineStep,
		Tolerance:   c.FocusTolerance,
		ChangeLimit: c.FocusLimit,
		ChangeDecay: c.ChangeDecay,
		Scans:       c.FocusScans,
	}
}

// EmissionConfig projects the shared Config into package emission's
// Config.
func (c *Config) EmissionConfig() emission.Config {
	return emission.Config{
		Tolerance: c.EmissionTolerance,
		Scans:     c.EmissionScans,
	}
}

// ClusterMetric is always Euclidean for configuration-driven runs; an
// operator who needs Manhattan or Minkowski distance constructs
// cluster.Metric directly rather than through Config.
func (c *Config) ClusterMetric() cluster.Metric { return cluster.Euclidean }

// GridOverlapFraction and GridMatchFraction default to conservative
// values when the config omits them, since both are optional tuning
// knobs rather than correctness-critical parameters.
func (c *Config) GridOverlapFraction() float64 {
	if c.GridOverlap <= 0 {
		return 0.1
	}
	return c.GridOverlap
}

func (c *Config) GridMatchFraction() float64 {
	if c.GridMatch <= 0 {
		return 0.5
	}
	return c.GridMatch
}

func (c *Config) SurveyResolution() region.Resolution {
	return region.Resolution(c.SurveySize)
}
