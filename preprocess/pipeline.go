// Package preprocess implements the ordered, enable/disable-able list of
// image transforms that turns a survey scan into a binary image suitable
// for cluster extraction (package cluster). Each operator is independent;
// reordering the pipeline is allowed.
package preprocess

import (
	"errors"
	"fmt"

	"github.com/epsic-dls/autodc/autodcimg"
)

// ErrNotBinary is returned by RequireBinary when the pipeline's output
// has more than two grey levels. It is a separate value from
// cluster.ErrNotBinary, which the clusterer returns for the same
// condition.
var ErrNotBinary = errors.New("preprocess: image is not binary after pipeline")

// Operator is a single parameterised image transform.
type Operator interface {
	// Apply runs the transform against a Grey image, returning the result.
	Apply(img autodcimg.Image) (autodcimg.Image, error)
	// Name identifies the operator kind, for logging and inspection.
	Name() string
}

// step pairs an operator with its enabled flag.
type step struct {
	op      Operator
	enabled bool
}

// Pipeline is an ordered, mutable list of operators.
type Pipeline struct {
	steps []step
}

// New constructs a Pipeline with all operators enabled.
func New(ops ...Operator) *Pipeline {
	p := &Pipeline{steps: make([]step, 0, len(ops))}
	for _, op := range ops {
		p.steps = append(p.steps, step{op: op, enabled: true})
	}
	return p
}

// Append adds an operator to the end of the pipeline, enabled.
func (p *Pipeline) Append(op Operator) {
	p.steps = append(p.steps, step{op: op, enabled: true})
}

// Enable/Disable toggle the operator at index i. Indices outside range
// are no-ops, matching the "settings_changed event -> pure setter" model
// of the ambient stack: a stale index from a since-removed widget should
// not panic the pipeline.
func (p *Pipeline) Enable(i int) {
	if i >= 0 && i < len(p.steps) {
		p.steps[i].enabled = true
	}
}

func (p *Pipeline) Disable(i int) {
	if i >= 0 && i < len(p.steps) {
		p.steps[i].enabled = false
	}
}

// Len returns the number of operators, enabled or not.
func (p *Pipeline) Len() int { return len(p.steps) }

// Run executes the enabled operators in order. With zero operators
// enabled, the input is returned byte-for-byte. On any operator
// failure, the previous successful image is restored and returned
// alongside the error: an operator failure is terminal for that run.
func (p *Pipeline) Run(img autodcimg.Image) (autodcimg.Image, error) {
	current := img
	for _, s := range p.steps {
		if !s.enabled {
			continue
		}
		next, err := s.op.Apply(current)
		if err != nil {
			return current, fmt.Errorf("preprocess: operator %q failed: %w", s.op.Name(), err)
		}
		current = next
	}
	return current, nil
}

// RequireBinary runs the pipeline and additionally enforces the binary
// contract the cluster extractor depends on.
func (p *Pipeline) RequireBinary(img autodcimg.Image) (autodcimg.Image, error) {
	out, err := p.Run(img)
	if err != nil {
		return out, err
	}
	if !out.IsBinary() {
		return out, ErrNotBinary
	}
	return out, nil
}

func oddOrErr(name string, v int) error {
	if v < 1 || v%2 == 0 {
		return fmt.Errorf("preprocess: %s requires an odd size >= 1, got %d", name, v)
	}
	return nil
}
