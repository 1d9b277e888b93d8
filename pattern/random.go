package pattern

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/epsic-dls/autodc/autodcimg"
)

// Distribution selects the sampling law for a Random pattern.
type Distribution int

const (
	Exp Distribution = iota
	Laplace
	Logistic
	Normal
	Poisson
	Uniform
)

// Random samples N points from one of six distributions, filtered to the
// covered rectangle, integer-rounded and deduplicated.
type Random struct {
	Kind     Distribution
	N        int
	Coverage Coverage
	// Param1/Param2 carry the distribution's shape parameters: rate for
	// Exp; location/scale for Laplace and Logistic; mean/stddev for
	// Normal; lambda for Poisson (Param2 unused); min/max for Uniform.
	Param1, Param2 float64
	Source         *rand.Rand
}

func (r Random) src() *rand.Rand {
	if r.Source != nil {
		return r.Source
	}
	return rand.New(rand.NewSource(1))
}

func (r Random) sampleAxis(lo, hi int) int {
	rng := r.src()
	var v float64
	switch r.Kind {
	case Exp:
		d := distuv.Exponential{Rate: r.Param1, Src: rng}
		v = d.Rand()
	case Laplace:
		d := distuv.Laplace{Mu: r.Param1, Scale: r.Param2, Src: rng}
		v = d.Rand()
	case Logistic:
		// gonum's distuv has no Logistic distribution; sample via the
		// standard inverse-CDF transform of a Uniform(0,1) draw so the
		// underlying randomness still comes from the same library.
		u := distuv.Uniform{Min: 0, Max: 1, Src: rng}.Rand()
		v = r.Param1 + r.Param2*math.Log(u/(1-u))
	case Normal:
		d := distuv.Normal{Mu: r.Param1, Sigma: r.Param2, Src: rng}
		v = d.Rand()
	case Poisson:
		d := distuv.Poisson{Lambda: r.Param1, Src: rng}
		v = d.Rand()
	default: // Uniform
		d := distuv.Uniform{Min: r.Param1, Max: r.Param2, Src: rng}
		v = d.Rand()
	}
	scaled := float64(lo) + v*float64(hi-lo)
	return int(math.Round(scaled))
}

func (r Random) Encode() ([]Pattern, error) {
	if r.N <= 0 {
		return nil, fmt.Errorf("pattern: random N must be positive, got %d", r.N)
	}
	if r.Source == nil {
		// One source for the whole run, so successive draws differ.
		r.Source = rand.New(rand.NewSource(1))
	}
	seen := make(map[autodcimg.Point]bool)
	var patterns []Pattern
	// Oversample a bounded number of times to reach N unique points; a
	// low-probability coverage rectangle combined with a tight N could
	// otherwise loop indefinitely, so cap attempts.
	for attempts := 0; len(patterns) < r.N && attempts < r.N*50+100; attempts++ {
		p := autodcimg.Point{
			X: r.sampleAxis(r.Coverage.Left, r.Coverage.Right),
			Y: r.sampleAxis(r.Coverage.Top, r.Coverage.Bottom),
		}
		if !r.Coverage.contains(p) || seen[p] {
			continue
		}
		seen[p] = true
		patterns = append(patterns, Point{p})
	}
	return patterns, nil
}

func (r Random) Draw(size int) (autodcimg.Image, error) {
	patterns, err := r.Encode()
	if err != nil {
		return autodcimg.Image{}, err
	}
	return drawPoints(size, flatten(patterns)), nil
}
