// Package correct defines the Counter/Match pair the drift, focus and
// emission corrections each embed, specifying the shared "needs reset"
// comparison once instead of three times.
package correct

// Match is the comparison a CorrectionCounter runs between its current
// value and its limit.
type Match int

const (
	NoLower Match = iota
	Exact
	NoHigher
)

func (m Match) holds(c, l float64) bool {
	switch m {
	case NoLower:
		return c >= l
	case NoHigher:
		return c <= l
	default:
		return c == l
	}
}

// Counter tracks a current value against a limit under a given Match
// mode, emitting a "needs reset" signal when the mode becomes false.
type Counter struct {
	Limit   float64
	Current float64
	Mode    Match
}

// NewCounter builds a Counter starting at zero.
func NewCounter(limit float64, mode Match) *Counter {
	return &Counter{Limit: limit, Mode: mode}
}

// Increase advances the current value by one unit, the scheduler's
// per-scan increment.
func (c *Counter) Increase() { c.Current++ }

// Set overwrites the current value directly (used after a correction
// routine runs and resets its own counter to zero).
func (c *Counter) Set(v float64) { c.Current = v }

// Check reports whether the Match condition currently holds. Returns
// false (a "needs reset" condition) when it does not.
func (c *Counter) Check() bool {
	return c.Mode.holds(c.Current, c.Limit)
}

// NeedsReset is the negation of Check, named for the event it signals.
func (c *Counter) NeedsReset() bool { return !c.Check() }
