// Package job implements the lightweight stoppable/pauseable abstraction
// Design Notes call for in place of the source's
// decorator-implemented tracked functions: every long-running operation
// (the scheduler, autofocus, drift correction, grid tightening, the
// emission monitor) owns an atomic Status and a progress counter,
// observed at suspension points between atomic units of work.
package job

import "sync/atomic"

// Status is the lifecycle state of a long-running operation.
type Status int32

const (
	Active Status = iota
	Paused
	Dead
	Finished
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Dead:
		return "dead"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Control is embedded by any operation that needs pause/stop semantics.
// It is safe for concurrent use: the owning goroutine checks Status()
// between atomic work items, while Pause/Stop/Resume are called from
// whatever external trigger (GUI callback, CLI signal, test) observes
// the operation.
type Control struct {
	status   atomic.Int32
	progress atomic.Int64
}

// NewControl returns a Control starting in the Active state.
func NewControl() *Control {
	c := &Control{}
	c.status.Store(int32(Active))
	return c
}

// Status returns the current lifecycle state.
func (c *Control) Status() Status { return Status(c.status.Load()) }

// Progress returns the last-recorded progress counter.
func (c *Control) Progress() int { return int(c.progress.Load()) }

// SetProgress records progress, e.g. the index of the next region to
// process, so a Pause can be resumed where it left off.
func (c *Control) SetProgress(p int) { c.progress.Store(int64(p)) }

// Pause requests the operation suspend at its next checkpoint, keeping
// progress. Active -> Paused.
func (c *Control) Pause() { c.status.Store(int32(Paused)) }

// Resume requests the operation continue. Paused -> Active.
func (c *Control) Resume() { c.status.Store(int32(Active)) }

// Stop requests the operation discard its progress and terminate.
// Idempotent: calling Stop twice is equivalent to calling it once,
// since writing Dead is itself idempotent. any -> Dead.
func (c *Control) Stop() {
	c.status.Store(int32(Dead))
	c.progress.Store(0)
}

// Finish marks the operation as having completed its work normally.
// Active -> Finished.
func (c *Control) Finish() { c.status.Store(int32(Finished)) }

// ShouldSuspend reports whether the calling loop should stop making
// progress right now: true for Paused (preserve progress, return; caller
// may Resume) or Dead (discard progress, return unconditionally).
func (c *Control) ShouldSuspend() bool {
	s := c.Status()
	return s == Paused || s == Dead
}
