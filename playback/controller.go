// Defines the Controller that owns the playback position within a loaded trace.
// Navigation is total: out-of-range requests clamp, and every operation is a
// no-op while no trace is loaded.

package playback

import (
	"errors"
	"fmt"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// ErrNoTrace is returned by accessors that need a loaded trace.
var ErrNoTrace = errors.New("no trace loaded")

// State is the lifecycle state of a Controller.
type State int

const (
	StateEmpty State = iota // no trace loaded
	StateReady              // trace loaded, position valid
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Controller owns the iteration position for one visualization.
// It is not safe for concurrent use; wrap it in a Session when fetch results
// arrive on other goroutines.
type Controller struct {
	family   *trace.Family
	trace    *trace.Trace
	position int
	total    int // TotalIterations, fixed for the loaded trace
}

// NewController creates an empty Controller for the given family.
// fam supplies the progress tags and the payload completeness check.
func NewController(fam *trace.Family) *Controller {
	return &Controller{family: fam}
}

// Family returns the algorithm family this controller was built for.
func (c *Controller) Family() *trace.Family { return c.family }

// State reports whether a trace is loaded.
func (c *Controller) State() State {
	if c.trace == nil {
		return StateEmpty
	}
	return StateReady
}

// Load replaces the current trace and resets the position to 0.
// Loading nil is the same as Clear.
func (c *Controller) Load(t *trace.Trace) {
	if t.Len() == 0 {
		c.Clear()
		return
	}
	c.trace = t
	c.position = 0
	c.total = c.family.TotalIterations(t)
}

// Clear drops the trace and returns to StateEmpty.
func (c *Controller) Clear() {
	c.trace = nil
	c.position = 0
	c.total = 0
}

// ResetPosition moves back to 0 without reloading, e.g. when the view switches
// between 2D and 3D rendering.
func (c *Controller) ResetPosition() {
	c.position = 0
}

// GoTo moves to i clamped to [0, TotalIterations].
func (c *Controller) GoTo(i int) {
	if c.trace == nil {
		return
	}
	switch {
	case i < 0:
		i = 0
	case i > c.total:
		i = c.total
	}
	c.position = i
}

// Next advances one step; no-op at the upper bound.
func (c *Controller) Next() { c.GoTo(c.position + 1) }

// Previous moves back one step; no-op at 0.
func (c *Controller) Previous() { c.GoTo(c.position - 1) }

// First moves to position 0.
func (c *Controller) First() { c.GoTo(0) }

// Last moves to the final reachable position.
func (c *Controller) Last() { c.GoTo(c.total) }

// Position returns the current index (0 when empty).
func (c *Controller) Position() int { return c.position }

// TotalIterations returns the last reachable position (0 when empty).
func (c *Controller) TotalIterations() int { return c.total }

// Trace returns the loaded trace.
func (c *Controller) Trace() (*trace.Trace, error) {
	if c.trace == nil {
		return nil, ErrNoTrace
	}
	return c.trace, nil
}

// EffectiveStep returns the step to render at the current position: the step
// itself if its payload is complete, otherwise the nearest earlier complete step.
// ok is false when no such step exists; callers render a placeholder.
func (c *Controller) EffectiveStep() (step trace.Step, index int, ok bool) {
	if c.trace == nil {
		return trace.Step{}, -1, false
	}
	index = c.family.LastUsable(c.trace, c.position)
	if index < 0 {
		return trace.Step{}, -1, false
	}
	return c.trace.Steps[index], index, true
}

// IsConverged reports whether the run has converged as of the current position.
func (c *Controller) IsConverged() bool {
	if c.trace == nil {
		return false
	}
	return c.family.Converged(c.trace, c.position)
}

// View is the read-only snapshot handed to presentation adapters.
type View struct {
	State           State
	Position        int
	TotalIterations int
	IsConverged     bool
	EffectiveStep   *trace.Step // nil when no complete step exists
	EffectiveIndex  int         // -1 when EffectiveStep is nil
	Trace           *trace.Trace
}

// View returns the current read-only view.
func (c *Controller) View() View {
	v := View{
		State:           c.State(),
		Position:        c.position,
		TotalIterations: c.total,
		IsConverged:     c.IsConverged(),
		EffectiveIndex:  -1,
		Trace:           c.trace,
	}
	if step, idx, ok := c.EffectiveStep(); ok {
		v.EffectiveStep = &step
		v.EffectiveIndex = idx
	}
	return v
}
