package trace

import (
	"fmt"
	"sort"
	"sync"
)

// Family describes how one algorithm family tags and fills its steps.
// Tag sets differ between families ("iteration" for K-Means, "update" for
// gradient descent and EM), so they are configuration rather than constants.
//
// Methods are safe on a nil *Family, which recognizes no tags.
type Family struct {
	Name           string
	Algos          []string // server "algo" values produced by this family
	ProgressTags   []string // steps that advance the algorithm
	TerminalTags   []string // convergence / summary markers
	ConvergedField string   // payload bool flagging convergence ("" = none)
	ObjectiveField string   // payload number tracked per step ("" = none)
	HistoryKeys    []string // native top-level arrays aligned with steps

	// Complete reports whether a step's payload is fully renderable.
	// Only consulted for steps with a recognized tag.
	Complete func(t *Trace, s Step) bool
}

// Clone returns a copy whose tag slices can be modified independently.
func (f *Family) Clone() *Family {
	if f == nil {
		return nil
	}
	c := *f
	c.Algos = append([]string(nil), f.Algos...)
	c.ProgressTags = append([]string(nil), f.ProgressTags...)
	c.TerminalTags = append([]string(nil), f.TerminalTags...)
	c.HistoryKeys = append([]string(nil), f.HistoryKeys...)
	return &c
}

// IsProgress reports whether tag marks a step that advances the algorithm.
func (f *Family) IsProgress(tag string) bool {
	return f != nil && contains(f.ProgressTags, tag)
}

// IsTerminal reports whether tag marks a convergence or summary step.
func (f *Family) IsTerminal(tag string) bool {
	return f != nil && contains(f.TerminalTags, tag)
}

// Recognized reports whether tag belongs to this family at all.
func (f *Family) Recognized(tag string) bool {
	return f.IsProgress(tag) || f.IsTerminal(tag)
}

// Usable reports whether s carries a complete payload. Unrecognized tags never do.
func (f *Family) Usable(t *Trace, s Step) bool {
	if !f.Recognized(s.Type) || len(s.Payload) == 0 {
		return false
	}
	if f.Complete == nil {
		return true
	}
	return f.Complete(t, s)
}

// TotalIterations returns the index of the last progress step, which is the
// last position navigation may reach. Falls back to len(steps)-1 when no step
// carries a progress tag.
func (f *Family) TotalIterations(t *Trace) int {
	if t.Len() == 0 {
		return 0
	}
	for i := len(t.Steps) - 1; i >= 0; i-- {
		if f.IsProgress(t.Steps[i].Type) {
			return i
		}
	}
	return len(t.Steps) - 1
}

// LastUsable scans from index from back toward 0 and returns the first index
// whose step is usable, or -1.
func (f *Family) LastUsable(t *Trace, from int) int {
	if t.Len() == 0 {
		return -1
	}
	if from >= len(t.Steps) {
		from = len(t.Steps) - 1
	}
	for i := from; i >= 0; i-- {
		if f.Usable(t, t.Steps[i]) {
			return i
		}
	}
	return -1
}

// Converged reports whether the run has converged as seen from position p:
// either the step at p (or its effective step) flags convergence, or p is the
// final reachable position and the trace ends with a terminal marker.
func (f *Family) Converged(t *Trace, p int) bool {
	if t.Len() == 0 || p < 0 || p >= len(t.Steps) {
		return false
	}
	if f != nil && f.ConvergedField != "" {
		if v, ok := t.Steps[p].Payload.Bool(f.ConvergedField); ok && v {
			return true
		}
		if e := f.LastUsable(t, p); e >= 0 {
			if v, ok := t.Steps[e].Payload.Bool(f.ConvergedField); ok && v {
				return true
			}
		}
	}
	last := t.Steps[len(t.Steps)-1]
	return p == f.TotalIterations(t) && f.IsTerminal(last.Type)
}

// Objective returns the family's objective value for step s, if present.
func (f *Family) Objective(s Step) (float64, bool) {
	if f == nil || f.ObjectiveField == "" {
		return 0, false
	}
	return s.Payload.Float(f.ObjectiveField)
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Family{}
)

// Register adds or replaces a family by name.
func Register(f *Family) {
	if f == nil || f.Name == "" {
		panic("trace: Register requires a named family")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[f.Name] = f
}

// Lookup returns the family registered under name.
func Lookup(name string) (*Family, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) *Family {
	f, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("trace: unknown family %q", name))
	}
	return f
}

// ForAlgo returns the family that produces traces tagged with the given server algo.
func ForAlgo(algo string) (*Family, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, f := range registry {
		if f.Name == algo || contains(f.Algos, algo) {
			return f, true
		}
	}
	return nil, false
}

// Names returns registered family names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
