// Package trace defines the canonical shape of an algorithm trace and validates
// server responses against it.
// This package has no dependencies on playback/ or playback/fetch/; it stores pure data types.
package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Sentinel causes wrapped by ValidationError.
var (
	ErrEmptySteps    = errors.New("trace has no steps")
	ErrHistoryLength = errors.New("history length does not match step count")
	ErrMalformed     = errors.New("malformed trace document")
)

// ValidationError reports a server response that does not conform to the trace shape.
// Traces are rejected wholesale; nothing is repaired.
type ValidationError struct {
	Field  string // "steps", "history.<name>", or "document"
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid trace: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Step is one recorded instant of an algorithm run.
type Step struct {
	T       int     // server-side step counter ("t"); informational only
	Type    string  // "init", "update", "iteration", "converged", ...
	Payload Payload // may be partial for terminal steps
}

// Trace is the complete record of one algorithm run.
// A Trace returned by Validate or Decode is a read-only snapshot: callers must not
// mutate it, which lets any number of readers share it without locking.
type Trace struct {
	SchemaVersion int
	Algo          string
	Steps         []Step               // index 0 is the initial state
	History       map[string][]float64 // each series has len(Steps) entries
	DatasetMeta   Payload
	AlgoParams    Payload
	Summary       Payload // server summary block (may be nil)
}

// Len returns the number of steps.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Steps)
}

// HistoryNames returns the history series names in sorted order.
func (t *Trace) HistoryNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.History))
	for name := range t.History {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RawStep is a step as it appears on the wire.
type RawStep struct {
	T       int            `json:"t"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Raw is an undecoded-but-parsed trace document. It accepts both the canonical
// keys (datasetMeta, algoParams, history) and the algorithm service's native keys
// (meta, params, summary, plus top-level "*_history" arrays collected in Extra).
type Raw struct {
	SchemaVersion int                  `json:"schema_version"`
	Algo          string               `json:"algo"`
	Steps         []RawStep            `json:"steps"`
	History       map[string][]float64 `json:"history,omitempty"`
	DatasetMeta   map[string]any       `json:"datasetMeta,omitempty"`
	AlgoParams    map[string]any       `json:"algoParams,omitempty"`
	Meta          map[string]any       `json:"meta,omitempty"`
	Params        map[string]any       `json:"params,omitempty"`
	Summary       map[string]any       `json:"summary,omitempty"`

	// Extra holds top-level numeric arrays named by Family.HistoryKeys.
	Extra map[string][]float64 `json:"-"`
}

// Decode parses a JSON trace document and validates it for the given family.
// fam may be nil, in which case no top-level history arrays are collected.
func Decode(data []byte, fam *Family) (*Trace, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Field: "document", Reason: err.Error(), Err: ErrMalformed}
	}
	if fam != nil && len(fam.HistoryKeys) > 0 {
		var top map[string]json.RawMessage
		if err := json.Unmarshal(data, &top); err != nil {
			return nil, &ValidationError{Field: "document", Reason: err.Error(), Err: ErrMalformed}
		}
		for _, key := range fam.HistoryKeys {
			msg, ok := top[key]
			if !ok {
				continue
			}
			var series []float64
			if err := json.Unmarshal(msg, &series); err != nil {
				return nil, &ValidationError{Field: key, Reason: "not a numeric sequence", Err: ErrMalformed}
			}
			if raw.Extra == nil {
				raw.Extra = make(map[string][]float64)
			}
			raw.Extra[key] = series
		}
	}
	return Validate(&raw, fam)
}

// Validate checks a parsed document and builds a Trace from it.
// Unknown step types are accepted; the family treats them as payload-incomplete.
func Validate(raw *Raw, fam *Family) (*Trace, error) {
	if raw == nil || len(raw.Steps) == 0 {
		return nil, &ValidationError{Field: "steps", Reason: "must be a non-empty sequence", Err: ErrEmptySteps}
	}

	history := make(map[string][]float64, len(raw.History)+len(raw.Extra))
	for name, series := range raw.Extra {
		history[historyName(name)] = append([]float64(nil), series...)
	}
	// canonical history wins over native top-level arrays of the same name
	for name, series := range raw.History {
		history[name] = append([]float64(nil), series...)
	}

	names := make([]string, 0, len(history))
	for name := range history {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if got := len(history[name]); got != len(raw.Steps) {
			return nil, &ValidationError{
				Field:  "history." + name,
				Reason: fmt.Sprintf("has %d entries, expected %d", got, len(raw.Steps)),
				Err:    ErrHistoryLength,
			}
		}
	}

	steps := make([]Step, len(raw.Steps))
	for i, rs := range raw.Steps {
		steps[i] = Step{T: rs.T, Type: rs.Type, Payload: Payload(rs.Payload)}
	}

	meta := raw.DatasetMeta
	if meta == nil {
		meta = raw.Meta
	}
	params := raw.AlgoParams
	if params == nil {
		params = raw.Params
	}

	return &Trace{
		SchemaVersion: raw.SchemaVersion,
		Algo:          raw.Algo,
		Steps:         steps,
		History:       history,
		DatasetMeta:   Payload(meta),
		AlgoParams:    Payload(params),
		Summary:       Payload(raw.Summary),
	}, nil
}

// Encode writes t in the canonical document shape, which Decode reads back
// without needing family history keys.
func Encode(t *Trace) ([]byte, error) {
	if t.Len() == 0 {
		return nil, fmt.Errorf("encoding trace: %w", ErrEmptySteps)
	}
	raw := Raw{
		SchemaVersion: t.SchemaVersion,
		Algo:          t.Algo,
		Steps:         make([]RawStep, len(t.Steps)),
		History:       t.History,
		DatasetMeta:   t.DatasetMeta,
		AlgoParams:    t.AlgoParams,
		Summary:       t.Summary,
	}
	for i, s := range t.Steps {
		raw.Steps[i] = RawStep{T: s.T, Type: s.Type, Payload: s.Payload}
	}
	return json.MarshalIndent(raw, "", "  ")
}

// historyName maps a native key such as "inertia_history" to the series name "inertia".
func historyName(key string) string {
	const suffix = "_history"
	if len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix {
		return key[:len(key)-len(suffix)]
	}
	return key
}
