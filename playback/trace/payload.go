package trace

import "encoding/json"

// Payload is a JSON object as decoded from the wire. Steps carry their
// algorithm-specific state in it; dataset metadata and algorithm parameters
// use the same type so the accessors below serve all three.
//
// Accessors return ok=false for a missing key or an unexpected shape. They never panic.
type Payload map[string]any

// Has reports whether key is present with a non-null value.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Float returns a numeric field.
func (p Payload) Float(key string) (float64, bool) {
	return toFloat(p[key])
}

// Int returns a numeric field that holds an integral value.
func (p Payload) Int(key string) (int, bool) {
	f, ok := toFloat(p[key])
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Bool returns a boolean field.
func (p Payload) Bool(key string) (bool, bool) {
	b, ok := p[key].(bool)
	return b, ok
}

// String returns a string field.
func (p Payload) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// Object returns a nested object.
func (p Payload) Object(key string) (Payload, bool) {
	switch v := p[key].(type) {
	case map[string]any:
		return Payload(v), true
	case Payload:
		return v, true
	}
	return nil, false
}

// Len returns the length of an array field.
func (p Payload) Len(key string) (int, bool) {
	switch v := p[key].(type) {
	case []any:
		return len(v), true
	case []float64:
		return len(v), true
	case []int:
		return len(v), true
	case [][]float64:
		return len(v), true
	}
	return 0, false
}

// Floats returns a numeric vector field.
func (p Payload) Floats(key string) ([]float64, bool) {
	return toFloats(p[key])
}

// Ints returns an integer vector field such as cluster labels.
func (p Payload) Ints(key string) ([]int, bool) {
	switch v := p[key].(type) {
	case []int:
		return v, true
	case []any:
		out := make([]int, len(v))
		for i, e := range v {
			f, ok := toFloat(e)
			if !ok || f != float64(int(f)) {
				return nil, false
			}
			out[i] = int(f)
		}
		return out, true
	}
	return nil, false
}

// Matrix returns a field holding a list of numeric rows.
func (p Payload) Matrix(key string) ([][]float64, bool) {
	switch v := p[key].(type) {
	case [][]float64:
		return v, true
	case []any:
		out := make([][]float64, len(v))
		for i, row := range v {
			r, ok := toFloats(row)
			if !ok {
				return nil, false
			}
			out[i] = r
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toFloats(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return s, true
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
