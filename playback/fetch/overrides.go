package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ApplyOverrides sets request fields from "path=value" assignments such as
// "dataset.n_samples=500" or "initial_centroids=[[0,0],[3,3]]". Values are parsed
// as YAML scalars or flow sequences. Unknown paths are rejected so typos fail loudly.
func ApplyOverrides(req Request, assignments []string) error {
	if len(assignments) == 0 {
		return nil
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}

	for _, a := range assignments {
		path, raw, ok := strings.Cut(a, "=")
		if !ok || path == "" {
			return fmt.Errorf("override %q: expected path=value", a)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("override %q: %w", a, err)
		}
		if err := setPath(doc, strings.Split(path, "."), value); err != nil {
			return fmt.Errorf("override %q: %w", a, err)
		}
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding overrides: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return fmt.Errorf("applying overrides: %w", err)
	}
	return nil
}

func setPath(doc map[string]any, path []string, value any) error {
	for _, key := range path[:len(path)-1] {
		next, ok := doc[key].(map[string]any)
		if !ok {
			if _, exists := doc[key]; exists {
				return fmt.Errorf("%s is not an object", key)
			}
			next = map[string]any{}
			doc[key] = next
		}
		doc = next
	}
	doc[path[len(path)-1]] = value
	return nil
}
