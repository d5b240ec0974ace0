package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// loadTraceFile decodes a saved trace. The family comes from familyName when
// given, otherwise from the document's algo field.
func loadTraceFile(path, familyName string) (*trace.Trace, *trace.Family, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading trace file: %w", err)
	}
	fam, err := resolveFamily(data, familyName)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	tr, err := trace.Decode(data, fam)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, fam, nil
}

func resolveFamily(data []byte, familyName string) (*trace.Family, error) {
	if familyName != "" {
		fam, ok := trace.Lookup(familyName)
		if !ok {
			return nil, fmt.Errorf("unknown trace family %q (known: %v)", familyName, trace.Names())
		}
		return fam, nil
	}
	var head struct {
		Algo string `json:"algo"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &trace.ValidationError{Field: "document", Reason: err.Error(), Err: trace.ErrMalformed}
	}
	fam, ok := trace.ForAlgo(head.Algo)
	if !ok {
		return nil, fmt.Errorf("cannot infer trace family from algo %q; pass --family", head.Algo)
	}
	return fam, nil
}
