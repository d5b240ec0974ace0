package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ExportHeader is the YAML metadata written next to an exported step table.
type ExportHeader struct {
	SchemaVersion   int            `yaml:"schema_version"`
	Algo            string         `yaml:"algo"`
	Family          string         `yaml:"family,omitempty"`
	Steps           int            `yaml:"steps"`
	TotalIterations int            `yaml:"total_iterations"`
	Converged       bool           `yaml:"converged"`
	History         []string       `yaml:"history,omitempty"`
	Params          map[string]any `yaml:"params,omitempty"`
}

// ExportHistory writes a trace header (YAML) and a per-step table (CSV) to separate files.
// Columns: index, t, type, usable, objective, then one column per history series.
func ExportHistory(t *Trace, fam *Family, headerPath, dataPath string) error {
	if t.Len() == 0 {
		return fmt.Errorf("exporting trace: %w", ErrEmptySteps)
	}
	names := t.HistoryNames()

	header := ExportHeader{
		SchemaVersion:   t.SchemaVersion,
		Algo:            t.Algo,
		Steps:           len(t.Steps),
		TotalIterations: fam.TotalIterations(t),
		Converged:       fam.Converged(t, fam.TotalIterations(t)),
		History:         names,
		Params:          t.AlgoParams,
	}
	if fam != nil {
		header.Family = fam.Name
	}
	headerData, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling trace header: %w", err)
	}
	if err := os.WriteFile(headerPath, headerData, 0644); err != nil {
		return fmt.Errorf("writing trace header: %w", err)
	}

	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("creating trace data file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	columns := append([]string{"index", "t", "type", "usable", "objective"}, names...)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, s := range t.Steps {
		objective := ""
		if v, ok := fam.Objective(s); ok {
			objective = strconv.FormatFloat(v, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(s.T),
			s.Type,
			strconv.FormatBool(fam.Usable(t, s)),
			objective,
		}
		for _, name := range names {
			row = append(row, strconv.FormatFloat(t.History[name][i], 'f', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
