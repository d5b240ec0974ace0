package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ml-under-the-hood/traceplay/playback/fetch"
	"github.com/ml-under-the-hood/traceplay/playback/observability"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// FamilyOverride replaces parts of a built-in family's tag configuration.
// Nil lists and empty strings leave the built-in value in place.
type FamilyOverride struct {
	Algos          []string `yaml:"algos"`
	ProgressTags   []string `yaml:"progress_tags"`
	TerminalTags   []string `yaml:"terminal_tags"`
	HistoryKeys    []string `yaml:"history_keys"`
	ConvergedField string   `yaml:"converged_field"`
	ObjectiveField string   `yaml:"objective_field"`
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version  string                      `yaml:"version"`
	Endpoint string                      `yaml:"endpoint"`
	Timeout  time.Duration               `yaml:"timeout"`
	Families map[string]FamilyOverride   `yaml:"families"`
	Requests map[string]yaml.Node        `yaml:"requests"`
	Tracing  observability.TracingConfig `yaml:"tracing"`
}

// DefaultConfig is used when no defaults file is present.
func DefaultConfig() Config {
	return Config{
		Version:  "1",
		Endpoint: "http://localhost:8000",
		Timeout:  2 * time.Minute,
		Tracing: observability.TracingConfig{
			ServiceName: "traceplay",
			Exporter:    observability.ExporterStdout,
			SampleRatio: 1,
		},
	}
}

// LoadConfig parses a defaults file on top of DefaultConfig.
// Uses strict field checking: typos must cause errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading defaults file %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing defaults YAML %s: %w", path, err)
	}
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
	}
	if err := cfg.Tracing.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Apply re-registers every overridden family with its configured tags.
// Overrides may only target registered families.
func (c Config) Apply() error {
	names := make([]string, 0, len(c.Families))
	for name := range c.Families {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		base, ok := trace.Lookup(name)
		if !ok {
			return fmt.Errorf("families.%s: unknown trace family (known: %v)", name, trace.Names())
		}
		ov := c.Families[name]
		fam := base.Clone()
		if ov.Algos != nil {
			fam.Algos = ov.Algos
		}
		if ov.ProgressTags != nil {
			fam.ProgressTags = ov.ProgressTags
		}
		if ov.TerminalTags != nil {
			fam.TerminalTags = ov.TerminalTags
		}
		if ov.HistoryKeys != nil {
			fam.HistoryKeys = ov.HistoryKeys
		}
		if ov.ConvergedField != "" {
			fam.ConvergedField = ov.ConvergedField
		}
		if ov.ObjectiveField != "" {
			fam.ObjectiveField = ov.ObjectiveField
		}
		if len(fam.ProgressTags) == 0 {
			return fmt.Errorf("families.%s: progress_tags must not be empty", name)
		}
		trace.Register(fam)
	}
	return nil
}

// ApplyRequestDefaults merges requests.<family> from the defaults file into req.
func (c Config) ApplyRequestDefaults(family string, req fetch.Request) error {
	node, ok := c.Requests[family]
	if !ok {
		return nil
	}
	data, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("requests.%s: %w", family, err)
	}
	if err := decodeRequestYAML(data, req); err != nil {
		return fmt.Errorf("requests.%s: %w", family, err)
	}
	return nil
}

// decodeRequestYAML merges a YAML request document into req. Fields absent from
// the document keep their current values.
func decodeRequestYAML(data []byte, req fetch.Request) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(req); err != nil && err != io.EOF {
		return err
	}
	return nil
}
