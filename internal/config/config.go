// Package config loads analysis settings from YAML.
//
// A config file only needs the keys it changes; everything else keeps
// the value from Default. Unknown keys are rejected so a typo never
// silently falls back to a default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/distance/internal/ingest"
)

// Decoder kinds.
const (
	DecoderTshark = "tshark"
	DecoderTSV    = "tsv"
)

// MaxParallelism bounds concurrent decoder streams.
const MaxParallelism = 128

// Config holds the settings for one analysis.
type Config struct {
	// Profiles names the diagnostic profiles to load.
	Profiles []string `yaml:"profiles"`

	// OutputDir receives the .log and .evt files. Empty means next to the
	// capture.
	OutputDir string `yaml:"output_dir"`

	// RowPolicy is "skip" or "abort".
	RowPolicy string `yaml:"row_policy"`

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// Parallelism bounds concurrent decoder streams. Zero means one per
	// fact type.
	Parallelism int `yaml:"parallelism"`

	// MaxFirings aborts a run that fires more often. Zero means unlimited.
	MaxFirings int `yaml:"max_firings"`

	// ProgressInterval throttles progress lines.
	ProgressInterval time.Duration `yaml:"progress_interval"`

	// Database is the SQLite run archive. Empty disables archiving.
	Database string `yaml:"database"`

	// Graph is where the drained network snapshot is written as JSON.
	// Empty disables the export.
	Graph string `yaml:"graph"`

	Decoder Decoder `yaml:"decoder"`
}

// Decoder selects how captures become rows.
type Decoder struct {
	// Kind is "tshark" (decode a capture) or "tsv" (read pre-decoded rows).
	Kind string `yaml:"kind"`

	TsharkPath string   `yaml:"tshark_path"`
	ExtraArgs  []string `yaml:"extra_args"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Profiles:         []string{"dns", "lan"},
		RowPolicy:        string(ingest.PolicySkip),
		ProgressInterval: time.Second,
		Decoder: Decoder{
			Kind:       DecoderTshark,
			TsharkPath: ingest.DefaultTshark,
		},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result. Empty input
// yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Profiles) == 0 {
		errs = append(errs, errors.New("profiles: at least one profile is required"))
	}
	seen := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		if seen[p] {
			errs = append(errs, fmt.Errorf("profiles: %q listed twice", p))
		}
		seen[p] = true
	}

	if _, err := ingest.ParsePolicy(c.RowPolicy); err != nil {
		errs = append(errs, fmt.Errorf("row_policy: %w", err))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout: must not be negative, got %s", c.Timeout))
	}
	if c.Parallelism < 0 || c.Parallelism > MaxParallelism {
		errs = append(errs, fmt.Errorf("parallelism: must be between 1 and %d, or 0 for one per type, got %d", MaxParallelism, c.Parallelism))
	}
	if c.MaxFirings < 0 {
		errs = append(errs, fmt.Errorf("max_firings: must not be negative, got %d", c.MaxFirings))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, fmt.Errorf("progress_interval: must be positive, got %s", c.ProgressInterval))
	}

	switch c.Decoder.Kind {
	case DecoderTshark:
		if c.Decoder.TsharkPath == "" {
			errs = append(errs, errors.New("decoder.tshark_path: required for the tshark decoder"))
		}
	case DecoderTSV:
	default:
		errs = append(errs, fmt.Errorf("decoder.kind: unknown decoder %q (valid: tshark, tsv)", c.Decoder.Kind))
	}

	return errors.Join(errs...)
}

// Policy returns the parsed row policy. Call after Validate.
func (c *Config) Policy() ingest.Policy {
	p, err := ingest.ParsePolicy(c.RowPolicy)
	if err != nil {
		return ingest.PolicySkip
	}
	return p
}
