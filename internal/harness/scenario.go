package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/distance/internal/ingest"
)

// Assertion types.
const (
	AssertEventContains = "event_contains"
	AssertEventCount    = "event_count"
	AssertEventOrder    = "event_order"
	AssertLogContains   = "log_contains"
	AssertFactCount     = "fact_count"
	AssertSummary       = "summary"
)

// DefaultRunID identifies scenario runs that do not set run_id.
const DefaultRunID = "scenario"

// Scenario is one declarative test case.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Profiles are the built-in profiles to load, in order.
	Profiles []string `yaml:"profiles"`

	// RunID overrides DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Policy is "skip" (the default) or "abort".
	Policy string `yaml:"policy,omitempty"`

	// Rows are ingested in order. RowsFile names a TSV file instead,
	// relative to the scenario file.
	Rows     []RowSpec `yaml:"rows,omitempty"`
	RowsFile string    `yaml:"rows_file,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// RowSpec is one inline decoded row.
type RowSpec struct {
	Type   string   `yaml:"type"`
	Values []string `yaml:"values"`
}

// Assertion is one check over a scenario's output. Type selects which of
// the other fields apply.
type Assertion struct {
	Type string `yaml:"type"`

	// event_contains, event_count
	Event    string            `yaml:"event,omitempty"`
	Severity string            `yaml:"severity,omitempty"`
	Message  string            `yaml:"message,omitempty"`
	Fields   map[string]string `yaml:"fields,omitempty"`

	// event_order
	Events []string `yaml:"events,omitempty"`

	// log_contains
	Level string `yaml:"level,omitempty"`
	Rule  string `yaml:"rule,omitempty"`

	// fact_count
	Fact string `yaml:"fact,omitempty"`

	// event_count, fact_count
	Count int `yaml:"count,omitempty"`

	// summary
	Expect map[string]int64 `yaml:"expect,omitempty"`
}

// summaryKeys are the counters a summary assertion may check.
var summaryKeys = map[string]bool{
	"rows_read":      true,
	"rows_skipped":   true,
	"facts_ingested": true,
	"duplicates":     true,
	"facts_derived":  true,
	"events":         true,
	"firings":        true,
}

// LoadScenario reads and validates a scenario file. A relative rows_file
// is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.RowsFile != "" && !filepath.IsAbs(s.RowsFile) {
		s.RowsFile = filepath.Join(filepath.Dir(path), s.RowsFile)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML. Unknown fields are
// rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Profiles) == 0 {
		return fmt.Errorf("profiles list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if len(s.Rows) > 0 && s.RowsFile != "" {
		return fmt.Errorf("rows and rows_file are mutually exclusive")
	}
	if s.Policy != "" {
		if _, err := ingest.ParsePolicy(s.Policy); err != nil {
			return err
		}
	}

	for i, row := range s.Rows {
		if row.Type == "" {
			return fmt.Errorf("rows[%d]: type is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)

	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}

	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}

	case AssertEventOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: event_order needs at least two events", index)
		}

	case AssertLogContains:
		if a.Message == "" && a.Rule == "" {
			return fmt.Errorf("assertions[%d]: message or rule is required for log_contains", index)
		}

	case AssertFactCount:
		if a.Fact == "" {
			return fmt.Errorf("assertions[%d]: fact is required for fact_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}

	case AssertSummary:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for summary", index)
		}
		for key := range a.Expect {
			if !summaryKeys[key] {
				return fmt.Errorf("assertions[%d]: unknown summary counter %q", index, key)
			}
		}

	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// Source returns the rows the scenario ingests.
func (s *Scenario) Source() ingest.Source {
	if s.RowsFile != "" {
		return ingest.TSV{Path: s.RowsFile}
	}
	rows := make(ingest.Static, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = ingest.Row{Type: r.Type, Line: int64(i + 1), Values: r.Values}
	}
	return rows
}
