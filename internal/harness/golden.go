package harness

import (
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the deterministic view of a scenario run compared against
// golden files. Sequence numbers and elapsed time are left out; events are
// sorted by name then message, and log lines are sorted as text.
type Snapshot struct {
	Scenario string          `json:"scenario"`
	Summary  SummaryCounts   `json:"summary"`
	Facts    map[string]int  `json:"facts"`
	Events   []EventSnapshot `json:"events"`
	Log      []string        `json:"log"`
}

// SummaryCounts are the run counters of a snapshot.
type SummaryCounts struct {
	RowsRead      int64 `json:"rows_read"`
	RowsSkipped   int64 `json:"rows_skipped"`
	FactsIngested int64 `json:"facts_ingested"`
	Duplicates    int64 `json:"duplicates"`
	FactsDerived  int64 `json:"facts_derived"`
	Events        int64 `json:"events"`
	Firings       int64 `json:"firings"`
}

// EventSnapshot is one event without its sequence number or key.
type EventSnapshot struct {
	Name     string            `json:"name"`
	Severity string            `json:"severity"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(name string, result *Result) Snapshot {
	s := Snapshot{
		Scenario: name,
		Summary: SummaryCounts{
			RowsRead:      result.Summary.RowsRead,
			RowsSkipped:   result.Summary.RowsSkipped,
			FactsIngested: result.Summary.FactsIngested,
			Duplicates:    result.Summary.Duplicates,
			FactsDerived:  result.Summary.FactsDerived,
			Events:        result.Summary.Events,
			Firings:       result.Summary.Firings,
		},
		Facts:  result.Facts,
		Events: make([]EventSnapshot, 0, len(result.Events)),
		Log:    make([]string, 0, len(result.Records)),
	}
	if s.Facts == nil {
		s.Facts = map[string]int{}
	}

	for _, e := range result.Events {
		fields := make(map[string]string, len(e.Fields))
		for _, f := range e.Fields {
			fields[f.Name] = f.Value
		}
		s.Events = append(s.Events, EventSnapshot{
			Name:     e.Name,
			Severity: string(e.Severity),
			Message:  e.Message,
			Fields:   fields,
		})
	}
	sort.SliceStable(s.Events, func(i, j int) bool {
		if s.Events[i].Name != s.Events[j].Name {
			return s.Events[i].Name < s.Events[j].Name
		}
		return s.Events[i].Message < s.Events[j].Message
	})

	for _, r := range result.Records {
		s.Log = append(s.Log, fmt.Sprintf("%s %s: %s", r.Level, r.Rule, r.Message))
	}
	sort.Strings(s.Log)
	return s
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
