package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/distance/internal/sink"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Events lists the names of every event the run yielded.
	Events []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents (%d):\n", len(e.Events))
		for i, name := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, name)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks each assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d] (%s): %s", i, a.Type, err.Error()))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventContains:
		return assertEventContains(result, a)
	case AssertEventCount:
		return assertEventCount(result, a)
	case AssertEventOrder:
		return assertEventOrder(result, a)
	case AssertLogContains:
		return assertLogContains(result, a)
	case AssertFactCount:
		return assertFactCount(result, a)
	case AssertSummary:
		return assertSummary(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertEventContains passes when at least one event matches the name,
// severity, message substring, and every listed field value.
func assertEventContains(result *Result, a Assertion) error {
	for _, e := range result.Events {
		if eventMatches(e, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: describeEvent(a),
		Actual:   fmt.Sprintf("%d event(s) named %s, none matching", len(named(result.Events, a.Event)), a.Event),
		Events:   eventNames(result.Events),
	}
}

func eventMatches(e sink.Event, a Assertion) bool {
	if e.Name != a.Event {
		return false
	}
	if a.Severity != "" && string(e.Severity) != a.Severity {
		return false
	}
	if a.Message != "" && !strings.Contains(e.Message, a.Message) {
		return false
	}
	for name, want := range a.Fields {
		got, ok := eventField(e, name)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// eventField looks a field up by name, then by source key.
func eventField(e sink.Event, name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Name == name || f.Source == name {
			return f.Value, true
		}
	}
	return "", false
}

func describeEvent(a Assertion) string {
	parts := []string{a.Event}
	if a.Severity != "" {
		parts = append(parts, "severity="+a.Severity)
	}
	if a.Message != "" {
		parts = append(parts, fmt.Sprintf("message~%q", a.Message))
	}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, a.Fields[k]))
	}
	return strings.Join(parts, " ")
}

func assertEventCount(result *Result, a Assertion) error {
	got := len(named(result.Events, a.Event))
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s event(s)", a.Count, a.Event),
		Actual:   fmt.Sprintf("%d %s event(s)", got, a.Event),
		Events:   eventNames(result.Events),
	}
}

// assertEventOrder passes when the named events occur in the given
// relative order. Other events may appear in between.
func assertEventOrder(result *Result, a Assertion) error {
	next := 0
	for _, e := range result.Events {
		if next < len(a.Events) && e.Name == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: strings.Join(a.Events, " -> "),
		Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(a.Events), a.Events[next]),
		Events:   eventNames(result.Events),
	}
}

func assertLogContains(result *Result, a Assertion) error {
	for _, r := range result.Records {
		if a.Level != "" && string(r.Level) != a.Level {
			continue
		}
		if a.Rule != "" && r.Rule != a.Rule {
			continue
		}
		if strings.Contains(r.Message, a.Message) {
			return nil
		}
	}

	expected := fmt.Sprintf("log line containing %q", a.Message)
	if a.Level != "" || a.Rule != "" {
		expected += fmt.Sprintf(" (level=%q rule=%q)", a.Level, a.Rule)
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: expected,
		Actual:   fmt.Sprintf("%d log line(s), none matching", len(result.Records)),
	}
}

func assertFactCount(result *Result, a Assertion) error {
	got := result.Facts[a.Fact]
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertFactCount,
		Expected: fmt.Sprintf("%d %s fact(s)", a.Count, a.Fact),
		Actual:   fmt.Sprintf("%d %s fact(s)", got, a.Fact),
	}
}

func assertSummary(result *Result, a Assertion) error {
	actual := summaryCounters(result.Summary)

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		if got := actual[k]; got != a.Expect[k] {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %d, got %d", k, a.Expect[k], got))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertSummary,
		Expected: "summary counters to match",
		Actual:   strings.Join(mismatches, "; "),
	}
}

func summaryCounters(s sink.Summary) map[string]int64 {
	return map[string]int64{
		"rows_read":      s.RowsRead,
		"rows_skipped":   s.RowsSkipped,
		"facts_ingested": s.FactsIngested,
		"duplicates":     s.Duplicates,
		"facts_derived":  s.FactsDerived,
		"events":         s.Events,
		"firings":        s.Firings,
	}
}

func named(events []sink.Event, name string) []sink.Event {
	var out []sink.Event
	for _, e := range events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func eventNames(events []sink.Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}
