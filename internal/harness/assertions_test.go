package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/sink"
)

func fixture() *Result {
	r := NewResult()
	r.Events = []sink.Event{
		{Seq: 3, Name: "NoResponse", Severity: ir.SeverityError, Message: "No response for DNS query 7.",
			Fields: []sink.EventField{{Name: "Query", Source: "query", Value: "DnsPacket: dns.id=7"}}},
		{Seq: 5, Name: "DnsServerDown", Severity: ir.SeverityError, Message: "DNS server 10.0.0.9 did not answer any query.",
			Fields: []sink.EventField{{Name: "Server", Source: "server", Value: "DnsServer: ip.address=10.0.0.9"}}},
	}
	r.Records = []sink.Record{
		{Seq: 2, Level: ir.SeverityError, Rule: "DnsNoResponse", Message: "No response for DNS query 7 found."},
	}
	r.Summary = sink.Summary{RowsRead: 1, FactsIngested: 1, Events: 2, Firings: 3}
	r.Facts = map[string]int{"DnsPacket": 1, "DnsServer": 1}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(fixture(), []Assertion{
		{Type: AssertEventContains, Event: "NoResponse", Severity: "error", Message: "query 7"},
		{Type: AssertEventContains, Event: "NoResponse", Fields: map[string]string{"Query": "DnsPacket: dns.id=7"}},
		{Type: AssertEventContains, Event: "DnsServerDown", Fields: map[string]string{"server": "DnsServer: ip.address=10.0.0.9"}},
		{Type: AssertEventCount, Event: "NoResponse", Count: 1},
		{Type: AssertEventCount, Event: "LateResponse", Count: 0},
		{Type: AssertEventOrder, Events: []string{"NoResponse", "DnsServerDown"}},
		{Type: AssertLogContains, Level: "error", Rule: "DnsNoResponse", Message: "query 7"},
		{Type: AssertLogContains, Rule: "DnsNoResponse"},
		{Type: AssertFactCount, Fact: "DnsServer", Count: 1},
		{Type: AssertFactCount, Fact: "DnsQueryResponse", Count: 0},
		{Type: AssertSummary, Expect: map[string]int64{"rows_read": 1, "events": 2, "firings": 3, "duplicates": 0}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "event missing",
			assertion: Assertion{Type: AssertEventContains, Event: "LateResponse"},
			want:      []string{"Expected: LateResponse", "0 event(s) named LateResponse", "[0] NoResponse"},
		},
		{
			name:      "wrong severity",
			assertion: Assertion{Type: AssertEventContains, Event: "NoResponse", Severity: "warning"},
			want:      []string{"severity=warning", "1 event(s) named NoResponse, none matching"},
		},
		{
			name:      "wrong field",
			assertion: Assertion{Type: AssertEventContains, Event: "NoResponse", Fields: map[string]string{"Query": "other"}},
			want:      []string{`Query="other"`},
		},
		{
			name:      "count",
			assertion: Assertion{Type: AssertEventCount, Event: "NoResponse", Count: 2},
			want:      []string{"Expected: 2 NoResponse event(s)", "Actual: 1 NoResponse event(s)"},
		},
		{
			name:      "order",
			assertion: Assertion{Type: AssertEventOrder, Events: []string{"DnsServerDown", "NoResponse"}},
			want:      []string{"DnsServerDown -> NoResponse", "matched 1 of 2, missing NoResponse"},
		},
		{
			name:      "log level",
			assertion: Assertion{Type: AssertLogContains, Level: "warning", Message: "query 7"},
			want:      []string{`log line containing "query 7" (level="warning" rule="")`},
		},
		{
			name:      "fact count",
			assertion: Assertion{Type: AssertFactCount, Fact: "DnsPacket", Count: 4},
			want:      []string{"Expected: 4 DnsPacket fact(s)", "Actual: 1 DnsPacket fact(s)"},
		},
		{
			name:      "summary",
			assertion: Assertion{Type: AssertSummary, Expect: map[string]int64{"firings": 9, "rows_read": 2}},
			want:      []string{"firings: expected 9, got 3; rows_read: expected 2, got 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(fixture(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "assertion[0] ("+tt.assertion.Type+")")
			for _, w := range tt.want {
				assert.Contains(t, errs[0], w)
			}
		})
	}
}

func TestEvaluateAssertions_ReportsEachFailure(t *testing.T) {
	errs := EvaluateAssertions(fixture(), []Assertion{
		{Type: AssertEventCount, Event: "NoResponse", Count: 1},
		{Type: AssertEventCount, Event: "NoResponse", Count: 3},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion[1]")
	assert.Contains(t, errs[1], "unknown assertion type: bogus")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEventCount,
		Expected: "1 NoResponse event(s)",
		Actual:   "0 NoResponse event(s)",
		Events:   []string{"DnsServerDown"},
	}
	assert.Equal(t, "Assertion failed: event_count\n"+
		"  Expected: 1 NoResponse event(s)\n"+
		"  Actual: 0 NoResponse event(s)\n"+
		"\nEvents (1):\n"+
		"  [0] DnsServerDown\n", err.Error())
}
