package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/ingest"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "dns_nxdomain.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "dns_nxdomain", s.Name)
	assert.Equal(t, []string{"dns"}, s.Profiles)
	assert.Equal(t, "abort", s.Policy)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, "DnsPacket", s.Rows[0].Type)
	assert.Len(t, s.Rows[0].Values, 8)
	assert.Equal(t, "NXDOMAIN", s.Assertions[1].Fields["RcodeName"])
	assert.Equal(t, int64(3), s.Assertions[5].Expect["firings"])
}

func TestLoadScenario_RowsFileRelative(t *testing.T) {
	dir := t.TempDir()
	content := `
name: tsv
profiles: [lan]
rows_file: rows.tsv
assertions:
  - type: fact_count
    fact: IpPacket
    count: 0
`
	path := filepath.Join(dir, "tsv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rows.tsv"), s.RowsFile)
	assert.Equal(t, ingest.TSV{Path: filepath.Join(dir, "rows.tsv")}, s.Source())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "profiles: [dns]\nassertions: [{type: event_count, event: X}]",
			wantErr: "name is required",
		},
		{
			name:    "missing profiles",
			yaml:    "name: s\nassertions: [{type: event_count, event: X}]",
			wantErr: "profiles list is required",
		},
		{
			name:    "missing assertions",
			yaml:    "name: s\nprofiles: [dns]",
			wantErr: "assertions list is required",
		},
		{
			name:    "rows and rows_file",
			yaml:    "name: s\nprofiles: [dns]\nrows_file: r.tsv\nrows: [{type: DnsPacket}]\nassertions: [{type: event_count, event: X}]",
			wantErr: "mutually exclusive",
		},
		{
			name:    "bad policy",
			yaml:    "name: s\nprofiles: [dns]\npolicy: retry\nassertions: [{type: event_count, event: X}]",
			wantErr: "retry",
		},
		{
			name:    "row without type",
			yaml:    "name: s\nprofiles: [dns]\nrows: [{values: [a]}]\nassertions: [{type: event_count, event: X}]",
			wantErr: "rows[0]: type is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: s\nprofiles: [dns]\nflow: []\nassertions: [{type: event_count, event: X}]",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "assertion without type",
			yaml:    "name: s\nprofiles: [dns]\nassertions: [{event: X}]",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion type",
			yaml:    "name: s\nprofiles: [dns]\nassertions: [{type: trace_contains}]",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "event_contains without event",
			yaml:    "name: s\nprofiles: [dns]\nassertions: [{type: event_contains}]",
			wantErr: "event is required for event_contains",
		},
		{
			name:    "negative count",
			yaml:    "name: s\nprofiles: [dns]\nassertions: [{type: fact_count, fact: X, count: -1}]",
			wantErr: "count must be non-negative",
		},
		{
			name:    "short event_order",
			yaml:    "name: s\nprofiles: [dns]\nassertions: [{type: event_order, events: [X]}]",
			wantErr: "at least two events",
		},
		{
			name:    "empty log_contains",
			yaml:    "name: s\nprofiles: [dns]\nassertions: [{type: log_contains, level: error}]",
			wantErr: "message or rule is required",
		},
		{
			name:    "unknown summary counter",
			yaml:    "name: s\nprofiles: [dns]\nassertions: [{type: summary, expect: {rows: 1}}]",
			wantErr: `unknown summary counter "rows"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenario_SourceNumbersInlineRows(t *testing.T) {
	s := &Scenario{Rows: []RowSpec{
		{Type: "DnsPacket", Values: []string{"1"}},
		{Type: "DnsPacket", Values: []string{"2"}},
	}}
	assert.Equal(t, ingest.Static{
		{Type: "DnsPacket", Line: 1, Values: []string{"1"}},
		{Type: "DnsPacket", Line: 2, Values: []string{"2"}},
	}, s.Source())
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"dns_no_response", "dns_nxdomain", "dns_unreliable", "lan_conflict"}, names)
}
