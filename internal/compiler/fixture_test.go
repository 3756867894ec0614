package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

const dnsSource = `
namespace: "test.dns"
facts: {
	DnsQuery: {
		kind:   "fact"
		filter: "dns.flags.response == 0"
		fields: [
			{name: "DnsId", source: "dns.id", type: "int"},
			{name: "IpSrc", source: "ip.src", type: "string"},
			{name: "IpDst", source: "ip.dst", type: "string"},
		]
	}
	DnsResponse: {
		kind:   "fact"
		filter: "dns.flags.response == 1"
		fields: [
			{name: "DnsId", source: "dns.id", type: "int"},
			{name: "IpSrc", source: "ip.src", type: "string"},
			{name: "IpDst", source: "ip.dst", type: "string"},
			{name: "DnsTime", source: "dns.time", type: "float", default: "0"},
		]
	}
	Answered: {
		kind: "derived"
		fields: [
			{name: "Query", type: "DnsQuery"},
		]
	}
	NoResponse: {
		kind:     "event"
		severity: "warning"
		message:  "no response to query {Query.DnsId} from {Query.IpSrc}"
		fields: [
			{name: "Query", type: "DnsQuery"},
		]
	}
}
`

func loadCatalog(t *testing.T) *fact.Catalog {
	t.Helper()
	m, err := LoadSource("dns.cue", dnsSource)
	require.NoError(t, err)
	cat, err := Compile(m)
	require.NoError(t, err)
	return cat
}

func noop(rule.Context) error { return nil }

func answeredRule() rule.Rule {
	return rule.Rule{
		Name: "answered",
		Patterns: []rule.Pattern{
			rule.Match("q", "DnsQuery"),
			rule.Match("r", "DnsResponse",
				rule.Bound("DnsId", "q", "DnsId"),
				rule.Bound("IpSrc", "q", "IpDst"),
			),
		},
		Produces: []string{"Answered"},
		Action:   noop,
	}
}

func noResponseRule() rule.Rule {
	return rule.Rule{
		Name: "no-response",
		Patterns: []rule.Pattern{
			rule.Match("q", "DnsQuery"),
			rule.Not("Answered", rule.Bound("Query", "q", "")),
		},
		Produces: []string{"NoResponse"},
		Action:   noop,
	}
}

func slowRule() rule.Rule {
	return rule.Rule{
		Name: "slow",
		Patterns: []rule.Pattern{
			rule.Match("r", "DnsResponse", rule.Cmp("DnsTime", rule.OpGt, ir.Float(1))),
		},
		Action: noop,
	}
}

func codes(err error) []string {
	ce, ok := err.(*CompileError)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ce.Problems))
	for _, p := range ce.Problems {
		out = append(out, p.Code)
	}
	return out
}
