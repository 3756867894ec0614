// Package testutil provides fixtures shared by package tests: a small DNS
// schema, builders for catalogs and rule sets, and a fixed run id source.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/compiler"
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

// QuerySource is a minimal schema for engine tests: decoded queries and
// responses, a derived pairing, and two events.
const QuerySource = `
namespace: "test"
facts: {
	Query: {
		kind:   "fact"
		filter: "dns.flags.response == 0"
		fields: [
			{name: "Id", source: "dns.id", type: "int"},
			{name: "Src", source: "ip.src", type: "string"},
			{name: "Dst", source: "ip.dst", type: "string"},
		]
	}
	Response: {
		kind:   "fact"
		filter: "dns.flags.response == 1"
		fields: [
			{name: "Id", source: "dns.id", type: "int"},
			{name: "Src", source: "ip.src", type: "string"},
			{name: "Dst", source: "ip.dst", type: "string"},
			{name: "Rcode", source: "dns.flags.rcode", type: "int", default: "0"},
		]
	}
	Answer: {
		kind: "derived"
		fields: [
			{name: "Query", type: "Query"},
			{name: "Response", type: "Response"},
		]
	}
	Unanswered: {
		kind:     "event"
		severity: "warning"
		message:  "query {Query.Id} from {Query.Src} was never answered"
		fields: [
			{name: "Query", type: "Query"},
		]
	}
	Failed: {
		kind:     "event"
		severity: "error"
		message:  "query {Answer.Query.Id} failed with rcode {Answer.Response.Rcode}"
		fields: [
			{name: "Answer", type: "Answer"},
		]
	}
}
`

// Catalog compiles CUE schema source, failing the test on error.
func Catalog(t testing.TB, src string) *fact.Catalog {
	t.Helper()
	m, err := compiler.LoadSource("test.cue", src)
	require.NoError(t, err)
	cat, err := compiler.Compile(m)
	require.NoError(t, err)
	return cat
}

// QueryCatalog compiles QuerySource.
func QueryCatalog(t testing.TB) *fact.Catalog {
	return Catalog(t, QuerySource)
}

// Rules compiles rules against cat, failing the test on error.
func Rules(t testing.TB, cat *fact.Catalog, rules ...rule.Rule) *rule.Set {
	t.Helper()
	set, err := compiler.CompileRules(cat, rules)
	require.NoError(t, err)
	return set
}

// Fact builds a fact of the named type, failing the test on error.
func Fact(t testing.TB, cat *fact.Catalog, typ string, values ...ir.Value) *fact.Fact {
	t.Helper()
	f, err := cat.New(typ, values...)
	require.NoError(t, err)
	return f
}

// Query builds a Query fact from QueryCatalog.
func Query(t testing.TB, cat *fact.Catalog, id int64, src, dst string) *fact.Fact {
	t.Helper()
	return Fact(t, cat, "Query", ir.Int(id), ir.String(src), ir.String(dst))
}

// Response builds a Response fact from QueryCatalog.
func Response(t testing.TB, cat *fact.Catalog, id int64, src, dst string, rcode int64) *fact.Fact {
	t.Helper()
	return Fact(t, cat, "Response", ir.Int(id), ir.String(src), ir.String(dst), ir.Int(rcode))
}
