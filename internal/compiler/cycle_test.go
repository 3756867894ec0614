package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/rule"
)

func compileSet(t *testing.T, rules ...rule.Rule) *rule.Set {
	t.Helper()
	set, err := CompileRules(loadCatalog(t), rules)
	require.NoError(t, err)
	return set
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(compileSet(t)))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	set := compileSet(t, answeredRule(), noResponseRule(), slowRule())
	assert.Empty(t, AnalyzeCycles(set))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	echo := rule.Rule{
		Name:     "echo",
		Patterns: []rule.Pattern{rule.Match("a", "Answered")},
		Produces: []string{"Answered"},
		Action:   noop,
	}
	warnings := AnalyzeCycles(compileSet(t, echo))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"echo", "echo"}, warnings[0].Path)
	assert.Equal(t, "info", warnings[0].Level)
}

func TestAnalyzeCycles_TwoRuleCycle(t *testing.T) {
	// ping matches Answered and produces NoResponse; pong closes the loop.
	ping := rule.Rule{
		Name:     "ping",
		Patterns: []rule.Pattern{rule.Match("a", "Answered")},
		Produces: []string{"NoResponse"},
		Action:   noop,
	}
	pong := rule.Rule{
		Name:     "pong",
		Patterns: []rule.Pattern{rule.Match("e", "NoResponse")},
		Produces: []string{"Answered"},
		Action:   noop,
	}

	warnings := AnalyzeCycles(compileSet(t, slowRule(), ping, pong))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"ping", "pong", "ping"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "ping → pong → ping")
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	mk := func(name, in, out string) rule.Rule {
		return rule.Rule{
			Name:     name,
			Patterns: []rule.Pattern{rule.Match("x", in)},
			Produces: []string{out},
			Action:   noop,
		}
	}
	rules := []rule.Rule{
		mk("z", "Answered", "NoResponse"),
		mk("y", "NoResponse", "Answered"),
		mk("x", "Answered", "Answered"),
	}

	first := AnalyzeCycles(compileSet(t, rules...))
	for range 20 {
		assert.Equal(t, first, AnalyzeCycles(compileSet(t, rules...)))
	}
	require.Len(t, first, 1)
	assert.Equal(t, "z", first[0].Path[0], "component starts at its first declared rule")
}
