package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/rule"
)

func compiled(name string, index, stratum, priority int) *rule.Compiled {
	return rule.NewCompiled(rule.Rule{Name: name, Priority: priority}, index, stratum, nil)
}

func TestAgenda_Ordering(t *testing.T) {
	var (
		late   = compiled("late", 0, 1, 100)
		high   = compiled("high", 1, 0, 10)
		first  = compiled("first", 2, 0, 5)
		second = compiled("second", 3, 0, 5)
	)

	a := newAgenda()
	push := func(r *rule.Compiled, seq int64) {
		a.push(&activation{rule: r, tok: &token{seq: seq}, hash: r.Name})
	}
	push(late, 1)
	push(second, 2)
	push(first, 9)
	push(first, 3)
	push(high, 8)

	var got []string
	var seqs []int64
	for {
		act, ok := a.pop()
		if !ok {
			break
		}
		got = append(got, act.rule.Name)
		seqs = append(seqs, act.tok.seq)
	}
	assert.Equal(t, []string{"high", "first", "first", "second", "late"}, got)
	assert.Equal(t, []int64{8, 3, 9, 2, 1}, seqs)
}

func TestAgenda_Remove(t *testing.T) {
	r := compiled("r", 0, 0, 0)
	a := newAgenda()
	toks := []*token{{seq: 1}, {seq: 2}, {seq: 3}}
	for _, tok := range toks {
		a.push(&activation{rule: r, tok: tok})
	}

	assert.True(t, a.remove(toks[1]))
	assert.False(t, a.remove(toks[1]), "already removed")
	assert.Equal(t, 2, a.len())

	act, ok := a.pop()
	require.True(t, ok)
	assert.Same(t, toks[0], act.tok)
	assert.False(t, a.remove(toks[0]), "popped activations cannot be removed")

	act, ok = a.pop()
	require.True(t, ok)
	assert.Same(t, toks[2], act.tok)

	_, ok = a.pop()
	assert.False(t, ok)
}

func TestFiredLedger(t *testing.T) {
	l := newFiredLedger()
	assert.False(t, l.hasFired("a", "t1"))

	l.record("a", "t1")
	l.record("a", "t1")
	l.record("a", "t2")
	l.record("b", "t1")

	assert.True(t, l.hasFired("a", "t1"))
	assert.True(t, l.hasFired("b", "t1"))
	assert.False(t, l.hasFired("b", "t2"))
	assert.Equal(t, 2, l.count("a"))
	assert.Equal(t, 1, l.count("b"))
	assert.Equal(t, 3, l.count(""))
}

func TestOrdered(t *testing.T) {
	o := newOrdered[int]()
	for i := range 40 {
		require.True(t, o.add(string(rune('a'+i)), i))
	}
	assert.False(t, o.add("a", 99))

	v, ok := o.get("c")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	// Enough removals to trigger compaction.
	for i := range 30 {
		_, ok := o.remove(string(rune('a' + i)))
		require.True(t, ok)
	}
	_, ok = o.remove("a")
	assert.False(t, ok)

	assert.Equal(t, 10, o.len())
	assert.Equal(t, []int{30, 31, 32, 33, 34, 35, 36, 37, 38, 39}, o.values())
	v, ok = o.get(string(rune('a' + 35)))
	require.True(t, ok)
	assert.Equal(t, 35, v)
}

func TestOrdered_EachSkipsRemovedAndAdded(t *testing.T) {
	o := newOrdered[string]()
	o.add("1", "one")
	o.add("2", "two")
	o.add("3", "three")

	var seen []string
	o.each(func(v string) {
		seen = append(seen, v)
		if v == "one" {
			o.remove("2")
			o.add("4", "four")
		}
	})
	assert.Equal(t, []string{"one", "three"}, seen)
	assert.Equal(t, []string{"one", "three", "four"}, o.values())
}
