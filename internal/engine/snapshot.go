package engine

import (
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/rule"
)

// Graph is a read-only view of the matching network.
type Graph struct {
	Phase   string         `json:"phase"`
	Pending int            `json:"pending"`
	Fired   int            `json:"fired"`
	Facts   map[string]int `json:"facts"`
	Rules   []RuleGraph    `json:"rules"`
}

// RuleGraph describes one rule's chain.
type RuleGraph struct {
	Name     string      `json:"name"`
	Priority int         `json:"priority"`
	Stratum  int         `json:"stratum"`
	Fired    int         `json:"fired"`
	Nodes    []NodeGraph `json:"nodes"`
}

// NodeGraph describes one step: the facts in its alpha memory and the
// tuples that passed it. Tuples list the rendering of each bound fact,
// with "" at guard and negation positions.
type NodeGraph struct {
	Step    int        `json:"step"`
	Kind    string     `json:"kind"`
	Var     string     `json:"var,omitempty"`
	Type    string     `json:"type,omitempty"`
	Name    string     `json:"name,omitempty"`
	Alpha   []string   `json:"alpha,omitempty"`
	Tuples  [][]string `json:"tuples"`
	Blocked int        `json:"blocked,omitempty"` // Not: tuples with counter-facts
}

// Snapshot returns the current alpha and beta memories. It is only
// available while Idle or Drained and returns ErrBusy otherwise.
func (e *Engine) Snapshot() (*Graph, error) {
	if p := e.State(); p != PhaseIdle && p != PhaseDrained {
		return nil, ErrBusy
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check under the lock: Fire may have started in between.
	if p := e.State(); p != PhaseIdle && p != PhaseDrained {
		return nil, ErrBusy
	}

	g := &Graph{
		Phase:   e.State().String(),
		Pending: e.agenda.len(),
		Fired:   e.ledger.count(""),
		Facts:   make(map[string]int),
	}
	for _, typ := range e.mem.Types() {
		g.Facts[typ] = e.mem.Count(typ)
	}

	for _, c := range e.net.chains {
		rg := RuleGraph{
			Name:     c.rule.Name,
			Priority: c.rule.Priority,
			Stratum:  c.rule.Stratum,
			Fired:    e.ledger.count(c.rule.Name),
		}
		for _, nd := range c.nodes {
			rg.Nodes = append(rg.Nodes, snapshotNode(nd))
		}
		g.Rules = append(g.Rules, rg)
	}
	return g, nil
}

func snapshotNode(nd *node) NodeGraph {
	ng := NodeGraph{
		Step:   nd.step,
		Kind:   nd.spec.Kind.String(),
		Var:    nd.spec.Var,
		Name:   nd.spec.Name,
		Tuples: [][]string{},
	}
	if nd.spec.Type != nil {
		ng.Type = nd.spec.Type.Name()
	}
	if nd.alpha != nil {
		nd.alpha.each(func(f *fact.Fact) { ng.Alpha = append(ng.Alpha, f.String()) })
	}
	nd.out.each(func(t *token) {
		row := make([]string, t.depth)
		for i, f := range t.facts() {
			if f != nil {
				row[i] = f.String()
			}
		}
		ng.Tuples = append(ng.Tuples, row)
	})
	if nd.spec.Kind == rule.KindNot {
		for _, n := range nd.counts {
			if n > 0 {
				ng.Blocked++
			}
		}
	}
	return ng
}
