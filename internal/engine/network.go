package engine

import (
	"strings"

	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/rule"
)

// token is a partial tuple: the facts bound by the first depth steps of a
// rule. Tokens form a tree rooted at each chain's empty root token; a
// child extends its parent by one step.
type token struct {
	parent   *token
	fact     *fact.Fact // nil for guard and negation steps, and the root
	depth    int
	key      string
	seq      int64
	children []*token
	dead     bool
}

// keys returns the fact key at each step, "" where no fact is bound.
func (t *token) keys() []string {
	keys := make([]string, t.depth)
	for cur := t; cur != nil && cur.depth > 0; cur = cur.parent {
		if cur.fact != nil {
			keys[cur.depth-1] = cur.fact.Key()
		}
	}
	return keys
}

// facts returns the fact at each step, nil where no fact is bound.
func (t *token) facts() []*fact.Fact {
	facts := make([]*fact.Fact, t.depth)
	for cur := t; cur != nil && cur.depth > 0; cur = cur.parent {
		facts[cur.depth-1] = cur.fact
	}
	return facts
}

func (t *token) dropChild(child *token) {
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}

// tupleBindings resolves rule variables against a token.
type tupleBindings struct {
	rule *rule.Compiled
	tok  *token
}

func (b tupleBindings) Fact(v string) *fact.Fact {
	i, ok := b.rule.VarIndex(v)
	if !ok {
		return nil
	}
	t := b.tok
	for t != nil && t.depth > i+1 {
		t = t.parent
	}
	if t == nil || t.depth != i+1 {
		return nil
	}
	return t.fact
}

// chain is the beta network of one rule: one node per compiled step.
type chain struct {
	rule  *rule.Compiled
	root  *token
	nodes []*node
}

// node evaluates one step. Match and Not nodes own an alpha memory of the
// facts passing the step's unary predicates; every node keeps the tokens
// that passed it.
type node struct {
	chain *chain
	step  int
	spec  rule.Step

	alpha  *ordered[*fact.Fact]
	out    *ordered[*token]
	byFact map[string][]*token // Match: output tokens binding each fact
	counts map[string]int      // Not: counter-facts per parent token
}

// parents visits the tokens entering the node, in arrival order.
func (n *node) parents(fn func(*token)) {
	if n.step == 0 {
		fn(n.chain.root)
		return
	}
	n.chain.nodes[n.step-1].out.each(fn)
}

func (n *node) bindings(parent *token) tupleBindings {
	return tupleBindings{rule: n.chain.rule, tok: parent}
}

// network is the compiled matching network for a rule set.
//
// All methods run under the engine mutex.
type network struct {
	chains []*chain
	byType map[string][]*node // Match and Not nodes, in rule then step order

	// gateOpen is false while ingestion is open. Negation nodes count
	// counter-facts at all times but pass tokens only once it is set.
	gateOpen bool

	clock        *Clock
	onActivate   func(c *chain, t *token)
	onDeactivate func(c *chain, t *token)
}

func newNetwork(set *rule.Set, clock *Clock) *network {
	n := &network{
		byType: make(map[string][]*node),
		clock:  clock,
	}
	for _, r := range set.Rules() {
		c := &chain{rule: r, root: &token{}}
		for i, s := range r.Steps {
			nd := &node{chain: c, step: i, spec: s, out: newOrdered[*token]()}
			switch s.Kind {
			case rule.KindMatch:
				nd.alpha = newOrdered[*fact.Fact]()
				nd.byFact = make(map[string][]*token)
				n.byType[s.Type.Name()] = append(n.byType[s.Type.Name()], nd)
			case rule.KindNot:
				nd.alpha = newOrdered[*fact.Fact]()
				nd.counts = make(map[string]int)
				n.byType[s.Type.Name()] = append(n.byType[s.Type.Name()], nd)
			case rule.KindGuard:
			}
			c.nodes = append(c.nodes, nd)
		}
		n.chains = append(n.chains, c)
	}
	return n
}

// insert propagates a fact newly added to working memory. Only nodes
// indexed under the fact's type are visited.
func (n *network) insert(f *fact.Fact) {
	for _, nd := range n.byType[f.TypeName()] {
		if !passesAlpha(nd.spec.Alpha, f) {
			continue
		}
		nd.alpha.add(f.Key(), f)

		switch nd.spec.Kind {
		case rule.KindMatch:
			nd.parents(func(p *token) {
				if passesBeta(nd.spec.Beta, f, nd.bindings(p)) {
					n.extend(nd, p, f)
				}
			})
		case rule.KindNot:
			nd.parents(func(p *token) {
				if !passesBeta(nd.spec.Beta, f, nd.bindings(p)) {
					return
				}
				nd.counts[p.key]++
				if nd.counts[p.key] == 1 {
					if child, ok := nd.out.get(childKey(p, nil)); ok {
						n.removeToken(nd.chain, child)
					}
				}
			})
		case rule.KindGuard:
		}
	}
}

// retract propagates a fact removed from working memory.
func (n *network) retract(f *fact.Fact) {
	for _, nd := range n.byType[f.TypeName()] {
		if _, ok := nd.alpha.remove(f.Key()); !ok {
			continue
		}

		switch nd.spec.Kind {
		case rule.KindMatch:
			for _, t := range append([]*token(nil), nd.byFact[f.Key()]...) {
				n.removeToken(nd.chain, t)
			}
			delete(nd.byFact, f.Key())
		case rule.KindNot:
			nd.parents(func(p *token) {
				if !passesBeta(nd.spec.Beta, f, nd.bindings(p)) {
					return
				}
				nd.counts[p.key]--
				if nd.counts[p.key] == 0 && n.gateOpen {
					n.extend(nd, p, nil)
				}
			})
		case rule.KindGuard:
		}
	}
}

// openGate ends staging: every token waiting at a negation with no
// counter-fact passes. Nodes are visited in step order so tokens released
// by one negation reach later negations of the same rule directly.
func (n *network) openGate() {
	n.gateOpen = true
	for _, c := range n.chains {
		for _, nd := range c.nodes {
			if nd.spec.Kind != rule.KindNot {
				continue
			}
			nd.parents(func(p *token) {
				if cnt, ok := nd.counts[p.key]; ok && cnt == 0 && !nd.out.has(childKey(p, nil)) {
					n.extend(nd, p, nil)
				}
			})
		}
	}
}

func childKey(parent *token, f *fact.Fact) string {
	var b strings.Builder
	b.WriteString(parent.key)
	b.WriteByte('|')
	if f != nil {
		b.WriteString(f.Key())
	}
	return b.String()
}

// extend creates the child of parent at node nd and sends it downstream.
func (n *network) extend(nd *node, parent *token, f *fact.Fact) {
	child := &token{
		parent: parent,
		fact:   f,
		depth:  nd.step + 1,
		key:    childKey(parent, f),
		seq:    n.clock.Stamp(),
	}
	if !nd.out.add(child.key, child) {
		return
	}
	parent.children = append(parent.children, child)
	if f != nil {
		nd.byFact[f.Key()] = append(nd.byFact[f.Key()], child)
	}
	n.descend(nd.chain, child)
}

// descend offers a token that passed step t.depth-1 to the next step.
func (n *network) descend(c *chain, t *token) {
	if t.depth == len(c.nodes) {
		n.onActivate(c, t)
		return
	}

	nd := c.nodes[t.depth]
	switch nd.spec.Kind {
	case rule.KindMatch:
		nd.alpha.each(func(f *fact.Fact) {
			if passesBeta(nd.spec.Beta, f, nd.bindings(t)) {
				n.extend(nd, t, f)
			}
		})
	case rule.KindNot:
		count := 0
		nd.alpha.each(func(f *fact.Fact) {
			if passesBeta(nd.spec.Beta, f, nd.bindings(t)) {
				count++
			}
		})
		nd.counts[t.key] = count
		if count == 0 && n.gateOpen {
			n.extend(nd, t, nil)
		}
	case rule.KindGuard:
		if nd.spec.Test(nd.bindings(t)) {
			n.extend(nd, t, nil)
		}
	}
}

// removeToken deletes t and everything derived from it.
func (n *network) removeToken(c *chain, t *token) {
	if t.dead {
		return
	}
	t.dead = true

	nd := c.nodes[t.depth-1]
	nd.out.remove(t.key)
	if t.fact != nil {
		list := nd.byFact[t.fact.Key()]
		for i, x := range list {
			if x == t {
				nd.byFact[t.fact.Key()] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	if t.parent != nil {
		t.parent.dropChild(t)
	}

	for _, child := range append([]*token(nil), t.children...) {
		n.removeToken(c, child)
	}

	if t.depth == len(c.nodes) {
		n.onDeactivate(c, t)
	} else if next := c.nodes[t.depth]; next.spec.Kind == rule.KindNot {
		delete(next.counts, t.key)
	}
}
