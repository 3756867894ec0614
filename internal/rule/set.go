package rule

import "github.com/roach88/distance/internal/fact"

// Step is a compiled pattern.
type Step struct {
	Kind Kind
	Var  string
	Type *fact.Type

	// Alpha holds unary predicates, Beta holds binding predicates.
	Alpha []Predicate
	Beta  []Predicate

	Name string
	Test func(b Bindings) bool
}

// Compiled is a validated rule ready for network construction.
type Compiled struct {
	Rule

	// Index is the declaration order of the rule within its Set.
	Index int

	// Stratum orders rules so that every producer of a negated type
	// drains before the negation is consulted.
	Stratum int

	Steps []Step

	vars map[string]int
}

// NewCompiled assembles a compiled rule. The compiler is the only caller.
func NewCompiled(r Rule, index, stratum int, steps []Step) *Compiled {
	c := &Compiled{
		Rule:    r,
		Index:   index,
		Stratum: stratum,
		Steps:   steps,
		vars:    make(map[string]int),
	}
	for i, s := range steps {
		if s.Kind == KindMatch {
			c.vars[s.Var] = i
		}
	}
	return c
}

// VarIndex returns the step position that binds v.
func (c *Compiled) VarIndex(v string) (int, bool) {
	i, ok := c.vars[v]
	return i, ok
}

// HasNegation reports whether any step is a Not.
func (c *Compiled) HasNegation() bool {
	for _, s := range c.Steps {
		if s.Kind == KindNot {
			return true
		}
	}
	return false
}

// ProducesType reports whether the rule declares typ among its products.
func (c *Compiled) ProducesType(typ string) bool {
	for _, p := range c.Rule.Produces {
		if p == typ {
			return true
		}
	}
	return false
}

// Set is an immutable, ordered collection of compiled rules.
type Set struct {
	catalog *fact.Catalog
	rules   []*Compiled
}

// NewSet freezes compiled rules in declaration order.
func NewSet(catalog *fact.Catalog, rules []*Compiled) *Set {
	return &Set{catalog: catalog, rules: append([]*Compiled(nil), rules...)}
}

// Catalog returns the schema the rules were compiled against.
func (s *Set) Catalog() *fact.Catalog { return s.catalog }

// Rules returns the rules in declaration order.
func (s *Set) Rules() []*Compiled { return append([]*Compiled(nil), s.rules...) }

// Len returns the number of rules.
func (s *Set) Len() int { return len(s.rules) }

// Rule returns the named rule.
func (s *Set) Rule(name string) (*Compiled, bool) {
	for _, r := range s.rules {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}
