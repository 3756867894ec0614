package rule

import (
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
)

// Kind distinguishes pattern forms.
type Kind int

const (
	// KindMatch binds a fact to a variable.
	KindMatch Kind = iota + 1
	// KindGuard filters the tuple on earlier bindings.
	KindGuard
	// KindNot gates the tuple on the absence of a fact.
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindGuard:
		return "guard"
	case KindNot:
		return "not"
	default:
		return "unknown"
	}
}

// Pattern is one element of a rule's ordered condition list.
type Pattern struct {
	Kind Kind

	// Var names the bound fact (Match only).
	Var string

	// Type is the fact type matched or negated (Match and Not).
	Type string

	// Where lists predicates on the candidate fact (Match and Not).
	Where []Predicate

	// Name labels a guard in snapshots and errors (Guard only).
	Name string

	// Test is the guard condition (Guard only).
	Test func(b Bindings) bool
}

// Match binds facts of typ to v.
func Match(v, typ string, where ...Predicate) Pattern {
	return Pattern{Kind: KindMatch, Var: v, Type: typ, Where: where}
}

// Not passes while no fact of typ satisfies where.
func Not(typ string, where ...Predicate) Pattern {
	return Pattern{Kind: KindNot, Type: typ, Where: where}
}

// Guard passes when fn holds for the bindings so far.
func Guard(name string, fn func(b Bindings) bool) Pattern {
	return Pattern{Kind: KindGuard, Name: name, Test: fn}
}

// Bindings exposes the facts bound so far in a tuple.
type Bindings interface {
	// Fact returns the fact bound to v, or nil if v is unbound.
	Fact(v string) *fact.Fact
}

// Context is what an action sees when its activation fires.
type Context interface {
	Bindings

	// Rule returns the firing rule's name.
	Rule() string

	// New builds a fact of the named type.
	New(typ string, values ...ir.Value) (*fact.Fact, error)

	// Insert adds a derived fact to working memory. It reports false when
	// an equal fact already exists.
	Insert(f *fact.Fact) (bool, error)

	// Yield inserts an Event fact and, when new, emits it to the event
	// stream. It reports false for a duplicate event.
	Yield(f *fact.Fact) (bool, error)

	// Info, Warn, and Error append a record to the diagnostic log.
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Action is the body of a rule.
type Action func(ctx Context) error

// Rule is a declarative correlation rule.
type Rule struct {
	Name        string
	Description string

	// Priority orders competing activations; higher fires first.
	Priority int

	Patterns []Pattern

	// Produces lists every type the action may insert or yield.
	Produces []string

	Action Action
}
