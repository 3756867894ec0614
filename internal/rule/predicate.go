package rule

import (
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
)

// Predicate is a condition on the fact a pattern is matching.
//
// This is a sealed interface - only types in this package implement it.
//
// Unary predicates (Equals, Compare, Test) see only the candidate fact and
// are evaluated in the alpha network. Binding predicates (BoundEquals,
// BoundCompare, Join) also see earlier bindings and are evaluated at the
// pattern's join step. And may mix both; the compiler flattens it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// Equals holds when the candidate's field equals a constant.
//
//	Equals{Field: "DnsFlagsResponse", Value: ir.Bool(false)}
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// Compare holds when the candidate's field is ordered against a constant.
//
//	Compare{Field: "DnsTime", Op: OpGt, Value: ir.Float(5)}
type Compare struct {
	Field string
	Op    Op
	Value ir.Value
}

func (Compare) predicateNode() {}

// Test is a named unary predicate for conditions the declarative forms
// cannot express.
type Test struct {
	Name string
	Fn   func(f *fact.Fact) bool
}

func (Test) predicateNode() {}

// BoundEquals holds when the candidate's field equals a field of a fact
// bound by an earlier pattern. An empty VarField compares the candidate's
// field, which must be a reference, with the bound fact itself.
//
//	BoundEquals{Field: "IpSrc", Var: "query", VarField: "IpDst"}
type BoundEquals struct {
	Field    string
	Var      string
	VarField string
}

func (BoundEquals) predicateNode() {}

// BoundCompare is the ordered form of BoundEquals.
type BoundCompare struct {
	Field    string
	Op       Op
	Var      string
	VarField string
}

func (BoundCompare) predicateNode() {}

// Join is a named predicate over the candidate and earlier bindings.
type Join struct {
	Name string
	Fn   func(f *fact.Fact, b Bindings) bool
}

func (Join) predicateNode() {}

// And holds when every member holds.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Eq is shorthand for Equals.
func Eq(field string, v ir.Value) Predicate { return Equals{Field: field, Value: v} }

// Cmp is shorthand for Compare.
func Cmp(field string, op Op, v ir.Value) Predicate {
	return Compare{Field: field, Op: op, Value: v}
}

// Bound is shorthand for BoundEquals.
func Bound(field, v, varField string) Predicate {
	return BoundEquals{Field: field, Var: v, VarField: varField}
}

// Unary reports whether p references no earlier binding.
func Unary(p Predicate) bool {
	switch pred := p.(type) {
	case Equals, Compare, Test:
		return true
	case BoundEquals, BoundCompare, Join:
		return false
	case And:
		for _, member := range pred.Predicates {
			if !Unary(member) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Flatten expands nested And predicates into a flat list.
func Flatten(preds []Predicate) []Predicate {
	var out []Predicate
	for _, p := range preds {
		if and, ok := p.(And); ok {
			out = append(out, Flatten(and.Predicates)...)
			continue
		}
		out = append(out, p)
	}
	return out
}
