package engine

import (
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

// passesAlpha evaluates unary predicates against a candidate fact.
func passesAlpha(preds []rule.Predicate, f *fact.Fact) bool {
	for _, p := range preds {
		switch pred := p.(type) {
		case rule.Equals:
			v, ok := f.Lookup(pred.Field)
			if !ok || !ir.Equal(v, pred.Value) {
				return false
			}
		case rule.Compare:
			v, ok := f.Lookup(pred.Field)
			if !ok || !compare(v, pred.Op, pred.Value) {
				return false
			}
		case rule.Test:
			if !pred.Fn(f) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// passesBeta evaluates binding predicates against a candidate fact and the
// bindings of a partial tuple.
func passesBeta(preds []rule.Predicate, f *fact.Fact, b rule.Bindings) bool {
	for _, p := range preds {
		switch pred := p.(type) {
		case rule.BoundEquals:
			if !boundCompare(f, pred.Field, rule.OpEq, b.Fact(pred.Var), pred.VarField) {
				return false
			}
		case rule.BoundCompare:
			if !boundCompare(f, pred.Field, pred.Op, b.Fact(pred.Var), pred.VarField) {
				return false
			}
		case rule.Join:
			if !pred.Fn(f, b) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func boundCompare(f *fact.Fact, field string, op rule.Op, bound *fact.Fact, varField string) bool {
	if bound == nil {
		return false
	}
	v, ok := f.Lookup(field)
	if !ok {
		return false
	}
	var w ir.Value = ir.NewRef(bound)
	if varField != "" {
		if w, ok = bound.Lookup(varField); !ok {
			return false
		}
	}
	return compare(v, op, w)
}

func compare(a ir.Value, op rule.Op, b ir.Value) bool {
	switch op {
	case rule.OpEq:
		return ir.Equal(a, b)
	case rule.OpNe:
		return !ir.Equal(a, b)
	}
	c, ok := ir.Compare(a, b)
	if !ok {
		return false
	}
	switch op {
	case rule.OpLt:
		return c < 0
	case rule.OpLe:
		return c <= 0
	case rule.OpGt:
		return c > 0
	case rule.OpGe:
		return c >= 0
	default:
		return false
	}
}
