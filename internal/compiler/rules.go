package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
)

// Rule validation error codes (E120-E129)
const (
	ErrDuplicateRule     = "E120" // rule name empty or repeated
	ErrUnknownType       = "E121" // pattern or product names no fact type
	ErrUndefinedVariable = "E122" // predicate references a variable not bound earlier
	ErrDuplicateVariable = "E123" // variable bound twice
	ErrUnknownFieldPath  = "E124" // predicate field path does not resolve
	ErrMissingAction     = "E125" // rule has no action
	ErrUnknownProduct    = "E126" // produces names no fact type
	ErrNegationCycle     = "E127" // negation depends on its own products
	ErrPatternOrder      = "E128" // pattern list empty, or does not start with a match
)

// CompileRules validates rules against a catalog and freezes them into an
// immutable Set in declaration order.
//
// Every rule is checked before any error is returned. Stratification runs
// last, only when the rules are otherwise valid.
func CompileRules(cat *fact.Catalog, rules []rule.Rule) (*rule.Set, error) {
	var problems []ValidationError
	names := make(map[string]bool)
	steps := make([][]rule.Step, len(rules))

	for i, r := range rules {
		switch {
		case r.Name == "":
			problems = append(problems, ValidationError{
				Field: fmt.Sprintf("rules[%d]", i), Message: "rule name is required", Code: ErrDuplicateRule,
			})
		case names[r.Name]:
			problems = append(problems, ValidationError{
				Field: r.Name, Message: "duplicate rule name", Code: ErrDuplicateRule,
			})
		}
		names[r.Name] = true

		s, errs := compileRule(cat, r)
		problems = append(problems, errs...)
		steps[i] = s
	}

	if len(problems) > 0 {
		return nil, newProblemsError(problems)
	}

	strata, err := stratify(rules)
	if err != nil {
		return nil, err
	}

	compiled := make([]*rule.Compiled, len(rules))
	for i, r := range rules {
		compiled[i] = rule.NewCompiled(r, i, strata[i], steps[i])
	}
	return rule.NewSet(cat, compiled), nil
}

func compileRule(cat *fact.Catalog, r rule.Rule) ([]rule.Step, []ValidationError) {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if r.Action == nil {
		add(r.Name, ErrMissingAction, "action is required")
	}
	for _, p := range r.Produces {
		if _, ok := cat.Type(p); !ok {
			add(r.Name+".produces", ErrUnknownProduct, "unknown fact type %q", p)
		}
	}
	if len(r.Patterns) == 0 {
		add(r.Name, ErrPatternOrder, "at least one pattern is required")
		return nil, errs
	}
	if r.Patterns[0].Kind != rule.KindMatch {
		add(r.Name+".patterns[0]", ErrPatternOrder, "the first pattern must be a match, got %s", r.Patterns[0].Kind)
	}

	bound := make(map[string]*fact.Type)
	steps := make([]rule.Step, 0, len(r.Patterns))

	for i, p := range r.Patterns {
		where := fmt.Sprintf("%s.patterns[%d]", r.Name, i)
		step := rule.Step{Kind: p.Kind, Var: p.Var, Name: p.Name, Test: p.Test}

		switch p.Kind {
		case rule.KindMatch, rule.KindNot:
			t, ok := cat.Type(p.Type)
			if !ok {
				add(where, ErrUnknownType, "unknown fact type %q", p.Type)
				steps = append(steps, step)
				continue
			}
			step.Type = t

			for _, pred := range rule.Flatten(p.Where) {
				errs = append(errs, checkPredicate(cat, t, pred, bound, where)...)
				if rule.Unary(pred) {
					step.Alpha = append(step.Alpha, pred)
				} else {
					step.Beta = append(step.Beta, pred)
				}
			}

			if p.Kind == rule.KindMatch {
				switch {
				case p.Var == "":
					add(where, ErrUndefinedVariable, "match pattern must bind a variable")
				case bound[p.Var] != nil:
					add(where, ErrDuplicateVariable, "variable %q is already bound", p.Var)
				default:
					bound[p.Var] = t
				}
			} else if p.Var != "" {
				add(where, ErrUndefinedVariable, "negation cannot bind variable %q", p.Var)
			}

		case rule.KindGuard:
			if p.Test == nil {
				add(where, ErrPatternOrder, "guard %q has no test", p.Name)
			}

		default:
			add(where, ErrPatternOrder, "unknown pattern kind %d", p.Kind)
		}

		steps = append(steps, step)
	}

	return steps, errs
}

// checkPredicate validates one flattened predicate against the candidate
// type and the variables bound so far.
func checkPredicate(cat *fact.Catalog, t *fact.Type, pred rule.Predicate, bound map[string]*fact.Type, where string) []ValidationError {
	var errs []ValidationError
	add := func(code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: where, Message: fmt.Sprintf(format, args...), Code: code})
	}
	checkField := func(typ *fact.Type, path string) (ir.FieldType, bool) {
		ft, ok := resolvePath(cat, typ, path)
		if !ok {
			add(ErrUnknownFieldPath, "%s has no field path %q", typ.Name(), path)
		}
		return ft, ok
	}

	switch p := pred.(type) {
	case rule.Equals:
		checkField(t, p.Field)
		if p.Value == nil {
			add(ErrUnknownFieldPath, "equals on %q has no value", p.Field)
		}
	case rule.Compare:
		checkField(t, p.Field)
		if !p.Op.Valid() {
			add(ErrUnknownFieldPath, "invalid operator %q", p.Op)
		}
		if p.Value == nil {
			add(ErrUnknownFieldPath, "compare on %q has no value", p.Field)
		}
	case rule.Test:
		if p.Fn == nil {
			add(ErrUnknownFieldPath, "test %q has no function", p.Name)
		}
	case rule.BoundEquals:
		errs = append(errs, checkBound(cat, t, p.Field, p.Var, p.VarField, bound, where)...)
	case rule.BoundCompare:
		if !p.Op.Valid() {
			add(ErrUnknownFieldPath, "invalid operator %q", p.Op)
		}
		if p.VarField == "" {
			add(ErrUnknownFieldPath, "ordered comparison against %q needs a field", p.Var)
		}
		errs = append(errs, checkBound(cat, t, p.Field, p.Var, p.VarField, bound, where)...)
	case rule.Join:
		if p.Fn == nil {
			add(ErrUnknownFieldPath, "join %q has no function", p.Name)
		}
	case rule.And:
		// Flatten removes And before this point.
	default:
		add(ErrUnknownFieldPath, "unsupported predicate %T", pred)
	}
	return errs
}

func checkBound(cat *fact.Catalog, t *fact.Type, field, v, varField string, bound map[string]*fact.Type, where string) []ValidationError {
	var errs []ValidationError
	add := func(code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: where, Message: fmt.Sprintf(format, args...), Code: code})
	}

	ft, ok := resolvePath(cat, t, field)
	if !ok {
		add(ErrUnknownFieldPath, "%s has no field path %q", t.Name(), field)
	}
	vt, isBound := bound[v]
	if !isBound {
		add(ErrUndefinedVariable, "variable %q is not bound by an earlier pattern", v)
		return errs
	}
	if varField == "" {
		if ok && string(ft) != vt.Name() {
			add(ErrUnknownFieldPath, "field %q has type %s, cannot compare with %s fact %q", field, ft, vt.Name(), v)
		}
		return errs
	}
	if _, ok := resolvePath(cat, vt, varField); !ok {
		add(ErrUnknownFieldPath, "%s has no field path %q", vt.Name(), varField)
	}
	return errs
}

// resolvePath follows a dotted path through reference fields and returns
// the type of the final field.
func resolvePath(cat *fact.Catalog, t *fact.Type, path string) (ir.FieldType, bool) {
	for {
		head, rest := path, ""
		for i := 0; i < len(path); i++ {
			if path[i] == '.' {
				head, rest = path[:i], path[i+1:]
				break
			}
		}
		i, ok := t.FieldIndex(head)
		if !ok {
			return "", false
		}
		ft := t.Field(i).Type
		if rest == "" {
			return ft, true
		}
		if ft.IsArray() || !ft.IsRef() {
			return "", false
		}
		next, ok := cat.Type(string(ft))
		if !ok {
			return "", false
		}
		t, path = next, rest
	}
}

// stratify assigns each rule the lowest stratum such that it sits at or
// above every producer of a type it matches and strictly above every
// producer of a type it negates.
func stratify(rules []rule.Rule) ([]int, error) {
	producers := make(map[string][]int)
	for i, r := range rules {
		for _, p := range r.Produces {
			producers[p] = append(producers[p], i)
		}
	}

	strata := make([]int, len(rules))
	var unstable []string
	for pass := 0; pass <= len(rules); pass++ {
		unstable = unstable[:0]
		for i, r := range rules {
			s := 0
			for _, p := range r.Patterns {
				if p.Kind != rule.KindMatch && p.Kind != rule.KindNot {
					continue
				}
				for _, prod := range producers[p.Type] {
					need := strata[prod]
					if p.Kind == rule.KindNot {
						need++
					}
					s = max(s, need)
				}
			}
			if s != strata[i] {
				strata[i] = s
				unstable = append(unstable, r.Name)
			}
		}
		if len(unstable) == 0 {
			return strata, nil
		}
	}

	// Strata only keep rising when some negation depends on its own
	// derivations; the rules still moving on the last pass are involved.
	sort.Strings(unstable)
	return nil, newProblemsError([]ValidationError{{
		Field:   "rules",
		Message: fmt.Sprintf("negation depends on its own derivations: %v", unstable),
		Code:    ErrNegationCycle,
	}})
}
