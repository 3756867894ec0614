// Package rule declares correlation rules: ordered pattern lists plus a
// typed action closure.
//
// Rules are plain data. They are registered from an explicit list, checked
// by compiler.CompileRules, and frozen into an immutable Set that the
// engine builds its matching network from.
//
// Predicate is a sealed interface. The engine evaluates predicates with an
// exhaustive type switch; every new predicate type must be handled there.
//
// Pattern kinds:
//   - Match: binds a fact of a type to a variable
//   - Guard: a join predicate over earlier bindings; binds nothing
//   - Not: passes only while no fact of a type satisfies its predicates
//
// A predicate in pattern k may reference only variables bound by patterns
// before k.
package rule
