// Package engine implements the forward-chaining correlation engine.
//
// ARCHITECTURE:
//
// Matching Network:
// Each rule compiles to a chain of nodes, one per pattern. Match and Not
// nodes own an alpha memory holding the facts of their type that pass the
// pattern's unary predicates; every node keeps the partial tuples (tokens)
// that passed it. Inserting a fact visits only the nodes indexed under its
// type and whatever they propagate to, never the whole rule set.
//
// Staged Negation:
// Not nodes count counter-facts for every tuple that reaches them, but
// pass tuples through only after CloseIngestion. "No response ever
// arrived" therefore cannot fire while responses may still be streaming
// in. After close, a new counter-fact retracts the gated tuple and any
// activation built on it that has not fired.
//
// Agenda:
// Complete tuples become activations, ordered by rule stratum, then
// priority, then rule declaration order, then tuple creation order.
// Stratification guarantees every rule producing a negated type drains
// before the negation's dependents fire.
//
// Phases:
//
//	Ingesting --CloseIngestion--> Idle --Fire--> Firing --> Drained
//	                                              \--> Aborted
//
// Insert and Retract are accepted while Ingesting, Idle, or Drained.
// Fire requires ingestion to be closed. Every fatal error moves the engine
// to Aborted.
//
// Guarantees:
//
// Single Writer:
// A mutex guards every mutating entry point. Propagation triggered by an
// insert completes before the next insert starts, and actions inserting
// facts re-enter the same serialized path.
//
// Fire Once:
// A (rule, tuple) pair fires at most once per run. A tuple that re-forms
// after retraction is not queued again; popping an already-fired pair is
// an invariant violation and aborts the run.
//
// Logical Clock:
// Tokens, log records, and events are stamped from Clock. Ordering never
// depends on wall-clock time or map iteration.
package engine
