// Package runner drives one analysis of a capture end to end.
//
// A run checks its preconditions, opens the sinks, streams decoder rows
// into the engine, closes ingestion, fires the agenda to a fixpoint, and
// finishes the sinks with a summary. Any failure after the sinks open
// aborts them instead, so no completion marker is written.
//
// Decoder streams run concurrently under an errgroup and feed one queue.
// A single consumer parses rows and inserts facts, so every engine
// mutation happens on one goroutine.
package runner
