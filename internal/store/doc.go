// Package store archives analysis runs in SQLite.
//
// The archive is append-only and holds:
//   - Runs: one row per analysis, with the capture, profiles, and schema hash
//   - Log records: leveled lines emitted by rule actions
//   - Events: yielded diagnostic events, unique per fact key within a run
//   - Firings: executed activations, unique per (rule, tuple hash) within a run
//
// A run's completed_at column is the run-complete marker. It is written
// only by Finish; a run that aborted or crashed keeps it NULL.
//
// # Ordering
//
// Every read orders by seq, the engine's logical clock, never by wall
// time. Two runs of the same capture therefore read back identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
