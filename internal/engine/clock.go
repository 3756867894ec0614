package engine

import "sync/atomic"

// Clock hands out the seq stamps that order a run.
//
// Tokens, log records, and events draw from one counter, so seq is a total
// order over everything the engine emits. Agenda tie-breaks and archive
// reads sort by it; wall-clock time never decides order.
//
// Stamp is called from the engine's writer goroutine only. Last may be read
// from anywhere.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Stamp returns the next seq.
func (c *Clock) Stamp() int64 {
	return c.seq.Add(1)
}

// Last returns the most recent stamp, or 0 before the first.
func (c *Clock) Last() int64 {
	return c.seq.Load()
}
