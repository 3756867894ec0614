package engine

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/distance/internal/ir"
)

// counters are updated under the engine mutex and read lock-free by
// progress reporting.
type counters struct {
	inserted    atomic.Int64
	duplicates  atomic.Int64
	retracted   atomic.Int64
	derived     atomic.Int64
	events      atomic.Int64
	logs        atomic.Int64
	activations atomic.Int64
	suppressed  atomic.Int64
	cancelled   atomic.Int64
	firings     atomic.Int64

	sevMu      sync.Mutex
	bySeverity map[ir.Severity]int64
}

func (c *counters) countSeverity(s ir.Severity) {
	c.sevMu.Lock()
	defer c.sevMu.Unlock()
	if c.bySeverity == nil {
		c.bySeverity = make(map[ir.Severity]int64)
	}
	c.bySeverity[s]++
}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	// Inserted counts new facts from Insert; Duplicates counts inserts of
	// facts already present, from callers and actions alike.
	Inserted   int64 `json:"inserted"`
	Duplicates int64 `json:"duplicates"`
	Retracted  int64 `json:"retracted"`

	// Derived and Events count new facts inserted by actions.
	Derived int64 `json:"derived"`
	Events  int64 `json:"events"`
	Logs    int64 `json:"logs"`

	// Activations counts complete tuples; Suppressed those not queued
	// because the tuple had already fired; Cancelled those removed from
	// the agenda before firing.
	Activations int64 `json:"activations"`
	Suppressed  int64 `json:"suppressed"`
	Cancelled   int64 `json:"cancelled"`
	Firings     int64 `json:"firings"`

	// BySeverity counts yielded events per severity.
	BySeverity map[ir.Severity]int64 `json:"by_severity,omitempty"`
}

// Stats samples the counters. Safe to call from any goroutine, including
// while firing.
func (e *Engine) Stats() Stats {
	s := Stats{
		Inserted:    e.stats.inserted.Load(),
		Duplicates:  e.stats.duplicates.Load(),
		Retracted:   e.stats.retracted.Load(),
		Derived:     e.stats.derived.Load(),
		Events:      e.stats.events.Load(),
		Logs:        e.stats.logs.Load(),
		Activations: e.stats.activations.Load(),
		Suppressed:  e.stats.suppressed.Load(),
		Cancelled:   e.stats.cancelled.Load(),
		Firings:     e.stats.firings.Load(),
	}

	e.stats.sevMu.Lock()
	defer e.stats.sevMu.Unlock()
	if len(e.stats.bySeverity) > 0 {
		s.BySeverity = make(map[ir.Severity]int64, len(e.stats.bySeverity))
		for k, v := range e.stats.bySeverity {
			s.BySeverity[k] = v
		}
	}
	return s
}
