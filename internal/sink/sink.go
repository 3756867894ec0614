// Package sink defines the consumer of a run's diagnostic output: the
// leveled log, the event stream, and the run lifecycle markers.
//
// A sink is scoped to one run. Open is called before ingestion; Finish
// writes the run-complete marker after the agenda drains; Abort flushes
// whatever was written without a marker. Log and Event are append-only.
package sink

import (
	"errors"
	"time"

	"github.com/roach88/distance/internal/ir"
)

// RunInfo identifies a run when its sink is opened.
type RunInfo struct {
	RunID         string    `json:"run_id"`
	Capture       string    `json:"capture"`
	Profiles      []string  `json:"profiles"`
	SchemaHash    string    `json:"schema_hash"`
	EngineVersion string    `json:"engine_version"`
	StartedAt     time.Time `json:"started_at"`
}

// Record is one diagnostic log line emitted by a rule action.
type Record struct {
	Seq     int64       `json:"seq"`
	Level   ir.Severity `json:"level"`
	Rule    string      `json:"rule"`
	Message string      `json:"message"`
}

// Summary closes a completed run.
type Summary struct {
	RunID         string                `json:"run_id"`
	RowsRead      int64                 `json:"rows_read"`
	RowsSkipped   int64                 `json:"rows_skipped"`
	FactsIngested int64                 `json:"facts_ingested"`
	Duplicates    int64                 `json:"duplicates"`
	FactsDerived  int64                 `json:"facts_derived"`
	Events        int64                 `json:"events"`
	Firings       int64                 `json:"firings"`
	BySeverity    map[ir.Severity]int64 `json:"by_severity,omitempty"`
	Elapsed       time.Duration         `json:"elapsed"`
}

// Firing records one executed activation.
type Firing struct {
	Seq       int64    `json:"seq"`
	Rule      string   `json:"rule"`
	TupleHash string   `json:"tuple_hash"`
	Keys      []string `json:"keys"`
}

// Sink consumes the output of one run.
type Sink interface {
	Open(info RunInfo) error
	Log(r Record) error
	Event(e Event) error
	Finish(s Summary) error
	Abort(cause error) error
}

// FiringRecorder is implemented by sinks that also archive firings.
type FiringRecorder interface {
	Fired(f Firing) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Open(RunInfo) error { return nil }
func (discard) Log(Record) error { return nil }
func (discard) Event(Event) error { return nil }
func (discard) Finish(Summary) error { return nil }
func (discard) Abort(error) error { return nil }

// Multi fans every call out to each sink in order. All sinks are called
// even when one fails; the errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(append([]Sink(nil), sinks...))
}

type multi []Sink

func (m multi) Open(info RunInfo) error {
	return m.each(func(s Sink) error { return s.Open(info) })
}

func (m multi) Log(r Record) error {
	return m.each(func(s Sink) error { return s.Log(r) })
}

func (m multi) Event(e Event) error {
	return m.each(func(s Sink) error { return s.Event(e) })
}

func (m multi) Finish(sum Summary) error {
	return m.each(func(s Sink) error { return s.Finish(sum) })
}

func (m multi) Abort(cause error) error {
	return m.each(func(s Sink) error { return s.Abort(cause) })
}

func (m multi) Fired(f Firing) error {
	return m.each(func(s Sink) error {
		if fr, ok := s.(FiringRecorder); ok {
			return fr.Fired(f)
		}
		return nil
	})
}

func (m multi) each(fn func(Sink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
