package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/distance/internal/sink"
)

var errRunNotOpen = errors.New("run sink: Open has not been called")

// RunSink archives one run. It implements sink.Sink and
// sink.FiringRecorder.
//
// Every write is its own statement; a crash leaves the rows written so
// far and a run with no completed_at.
type RunSink struct {
	store *Store
	ctx   context.Context
	runID string
}

var (
	_ sink.Sink           = (*RunSink)(nil)
	_ sink.FiringRecorder = (*RunSink)(nil)
)

// NewRunSink returns a sink writing to s. ctx bounds every statement.
func NewRunSink(ctx context.Context, s *Store) *RunSink {
	return &RunSink{store: s, ctx: ctx}
}

// RunID returns the id of the open run, or "" before Open.
func (r *RunSink) RunID() string { return r.runID }

// Open inserts the run row. Reopening an archived run id is an error.
func (r *RunSink) Open(info sink.RunInfo) error {
	profiles, err := marshalStrings("profiles", info.Profiles)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}

	_, err = r.store.db.ExecContext(r.ctx, `
		INSERT INTO runs
		(id, capture, profiles, schema_hash, engine_version, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		info.RunID,
		info.Capture,
		profiles,
		info.SchemaHash,
		info.EngineVersion,
		info.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("open run %s: %w", info.RunID, err)
	}
	r.runID = info.RunID
	return nil
}

func (r *RunSink) Log(rec sink.Record) error {
	if r.runID == "" {
		return errRunNotOpen
	}
	_, err := r.store.db.ExecContext(r.ctx, `
		INSERT INTO log_records
		(run_id, seq, level, rule, message)
		VALUES (?, ?, ?, ?, ?)
	`,
		r.runID,
		rec.Seq,
		string(rec.Level),
		rec.Rule,
		rec.Message,
	)
	if err != nil {
		return fmt.Errorf("write log record: %w", err)
	}
	return nil
}

// Event archives a yielded event. An event whose fact key is already
// archived for the run is silently ignored.
func (r *RunSink) Event(e sink.Event) error {
	if r.runID == "" {
		return errRunNotOpen
	}
	fields, err := marshalFields(e.Fields)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = r.store.db.ExecContext(r.ctx, `
		INSERT INTO events
		(run_id, seq, rule, name, severity, message, fact_key, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, fact_key) DO NOTHING
	`,
		r.runID,
		e.Seq,
		e.Rule,
		e.Name,
		string(e.Severity),
		e.Message,
		e.Key,
		fields,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Fired archives an executed activation. Uses ON CONFLICT(run_id, rule,
// tuple_hash) DO NOTHING, so a tuple is recorded at most once per run.
func (r *RunSink) Fired(f sink.Firing) error {
	_, err := r.recordFiring(f)
	return err
}

func (r *RunSink) recordFiring(f sink.Firing) (inserted bool, err error) {
	if r.runID == "" {
		return false, errRunNotOpen
	}
	keys, err := marshalStrings("fact keys", f.Keys)
	if err != nil {
		return false, fmt.Errorf("write firing: %w", err)
	}

	result, err := r.store.db.ExecContext(r.ctx, `
		INSERT INTO firings
		(run_id, seq, rule, tuple_hash, fact_keys)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, rule, tuple_hash) DO NOTHING
	`,
		r.runID,
		f.Seq,
		f.Rule,
		f.TupleHash,
		keys,
	)
	if err != nil {
		return false, fmt.Errorf("write firing: %w", err)
	}

	// Check if a row was actually inserted
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write firing: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Finish stores the summary and sets completed_at, the run-complete
// marker.
func (r *RunSink) Finish(s sink.Summary) error {
	if r.runID == "" {
		return errRunNotOpen
	}
	summary, err := marshalJSON("summary", s)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	_, err = r.store.db.ExecContext(r.ctx, `
		UPDATE runs SET completed_at = ?, summary = ?
		WHERE id = ? AND completed_at IS NULL
	`,
		time.Now().UTC().Format(time.RFC3339Nano),
		summary,
		r.runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.runID, err)
	}
	return nil
}

// Abort records the cause. completed_at stays NULL.
func (r *RunSink) Abort(cause error) error {
	if r.runID == "" {
		return errRunNotOpen
	}
	msg := "aborted"
	if cause != nil {
		msg = cause.Error()
	}

	_, err := r.store.db.ExecContext(r.ctx, `
		UPDATE runs SET aborted = ?
		WHERE id = ? AND completed_at IS NULL
	`, msg, r.runID)
	if err != nil {
		return fmt.Errorf("abort run %s: %w", r.runID, err)
	}
	return nil
}
