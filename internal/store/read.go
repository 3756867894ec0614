package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/sink"
)

// Run is an archived run.
type Run struct {
	ID            string
	Capture       string
	Profiles      []string
	SchemaHash    string
	EngineVersion string
	StartedAt     time.Time

	// CompletedAt is nil unless the run finished.
	CompletedAt *time.Time

	// Aborted holds the abort cause, if any.
	Aborted string

	// Summary is nil unless the run finished.
	Summary *sink.Summary
}

// Complete reports whether the run-complete marker was written.
func (r Run) Complete() bool { return r.CompletedAt != nil }

const runColumns = `id, capture, profiles, schema_hash, engine_version, started_at, completed_at, aborted, summary`

// ListRuns returns every archived run. Run ids are UUIDv7, so ordering by
// id is oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id COLLATE BINARY ASC`)
}

// FindIncompleteRuns returns runs without a completion marker: aborted
// runs and runs whose process died.
func (s *Store) FindIncompleteRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE completed_at IS NULL
		ORDER BY id COLLATE BINARY ASC
	`)
}

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

func (s *Store) queryRuns(ctx context.Context, query string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                Run
		profiles, started  string
		completed, aborted sql.NullString
		summary            sql.NullString
	)
	if err := sc.Scan(&run.ID, &run.Capture, &profiles, &run.SchemaHash, &run.EngineVersion,
		&started, &completed, &aborted, &summary); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if run.Profiles, err = unmarshalStrings("profiles", profiles); err != nil {
		return Run{}, err
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if completed.Valid {
		t, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse completed_at: %w", err)
		}
		run.CompletedAt = &t
	}
	run.Aborted = aborted.String
	if summary.Valid {
		if run.Summary, err = unmarshalSummary(summary.String); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

// ReadEvents returns a run's events ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]sink.Event, error) {
	return s.QueryEvents(ctx, EventQuery{RunID: runID})
}

// ReadRecords returns a run's log records ordered by seq ASC, id ASC.
func (s *Store) ReadRecords(ctx context.Context, runID string) ([]sink.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, level, rule, message
		FROM log_records
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query log records: %w", err)
	}
	defer rows.Close()

	records := []sink.Record{}
	for rows.Next() {
		var (
			r     sink.Record
			level string
		)
		if err := rows.Scan(&r.Seq, &level, &r.Rule, &r.Message); err != nil {
			return nil, fmt.Errorf("scan log record: %w", err)
		}
		r.Level = ir.Severity(level)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log records: %w", err)
	}
	return records, nil
}

// ReadFirings returns a run's firings ordered by seq ASC, id ASC.
func (s *Store) ReadFirings(ctx context.Context, runID string) ([]sink.Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, rule, tuple_hash, fact_keys
		FROM firings
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []sink.Firing{}
	for rows.Next() {
		var (
			f    sink.Firing
			keys string
		)
		if err := rows.Scan(&f.Seq, &f.Rule, &f.TupleHash, &keys); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		if f.Keys, err = unmarshalStrings("fact keys", keys); err != nil {
			return nil, err
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// LastSeq returns the highest seq written for a run, across log records,
// events, and firings.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var maxSeq int64
	for _, table := range []string{"log_records", "events", "firings"} {
		var seq int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM `+table+` WHERE run_id = ?`, runID,
		).Scan(&seq)
		if err != nil {
			return 0, fmt.Errorf("get last seq from %s: %w", table, err)
		}
		maxSeq = max(maxSeq, seq)
	}
	return maxSeq, nil
}
