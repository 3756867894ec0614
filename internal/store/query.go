package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/sink"
)

// EventQuery selects archived events of one run. Empty filters match
// everything.
type EventQuery struct {
	RunID string

	// Names keeps events whose name is one of Names.
	Names []string

	// Rule keeps events emitted by this rule.
	Rule string

	// MinSeverity keeps events at or above this severity.
	MinSeverity ir.Severity
}

// predicate is one parameterized WHERE term.
type predicate struct {
	sql    string
	params []any
}

func equals(column string, value any) predicate {
	return predicate{sql: column + " = ?", params: []any{value}}
}

func in(column string, values []any) predicate {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return predicate{sql: column + " IN (" + marks + ")", params: values}
}

// compile builds the SELECT for q. Values are always bound as parameters,
// and rows come back in emission order with the row id as tiebreaker.
func (q EventQuery) compile() (string, []any, error) {
	if q.RunID == "" {
		return "", nil, fmt.Errorf("event query: run id is required")
	}
	preds := []predicate{equals("run_id", q.RunID)}

	if len(q.Names) > 0 {
		names := make([]any, len(q.Names))
		for i, n := range q.Names {
			names[i] = n
		}
		preds = append(preds, in("name", names))
	}
	if q.Rule != "" {
		preds = append(preds, equals("rule", q.Rule))
	}
	if q.MinSeverity != "" {
		if !q.MinSeverity.Valid() {
			return "", nil, fmt.Errorf("event query: unknown severity %q", q.MinSeverity)
		}
		var sevs []any
		for _, s := range []ir.Severity{ir.SeverityInfo, ir.SeverityWarning, ir.SeverityError} {
			if s.Rank() >= q.MinSeverity.Rank() {
				sevs = append(sevs, string(s))
			}
		}
		preds = append(preds, in("severity", sevs))
	}

	terms := make([]string, len(preds))
	var params []any
	for i, p := range preds {
		terms[i] = p.sql
		params = append(params, p.params...)
	}

	query := `SELECT seq, rule, name, severity, message, fact_key, fields FROM events WHERE ` +
		strings.Join(terms, " AND ") +
		` ORDER BY seq ASC, id ASC`
	return query, params, nil
}

// QueryEvents returns the events matching q ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) if none match.
func (s *Store) QueryEvents(ctx context.Context, q EventQuery) ([]sink.Event, error) {
	query, params, err := q.compile()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []sink.Event{}
	for rows.Next() {
		var (
			e        sink.Event
			severity string
			fields   string
		)
		if err := rows.Scan(&e.Seq, &e.Rule, &e.Name, &severity, &e.Message, &e.Key, &fields); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Severity = ir.Severity(severity)
		if e.Fields, err = unmarshalFields(fields); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
