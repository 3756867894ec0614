// Package ingest turns decoded capture data into fact rows.
//
// A Source yields rows tagged with their fact type. Each row carries the
// raw text of every field in declaration order, so parsing into typed
// facts stays with the schema (fact.Type.FromFields). Row failures are
// handled under an explicit Policy.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/distance/internal/coerce"
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
)

// Row is one decoded record.
type Row struct {
	// Type names the fact type the row belongs to.
	Type string

	// Line is the 1-based position of the row in its stream.
	Line int64

	// Values holds one raw value per field, in declaration order.
	Values []string
}

// TypeRequest asks a source for rows of one observed fact type.
type TypeRequest struct {
	Type   string
	Filter string   // decoder display filter, may be empty
	Fields []string // decoder field keys in declaration order
}

// Requests builds one request per observed type in cat, in declaration
// order. Types with reference fields cannot be decoded and are left out.
func Requests(cat *fact.Catalog) []TypeRequest {
	var reqs []TypeRequest
	for _, t := range cat.Observed() {
		if !t.Parseable() {
			continue
		}
		reqs = append(reqs, TypeRequest{Type: t.Name(), Filter: t.Filter(), Fields: t.SourceKeys()})
	}
	return reqs
}

// RowError reports a row that could not become a fact.
type RowError struct {
	Type   string
	Line   int64
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	msg := fmt.Sprintf("row %d", e.Line)
	if e.Type != "" {
		msg += " (" + e.Type + ")"
	}
	return msg + ": " + e.Reason
}

func (e *RowError) Unwrap() error { return e.Err }

// IsRowError reports whether err is or wraps a RowError.
func IsRowError(err error) bool {
	var re *RowError
	return errors.As(err, &re)
}

// Parse converts a row to a fact of its declared type. Every failure is
// a *RowError.
func Parse(cat *fact.Catalog, row Row, conv coerce.Converter) (*fact.Fact, error) {
	t, ok := cat.Type(row.Type)
	if !ok {
		return nil, &RowError{Type: row.Type, Line: row.Line, Reason: "unknown fact type"}
	}
	switch t.Kind() {
	case ir.KindFact:
	case ir.KindDerived, ir.KindEvent:
		return nil, &RowError{Type: row.Type, Line: row.Line, Reason: fmt.Sprintf("%s types are derived by rules, not ingested", t.Kind())}
	}
	if !t.Parseable() {
		return nil, &RowError{Type: row.Type, Line: row.Line, Reason: "type has reference fields and cannot be decoded"}
	}
	f, err := t.FromFields(row.Values, conv)
	if err != nil {
		reason := "conversion failed"
		if errors.Is(err, fact.ErrFieldCount) {
			reason = fmt.Sprintf("expected %d fields, got %d", t.NumFields(), len(row.Values))
		}
		return nil, &RowError{Type: row.Type, Line: row.Line, Reason: reason + ": " + err.Error(), Err: err}
	}
	return f, nil
}

// Policy decides what a row error does to the run.
type Policy string

const (
	// PolicySkip counts the row and continues.
	PolicySkip Policy = "skip"
	// PolicyAbort stops the run with the RowError.
	PolicyAbort Policy = "abort"
)

// ParsePolicy accepts "skip" or "abort", case-insensitively. The empty
// string is PolicySkip.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicySkip):
		return PolicySkip, nil
	case string(PolicyAbort):
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown row policy %q: must be skip or abort", s)
	}
}

// Handle applies the policy to a row error. It returns nil when the row
// should be skipped and err when the run must stop.
func (p Policy) Handle(err error) error {
	if p == PolicyAbort {
		return err
	}
	return nil
}
