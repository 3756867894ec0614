package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts firings for one run and enforces an optional
// maximum.
//
// Fire-once per tuple and set semantics bound most rule sets, but a rule
// that keeps deriving fresh facts (a counter, a path extension) never
// reaches a fixpoint. The quota turns that into a clean abort.
type QuotaEnforcer struct {
	maxFirings int // 0 means unlimited
	current    int
}

// NewQuotaEnforcer creates a quota enforcer. A limit of 0 or less is
// unlimited.
func NewQuotaEnforcer(maxFirings int) *QuotaEnforcer {
	return &QuotaEnforcer{maxFirings: max(maxFirings, 0)}
}

// Check counts one firing of rule and validates it against the limit.
func (q *QuotaEnforcer) Check(rule string) error {
	q.current++
	if q.maxFirings > 0 && q.current > q.maxFirings {
		return &FiringsExceededError{Rule: rule, Firings: q.current, Limit: q.maxFirings}
	}
	return nil
}

// Current returns the number of firings counted.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxFirings returns the limit, or 0 when unlimited.
func (q *QuotaEnforcer) MaxFirings() int {
	return q.maxFirings
}

// FiringsExceededError is returned when a run exceeds its firing quota.
// The run is aborted; no completion marker is written.
type FiringsExceededError struct {
	Rule    string // The rule whose firing crossed the limit
	Firings int
	Limit   int
}

// Error implements the error interface.
func (e *FiringsExceededError) Error() string {
	return fmt.Sprintf("firing quota exceeded at rule %s: %d firings > %d limit",
		e.Rule, e.Firings, e.Limit)
}

// IsFiringsExceededError returns true if the error is a
// FiringsExceededError. Uses errors.As to handle wrapped errors.
func IsFiringsExceededError(err error) bool {
	var fe *FiringsExceededError
	return errors.As(err, &fe)
}
