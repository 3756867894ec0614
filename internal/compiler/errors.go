package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation failure.
//
// Parse failures carry a single Field/Message with a CUE source position.
// Validation failures additionally list every problem found in Problems;
// no catalog or rule set is produced when any problem exists.
type CompileError struct {
	Field    string
	Message  string
	Pos      token.Pos
	Problems []ValidationError
}

func (e *CompileError) Error() string {
	var head string
	if e.Pos.IsValid() {
		head = fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	} else {
		head = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if len(e.Problems) <= 1 {
		return head
	}

	var b strings.Builder
	b.WriteString(head)
	for _, p := range e.Problems[1:] {
		b.WriteString("\n  ")
		b.WriteString(p.Error())
	}
	return b.String()
}

// newProblemsError wraps collected validation errors. The first problem
// fills Field/Message so single-line consumers still see something useful.
func newProblemsError(problems []ValidationError) *CompileError {
	first := problems[0]
	return &CompileError{
		Field:    first.Field,
		Message:  fmt.Sprintf("[%s] %s", first.Code, first.Message),
		Problems: problems,
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
