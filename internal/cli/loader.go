package cli

import (
	"errors"
	"strings"

	"github.com/roach88/distance/internal/compiler"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/profiles"
	"github.com/roach88/distance/internal/rule"
)

// CLI error codes. Validation problems carry the compiler's own E1xx codes.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load or parse failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeProfile      = "E006" // Unknown or missing profile
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodePrecondition = "E008" // Capture or output path unusable
	ErrCodeRunFailed    = "E009" // Run aborted
	ErrCodeStore        = "E010" // Archive unreadable
)

// loadModules returns the schema modules a command works on: the CUE
// schema in dir when set, else the named built-in profiles.
func loadModules(dir string, profileNames []string) ([]*ir.Module, error) {
	if dir != "" {
		m, err := compiler.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		return []*ir.Module{m}, nil
	}
	reg := profiles.Builtin()
	if _, err := reg.Select(profileNames...); err != nil {
		return nil, &profileError{err}
	}
	return reg.Modules(profileNames...)
}

// loadRuleSet compiles the named built-in profiles.
func loadRuleSet(profileNames []string) (*rule.Set, error) {
	reg := profiles.Builtin()
	if _, err := reg.Select(profileNames...); err != nil {
		return nil, &profileError{err}
	}
	return reg.Load(profileNames...)
}

// profileError marks a bad profile selection.
type profileError struct{ err error }

func (e *profileError) Error() string { return e.err.Error() }
func (e *profileError) Unwrap() error { return e.err }

// errorCode classifies a load or compile failure for CLI output.
func errorCode(err error) (code, message string) {
	var profErr *profileError
	if errors.As(err, &profErr) {
		return ErrCodeProfile, profErr.Error()
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		if compileErr.Field == "dir" {
			return dirErrorCode(compileErr.Message), compileErr.Error()
		}
		if len(compileErr.Problems) > 0 {
			return compileErr.Problems[0].Code, compileErr.Error()
		}
		return ErrCodeLoadFailed, compileErr.Error()
	}
	return ErrCodeGeneric, err.Error()
}

func dirErrorCode(message string) string {
	switch {
	case strings.HasPrefix(message, "schema directory"), strings.HasPrefix(message, "not a directory"):
		return ErrCodeNotFound
	case strings.HasPrefix(message, "no CUE files"):
		return ErrCodeNoFiles
	case strings.HasPrefix(message, "scanning"):
		return ErrCodeScanError
	default:
		return ErrCodeLoadFailed
	}
}
