package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/distance/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Facts  int                        `json:"facts"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate a fact schema",
		Long: `Validate the CUE fact schema in a directory without building a catalog.

Every problem is reported, not just the first: unknown field types,
duplicate fields, event specs without a severity or message, message
placeholders that name no field, unknown converters, and so on.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	m, err := compiler.LoadDir(dir)
	if err != nil {
		code, message := errorCode(err)
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	formatter.VerboseLog("Loaded %s: %d fact spec(s)", m.Namespace, len(m.Facts))

	problems := compiler.ValidateModule(m)
	if len(problems) > 0 {
		return outputValidationErrors(formatter, len(m.Facts), problems)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Facts: len(m.Facts)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Schema valid: %s, %d fact spec(s)\n", m.Namespace, len(m.Facts))
	return nil
}

// outputValidationErrors prints every problem. An invalid schema is a
// validation failure, not a command error.
func outputValidationErrors(formatter *OutputFormatter, facts int, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Failure(errs[0].Code, errs[0].Message,
			ValidationResult{Valid: false, Facts: facts, Errors: errs}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}
	return failure
}
