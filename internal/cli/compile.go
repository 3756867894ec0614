package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/distance/internal/compiler"
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/profiles"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Profiles []string
	Dir      string
	Output   string
}

// CompilationResult is the compiled schema.
type CompilationResult struct {
	SchemaHash string      `json:"schema_hash"`
	Modules    []ir.Module `json:"modules"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile fact schemas",
		Long: `Compile fact schemas and print the resulting types, fields, and
decoder filters.

Without --dir the built-in profiles are compiled; --profile narrows the
selection. With --dir the CUE files in that directory are compiled
instead.

Example:
  distance compile
  distance compile --profile dns --format json
  distance compile --dir ./schemas -o schema.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Profiles, "profile", "p", nil, "built-in profile to compile (repeatable; default all)")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "compile the CUE schema in this directory")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled schema as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	names := opts.Profiles
	if opts.Dir == "" && len(names) == 0 {
		names = profiles.Builtin().Names()
	}

	mods, err := loadModules(opts.Dir, names)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	for _, m := range mods {
		formatter.VerboseLog("Compiling module %s: %d fact spec(s)", m.Namespace, len(m.Facts))
	}

	cat, err := compiler.Compile(mods...)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	result := &CompilationResult{SchemaHash: cat.Hash(), Modules: cat.Modules()}
	if opts.Output != "" {
		if err := writeSchemaFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	printCatalog(formatter, cat)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled schema to %s\n", opts.Output)
	}
	return nil
}

func printCatalog(formatter *OutputFormatter, cat *fact.Catalog) {
	w := formatter.Writer
	mods := cat.Modules()
	fmt.Fprintf(w, "✓ Compiled %d module(s), %d type(s)\n", len(mods), len(cat.Types()))
	fmt.Fprintf(w, "  schema %s\n", cat.Hash())

	for _, m := range mods {
		fmt.Fprintf(w, "\n%s:\n", m.Namespace)
		for _, spec := range m.Facts {
			fmt.Fprintf(w, "  %s (%s", spec.Name, spec.Kind)
			switch spec.Kind {
			case ir.KindFact:
				if spec.Filter != "" {
					fmt.Fprintf(w, ", filter %q", spec.Filter)
				}
			case ir.KindEvent:
				fmt.Fprintf(w, ", %s", spec.Severity)
			case ir.KindDerived:
			}
			fmt.Fprintln(w, ")")

			for _, f := range spec.Fields {
				fmt.Fprintf(w, "    %-20s %-24s %s\n", f.Name, f.Source, f.Type)
			}
		}
	}
}

// outputCompileError reports a schema that could not be loaded or
// compiled. Either way it is a command error.
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message := errorCode(err)

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) && len(compileErr.Problems) > 0 {
		if formatter.JSON() {
			_ = formatter.Failure(code, compileErr.Message, compileErr.Problems)
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
			for _, p := range compileErr.Problems {
				fmt.Fprintf(formatter.Writer, "  %s\n", p.Error())
			}
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(compileErr.Problems)), nil)
	}

	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

func writeSchemaFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
