package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/sink"
	"github.com/roach88/distance/internal/store"
)

// ArchiveOptions holds flags shared by the archive commands.
type ArchiveOptions struct {
	*RootOptions
	Database string
}

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	ArchiveOptions
	Names       []string
	Rule        string
	MinSeverity string
}

// ArchivedRun is one run in runs output.
type ArchivedRun struct {
	ID          string        `json:"id"`
	Capture     string        `json:"capture"`
	Profiles    []string      `json:"profiles"`
	SchemaHash  string        `json:"schema_hash"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Aborted     string        `json:"aborted,omitempty"`
	Summary     *sink.Summary `json:"summary,omitempty"`
}

// EventsResult is the JSON output of events.
type EventsResult struct {
	RunID  string       `json:"run_id"`
	Events []sink.Event `json:"events"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		Long: `List the runs recorded in a SQLite archive, oldest first.

A run without a completion marker was aborted or its process died.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}
	addDatabaseFlag(cmd, opts)
	return cmd
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{ArchiveOptions: ArchiveOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "events [run-id]",
		Short: "Print the events of an archived run",
		Long: `Print the events of an archived run in emission order.

Without a run id the most recent run is shown.

Example:
  distance events --db runs.db
  distance events --db runs.db --min-severity warning
  distance events --db runs.db --name NoResponse --name LateResponse <run-id>`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runEvents(opts, runID, cmd)
		},
	}
	addDatabaseFlag(cmd, &opts.ArchiveOptions)
	cmd.Flags().StringSliceVar(&opts.Names, "name", nil, "only events with this name (repeatable)")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "only events emitted by this rule")
	cmd.Flags().StringVar(&opts.MinSeverity, "min-severity", "", "only events at or above this severity (info|warning|error)")
	return cmd
}

func addDatabaseFlag(cmd *cobra.Command, opts *ArchiveOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite run archive (required)")
	_ = cmd.MarkFlagRequired("db")
}

// openArchive opens an existing archive. A missing file is reported rather
// than created.
func openArchive(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("archive not found: %s", path), nil)
		return nil, WrapExitError(ExitCommandError, "archive not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runRuns(opts *ArchiveOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openArchive(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(commandContext(cmd))
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	infos := make([]ArchivedRun, len(runs))
	for i, r := range runs {
		infos[i] = ArchivedRun{
			ID:          r.ID,
			Capture:     r.Capture,
			Profiles:    r.Profiles,
			SchemaHash:  r.SchemaHash,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Aborted:     r.Aborted,
			Summary:     r.Summary,
		}
	}

	if formatter.JSON() {
		return formatter.Success(infos)
	}

	w := formatter.Writer
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs archived")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-9s  %6s  %s\n", "RUN", "STARTED", "STATUS", "EVENTS", "CAPTURE")
	for _, r := range infos {
		events := "-"
		if r.Summary != nil {
			events = fmt.Sprintf("%d", r.Summary.Events)
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-9s  %6s  %s [%s]\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), runStatus(r), events,
			r.Capture, strings.Join(r.Profiles, ","))
	}
	return nil
}

func runStatus(r ArchivedRun) string {
	switch {
	case r.CompletedAt != nil:
		return "complete"
	case r.Aborted != "":
		return "aborted"
	default:
		return "partial"
	}
}

func runEvents(opts *EventsOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	query := store.EventQuery{Names: opts.Names, Rule: opts.Rule}
	if opts.MinSeverity != "" {
		sev, err := ir.ParseSeverity(opts.MinSeverity)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --min-severity", err)
		}
		query.MinSeverity = sev
	}

	st, err := openArchive(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to list runs", err)
		}
		if len(runs) == 0 {
			_ = formatter.Error(ErrCodeNotFound, "no runs archived", nil)
			return NewExitError(ExitFailure, "no runs archived")
		}
		runID = runs[len(runs)-1].ID
	} else if _, err := st.ReadRun(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
			return NewExitError(ExitFailure, "run not found")
		}
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read run", err)
	}

	query.RunID = runID
	events, err := st.QueryEvents(ctx, query)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read events", err)
	}

	if formatter.JSON() {
		return formatter.Success(EventsResult{RunID: runID, Events: events})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s: %d event(s)\n", runID, len(events))
	for _, e := range events {
		fmt.Fprintf(w, "  [%d] %-7s %s: %s\n", e.Seq, e.Severity, e.Name, e.Message)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
