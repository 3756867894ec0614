package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/distance/internal/config"
	"github.com/roach88/distance/internal/ingest"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/runner"
	"github.com/roach88/distance/internal/sink"
	"github.com/roach88/distance/internal/store"
)

// AnalyzeOptions holds flags for the analyze command. Flags override the
// config file only when set on the command line.
type AnalyzeOptions struct {
	*RootOptions
	ConfigPath  string
	FailOnError bool

	Profiles    []string
	OutputDir   string
	Database    string
	Policy      string
	Timeout     time.Duration
	Graph       string
	Decoder     string
	Tshark      string
	Parallelism int
	MaxFirings  int

	// RunIDs overrides the UUIDv7 generator (for testing).
	RunIDs runner.RunIDGenerator
}

// AnalyzeResult is the JSON output of analyze.
type AnalyzeResult struct {
	Summary   sink.Summary   `json:"summary"`
	Facts     map[string]int `json:"facts"`
	LogPath   string         `json:"log_path"`
	EventPath string         `json:"event_path"`
	GraphPath string         `json:"graph_path,omitempty"`
	Database  string         `json:"database,omitempty"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <capture>",
		Short: "Diagnose a packet capture",
		Long: `Decode a capture, run the selected diagnostic profiles over it, and
report every problem found.

The diagnostic log and event stream are written next to the capture (or
into --out) with the capture's extension replaced by .log and .evt. The
last line of a completed event stream is the run summary.

With --decoder tsv the capture is a file of pre-decoded rows:
  <Type><TAB><value><TAB><value>...

Exit codes:
  0 - Run completed (findings do not fail the run unless --fail-on-error)
  1 - Run aborted, or Error findings with --fail-on-error
  2 - Bad configuration, unknown profile, or unusable capture/output path

Example:
  distance analyze home.pcap
  distance analyze --profile dns --db runs.db --timeout 5m home.pcap
  distance analyze --decoder tsv --fail-on-error rows.tsv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	f.BoolVar(&opts.FailOnError, "fail-on-error", false, "exit 1 when any Error event is reported")
	f.StringSliceVarP(&opts.Profiles, "profile", "p", nil, "diagnostic profile (repeatable)")
	f.StringVarP(&opts.OutputDir, "out", "o", "", "directory for the .log and .evt files")
	f.StringVar(&opts.Database, "db", "", "SQLite run archive")
	f.StringVar(&opts.Policy, "policy", "", "row error policy (skip|abort)")
	f.DurationVar(&opts.Timeout, "timeout", 0, "abort the run after this long")
	f.StringVar(&opts.Graph, "graph", "", "write the drained network snapshot as JSON")
	f.StringVar(&opts.Decoder, "decoder", "", "decoder kind (tshark|tsv)")
	f.StringVar(&opts.Tshark, "tshark", "", "tshark binary")
	f.IntVar(&opts.Parallelism, "parallelism", 0, "concurrent decoder streams")
	f.IntVar(&opts.MaxFirings, "max-firings", 0, "abort the run past this many firings")

	return cmd
}

// resolveConfig loads the config file, if any, and applies the flags that
// were set explicitly.
func resolveConfig(opts *AnalyzeOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("profile") {
		cfg.Profiles = opts.Profiles
	}
	if changed("out") {
		cfg.OutputDir = opts.OutputDir
	}
	if changed("db") {
		cfg.Database = opts.Database
	}
	if changed("policy") {
		cfg.RowPolicy = opts.Policy
	}
	if changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if changed("graph") {
		cfg.Graph = opts.Graph
	}
	if changed("decoder") {
		cfg.Decoder.Kind = opts.Decoder
	}
	if changed("tshark") {
		cfg.Decoder.TsharkPath = opts.Tshark
	}
	if changed("parallelism") {
		cfg.Parallelism = opts.Parallelism
	}
	if changed("max-firings") {
		cfg.MaxFirings = opts.MaxFirings
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAnalyze(opts *AnalyzeOptions, capture string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	set, err := loadRuleSet(cfg.Profiles)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	slog.Debug("profiles loaded", "profiles", cfg.Profiles, "rules", set.Len(), "schema", set.Catalog().Hash())

	// Checked before the archive is opened so a bad capture leaves no
	// empty database behind.
	if err := runner.CheckPreconditions(capture, cfg.OutputDir); err != nil {
		return preconditionFailed(formatter, err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []sink.Sink
	if !formatter.JSON() {
		sinks = append(sinks, sink.NewConsole(formatter.Writer, opts.Verbose, ir.SeverityInfo))
	}
	if cfg.Database != "" {
		st, err := store.Open(cfg.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("error closing database", "error", err)
			}
		}()
		// The archive must still receive Abort after ctx is cancelled.
		sinks = append(sinks, store.NewRunSink(context.WithoutCancel(ctx), st))
	}

	options := []runner.Option{
		runner.WithSinks(sinks...),
		runner.WithLogger(slog.Default()),
	}
	if opts.RunIDs != nil {
		options = append(options, runner.WithRunIDGenerator(opts.RunIDs))
	}

	res, err := runner.New(set, decoderSource(cfg, capture), runner.Options{
		Capture:          capture,
		Profiles:         cfg.Profiles,
		OutputDir:        cfg.OutputDir,
		Policy:           cfg.Policy(),
		Timeout:          cfg.Timeout,
		Parallelism:      cfg.Parallelism,
		MaxFirings:       cfg.MaxFirings,
		ProgressInterval: cfg.ProgressInterval,
		GraphPath:        cfg.Graph,
	}, options...).Run(ctx)

	if err != nil {
		if runner.IsPreconditionError(err) {
			return preconditionFailed(formatter, err)
		}
		if formatter.JSON() {
			_ = formatter.Error(ErrCodeRunFailed, err.Error(), nil)
		}
		return WrapExitError(ExitFailure, "run aborted", err)
	}

	if formatter.JSON() {
		if err := formatter.Success(AnalyzeResult{
			Summary:   res.Summary,
			Facts:     res.Facts,
			LogPath:   res.LogPath,
			EventPath: res.EventPath,
			GraphPath: res.GraphPath,
			Database:  cfg.Database,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Log:    %s\n", res.LogPath)
		fmt.Fprintf(formatter.Writer, "Events: %s\n", res.EventPath)
		if res.GraphPath != "" {
			fmt.Fprintf(formatter.Writer, "Graph:  %s\n", res.GraphPath)
		}
	}

	if opts.FailOnError && res.Errors() > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d error event(s) reported", res.Errors()))
	}
	return nil
}

func preconditionFailed(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodePrecondition, err.Error(), nil)
	return WrapExitError(ExitCommandError, "precondition failed", err)
}

func decoderSource(cfg *config.Config, capture string) ingest.Source {
	if cfg.Decoder.Kind == config.DecoderTSV {
		return ingest.TSV{Path: capture}
	}
	return ingest.Tshark{
		Path:      cfg.Decoder.TsharkPath,
		Capture:   capture,
		ExtraArgs: cfg.Decoder.ExtraArgs,
	}
}
