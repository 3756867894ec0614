package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/roach88/distance/internal/coerce"
	"github.com/roach88/distance/internal/engine"
	"github.com/roach88/distance/internal/ingest"
	"github.com/roach88/distance/internal/ir"
	"github.com/roach88/distance/internal/rule"
	"github.com/roach88/distance/internal/sink"
)

// DefaultProgressInterval spaces progress reports when Options leaves it
// unset.
const DefaultProgressInterval = time.Second

// Options describe one run.
type Options struct {
	// Capture is the analysed file. Output file names derive from it.
	Capture string

	// Profiles is recorded with the run.
	Profiles []string

	// OutputDir receives the .log and .evt files; empty means next to
	// the capture.
	OutputDir string

	Policy ingest.Policy

	// Timeout bounds the whole run; zero means none.
	Timeout time.Duration

	// Parallelism bounds concurrent decoder streams; zero runs every
	// stream at once.
	Parallelism int

	// MaxFirings aborts the run past this many firings; zero means
	// unlimited.
	MaxFirings int

	ProgressInterval time.Duration

	// GraphPath, when set, receives the drained network snapshot as JSON.
	GraphPath string
}

// Progress is a sample taken while a run is in flight.
type Progress struct {
	Phase       engine.Phase
	RowsRead    int64
	RowsSkipped int64
	Stats       engine.Stats
}

// Result describes a finished or aborted run.
type Result struct {
	Summary sink.Summary
	Stats   engine.Stats

	// Facts counts working memory per type when the run stopped.
	Facts map[string]int

	// LogPath and EventPath are empty when file output is disabled.
	LogPath   string
	EventPath string
	GraphPath string
}

// Errors returns the number of Error-severity events.
func (r *Result) Errors() int64 {
	return r.Summary.BySeverity[ir.SeverityError]
}

// Analyzer runs a compiled rule set over rows from a source.
type Analyzer struct {
	set  *rule.Set
	src  ingest.Source
	opts Options

	sinks    []sink.Sink
	files    bool
	ids      RunIDGenerator
	logger   *slog.Logger
	conv     coerce.Converter
	progress func(Progress)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSinks adds sinks that receive the run output next to the files.
func WithSinks(s ...sink.Sink) Option {
	return func(a *Analyzer) {
		a.sinks = append(a.sinks, s...)
	}
}

// WithoutFiles disables the .log and .evt files and the capture
// precondition check. Runs over in-memory rows use it.
func WithoutFiles() Option {
	return func(a *Analyzer) {
		a.files = false
	}
}

// WithRunIDGenerator sets the run id source. The default mints UUIDv7s.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(a *Analyzer) {
		a.ids = g
	}
}

// WithLogger sets the operational logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithConverter rewrites raw values before coercion.
func WithConverter(c coerce.Converter) Option {
	return func(a *Analyzer) {
		a.conv = c
	}
}

// WithProgress receives throttled progress samples. The default logs
// them at debug level.
func WithProgress(fn func(Progress)) Option {
	return func(a *Analyzer) {
		a.progress = fn
	}
}

// New returns an Analyzer for one run.
func New(set *rule.Set, src ingest.Source, opts Options, options ...Option) *Analyzer {
	a := &Analyzer{
		set:    set,
		src:    src,
		opts:   opts,
		files:  true,
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		conv:   coerce.Identity,
	}
	for _, o := range options {
		o(a)
	}
	if a.opts.ProgressInterval <= 0 {
		a.opts.ProgressInterval = DefaultProgressInterval
	}
	if a.opts.Policy == "" {
		a.opts.Policy = ingest.PolicySkip
	}
	if a.progress == nil {
		a.progress = func(p Progress) {
			a.logger.Debug("progress",
				"phase", p.Phase,
				"rows", p.RowsRead,
				"skipped", p.RowsSkipped,
				"facts", p.Stats.Inserted,
				"firings", p.Stats.Firings)
		}
	}
	return a
}

// run holds the per-run counters and throttles.
type run struct {
	eng     *engine.Engine
	read    atomic.Int64
	skipped atomic.Int64

	progress rate.Sometimes
	skipLog  rate.Sometimes
}

func (r *run) sample() Progress {
	return Progress{
		Phase:       r.eng.State(),
		RowsRead:    r.read.Load(),
		RowsSkipped: r.skipped.Load(),
		Stats:       r.eng.Stats(),
	}
}

// Run performs the analysis. Preconditions and sink failures are returned
// before any engine work; once the sinks are open, a failure aborts them
// and the partial Result is returned with the error.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	if a.files {
		if err := CheckPreconditions(a.opts.Capture, a.opts.OutputDir); err != nil {
			return nil, err
		}
	}
	if a.opts.GraphPath != "" {
		if err := checkWritableDir(filepath.Dir(a.opts.GraphPath)); err != nil {
			return nil, err
		}
	}

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	info := sink.RunInfo{
		RunID:         a.ids.Generate(),
		Capture:       a.opts.Capture,
		Profiles:      append([]string(nil), a.opts.Profiles...),
		SchemaHash:    a.set.Catalog().Hash(),
		EngineVersion: ir.EngineVersion,
		StartedAt:     started.UTC(),
	}
	res := &Result{GraphPath: a.opts.GraphPath}

	sinks := a.sinks
	if a.files {
		res.LogPath, res.EventPath = sink.Paths(a.opts.Capture, a.opts.OutputDir)
		sinks = append([]sink.Sink{sink.NewFile(res.LogPath, res.EventPath)}, sinks...)
	}
	out := sink.Multi(sinks...)
	if err := out.Open(info); err != nil {
		// Sinks that did open are closed without a marker.
		_ = out.Abort(err)
		return nil, fmt.Errorf("open output: %w", err)
	}

	r := &run{
		eng: engine.New(a.set,
			engine.WithSink(out),
			engine.WithMaxFirings(a.opts.MaxFirings),
			engine.WithLogger(a.logger)),
		progress: rate.Sometimes{Interval: a.opts.ProgressInterval},
		skipLog:  rate.Sometimes{First: 3, Interval: a.opts.ProgressInterval},
	}
	a.logger.Info("run started",
		"run", info.RunID,
		"capture", info.Capture,
		"rules", a.set.Len())

	err := a.analyze(ctx, r)
	res.Stats = r.eng.Stats()
	res.Facts = factCounts(r.eng)
	res.Summary = summarize(info.RunID, r, res.Stats, time.Since(started))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && a.opts.Timeout > 0 {
			err = fmt.Errorf("run exceeded timeout of %s: %w", a.opts.Timeout, err)
		}
		if abortErr := out.Abort(err); abortErr != nil {
			a.logger.Warn("failed to close output", "error", abortErr)
		}
		a.logger.Error("run aborted", "run", info.RunID, "error", err)
		return res, err
	}

	if err := out.Finish(res.Summary); err != nil {
		return res, fmt.Errorf("finish output: %w", err)
	}
	a.logger.Info("run complete",
		"run", info.RunID,
		"facts", res.Summary.FactsIngested,
		"firings", res.Summary.Firings,
		"events", res.Summary.Events,
		"elapsed", res.Summary.Elapsed)
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, r *run) error {
	if err := a.ingest(ctx, r); err != nil {
		return err
	}
	if err := r.eng.CloseIngestion(); err != nil {
		return err
	}
	if err := a.fire(ctx, r); err != nil {
		return err
	}
	if a.opts.GraphPath != "" {
		if err := writeGraph(r.eng, a.opts.GraphPath); err != nil {
			return err
		}
	}
	return nil
}

// ingest runs the decoder streams into a queue drained by one consumer.
func (a *Analyzer) ingest(ctx context.Context, r *run) error {
	cat := a.set.Catalog()
	streams, err := a.src.Streams(ingest.Requests(cat))
	if err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}

	q := ingest.NewQueue()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer q.Close()

		producers, pctx := errgroup.WithContext(gctx)
		limit := a.opts.Parallelism
		if limit <= 0 {
			limit = len(streams)
		}
		if limit > 0 {
			producers.SetLimit(limit)
		}
		for _, s := range streams {
			producers.Go(func() error {
				a.logger.Debug("decoder stream started", "stream", s.Name)
				err := s.Run(pctx, func(row ingest.Row) error {
					if !q.Push(row) {
						return errQueueClosed
					}
					return nil
				})
				if err != nil {
					return fmt.Errorf("decoder stream %s: %w", s.Name, err)
				}
				a.logger.Debug("decoder stream finished", "stream", s.Name)
				return nil
			})
		}
		return producers.Wait()
	})

	g.Go(func() error {
		return a.consume(gctx, r, q)
	})

	return g.Wait()
}

var errQueueClosed = errors.New("row queue closed")

// consume is the only goroutine that inserts into the engine during
// ingestion.
func (a *Analyzer) consume(ctx context.Context, r *run, q *ingest.Queue) error {
	cat := a.set.Catalog()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, ok := q.TryPop()
		if !ok {
			if q.Done() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.Wait():
			}
			continue
		}

		r.read.Add(1)
		f, err := ingest.Parse(cat, row, a.conv)
		if err != nil {
			if err := a.opts.Policy.Handle(err); err != nil {
				return err
			}
			n := r.skipped.Add(1)
			r.skipLog.Do(func() {
				a.logger.Warn("row skipped", "error", err, "skipped", n)
			})
			continue
		}
		if _, err := r.eng.Insert(f); err != nil {
			return err
		}
		r.progress.Do(func() { a.progress(r.sample()) })
	}
}

// fire drains the agenda while a ticker samples progress.
func (a *Analyzer) fire(ctx context.Context, r *run) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(a.opts.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.progress(r.sample())
			}
		}
	}()

	_, err := r.eng.Fire(ctx)
	close(done)
	wg.Wait()
	a.progress(r.sample())
	return err
}

func writeGraph(eng *engine.Engine, path string) error {
	g, err := eng.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot network: %w", err)
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

func factCounts(eng *engine.Engine) map[string]int {
	mem := eng.Memory()
	counts := make(map[string]int)
	for _, typ := range mem.Types() {
		counts[typ] = mem.Count(typ)
	}
	return counts
}

func summarize(runID string, r *run, s engine.Stats, elapsed time.Duration) sink.Summary {
	return sink.Summary{
		RunID:         runID,
		RowsRead:      r.read.Load(),
		RowsSkipped:   r.skipped.Load(),
		FactsIngested: s.Inserted,
		Duplicates:    s.Duplicates,
		FactsDerived:  s.Derived,
		Events:        s.Events,
		Firings:       s.Firings,
		BySeverity:    s.BySeverity,
		Elapsed:       elapsed,
	}
}
