package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/distance/internal/ir"
)

// Paths returns the diagnostic log and event stream paths for a capture:
// the capture's extension replaced by ".log" and ".evt", next to the
// capture or in outDir.
func Paths(capture, outDir string) (logPath, evtPath string) {
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(capture)
	}
	name := filepath.Base(capture)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	base := filepath.Join(dir, name)
	return base + ".log", base + ".evt"
}

// File writes the diagnostic log as plain text and the event stream as
// JSON lines.
//
// The last line of a completed event stream has "type":"summary". An
// aborted or interrupted run never writes one.
type File struct {
	logPath string
	evtPath string

	logFile *os.File
	evtFile *os.File
	log     zerolog.Logger
	evt     zerolog.Logger
}

// NewFile returns a sink writing to the given paths. Nothing is touched
// until Open.
func NewFile(logPath, evtPath string) *File {
	return &File{logPath: logPath, evtPath: evtPath}
}

// LogPath returns the diagnostic log path.
func (f *File) LogPath() string { return f.logPath }

// EventPath returns the event stream path.
func (f *File) EventPath() string { return f.evtPath }

// Open removes output left by an earlier run and creates both files.
func (f *File) Open(info RunInfo) error {
	for _, p := range []string{f.logPath, f.evtPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}

	var err error
	if f.logFile, err = os.Create(f.logPath); err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if f.evtFile, err = os.Create(f.evtPath); err != nil {
		f.logFile.Close()
		return fmt.Errorf("open events: %w", err)
	}

	f.log = zerolog.New(zerolog.ConsoleWriter{
		Out:        f.logFile,
		NoColor:    true,
		PartsOrder: []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
	})
	f.evt = zerolog.New(f.evtFile)

	f.log.Info().
		Str("run", info.RunID).
		Str("capture", info.Capture).
		Strs("profiles", info.Profiles).
		Msg("run started")
	f.evt.Log().
		Str("type", "run").
		Str("run_id", info.RunID).
		Str("capture", info.Capture).
		Strs("profiles", info.Profiles).
		Str("schema_hash", info.SchemaHash).
		Str("engine_version", info.EngineVersion).
		Msg("run started")
	return nil
}

// Log appends one diagnostic line.
func (f *File) Log(r Record) error {
	if f.logFile == nil {
		return errNotOpen
	}
	f.log.WithLevel(zerologLevel(r.Level)).
		Str("rule", r.Rule).
		Int64("seq", r.Seq).
		Msg(r.Message)
	return nil
}

// Event appends one event line.
func (f *File) Event(e Event) error {
	if f.evtFile == nil {
		return errNotOpen
	}
	fields := zerolog.Dict()
	for _, fd := range e.Fields {
		fields.Str(fd.Source, fd.Value)
	}
	f.evt.Log().
		Int64("seq", e.Seq).
		Str("type", "event").
		Str("name", e.Name).
		Str("severity", string(e.Severity)).
		Str("rule", e.Rule).
		Str("key", e.Key).
		Dict("fields", fields).
		Msg(e.Message)
	return nil
}

// Finish writes the completion marker to both files and closes them.
func (f *File) Finish(s Summary) error {
	if f.evtFile == nil {
		return errNotOpen
	}

	counts := zerolog.Dict()
	severities := make([]string, 0, len(s.BySeverity))
	for sev := range s.BySeverity {
		severities = append(severities, string(sev))
	}
	sort.Strings(severities)
	for _, sev := range severities {
		counts.Int64(sev, s.BySeverity[ir.Severity(sev)])
	}

	f.log.Info().
		Int64("facts", s.FactsIngested).
		Int64("firings", s.Firings).
		Int64("events", s.Events).
		Msg("run complete")
	f.evt.Log().
		Str("type", "summary").
		Str("run_id", s.RunID).
		Int64("rows_read", s.RowsRead).
		Int64("rows_skipped", s.RowsSkipped).
		Int64("facts_ingested", s.FactsIngested).
		Int64("duplicates", s.Duplicates).
		Int64("facts_derived", s.FactsDerived).
		Int64("events", s.Events).
		Int64("firings", s.Firings).
		Dict("by_severity", counts).
		Dur("elapsed", s.Elapsed).
		Msg("run complete")
	return f.close()
}

// Abort records the cause in the log and closes both files without a
// completion marker.
func (f *File) Abort(cause error) error {
	if f.logFile == nil {
		return nil
	}
	f.log.Error().Err(cause).Msg("run aborted")
	return f.close()
}

func (f *File) close() error {
	err := errors.Join(f.logFile.Close(), f.evtFile.Close())
	f.logFile, f.evtFile = nil, nil
	return err
}

var errNotOpen = errors.New("sink: not open")

func zerologLevel(s ir.Severity) zerolog.Level {
	switch s {
	case ir.SeverityError:
		return zerolog.ErrorLevel
	case ir.SeverityWarning:
		return zerolog.WarnLevel
	case ir.SeverityInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.NoLevel
	}
}
