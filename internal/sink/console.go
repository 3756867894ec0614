package sink

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/roach88/distance/internal/ir"
)

var (
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
)

// Console prints events, and optionally log records, as they happen.
type Console struct {
	w        io.Writer
	showLogs bool
	minLevel ir.Severity
}

// NewConsole returns a console sink. Log records are printed only when
// showLogs is set; events at or above minLevel are always printed.
func NewConsole(w io.Writer, showLogs bool, minLevel ir.Severity) *Console {
	if minLevel == "" {
		minLevel = ir.SeverityInfo
	}
	return &Console{w: w, showLogs: showLogs, minLevel: minLevel}
}

func (c *Console) Open(info RunInfo) error {
	_, err := fmt.Fprintf(c.w, "Analyzing %s (run %s)\n", info.Capture, info.RunID)
	return err
}

func (c *Console) Log(r Record) error {
	if !c.showLogs || r.Level.Rank() < c.minLevel.Rank() {
		return nil
	}
	_, err := paint(r.Level).Fprintf(c.w, "  %-7s %s: %s\n", r.Level, r.Rule, r.Message)
	return err
}

func (c *Console) Event(e Event) error {
	if e.Severity.Rank() < c.minLevel.Rank() {
		return nil
	}
	_, err := paint(e.Severity).Fprintf(c.w, "%-7s %s: %s\n", e.Severity, e.Name, e.Message)
	return err
}

func (c *Console) Finish(s Summary) error {
	sevs := make([]ir.Severity, 0, len(s.BySeverity))
	for sev := range s.BySeverity {
		sevs = append(sevs, sev)
	}
	sort.Slice(sevs, func(i, j int) bool { return sevs[i].Rank() > sevs[j].Rank() })

	if _, err := green.Fprintf(c.w, "✓ %d facts, %d firings, %d events in %s\n",
		s.FactsIngested, s.Firings, s.Events, s.Elapsed); err != nil {
		return err
	}
	for _, sev := range sevs {
		if _, err := paint(sev).Fprintf(c.w, "  %-7s %d\n", sev, s.BySeverity[sev]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) Abort(cause error) error {
	_, err := red.Fprintf(c.w, "✗ run aborted: %v\n", cause)
	return err
}

func paint(s ir.Severity) *color.Color {
	switch s {
	case ir.SeverityError:
		return red
	case ir.SeverityWarning:
		return yellow
	case ir.SeverityInfo:
		return cyan
	default:
		return color.New(color.Reset)
	}
}
