package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/distance/internal/ingest"
	"github.com/roach88/distance/internal/profiles"
	"github.com/roach88/distance/internal/runner"
	"github.com/roach88/distance/internal/sink"
)

// Run executes a scenario against the built-in profiles.
//
// The returned error is reserved for scenarios that cannot run, such as
// an unknown profile or an aborted run. Failed assertions are reported
// through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithRegistry(context.Background(), profiles.Builtin(), scenario)
}

// RunWithRegistry executes a scenario against the profiles in reg.
func RunWithRegistry(ctx context.Context, reg *profiles.Registry, scenario *Scenario) (*Result, error) {
	set, err := reg.Load(scenario.Profiles...)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	policy := ingest.PolicySkip
	if scenario.Policy != "" {
		if policy, err = ingest.ParsePolicy(scenario.Policy); err != nil {
			return nil, err
		}
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	rec := sink.NewRecorder()
	res, err := runner.New(set, scenario.Source(), runner.Options{
		Capture:  scenario.Name,
		Profiles: scenario.Profiles,
		Policy:   policy,
	},
		runner.WithoutFiles(),
		runner.WithSinks(rec),
		runner.WithRunIDGenerator(fixedRunID(runID)),
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Events = rec.Events()
	result.Records = rec.Records()
	result.Firings = rec.Firings()
	result.Summary = res.Summary
	for typ, n := range res.Facts {
		result.Facts[typ] = n
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

type fixedRunID string

func (id fixedRunID) Generate() string { return string(id) }
