package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/cyclelog/internal/backend"
	"github.com/roach88/cyclelog/internal/engine"
	"github.com/roach88/cyclelog/internal/policy"
	"github.com/roach88/cyclelog/internal/store"
	"github.com/roach88/cyclelog/internal/testutil"
)

// Harness executes one scenario against a real engine.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	logger *slog.Logger
	seq    int64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine in a temporary directory, saving
// to a local blob, with a frozen deterministic clock that only moves when a
// step asks it to wait. The returned error reports a broken scenario or
// environment; failed expectations land in Result.Errors.
//
// Execution flow:
// 1. Open a fresh engine with the scenario's clock, timezone and policy
// 2. Execute setup steps, which must succeed
// 3. Execute flow steps, checking each expect clause
// 4. Read the statistics views
// 5. Evaluate assertions against the trace, rows and statistics
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "cyclelog-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	opts, clock, err := scenarioOptions(scenario)
	if err != nil {
		return nil, err
	}

	sel := backend.NewSelector(nil, backend.NewLocalBlob(filepath.Join(dir, "cyclelog.b64")), nil)
	workPath := filepath.Join(dir, "work.db")
	eng, err := engine.Open(ctx, workPath, sel, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	defer eng.Close()

	h := &Harness{
		engine: eng,
		clock:  clock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}
	if result.Stats, err = h.readStats(ctx); err != nil {
		return nil, fmt.Errorf("failed to read statistics: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+workPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open work database: %w", err)
	}
	defer db.Close()

	actx := &AssertionContext{DB: db, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// scenarioOptions builds the store options and clock a scenario asks for.
func scenarioOptions(s *Scenario) ([]store.Option, *testutil.DeterministicClock, error) {
	var start time.Time
	if s.Start != "" {
		var err error
		if start, err = time.Parse(time.RFC3339, s.Start); err != nil {
			return nil, nil, fmt.Errorf("invalid start: %w", err)
		}
	}
	clock := testutil.NewDeterministicClock(start)

	loc := time.UTC
	if s.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(s.Timezone); err != nil {
			return nil, nil, fmt.Errorf("invalid timezone: %w", err)
		}
	}

	p := policy.Default()
	if s.Policy != "" {
		var err error
		if p, err = policy.Load(s.Policy); err != nil {
			return nil, nil, fmt.Errorf("failed to load policy: %w", err)
		}
	}
	if s.Strict {
		p = p.WithStrict(true)
	}

	return []store.Option{
		store.WithClock(clock.Now),
		store.WithLocation(loc),
		store.WithPolicy(p),
	}, clock, nil
}

// executeSetup runs all setup steps. Any failure aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		outputCase, _, err := h.invoke(ctx, step.Action, step.Args, step.Wait, result)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		if outputCase != CaseSuccess {
			return fmt.Errorf("setup step %d: %s returned %s", i, step.Action, outputCase)
		}
		h.logger.Info("setup step completed", "step", i, "action", step.Action)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses. A step
// without an expect clause must succeed.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		outputCase, res, err := h.invoke(ctx, step.Invoke, step.Args, step.Wait, result)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		expected := &ExpectClause{Case: CaseSuccess}
		if step.Expect != nil {
			expected = step.Expect
		}
		if outputCase != expected.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s",
				i, step.Invoke, expected.Case, outputCase))
			continue
		}
		if !matchArgs(res, expected.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v",
				i, step.Invoke, expected.Result, res))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"action", step.Invoke,
			"output_case", outputCase,
		)
	}
	return nil
}

// invoke runs one action and records its invocation and completion. The
// returned error is reserved for unusable steps: unknown actions and bad
// arguments.
func (h *Harness) invoke(ctx context.Context, action string, stepArgs map[string]any, wait string, result *Result) (string, map[string]any, error) {
	fn, ok := actions[action]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", action)
	}
	if wait != "" {
		d, err := time.ParseDuration(wait)
		if err != nil {
			return "", nil, fmt.Errorf("%s: invalid wait: %w", action, err)
		}
		h.clock.Advance(d)
	}

	h.seq++
	result.AddInvocationTrace(action, stepArgs, h.seq)

	a := &args{values: stepArgs}
	res, err := fn(ctx, h.engine, a)
	if a.err != nil {
		return "", nil, fmt.Errorf("%s: %w", action, a.err)
	}

	outputCase := CaseSuccess
	if err != nil {
		outputCase = errorCase(err)
		res = nil
	}
	h.seq++
	result.AddCompletionTrace(action, outputCase, res, h.seq)
	return outputCase, res, nil
}

// errorCase names an engine error as a completion output case.
func errorCase(err error) string {
	var se *store.Error
	switch {
	case errors.As(err, &se):
		return string(se.Code)
	case engine.IsPersistError(err):
		return "PERSIST_FAILURE"
	default:
		return "ERROR"
	}
}

// readStats collects every statistics view over all dates.
func (h *Harness) readStats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
		all   store.DateRange
	)
	if stats.Daily, err = h.engine.DailyStatistics(ctx, all); err != nil {
		return Stats{}, err
	}
	if stats.States, err = h.engine.StateTimeStatistics(ctx, all, nil); err != nil {
		return Stats{}, err
	}
	if stats.DailyStates, err = h.engine.DailyStateStatistics(ctx, all); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
