package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_TraceShape(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "trace_shape",
		Description: "one invocation and one failure",
		Flow: []FlowStep{
			{Invoke: "Cycle.create", Args: map[string]any{}},
			{Invoke: "Cycle.complete", Args: map[string]any{"id": 7}, Expect: &ExpectClause{Case: "NOT_FOUND"}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Action: "Cycle.create", Count: 1}},
	})
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 4)

	assert.Equal(t, TraceEvent{Type: EventInvocation, Action: "Cycle.create", Args: map[string]any{}, Seq: 1}, result.Trace[0])
	assert.Equal(t, TraceEvent{Type: EventCompletion, Action: "Cycle.create", OutputCase: CaseSuccess, Result: map[string]any{"id": int64(1)}, Seq: 2}, result.Trace[1])
	assert.Equal(t, "NOT_FOUND", result.Trace[3].OutputCase)
	assert.Nil(t, result.Trace[3].Result)
}

func TestRun_ReportsUnexpectedCase(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "unexpected_case",
		Description: "completing an unknown cycle fails",
		Flow: []FlowStep{
			{Invoke: "Cycle.complete", Args: map[string]any{"id": 1}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Action: "Cycle.complete", Count: 1}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected case Success, got NOT_FOUND")
}

func TestRun_ReportsResultMismatch(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "result_mismatch",
		Description: "the first cycle has id 1",
		Flow: []FlowStep{
			{Invoke: "Cycle.create", Args: map[string]any{}, Expect: &ExpectClause{Case: CaseSuccess, Result: map[string]any{"id": 2}}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Action: "Cycle.create", Count: 1}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected result")
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "failed_assertion",
		Description: "two cycles, but one is asserted",
		Flow: []FlowStep{
			{Invoke: "Cycle.create", Args: map[string]any{}},
			{Invoke: "Cycle.create", Args: map[string]any{}},
		},
		Assertions: []Assertion{
			{Type: AssertRowCount, Table: "cycles", Count: 1},
			{Type: AssertFinalState, Table: "cycles", Where: map[string]any{"id": 1}, Expect: map[string]any{"status": "completed"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "row_count")
}

func TestRun_Errors(t *testing.T) {
	base := func(steps ...FlowStep) *Scenario {
		return &Scenario{
			Name:        "errors",
			Description: "broken scenarios",
			Flow:        steps,
			Assertions:  []Assertion{{Type: AssertTraceCount, Action: "x", Count: 0}},
		}
	}

	tests := []struct {
		name     string
		scenario *Scenario
		wantErr  string
	}{
		{"unknown action", base(FlowStep{Invoke: "Cycle.explode", Args: map[string]any{}}), `unknown action "Cycle.explode"`},
		{"missing argument", base(FlowStep{Invoke: "Answer.edit", Args: map[string]any{"id": 1}}), `missing argument "text"`},
		{"mistyped argument", base(FlowStep{Invoke: "Cycle.delete", Args: map[string]any{"id": "one"}}), `argument "id" must be an integer`},
		{"failing setup", &Scenario{
			Name:        "setup",
			Description: "setup must succeed",
			Setup:       []ActionStep{{Action: "Cycle.complete", Args: map[string]any{"id": 3}}},
			Flow:        []FlowStep{{Invoke: "Cycle.create", Args: map[string]any{}}},
		}, "setup step 0: Cycle.complete returned NOT_FOUND"},
		{"bad policy", &Scenario{
			Name:        "policy",
			Description: "policy must load",
			Policy:      "testdata/invalid/policy.yaml",
			Flow:        []FlowStep{{Invoke: "Cycle.create", Args: map[string]any{}}},
		}, "failed to load policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_StrictPolicyFromScenario(t *testing.T) {
	steps := []FlowStep{
		{Invoke: "State.enter", Args: map[string]any{"situation": "Planning"}},
		{Invoke: "State.enter", Args: map[string]any{"situation": "Reflecting"}},
	}
	lenient := &Scenario{
		Name:        "lenient",
		Description: "the built-in policy only logs",
		Flow:        steps,
		Assertions:  []Assertion{{Type: AssertRowCount, Table: "state_transitions", Count: 2}},
	}
	result, err := Run(lenient)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	strict := *lenient
	strict.Strict = true
	result, err = Run(&strict)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "got INVALID_INPUT")
}

func TestActionNames(t *testing.T) {
	names := ActionNames()
	assert.Contains(t, names, "Answer.record")
	assert.Contains(t, names, "Rest.end")
	assert.IsIncreasing(t, names)
}
