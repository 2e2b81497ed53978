package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
start: 2024-03-04T09:00:00Z
flow:
  - invoke: State.enter
    args:
      situation: Planning
    wait: 5m
assertions:
  - type: trace_contains
    action: State.enter
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Len(t, scenario.Flow, 1)
	assert.Len(t, scenario.Assertions, 1)
	assert.Equal(t, "State.enter", scenario.Flow[0].Invoke)
	assert.Equal(t, "Planning", scenario.Flow[0].Args["situation"])
	assert.Equal(t, "5m", scenario.Flow[0].Wait)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", `
name: typo
description: "assertion instead of assertions"
flow:
  - invoke: Cycle.create
    args: {}
assertion:
  - type: trace_count
    action: Cycle.create
    count: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_ResolvesPolicyRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yaml"), []byte("edges: {}\n"), 0o644))
	path := writeScenario(t, dir, "s.yaml", `
name: relative_policy
description: "policy next to the scenario"
policy: policy.yaml
flow:
  - invoke: Cycle.create
    args: {}
assertions:
  - type: trace_count
    action: Cycle.create
    count: 1
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "policy.yaml"), scenario.Policy)
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Flow:        []FlowStep{{Invoke: "Cycle.create", Args: map[string]any{}}},
			Assertions:  []Assertion{{Type: AssertTraceCount, Action: "Cycle.create", Count: 1}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no flow", func(s *Scenario) { s.Flow = nil }, "flow list is required"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"bad start", func(s *Scenario) { s.Start = "monday" }, "start"},
		{"bad timezone", func(s *Scenario) { s.Timezone = "Mars/Olympus" }, "timezone"},
		{"missing policy", func(s *Scenario) { s.Policy = "/nonexistent/policy.yaml" }, "policy file not found"},
		{"setup without action", func(s *Scenario) { s.Setup = []ActionStep{{Args: map[string]any{}}} }, "setup[0]: action is required"},
		{"setup without args", func(s *Scenario) { s.Setup = []ActionStep{{Action: "Cycle.create"}} }, "setup[0]: args is required"},
		{"flow without invoke", func(s *Scenario) { s.Flow[0].Invoke = "" }, "flow[0]: invoke is required"},
		{"flow without args", func(s *Scenario) { s.Flow[0].Args = nil }, "flow[0]: args is required"},
		{"bad wait", func(s *Scenario) { s.Flow[0].Wait = "soon" }, "flow[0]: wait"},
		{"negative wait", func(s *Scenario) { s.Flow[0].Wait = "-1m" }, "must not be negative"},
		{"expect without case", func(s *Scenario) { s.Flow[0].Expect = &ExpectClause{} }, "flow[0].expect: case is required"},
		{"assertion without type", func(s *Scenario) { s.Assertions[0].Type = "" }, "type is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions[0].Type = "magic" }, "unknown assertion type"},
		{"trace_contains without action", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertTraceContains}
		}, "action is required for trace_contains"},
		{"trace_order without actions", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertTraceOrder}
		}, "actions list is required"},
		{"final_state without table", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertFinalState, Expect: map[string]any{"a": 1}}
		}, "table is required for final_state"},
		{"final_state without expect", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertFinalState, Table: "cycles"}
		}, "expect is required"},
		{"row_count without table", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertRowCount}
		}, "table is required for row_count"},
		{"unknown stats view", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertStats, Stats: "weekly"}
		}, "stats must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)
	assert.Equal(t, "cycles_and_context", scenarios[0].Name)
	assert.Equal(t, "planning_day", scenarios[1].Name)
	assert.Equal(t, "strict_policy", scenarios[2].Name)

	_, err = LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no scenarios")
}
