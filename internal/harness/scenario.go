package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session against a fresh engine: setup steps, a
// flow of checked steps, and assertions over the trace, the stored rows and
// the resulting statistics.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the clock's first instant (RFC 3339). Defaults to
	// testutil.DefaultEpoch.
	Start string `yaml:"start,omitempty"`

	// Timezone is the IANA zone statistics group dates in. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Policy is a YAML or CUE transition policy file, relative to the
	// scenario file. The built-in workflow is used when empty.
	Policy string `yaml:"policy,omitempty"`

	// Strict rejects transitions the policy does not list.
	Strict bool `yaml:"strict,omitempty"`

	// Setup steps establish initial state and must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow steps are executed in order and checked against their expect
	// clauses.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace, rows and statistics.
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep is a setup invocation.
type ActionStep struct {
	// Action names the engine call, e.g. "Cycle.create".
	Action string `yaml:"action"`

	// Args contains the action arguments as a map.
	Args map[string]any `yaml:"args"`

	// Wait advances the clock before the step runs (Go duration syntax).
	Wait string `yaml:"wait,omitempty"`
}

// FlowStep is a checked invocation.
type FlowStep struct {
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args"`
	Wait   string         `yaml:"wait,omitempty"`

	// Expect specifies the expected completion. When nil the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is "Success" or an error code such as "CONFLICT".
	Case string `yaml:"case"`

	// Result is matched as a subset of the completion result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace, stored rows or statistics.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args are matched as a subset (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Table, Where and Expect select one row and check columns (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of invocations (trace_count) or rows
	// (row_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected invocation order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Stats names a statistics view: daily, states or daily_states.
	Stats string `yaml:"stats,omitempty"`

	// Rows are matched in order, each as a subset (stats).
	Rows []map[string]any `yaml:"rows,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
	AssertStats         = "stats"
)

// Statistics view names.
const (
	StatsDaily       = "daily"
	StatsStates      = "states"
	StatsDailyStates = "daily_states"
)

// LoadScenario reads and parses a scenario YAML file. A relative policy
// path resolves against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative policy path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Policy != "" && !filepath.IsAbs(scenario.Policy) && basePath != "" {
		scenario.Policy = filepath.Join(basePath, scenario.Policy)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, ordered by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if s.Policy != "" {
		if _, err := os.Stat(s.Policy); os.IsNotExist(err) {
			return fmt.Errorf("policy file not found: %s", s.Policy)
		}
	}

	for i, step := range s.Setup {
		if step.Action == "" {
			return fmt.Errorf("setup[%d]: action is required", i)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required (use empty map if no args)", i)
		}
		if err := validateWait(step.Wait); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if err := validateWait(step.Wait); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateWait(wait string) error {
	if wait == "" {
		return nil
	}
	d, err := time.ParseDuration(wait)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("wait must not be negative: %s", wait)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertStats:
		switch a.Stats {
		case StatsDaily, StatsStates, StatsDailyStates:
		default:
			return fmt.Errorf("assertions[%d]: stats must be one of %s, %s, %s", index, StatsDaily, StatsStates, StatsDailyStates)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
