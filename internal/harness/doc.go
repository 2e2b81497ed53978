// Package harness runs scripted scenarios against a real engine.
//
// A scenario drives a fresh engine through setup and flow steps, with a
// frozen clock that only moves when a step waits, then checks the trace,
// the stored rows and the statistics views.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: planning_day
//	description: "Thirty minutes of planning is counted once"
//	start: 2024-03-04T09:00:00Z
//	timezone: UTC
//	policy: ../../policy/testdata/workflow.yaml
//	strict: true
//	setup:
//	  - action: Cycle.create
//	    args: {}
//	flow:
//	  - invoke: State.enter
//	    args: { situation: Planning }
//	  - invoke: State.exit
//	    args: { situation: Planning }
//	    wait: 30m
//	    expect:
//	      case: Success
//	      result: { closed: true }
//	assertions:
//	  - type: stats
//	    stats: states
//	    rows:
//	      - { situation: Planning, total_minutes: 30 }
//
// A step's output case is "Success" or the store error code it failed
// with, such as CONFLICT or INVALID_INPUT. Steps without an expect clause
// must succeed. ActionNames lists the invocable actions.
//
// # Assertion Types
//
//   - trace_contains: an invocation with matching args exists
//   - trace_order: actions first appear in the given order
//   - trace_count: an action was invoked exactly N times
//   - final_state: exactly one row matches where and holds expect
//   - row_count: N rows of a table match where
//   - stats: a statistics view (daily, states, daily_states) matches rows
//
// # Golden Files
//
// RunWithGolden renders the trace and every statistics view as text and
// compares it with testdata/golden/<name>.golden using goldie.
package harness
