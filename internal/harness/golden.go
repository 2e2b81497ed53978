package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cyclelog/internal/model"
)

// Report renders a result as the text stored in golden files: the trace
// with canonical JSON arguments and results, then every statistics view.
// Identical scenarios produce byte-identical reports.
func Report(scenarioName string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)

	buf.WriteString("trace:\n")
	for _, event := range result.Trace {
		switch event.Type {
		case EventInvocation:
			data, err := canonical(event.Args)
			if err != nil {
				return nil, fmt.Errorf("seq %d args: %w", event.Seq, err)
			}
			fmt.Fprintf(&buf, "  %d invoke %s %s\n", event.Seq, event.Action, data)
		case EventCompletion:
			fmt.Fprintf(&buf, "  %d %s", event.Seq, event.OutputCase)
			if len(event.Result) > 0 {
				data, err := canonical(event.Result)
				if err != nil {
					return nil, fmt.Errorf("seq %d result: %w", event.Seq, err)
				}
				fmt.Fprintf(&buf, " %s", data)
			}
			buf.WriteByte('\n')
		}
	}

	buf.WriteString("daily:\n")
	for _, d := range result.Stats.Daily {
		fmt.Fprintf(&buf, "  %s conscious=%dm unconscious=%dm\n", d.Date, d.ConsciousMinutes, d.UnconsciousMinutes)
	}
	buf.WriteString("states:\n")
	for _, s := range result.Stats.States {
		fmt.Fprintf(&buf, "  %s count=%d total=%dm avg=%dm min=%dm max=%dm\n",
			s.Situation, s.Count, s.TotalMinutes, s.AverageMinutes, s.MinMinutes, s.MaxMinutes)
	}
	buf.WriteString("daily_states:\n")
	for _, d := range result.Stats.DailyStates {
		fmt.Fprintf(&buf, "  %s %s %dm\n", d.Date, d.Situation, d.Minutes)
	}
	return buf.Bytes(), nil
}

// canonical marshals m as canonical JSON, leaving out null values.
func canonical(m map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(m))
	for k, v := range m {
		if v != nil {
			clean[k] = v
		}
	}
	return model.MarshalCanonical(clean)
}

// RunWithGolden executes a scenario and compares its report against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	report, err := Report(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, report)
	return nil
}
