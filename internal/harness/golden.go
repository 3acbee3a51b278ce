package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/simphotonics/lockattr/internal/ir"
)

// TraceSnapshot captures a scenario trace for golden comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// MarshalCanonical serializes the snapshot as canonical JSON followed by a
// newline.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	trace := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		trace[i] = e.canonical()
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Snapshot builds the golden snapshot for a result.
func Snapshot(name string, result *Result) *TraceSnapshot {
	return &TraceSnapshot{ScenarioName: name, Trace: result.Trace}
}

// RunWithGolden executes a scenario and compares its trace with
// testdata/golden/<name>.golden.
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

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
