package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/model"
)

// Snapshot encodes a scenario's trace as canonical JSON. The bytes are
// stable across runs, which is what golden files compare.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(scenarioName),
		"trace":         canonicalTrace(result.Trace),
	})
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, types []model.EntityType) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, types)
	if err != nil {
		return nil, err
	}

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return result, nil
}
