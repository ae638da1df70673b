package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/qchain/internal/ir"
)

// Snapshot captures what every case of a scenario compiled to and
// produced. It is serialized as canonical JSON for golden comparison.
type Snapshot struct {
	ScenarioName string
	Cases        []*CaseResult
}

// toCanonicalMap converts a Snapshot to a map for canonical JSON
// serialization. Fingerprints are left out so golden files survive
// changes to the fingerprint projection.
func (s *Snapshot) toCanonicalMap() (map[string]any, error) {
	cases := make([]any, len(s.Cases))
	for i, c := range s.Cases {
		m := map[string]any{
			"name":  c.Name,
			"chain": c.Chain,
		}
		if c.Model != "" {
			m["model"] = c.Model
		}
		if len(c.Warnings) > 0 {
			m["warnings"] = c.Warnings
		}
		if c.SQL != "" {
			m["sql"] = c.SQL
		}
		if c.Params != nil {
			params := make(ir.Array, len(c.Params))
			for j, p := range c.Params {
				v, err := ir.FromGo(p)
				if err != nil {
					return nil, err
				}
				params[j] = v
			}
			m["params"] = params
		}
		if c.Value != nil {
			m["result"] = c.Value
		}
		if c.ErrorCode != "" {
			m["error_code"] = c.ErrorCode
		}
		cases[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"cases":         cases,
	}, nil
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	m, err := s.toCanonicalMap()
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(m)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{ScenarioName: scenarioName, Cases: result.Cases}
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
