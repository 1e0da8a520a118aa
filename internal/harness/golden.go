package harness

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the serialized form compared against golden files.
// Detail maps serialize with sorted keys, so the output is stable
// across runs.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// RunWithGolden loads a scenario file, executes it against a fresh
// database under the test's temp dir, and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenarioPath string) *Result {
	t.Helper()

	scenario, err := LoadScenario(scenarioPath)
	if err != nil {
		t.Fatalf("load scenario %s: %v", scenarioPath, err)
	}

	dbPath := filepath.Join(t.TempDir(), "harness.db")
	result, err := Run(dbPath, scenario)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}

	AssertGolden(t, scenario.Name, result)

	if !result.Pass {
		for _, msg := range result.Errors {
			t.Errorf("scenario %s: %s", scenario.Name, msg)
		}
	}
	return result
}

// AssertGolden compares a result's trace against the named golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
}
