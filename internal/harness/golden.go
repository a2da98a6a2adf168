package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vidindex/internal/ir"
)

// GoldenSnapshot renders the parts of a result that golden files pin down:
// the final entities, the checkpoint and the failing event, as canonical
// JSON.
func GoldenSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snap := ir.IRObject{
		"scenario": ir.IRString(scenarioName),
		"applied":  ir.IRInt(int64(result.Applied)),
		"checkpoint": ir.IRObject{
			"block": ir.IRInt(int64(result.Checkpoint.Block)),
			"tx":    ir.IRInt(int64(result.Checkpoint.TxIndex)),
			"log":   ir.IRInt(int64(result.Checkpoint.LogIndex)),
		},
		"entities": result.Snapshot,
	}
	if result.Failure != nil {
		snap["failure"] = ir.IRObject{
			"event": ir.IRInt(int64(result.Failure.Event)),
			"code":  ir.IRString(result.Failure.Code),
		}
	}
	return ir.MarshalCanonical(snap)
}

// RunWithGolden executes a scenario and compares its final state against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := GoldenSnapshot(scenarioName, result)
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
