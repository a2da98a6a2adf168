package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
)

func runFile(t *testing.T, name string) *Result {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	return result
}

func TestRun_Scenarios(t *testing.T) {
	names := []string{
		"video_lifecycle",
		"like_toggle",
		"stale_references",
		"duplicate_delivery",
		"position_conflict",
		"out_of_order",
		"report_bad_reason",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			result := runFile(t, name)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.NotEmpty(t, result.Digest)
		})
	}
}

func TestRun_RecordsFailure(t *testing.T) {
	result := runFile(t, "position_conflict")

	require.NotNil(t, result.Failure)
	assert.Equal(t, 2, result.Failure.Event)
	assert.Equal(t, "POSITION_CONFLICT", result.Failure.Code)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, ir.Position{Block: 2}, result.Checkpoint)
}

func TestRun_DuplicatesCountAsApplied(t *testing.T) {
	result := runFile(t, "duplicate_delivery")

	assert.Nil(t, result.Failure)
	assert.Equal(t, 5, result.Applied)
	assert.Equal(t, ir.Position{Block: 3}, result.Checkpoint)
}

func TestRun_UnexpectedFailureFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: unexpected
description: "second event is behind the first"
events:
  - kind: VideoRemoved
    position: { block: 5, tx: 0, log: 0 }
    timestamp: 1700000000
    payload: { video_id: 1 }
  - kind: VideoRemoved
    position: { block: 4, tx: 0, log: 0 }
    timestamp: 1700000000
    payload: { video_id: 1 }
assertions:
  - { type: absent, entity: video, id: "1" }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "event 1 failed")
	assert.Contains(t, result.Errors[0], "OUT_OF_ORDER")
}

func TestRun_MalformedEventIsSchemaViolation(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: malformed
description: "unknown payload field"
events:
  - kind: VideoRemoved
    position: { block: 1, tx: 0, log: 0 }
    timestamp: 1700000000
    payload: { video_id: 1, reason: "gone" }
assertions:
  - { type: error, event: 0, code: SCHEMA_VIOLATION }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, ir.Position{}, result.Checkpoint)
}

func TestRun_IsDeterministic(t *testing.T) {
	first := runFile(t, "video_lifecycle")
	second := runFile(t, "video_lifecycle")

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.Snapshot, second.Snapshot)
}
