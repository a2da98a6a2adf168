package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/vidindex/internal/engine"
	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/store"
	"github.com/roach88/vidindex/internal/testutil"
)

// RunID is recorded with every checkpoint a scenario run writes.
const RunID = "scenario-run"

// Harness holds the per-run store and engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a scenario in a fresh in-memory store and evaluates its
// assertions. The returned error is reserved for infrastructure failures;
// assertion failures are reported through Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		store: st,
		engine: engine.New(st,
			engine.WithLogger(logger),
			engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(RunID)),
		),
		logger: logger,
	}

	result := NewResult()
	if err := h.applyEvents(ctx, scenario.Events, result); err != nil {
		return nil, err
	}
	if err := h.capture(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(ctx, st, result, scenario.Assertions) {
		result.AddError(msg)
	}
	if result.Failure != nil && !expectsError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("event %d failed: %s", result.Failure.Event, result.Failure.Message))
	}
	return result, nil
}

// applyEvents applies events in order and stops at the first failure.
func (h *Harness) applyEvents(ctx context.Context, events []map[string]any, result *Result) error {
	for i, raw := range events {
		ev, err := decodeStep(raw)
		if err == nil {
			_, err = h.engine.Apply(ctx, ev)
		}
		if err != nil {
			code, ok := engine.CodeOf(err)
			if !ok {
				return fmt.Errorf("event %d: %w", i, err)
			}
			result.Failure = &Failure{Event: i, Code: string(code), Message: err.Error()}
			h.logger.Info("scenario event failed", "event", i, "code", code)
			return nil
		}
		result.Applied++
	}
	return nil
}

// capture records the checkpoint, snapshot and digest, and checks that two
// independent replays of the event log reach the same digest.
func (h *Harness) capture(ctx context.Context, result *Result) error {
	if cp, ok, err := h.store.Checkpoint(ctx); err != nil {
		return err
	} else if ok {
		result.Checkpoint = cp.Position
	}

	snap, err := h.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	result.Snapshot = snap

	report, err := engine.VerifyReplay(ctx, h.store, engine.WithLogger(h.logger))
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	result.Digest = report.LiveDigest
	if !report.Match() {
		result.AddError(fmt.Sprintf("replay is not deterministic: live %s, replays %s and %s",
			report.LiveDigest, report.ReplayDigests[0], report.ReplayDigests[1]))
	}
	return nil
}

// decodeStep turns a YAML event into an ir.Event through its JSON wire form.
func decodeStep(raw map[string]any) (ir.Event, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return ir.Event{}, engine.NewSchemaError(ir.Event{}, &ir.SchemaError{
			Field:  "event",
			Reason: err.Error(),
		})
	}
	ev, err := ir.DecodeEvent(data)
	if err != nil {
		return ev, engine.NewSchemaError(ev, err)
	}
	return ev, nil
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
