package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/engine"
	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/store"
	"github.com/roach88/vidindex/internal/testutil"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	l := testutil.NewLedger()
	eng := engine.New(st, engine.WithLogger(discardLogger()))
	for _, ev := range []ir.Event{
		l.VideoAdded(1, testutil.Addr(1), "first"),
		l.Tipped(1, 1, "500", testutil.Addr(2)),
		l.Tipped(2, 1, "700", testutil.Addr(3)),
	} {
		_, err := eng.Apply(context.Background(), ev)
		require.NoError(t, err)
	}
	return st
}

func intPtr(n int) *int { return &n }

func TestAssertEntity(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	pass := Assertion{Type: AssertEntity, Entity: "video", ID: "1",
		Expect: map[string]any{"title": "first", "tipAmount": "1200", "removed": false}}
	assert.Empty(t, EvaluateAssertions(ctx, st, NewResult(), []Assertion{pass}))

	wrong := Assertion{Type: AssertEntity, Entity: "video", ID: "1",
		Expect: map[string]any{"tipAmount": "1"}}
	errs := EvaluateAssertions(ctx, st, NewResult(), []Assertion{wrong})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `field "tipAmount" = "1"`)
	assert.Contains(t, errs[0], `Actual: "1200"`)

	missing := Assertion{Type: AssertEntity, Entity: "video", ID: "2",
		Expect: map[string]any{"title": "x"}}
	errs = EvaluateAssertions(ctx, st, NewResult(), []Assertion{missing})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "not found")

	noField := Assertion{Type: AssertEntity, Entity: "video", ID: "1",
		Expect: map[string]any{"views": 3}}
	errs = EvaluateAssertions(ctx, st, NewResult(), []Assertion{noField})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `field "views"`)
}

func TestAssertAbsent(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	assert.Empty(t, EvaluateAssertions(ctx, st, NewResult(),
		[]Assertion{{Type: AssertAbsent, Entity: "tip", ID: "1-9"}}))

	errs := EvaluateAssertions(ctx, st, NewResult(),
		[]Assertion{{Type: AssertAbsent, Entity: "tip", ID: "1-1"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "entity exists")
}

func TestAssertCount(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	assert.Empty(t, EvaluateAssertions(ctx, st, NewResult(), []Assertion{
		{Type: AssertCount, Entity: "tip", Count: intPtr(2)},
		{Type: AssertCount, Entity: "tip", Where: map[string]any{"amount_gt": "600"}, Count: intPtr(1)},
		{Type: AssertCount, Entity: "channel", Count: intPtr(3)},
	}))

	errs := EvaluateAssertions(ctx, st, NewResult(), []Assertion{
		{Type: AssertCount, Entity: "tip", Where: map[string]any{"video": "1"}, Count: intPtr(5)},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "5 tip entities where video=1")

	errs = EvaluateAssertions(ctx, st, NewResult(), []Assertion{
		{Type: AssertCount, Entity: "tip", Where: map[string]any{"amount_between": "1"}, Count: intPtr(0)},
	})
	require.Len(t, errs, 1)
}

func TestAssertError(t *testing.T) {
	a := Assertion{Type: AssertError, Event: intPtr(1), Code: "OUT_OF_ORDER"}

	errs := EvaluateAssertions(context.Background(), nil, NewResult(), []Assertion{a})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "every event applied")

	failed := NewResult()
	failed.Failure = &Failure{Event: 1, Code: "OUT_OF_ORDER"}
	assert.Empty(t, EvaluateAssertions(context.Background(), nil, failed, []Assertion{a}))

	failed.Failure = &Failure{Event: 2, Code: "SCHEMA_VIOLATION"}
	errs = EvaluateAssertions(context.Background(), nil, failed, []Assertion{a})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "event 2 failed with SCHEMA_VIOLATION")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(ir.IRInt(3), ir.IRInt(3)))
	assert.True(t, valuesEqual(ir.IRString("a"), ir.IRString("a")))
	assert.False(t, valuesEqual(ir.IRInt(3), ir.IRString("3")))
	assert.False(t, valuesEqual(ir.IRBool(true), ir.IRInt(1)))
}
