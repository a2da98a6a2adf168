package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/queryir"
	"github.com/roach88/vidindex/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(ctx context.Context, st *store.Store, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEntity:
			err = assertEntity(ctx, st, assertion)
		case AssertAbsent:
			err = assertAbsent(ctx, st, assertion)
		case AssertCount:
			err = assertCount(ctx, st, assertion)
		case AssertError:
			err = assertError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertEntity checks that the entity exists and that every expected field
// matches (subset semantics).
func assertEntity(ctx context.Context, st *store.Store, a Assertion) error {
	obj, ok, err := st.Get(ctx, a.Entity, a.ID)
	if err != nil {
		return fmt.Errorf("get %s %s: %w", a.Entity, a.ID, err)
	}
	if !ok {
		return &AssertionError{
			Type:     AssertEntity,
			Expected: fmt.Sprintf("%s %q to exist", a.Entity, a.ID),
			Actual:   "not found",
		}
	}

	for _, key := range sortedKeys(a.Expect) {
		actual, exists := obj[key]
		if !exists {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("field %q on %s", key, a.Entity),
				Actual:   fmt.Sprintf("fields are %v", obj.SortedKeys()),
			}
		}
		expected, err := ir.FromAny(a.Expect[key])
		if err != nil {
			return fmt.Errorf("%s %s: expect %q: %w", a.Entity, a.ID, key, err)
		}
		if !valuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("%s %q field %q = %s", a.Entity, a.ID, key, describe(expected)),
				Actual:   describe(actual),
			}
		}
	}
	return nil
}

func assertAbsent(ctx context.Context, st *store.Store, a Assertion) error {
	_, ok, err := st.Get(ctx, a.Entity, a.ID)
	if err != nil {
		return fmt.Errorf("get %s %s: %w", a.Entity, a.ID, err)
	}
	if ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no %s %q", a.Entity, a.ID),
			Actual:   "entity exists",
		}
	}
	return nil
}

func assertCount(ctx context.Context, st *store.Store, a Assertion) error {
	pred, err := queryir.ParseWhere(a.Where)
	if err != nil {
		return fmt.Errorf("count %s: %w", a.Entity, err)
	}
	n, err := st.Count(ctx, queryir.Query{Entity: a.Entity, Where: pred})
	if err != nil {
		return fmt.Errorf("count %s: %w", a.Entity, err)
	}
	if n != int64(*a.Count) {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s entities where %s", *a.Count, a.Entity, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func assertError(result *Result, a Assertion) error {
	want := fmt.Sprintf("event %d to fail with %s", *a.Event, a.Code)
	if result.Failure == nil {
		return &AssertionError{Type: AssertError, Expected: want, Actual: "every event applied"}
	}
	if result.Failure.Event != *a.Event || result.Failure.Code != a.Code {
		return &AssertionError{
			Type:     AssertError,
			Expected: want,
			Actual:   fmt.Sprintf("event %d failed with %s", result.Failure.Event, result.Failure.Code),
		}
	}
	return nil
}

// valuesEqual compares through canonical JSON so that IRInt(1) from YAML
// and IRInt(1) from SQLite compare equal regardless of map identity.
func valuesEqual(expected, actual ir.IRValue) bool {
	e, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	return string(e) == string(a)
}

func describe(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatWhere creates a human-readable description of a where filter.
func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}
