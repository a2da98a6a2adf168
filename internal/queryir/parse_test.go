package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
)

func TestParseWhereEmpty(t *testing.T) {
	p, err := ParseWhere(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestParseWhereSuffixes(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  Predicate
	}{
		{"title", "Sunset", Equals{Field: "title", Value: ir.IRString("Sunset")}},
		{"removed_not", true, Not{Predicate: Equals{Field: "removed", Value: ir.IRBool(true)}}},
		{"title_contains", "cat", Contains{Field: "title", Value: "cat"}},
		{"title_not_contains", "cat", Not{Predicate: Contains{Field: "title", Value: "cat"}}},
		{"reportCount_gt", 0, Compare{Field: "reportCount", Op: OpGT, Value: ir.IRInt(0)}},
		{"reportCount_gte", 1, Compare{Field: "reportCount", Op: OpGTE, Value: ir.IRInt(1)}},
		{"likeCount_lt", 5, Compare{Field: "likeCount", Op: OpLT, Value: ir.IRInt(5)}},
		{"likeCount_lte", 5, Compare{Field: "likeCount", Op: OpLTE, Value: ir.IRInt(5)}},
		{"category_in", []any{"Music", "Pets"}, In{Field: "category", Values: []ir.IRValue{ir.IRString("Music"), ir.IRString("Pets")}}},
		{"category_not_in", []any{"Music"}, Not{Predicate: In{Field: "category", Values: []ir.IRValue{ir.IRString("Music")}}}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p, err := ParseWhere(map[string]any{tt.key: tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestParseWhereSiblingsAreSortedAnd(t *testing.T) {
	p, err := ParseWhere(map[string]any{
		"removed":        false,
		"reportCount_gt": 0,
	})
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{
		Compare{Field: "reportCount", Op: OpGT, Value: ir.IRInt(0)},
		Equals{Field: "removed", Value: ir.IRBool(false)},
	}}, p)
}

func TestParseWhereNested(t *testing.T) {
	p, err := ParseWhere(map[string]any{
		"and": []any{
			map[string]any{"removed": false},
			map[string]any{"or": []any{
				map[string]any{"flagged": true},
				map[string]any{"reportCount_gt": 2},
			}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "removed", Value: ir.IRBool(false)},
		Or{Predicates: []Predicate{
			Equals{Field: "flagged", Value: ir.IRBool(true)},
			Compare{Field: "reportCount", Op: OpGT, Value: ir.IRInt(2)},
		}},
	}}, p)
}

func TestParseWhereErrors(t *testing.T) {
	tests := []struct {
		name  string
		where map[string]any
	}{
		{"and not a list", map[string]any{"and": map[string]any{}}},
		{"or item not a map", map[string]any{"or": []any{"x"}}},
		{"float literal", map[string]any{"likeCount": 1.5}},
		{"null literal", map[string]any{"title": nil}},
		{"object literal", map[string]any{"title": map[string]any{}}},
		{"contains non-string", map[string]any{"title_contains": 3}},
		{"in not a list", map[string]any{"id_in": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWhere(tt.where)
			assert.Error(t, err)
		})
	}
}
