package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
)

func TestValidateAcceptsWellFormedQuery(t *testing.T) {
	schema, err := Validate(Query{
		Entity: "videos",
		Where: And{Predicates: []Predicate{
			Compare{Field: "tipAmount", Op: OpGT, Value: ir.IRString("1000")},
			Compare{Field: "tipAmount", Op: OpLT, Value: ir.IRInt(5000)},
			Contains{Field: "title", Value: "cat"},
			Not{Predicate: Equals{Field: "removed", Value: ir.IRBool(true)}},
		}},
		OrderBy:        "reportCount",
		OrderDirection: Desc,
		First:          MaxFirst,
		Skip:           10,
	})
	require.NoError(t, err)
	assert.Equal(t, "video", schema.Name)
}

func TestValidateUnknownEntity(t *testing.T) {
	_, err := Validate(Query{Entity: "playlist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown entity "playlist"`)
}

func TestValidateCollectsProblems(t *testing.T) {
	_, err := Validate(Query{
		Entity: "video",
		Where: Or{Predicates: []Predicate{
			Equals{Field: "nope", Value: ir.IRInt(1)},
			Equals{Field: "likeCount", Value: ir.IRString("1")},
			Contains{Field: "likeCount", Value: "1"},
			Compare{Field: "flagged", Op: OpGT, Value: ir.IRBool(true)},
			Compare{Field: "tipAmount", Op: OpGT, Value: ir.IRString("-1")},
			Not{},
		}},
		OrderBy:        "missing",
		OrderDirection: "sideways",
		First:          MaxFirst + 1,
		Skip:           -1,
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 10)
}

func TestLimitDefault(t *testing.T) {
	assert.Equal(t, DefaultFirst, Query{}.Limit())
	assert.Equal(t, 5, Query{First: 5}.Limit())
}

func TestCheckLiteral(t *testing.T) {
	big := ir.Field{Name: "amount", Column: "amount", Type: ir.FieldBigInt}
	assert.NoError(t, CheckLiteral(big, ir.IRInt(0)))
	assert.NoError(t, CheckLiteral(big, ir.IRString("115792089237316195423570985008687907853269984665640564039457584007913129639935")))
	assert.Error(t, CheckLiteral(big, ir.IRInt(-1)))
	assert.Error(t, CheckLiteral(big, ir.IRString("12abc")))
	assert.Error(t, CheckLiteral(big, ir.IRBool(true)))
}
