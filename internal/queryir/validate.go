package queryir

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/roach88/vidindex/internal/ir"
)

// ValidationError lists every problem found in a query.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// Validate checks a query against the entity catalog: the entity and every
// referenced field must exist, literal types must match field types, and
// the page window must be in range. It returns the resolved entity schema.
//
// Validate is a pure function with no side effects.
func Validate(q Query) (ir.EntitySchema, error) {
	schema, ok := ir.LookupEntity(q.Entity)
	if !ok {
		return ir.EntitySchema{}, &ValidationError{Problems: []string{fmt.Sprintf("unknown entity %q", q.Entity)}}
	}

	v := &validator{schema: schema}
	v.validatePredicate(q.Where)

	if q.OrderBy != "" {
		if _, ok := schema.Field(q.OrderBy); !ok {
			v.addProblem("orderBy: unknown field %q on %s", q.OrderBy, schema.Name)
		}
	}
	switch q.OrderDirection {
	case "", Asc, Desc:
	default:
		v.addProblem("orderDirection must be asc or desc, got %q", q.OrderDirection)
	}
	if q.First < 0 || q.First > MaxFirst {
		v.addProblem("first must be in [0, %d], got %d", MaxFirst, q.First)
	}
	if q.Skip < 0 {
		v.addProblem("skip must not be negative, got %d", q.Skip)
	}

	if len(v.problems) > 0 {
		return schema, &ValidationError{Problems: v.problems}
	}
	return schema, nil
}

type validator struct {
	schema   ir.EntitySchema
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) field(name string) (ir.Field, bool) {
	f, ok := v.schema.Field(name)
	if !ok {
		v.addProblem("unknown field %q on %s", name, v.schema.Name)
	}
	return f, ok
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		if f, ok := v.field(pred.Field); ok {
			v.checkLiteral(f, pred.Value)
		}
	case Contains:
		if f, ok := v.field(pred.Field); ok && f.Type != ir.FieldString {
			v.addProblem("%s: contains needs a string field, %s is %s", pred.Field, pred.Field, f.Type)
		}
	case Compare:
		f, ok := v.field(pred.Field)
		if !ok {
			return
		}
		switch pred.Op {
		case OpGT, OpGTE, OpLT, OpLTE:
		default:
			v.addProblem("%s: unknown comparison %q", pred.Field, pred.Op)
		}
		if f.Type == ir.FieldBool {
			v.addProblem("%s: cannot order-compare a bool field", pred.Field)
			return
		}
		v.checkLiteral(f, pred.Value)
	case In:
		if f, ok := v.field(pred.Field); ok {
			for _, val := range pred.Values {
				v.checkLiteral(f, val)
			}
		}
	case Not:
		if pred.Predicate == nil {
			v.addProblem("not: missing predicate")
			return
		}
		v.validatePredicate(pred.Predicate)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unsupported predicate type %T", p)
	}
}

func (v *validator) checkLiteral(f ir.Field, val ir.IRValue) {
	if err := CheckLiteral(f, val); err != nil {
		v.addProblem("%s: %v", f.Name, err)
	}
}

// CheckLiteral reports whether val is a legal literal for field f.
// Big-integer fields accept non-negative ints or decimal strings.
func CheckLiteral(f ir.Field, val ir.IRValue) error {
	switch f.Type {
	case ir.FieldString:
		if _, ok := val.(ir.IRString); !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
	case ir.FieldInt:
		if _, ok := val.(ir.IRInt); !ok {
			return fmt.Errorf("expected int, got %T", val)
		}
	case ir.FieldBool:
		if _, ok := val.(ir.IRBool); !ok {
			return fmt.Errorf("expected bool, got %T", val)
		}
	case ir.FieldBigInt:
		switch n := val.(type) {
		case ir.IRInt:
			if n < 0 {
				return fmt.Errorf("expected unsigned integer, got %d", n)
			}
		case ir.IRString:
			if _, err := uint256.FromDecimal(string(n)); err != nil {
				return fmt.Errorf("expected unsigned decimal, got %q", string(n))
			}
		default:
			return fmt.Errorf("expected integer, got %T", val)
		}
	}
	return nil
}
