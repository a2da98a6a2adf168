package queryir

import "github.com/roach88/vidindex/internal/ir"

// Paging bounds for Query.First.
const (
	DefaultFirst = 100
	MaxFirst     = 1000
)

// Direction is the sort direction of Query.OrderBy.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Query is one Read API request over a single entity type.
//
// Semantics:
//
//	SELECT <all fields> FROM <entity>
//	WHERE <where>
//	ORDER BY <orderBy> <direction>, id
//	LIMIT <first> OFFSET <skip>
//
// Field names are the outbound (camelCase) names from the entity catalog.
// First == 0 means DefaultFirst. The id tiebreaker is always appended so
// that pages never overlap or skip rows between identical requests.
type Query struct {
	Entity         string
	Where          Predicate
	OrderBy        string
	OrderDirection Direction
	First          int
	Skip           int
}

// Limit returns the effective page size.
func (q Query) Limit() int {
	if q.First == 0 {
		return DefaultFirst
	}
	return q.First
}

// Predicate is a filter condition. Sealed: only types in this package
// implement it, so backends can switch over it exhaustively.
type Predicate interface {
	predicateNode()
}

// Equals matches field == value.
type Equals struct {
	Field string
	Value ir.IRValue
}

// Contains matches string fields containing Value as a substring. Matching
// is case sensitive.
type Contains struct {
	Field string
	Value string
}

// CompareOp is an ordering comparison.
type CompareOp string

const (
	OpGT  CompareOp = "gt"
	OpGTE CompareOp = "gte"
	OpLT  CompareOp = "lt"
	OpLTE CompareOp = "lte"
)

// Compare matches field <op> value. Big-integer fields compare
// numerically, not as text.
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.IRValue
}

// In matches field equal to any of Values. An empty list matches nothing.
type In struct {
	Field  string
	Values []ir.IRValue
}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

// And matches when every predicate matches. Empty means always true.
type And struct {
	Predicates []Predicate
}

// Or matches when any predicate matches. Empty means always false.
type Or struct {
	Predicates []Predicate
}

func (Equals) predicateNode()   {}
func (Contains) predicateNode() {}
func (Compare) predicateNode()  {}
func (In) predicateNode()       {}
func (Not) predicateNode()      {}
func (And) predicateNode()      {}
func (Or) predicateNode()       {}
