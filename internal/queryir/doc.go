// Package queryir is the Read API's query model: one entity, a filter
// predicate tree, an ordering and a page window.
//
// It sits between the request surfaces (CLI flags, query files, harness
// assertions) and the SQL backend in internal/querysql:
//
//	[where map] -> ParseWhere -> [Query] -> Validate -> querysql.Compile
//
// The where map follows the filter conventions of GraphQL subgraph
// endpoints:
//
//	{"reportCount_gt": 0, "removed": false}
//	{"or": [{"title_contains": "cat"}, {"category": "Pets"}]}
//
// Supported suffixes: _not, _gt, _gte, _lt, _lte, _in, _not_in, _contains,
// _not_contains. Keys "and"/"or" take lists of nested where maps. Sibling
// keys are combined with AND.
//
// Predicate is sealed with a marker method so backends can type-switch
// exhaustively. Literal values are ir.IRValue; there are no floats.
package queryir
