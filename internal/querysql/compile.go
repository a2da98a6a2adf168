package querysql

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/queryir"
)

// SQLCompiler compiles Read API queries to parameterized SQLite SQL.
//
// Every compiled page query ends with an id COLLATE BINARY tiebreaker so
// that identical requests return identical pages. Values are always bound
// as parameters; only catalog column names are written into the SQL text.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and returns the page query, its parameters and the
// entity schema describing the selected columns.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, ir.EntitySchema, error) {
	schema, err := queryir.Validate(q)
	if err != nil {
		return "", nil, ir.EntitySchema{}, err
	}

	where, params, err := c.compileWhere(schema, q.Where)
	if err != nil {
		return "", nil, ir.EntitySchema{}, err
	}

	order, err := c.orderBy(schema, q)
	if err != nil {
		return "", nil, ir.EntitySchema{}, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?",
		strings.Join(schema.Columns(), ", "),
		schema.Table,
		where,
		order)
	params = append(params, q.Limit(), q.Skip)

	return sql, params, schema, nil
}

// CompileCount returns a COUNT(*) query honouring q's filter. Ordering and
// paging are ignored.
func (c *SQLCompiler) CompileCount(q queryir.Query) (string, []any, error) {
	schema, err := queryir.Validate(q)
	if err != nil {
		return "", nil, err
	}
	where, params, err := c.compileWhere(schema, q.Where)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", schema.Table, where), params, nil
}

func (c *SQLCompiler) compileWhere(schema ir.EntitySchema, p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := c.compilePredicate(schema, p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

// orderBy builds the ORDER BY list. Big-integer text columns sort by
// length first, which is numeric order for canonical decimals.
func (c *SQLCompiler) orderBy(schema ir.EntitySchema, q queryir.Query) (string, error) {
	dir := "ASC"
	if q.OrderDirection == queryir.Desc {
		dir = "DESC"
	}

	const tiebreak = "id COLLATE BINARY ASC"
	if q.OrderBy == "" || q.OrderBy == "id" {
		return "id COLLATE BINARY " + dir, nil
	}

	f, ok := schema.Field(q.OrderBy)
	if !ok {
		return "", fmt.Errorf("unknown order field %q", q.OrderBy)
	}
	switch f.Type {
	case ir.FieldBigInt:
		return fmt.Sprintf("length(%s) %s, %s %s, %s", f.Column, dir, f.Column, dir, tiebreak), nil
	case ir.FieldString:
		return fmt.Sprintf("%s COLLATE BINARY %s, %s", f.Column, dir, tiebreak), nil
	default:
		return fmt.Sprintf("%s %s, %s", f.Column, dir, tiebreak), nil
	}
}

func (c *SQLCompiler) compilePredicate(schema ir.EntitySchema, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		f, param, err := c.operand(schema, pred.Field, pred.Value)
		if err != nil {
			return "", nil, err
		}
		return f.Column + " = ?", []any{param}, nil

	case queryir.Contains:
		f, ok := schema.Field(pred.Field)
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", pred.Field)
		}
		// instr is case sensitive, unlike LIKE.
		return fmt.Sprintf("instr(%s, ?) > 0", f.Column), []any{pred.Value}, nil

	case queryir.Compare:
		return c.compileCompare(schema, pred)

	case queryir.In:
		if len(pred.Values) == 0 {
			return "0 = 1", nil, nil
		}
		var (
			f            ir.Field
			placeholders = make([]string, len(pred.Values))
			params       = make([]any, len(pred.Values))
		)
		for i, val := range pred.Values {
			var err error
			f, params[i], err = c.operand(schema, pred.Field, val)
			if err != nil {
				return "", nil, err
			}
			placeholders[i] = "?"
		}
		return fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(placeholders, ", ")), params, nil

	case queryir.Not:
		sql, params, err := c.compilePredicate(schema, pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil

	case queryir.And:
		return c.compileJunction(schema, pred.Predicates, " AND ", "1 = 1")

	case queryir.Or:
		return c.compileJunction(schema, pred.Predicates, " OR ", "0 = 1")

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileJunction(schema ir.EntitySchema, preds []queryir.Predicate, op, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(schema, p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, ps...)
	}
	return strings.Join(parts, op), params, nil
}

var compareOps = map[queryir.CompareOp]string{
	queryir.OpGT:  ">",
	queryir.OpGTE: ">=",
	queryir.OpLT:  "<",
	queryir.OpLTE: "<=",
}

func (c *SQLCompiler) compileCompare(schema ir.EntitySchema, pred queryir.Compare) (string, []any, error) {
	op, ok := compareOps[pred.Op]
	if !ok {
		return "", nil, fmt.Errorf("unknown comparison %q", pred.Op)
	}
	f, param, err := c.operand(schema, pred.Field, pred.Value)
	if err != nil {
		return "", nil, err
	}
	if f.Type != ir.FieldBigInt {
		return fmt.Sprintf("%s %s ?", f.Column, op), []any{param}, nil
	}

	// Numeric comparison over decimal text: a longer number is larger; equal
	// lengths compare digit by digit.
	dec := param.(string)
	strict := op[:1]
	sql := fmt.Sprintf("(length(%[1]s) %[2]s ? OR (length(%[1]s) = ? AND %[1]s %[3]s ?))", f.Column, strict, op)
	return sql, []any{len(dec), len(dec), dec}, nil
}

// operand resolves a field and converts a literal into its SQL parameter.
func (c *SQLCompiler) operand(schema ir.EntitySchema, name string, val ir.IRValue) (ir.Field, any, error) {
	f, ok := schema.Field(name)
	if !ok {
		return ir.Field{}, nil, fmt.Errorf("unknown field %q", name)
	}
	if err := queryir.CheckLiteral(f, val); err != nil {
		return ir.Field{}, nil, fmt.Errorf("%s: %w", name, err)
	}
	if f.Type == ir.FieldBigInt {
		dec, err := canonicalDecimal(val)
		if err != nil {
			return ir.Field{}, nil, fmt.Errorf("%s: %w", name, err)
		}
		return f, dec, nil
	}
	param, err := irValueToParam(val)
	return f, param, err
}

// canonicalDecimal rewrites a big-integer literal the way the store writes
// it: base 10, no sign, no leading zeros.
func canonicalDecimal(val ir.IRValue) (string, error) {
	switch n := val.(type) {
	case ir.IRInt:
		return uint256.NewInt(uint64(n)).Dec(), nil
	case ir.IRString:
		v, err := uint256.FromDecimal(string(n))
		if err != nil {
			return "", err
		}
		return v.Dec(), nil
	default:
		return "", fmt.Errorf("expected integer, got %T", val)
	}
}

// irValueToParam converts a scalar ir.IRValue to a driver parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
