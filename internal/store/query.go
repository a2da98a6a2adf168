package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/queryir"
	"github.com/roach88/vidindex/internal/querysql"
)

// Find executes a Read API query and returns matching entities in their
// outbound shape. Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, q queryir.Query) ([]ir.IRObject, error) {
	query, params, schema, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", schema.Name, err)
	}
	defer rows.Close()

	return scanEntities(rows, schema)
}

// Count returns how many entities match q's filter.
func (s *Store) Count(ctx context.Context, q queryir.Query) (int64, error) {
	query, params, err := querysql.NewSQLCompiler().CompileCount(q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Entity, err)
	}
	return n, nil
}

// Get returns one entity in its outbound shape.
func (s *Store) Get(ctx context.Context, entity, id string) (ir.IRObject, bool, error) {
	objs, err := s.Find(ctx, queryir.Query{
		Entity: entity,
		Where:  queryir.Equals{Field: "id", Value: ir.IRString(id)},
		First:  1,
	})
	if err != nil {
		return nil, false, err
	}
	if len(objs) == 0 {
		return nil, false, nil
	}
	return objs[0], true, nil
}

// scanEntities converts rows selected in catalog column order into
// IRObjects keyed by outbound field names.
func scanEntities(rows *sql.Rows, schema ir.EntitySchema) ([]ir.IRObject, error) {
	out := []ir.IRObject{}
	for rows.Next() {
		obj, err := scanEntity(rows, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", schema.Name, err)
	}
	return out, nil
}

func scanEntity(rows *sql.Rows, schema ir.EntitySchema) (ir.IRObject, error) {
	dest := make([]any, len(schema.Fields))
	for i, f := range schema.Fields {
		switch f.Type {
		case ir.FieldInt:
			dest[i] = new(int64)
		case ir.FieldBool:
			dest[i] = new(bool)
		default:
			dest[i] = new(string)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan %s: %w", schema.Name, err)
	}

	obj := make(ir.IRObject, len(schema.Fields))
	for i, f := range schema.Fields {
		switch v := dest[i].(type) {
		case *int64:
			obj[f.Name] = ir.IRInt(*v)
		case *bool:
			obj[f.Name] = ir.IRBool(*v)
		case *string:
			obj[f.Name] = ir.IRString(*v)
		}
	}
	return obj, nil
}
