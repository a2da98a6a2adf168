package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/vidindex/internal/ir"
)

// Snapshot returns every materialized entity, grouped by entity name and
// ordered by id. The event log and checkpoint are not part of it: two
// stores that reached the same entity state through different deliveries
// have equal snapshots.
func (s *Store) Snapshot(ctx context.Context) (ir.IRObject, error) {
	snap := make(ir.IRObject, len(ir.Catalog()))
	for _, schema := range ir.Catalog() {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
			"SELECT %s FROM %s ORDER BY id COLLATE BINARY ASC",
			strings.Join(schema.Columns(), ", "), schema.Table))
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", schema.Name, err)
		}
		objs, err := scanEntities(rows, schema)
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", schema.Name, err)
		}

		arr := make(ir.IRArray, len(objs))
		for i, o := range objs {
			arr[i] = o
		}
		snap[schema.Name] = arr
	}
	return snap, nil
}

// Digest returns the snapshot digest. Equal digests mean byte-identical
// entity state.
func (s *Store) Digest(ctx context.Context) (string, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return ir.SnapshotDigest(snap)
}
