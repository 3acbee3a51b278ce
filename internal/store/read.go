package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simphotonics/lockattr/internal/ir"
)

// Load returns the handle for an existing object.
func (s *Store) Load(ctx context.Context, id string) (*Handle, error) {
	h := &Handle{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT kind FROM objects WHERE id = ?`, id).Scan(&h.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", id, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return h, nil
}

// ListObjects returns objects in creation order. An empty kind lists all.
func (s *Store) ListObjects(ctx context.Context, kind string) ([]Handle, error) {
	query := `SELECT id, kind FROM objects ORDER BY rowid ASC`
	args := []any{}
	if kind != "" {
		query = `SELECT id, kind FROM objects WHERE kind = ? ORDER BY rowid ASC`
		args = append(args, kind)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var out []Handle
	for rows.Next() {
		var h Handle
		if err := rows.Scan(&h.ID, &h.Kind); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Get returns the current value of an attribute.
func (s *Store) Get(ctx context.Context, id, name string) (ir.Value, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM attributes WHERE object_id = ? AND name = ?`,
		id, name,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s.%s: %w", id, name, ErrAttributeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s.%s: %w", id, name, err)
	}
	return ir.UnmarshalValue([]byte(raw))
}

// Attrs returns every attribute of an object.
func (s *Store) Attrs(ctx context.Context, id string) (ir.Map, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM attributes WHERE object_id = ? ORDER BY name ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("attrs %s: %w", id, err)
	}
	defer rows.Close()

	out := ir.Map{}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		v, err := ir.UnmarshalValue([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	return out, rows.Err()
}

// Writes returns how many times an attribute has been written.
// Zero means never.
func (s *Store) Writes(ctx context.Context, id, name string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT writes FROM attributes WHERE object_id = ? AND name = ?`,
		id, name,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("writes %s.%s: %w", id, name, err)
	}
	return n, nil
}
