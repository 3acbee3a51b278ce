package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simphotonics/lockattr/internal/guard"
	"github.com/simphotonics/lockattr/internal/ir"
)

var (
	// ErrObjectNotFound is returned when an object id has no row.
	ErrObjectNotFound = errors.New("object not found")

	// ErrAttributeNotFound is returned when an attribute was never written.
	ErrAttributeNotFound = errors.New("attribute not found")
)

// Handle identifies a stored object. It is the guard target for store writes.
type Handle struct {
	ID   string
	Kind string
}

// Create inserts a new object of the given kind.
func (s *Store) Create(ctx context.Context, kind string) (*Handle, error) {
	if kind == "" {
		return nil, fmt.Errorf("create object: kind is required")
	}

	h := &Handle{ID: s.ids.Generate(), Kind: kind}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO objects (id, kind) VALUES (?, ?)`,
		h.ID, h.Kind,
	)
	if err != nil {
		return nil, fmt.Errorf("create object %s: %w", h.ID, err)
	}
	return h, nil
}

// SetAttr stores value as the current value of the attribute and bumps its
// write count.
func (s *Store) SetAttr(ctx context.Context, h *Handle, name string, value any) error {
	if h == nil {
		return fmt.Errorf("set attribute %q: nil handle", name)
	}
	if name == "" {
		return fmt.Errorf("set attribute on %s: name is required", h.ID)
	}

	data, err := ir.MarshalCanonical(value)
	if err != nil {
		return fmt.Errorf("set attribute %q: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE id = ?`, h.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("set attribute %q on %s: %w", name, h.ID, ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup object %s: %w", h.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attributes (object_id, name, value, writes)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (object_id, name) DO UPDATE
		SET value = excluded.value, writes = attributes.writes + 1
	`, h.ID, name, string(data))
	if err != nil {
		return fmt.Errorf("write attribute %q on %s: %w", name, h.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attribute %q: %w", name, err)
	}
	return nil
}

// Writer returns an AttributeWriter that stores writes using ctx.
//
// Example:
//
//	g := guard.Protect[store.Handle](st.Writer(ctx), []string{"id"})
//	err := g.SetAttr(h, "id", 7)
func (s *Store) Writer(ctx context.Context) guard.AttributeWriter[Handle] {
	return guard.WriterFunc[Handle](func(h *Handle, name string, value any) error {
		return s.SetAttr(ctx, h, name, value)
	})
}
