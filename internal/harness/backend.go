package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/simphotonics/lockattr/internal/guard"
	"github.com/simphotonics/lockattr/internal/ir"
	"github.com/simphotonics/lockattr/internal/object"
	"github.com/simphotonics/lockattr/internal/policy"
	"github.com/simphotonics/lockattr/internal/store"
	"github.com/simphotonics/lockattr/internal/testutil"
)

// Backends a scenario can run against.
const (
	// BackendStore writes to an in-memory SQLite store through a policy router.
	BackendStore = "store"

	// BackendMemory writes to object instances of one class per kind.
	BackendMemory = "memory"
)

// target is the object space a scenario writes into. Objects are addressed
// by scenario ref.
type target interface {
	create(ref, kind string) error
	setAttr(ref, attr string, value any) error
	get(ref, attr string) (ir.Value, bool, error)
	writes(ref, attr string) (int64, error)
	locked(ref, attr string) bool
	state(ref string) (ir.Map, error)
	close() error
}

func newTarget(ctx context.Context, backend string, set *policy.Set, logger *slog.Logger) (target, error) {
	switch backend {
	case "", BackendStore:
		return newStoreTarget(ctx, set, logger)
	case BackendMemory:
		return newMemoryTarget(set, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// storeTarget runs writes against a fresh in-memory SQLite database with
// sequential object ids.
type storeTarget struct {
	ctx     context.Context
	st      *store.Store
	router  *policy.Router[store.Handle]
	objects map[string]*store.Handle
}

func newStoreTarget(ctx context.Context, set *policy.Set, logger *slog.Logger) (*storeTarget, error) {
	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDGenerator("obj")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	return &storeTarget{
		ctx:     ctx,
		st:      st,
		router:  policy.NewRouter[store.Handle](set, st.Writer(ctx), handleKind, guard.WithLogger(logger)),
		objects: make(map[string]*store.Handle),
	}, nil
}

func (t *storeTarget) create(ref, kind string) error {
	h, err := t.st.Create(t.ctx, kind)
	if err != nil {
		return err
	}
	t.objects[ref] = h
	return nil
}

func (t *storeTarget) setAttr(ref, attr string, value any) error {
	return t.router.SetAttr(t.objects[ref], attr, value)
}

func (t *storeTarget) get(ref, attr string) (ir.Value, bool, error) {
	v, err := t.st.Get(t.ctx, t.objects[ref].ID, attr)
	if errors.Is(err, store.ErrAttributeNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *storeTarget) writes(ref, attr string) (int64, error) {
	return t.st.Writes(t.ctx, t.objects[ref].ID, attr)
}

func (t *storeTarget) locked(ref, attr string) bool {
	return t.router.Locked(t.objects[ref], attr)
}

func (t *storeTarget) state(ref string) (ir.Map, error) {
	return t.st.Attrs(t.ctx, t.objects[ref].ID)
}

func (t *storeTarget) close() error {
	return t.st.Close()
}

func handleKind(h *store.Handle) string {
	return h.Kind
}

// memoryTarget defines one class per kind, with the kind's rule as the
// instance lock, and writes to class instances.
type memoryTarget struct {
	set     *policy.Set
	logger  *slog.Logger
	classes map[string]*object.Class
	objects map[string]*object.Object
}

func newMemoryTarget(set *policy.Set, logger *slog.Logger) *memoryTarget {
	return &memoryTarget{
		set:     set,
		logger:  logger,
		classes: make(map[string]*object.Class),
		objects: make(map[string]*object.Object),
	}
}

func (t *memoryTarget) class(kind string) (*object.Class, error) {
	if cls, ok := t.classes[kind]; ok {
		return cls, nil
	}
	cfg := object.ClassConfig{Name: kind}
	if rule, ok := t.set.Lookup(kind); ok {
		cfg.Instance = &object.Lock{Names: rule.Protect, Scope: rule.Scope, Logger: t.logger}
	}
	cls, err := object.DefineClass(cfg)
	if err != nil {
		return nil, err
	}
	t.classes[kind] = cls
	return cls, nil
}

func (t *memoryTarget) create(ref, kind string) error {
	cls, err := t.class(kind)
	if err != nil {
		return err
	}
	t.objects[ref] = cls.New()
	return nil
}

func (t *memoryTarget) setAttr(ref, attr string, value any) error {
	return t.objects[ref].Set(attr, value)
}

func (t *memoryTarget) get(ref, attr string) (ir.Value, bool, error) {
	v, ok := t.objects[ref].Get(attr)
	return v, ok, nil
}

func (t *memoryTarget) writes(ref, attr string) (int64, error) {
	return int64(t.objects[ref].Writes(attr)), nil
}

func (t *memoryTarget) locked(ref, attr string) bool {
	o := t.objects[ref]
	return t.classes[o.Kind()].InstanceLocked(o, attr)
}

func (t *memoryTarget) state(ref string) (ir.Map, error) {
	return t.objects[ref].Snapshot(), nil
}

func (t *memoryTarget) close() error {
	return nil
}
