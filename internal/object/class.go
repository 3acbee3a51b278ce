package object

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/simphotonics/lockattr/internal/guard"
)

// Lock describes a write-once guard to install.
type Lock struct {
	// Names lists the protected attributes. Empty protects every name.
	Names []string

	// Scope selects per-target or shared ledgers.
	Scope guard.Scope

	// Logger receives rejected writes. Nil discards them.
	Logger *slog.Logger
}

// ClassConfig defines a class.
type ClassConfig struct {
	// Name is the class name, used as the kind of the class object and of
	// every instance.
	Name string

	// Defaults are the class attributes assigned when the class is defined.
	// They count as the first write of each name.
	Defaults map[string]any

	// Meta guards writes to the class object's own attributes. Nil leaves
	// them unguarded.
	Meta *Lock

	// Instance guards writes to instance attributes. Nil leaves them
	// unguarded.
	Instance *Lock
}

// Class is a class object plus the write path its instances share.
type Class struct {
	*Object

	meta      *guard.Guard[Object]
	instances *guard.Guard[Object]
}

// DefineClass creates a class, installs its guards and assigns its defaults
// in sorted name order.
func DefineClass(cfg ClassConfig) (*Class, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("class name is required")
	}

	cls := &Class{
		meta:      lockGuard(cfg.Meta),
		instances: lockGuard(cfg.Instance),
	}
	cls.Object = New(cfg.Name, writerFor(cls.meta))

	for _, name := range slices.Sorted(maps.Keys(cfg.Defaults)) {
		if err := cls.Set(name, cfg.Defaults[name]); err != nil {
			return nil, fmt.Errorf("class %s: default %q: %w", cfg.Name, name, err)
		}
	}
	return cls, nil
}

// New creates an instance of the class.
func (c *Class) New() *Object {
	return New(c.Kind(), writerFor(c.instances))
}

// Locked reports whether writing name on the class object would be rejected.
func (c *Class) Locked(name string) bool {
	return c.meta != nil && c.meta.Locked(c.Object, name)
}

// InstanceLocked reports whether writing name on inst would be rejected.
func (c *Class) InstanceLocked(inst *Object, name string) bool {
	return c.instances != nil && c.instances.Locked(inst, name)
}

// lockGuard builds the guard for an optional lock. Nil means unguarded.
func lockGuard(l *Lock) *guard.Guard[Object] {
	if l == nil {
		return nil
	}
	opts := []guard.Option{guard.WithScope(l.Scope)}
	if l.Logger != nil {
		opts = append(opts, guard.WithLogger(l.Logger))
	}
	return guard.Protect[Object](Writer{}, l.Names, opts...)
}

func writerFor(g *guard.Guard[Object]) guard.AttributeWriter[Object] {
	if g == nil {
		return Writer{}
	}
	return g
}
