package guard

import (
	"io"
	"log/slog"
	"maps"
	"slices"
)

// Guard decorates an AttributeWriter with write-once protection.
//
// A Guard is safe to share between targets; see the package documentation
// for how Scope changes what "already written" means.
type Guard[T any] struct {
	next AttributeWriter[T]

	// protected is nil when every name is protected.
	protected map[string]struct{}

	scope  Scope
	ledger *ledger[T]
	logger *slog.Logger
}

// Option configures a Guard.
type Option func(*options)

type options struct {
	scope  Scope
	logger *slog.Logger
}

// WithScope attaches the ledger per target (ScopeInstance, the default) or
// once for all targets (ScopeClass).
func WithScope(s Scope) Option {
	return func(o *options) { o.scope = s }
}

// WithLogger sets the logger used to report rejected writes.
// Rejections are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Protect wraps next so that every name in names may be written only once.
// If names is empty every attribute name is protected.
//
// Example:
//
//	g := guard.Protect[Account](writer, []string{"id", "data"})
//	g.SetAttr(acct, "data", "x") // ok
//	g.SetAttr(acct, "data", "y") // *ProtectedAttributeError
//	g.SetAttr(acct, "name", "z") // ok, any number of times
func Protect[T any](next AttributeWriter[T], names []string, opts ...Option) *Guard[T] {
	o := options{scope: ScopeInstance}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var protected map[string]struct{}
	if len(names) > 0 {
		protected = make(map[string]struct{}, len(names))
		for _, n := range names {
			protected[n] = struct{}{}
		}
	}

	return &Guard[T]{
		next:      next,
		protected: protected,
		scope:     o.scope,
		ledger:    newLedger[T](o.scope),
		logger:    o.logger,
	}
}

// SetAttr applies the write-once policy and forwards permitted writes.
//
// Errors from the wrapped writer are returned unchanged and do not count as
// a first write.
func (g *Guard[T]) SetAttr(target *T, name string, value any) error {
	if target == nil {
		return ErrNilTarget
	}

	if !g.Protects(name) {
		return g.next.SetAttr(target, name, value)
	}

	if g.ledger.has(target, name) {
		g.logger.Debug("rejected write to protected attribute",
			"attr", name,
			"scope", g.scope.String(),
		)
		return &ProtectedAttributeError{Name: name}
	}

	if err := g.next.SetAttr(target, name, value); err != nil {
		return err
	}
	g.ledger.record(target, name)
	return nil
}

// Protects reports whether name is in the protected set.
func (g *Guard[T]) Protects(name string) bool {
	if g.protected == nil {
		return true
	}
	_, ok := g.protected[name]
	return ok
}

// ProtectsAll reports whether the guard was built without an explicit name set.
func (g *Guard[T]) ProtectsAll() bool {
	return g.protected == nil
}

// Locked reports whether a write of name on target would be rejected.
func (g *Guard[T]) Locked(target *T, name string) bool {
	if target == nil || !g.Protects(name) {
		return false
	}
	return g.ledger.has(target, name)
}

// Names returns the protected names in sorted order, or nil when every name
// is protected.
func (g *Guard[T]) Names() []string {
	if g.protected == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(g.protected))
}

// Scope returns the ledger attachment point.
func (g *Guard[T]) Scope() Scope {
	return g.scope
}

// Len returns the number of targets the ledger currently tracks.
// In class scope this is 1 once anything has been written.
func (g *Guard[T]) Len() int {
	return g.ledger.size()
}
