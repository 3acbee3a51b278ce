package policy

import (
	"github.com/simphotonics/lockattr/internal/guard"
)

// Router is an AttributeWriter that sends each write through the guard for
// the target's kind. Kinds without a rule are written unguarded.
type Router[T any] struct {
	next   guard.AttributeWriter[T]
	kindOf func(*T) string
	guards map[string]*guard.Guard[T]
}

// NewRouter builds one guard per rule in set, each wrapping next.
// extra options are applied after the rule's own options.
func NewRouter[T any](set *Set, next guard.AttributeWriter[T], kindOf func(*T) string, extra ...guard.Option) *Router[T] {
	r := &Router[T]{
		next:   next,
		kindOf: kindOf,
		guards: make(map[string]*guard.Guard[T], set.Len()),
	}
	for _, rule := range set.Rules() {
		opts := append(rule.Options(), extra...)
		r.guards[rule.Kind] = guard.Protect[T](next, rule.Protect, opts...)
	}
	return r
}

// SetAttr implements guard.AttributeWriter.
func (r *Router[T]) SetAttr(target *T, name string, value any) error {
	if target == nil {
		return guard.ErrNilTarget
	}
	if g, ok := r.guards[r.kindOf(target)]; ok {
		return g.SetAttr(target, name, value)
	}
	return r.next.SetAttr(target, name, value)
}

// Locked reports whether a write of name on target would be rejected.
func (r *Router[T]) Locked(target *T, name string) bool {
	if target == nil {
		return false
	}
	g, ok := r.guards[r.kindOf(target)]
	return ok && g.Locked(target, name)
}
