package guard

import (
	"runtime"
	"sync"
	"weak"
)

// nameSet is the set of protected names already written on one target.
type nameSet map[string]struct{}

// ledger records first writes of protected names.
//
// In class scope every target shares the same nameSet. In instance scope each
// live target gets its own, keyed by a weak pointer so the ledger never keeps
// a target reachable.
type ledger[T any] struct {
	scope Scope

	mu      sync.Mutex
	shared  nameSet
	targets map[weak.Pointer[T]]nameSet
}

func newLedger[T any](scope Scope) *ledger[T] {
	return &ledger[T]{
		scope:   scope,
		shared:  nameSet{},
		targets: make(map[weak.Pointer[T]]nameSet),
	}
}

// has reports whether name was already written on target.
func (l *ledger[T]) has(target *T, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scope == ScopeClass {
		_, ok := l.shared[name]
		return ok
	}
	_, ok := l.targets[weak.Make(target)][name]
	return ok
}

// record marks name as written on target.
func (l *ledger[T]) record(target *T, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scope == ScopeClass {
		l.shared[name] = struct{}{}
		return
	}

	key := weak.Make(target)
	names, ok := l.targets[key]
	if !ok {
		names = nameSet{}
		l.targets[key] = names
		runtime.AddCleanup(target, l.forget, key)
	}
	names[name] = struct{}{}
}

// forget drops the entry of a collected target.
func (l *ledger[T]) forget(key weak.Pointer[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.targets, key)
}

// size returns the number of targets with at least one recorded name.
func (l *ledger[T]) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scope == ScopeClass {
		if len(l.shared) == 0 {
			return 0
		}
		return 1
	}
	return len(l.targets)
}
