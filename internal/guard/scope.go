package guard

import "fmt"

// Scope selects where the write-once ledger is attached.
type Scope int

const (
	// ScopeInstance keeps one ledger per target.
	ScopeInstance Scope = iota

	// ScopeClass keeps one ledger for every target the guard sees.
	ScopeClass
)

// String returns the policy spelling of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeInstance:
		return "instance"
	case ScopeClass:
		return "class"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope parses "instance" or "class". The empty string means instance.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "instance":
		return ScopeInstance, nil
	case "class":
		return ScopeClass, nil
	default:
		return 0, fmt.Errorf("invalid scope %q: must be \"instance\" or \"class\"", s)
	}
}
