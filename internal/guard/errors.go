package guard

import (
	"errors"
	"fmt"
)

// ErrNilTarget is returned when a write names no target.
var ErrNilTarget = errors.New("guard: nil target")

// ProtectedAttributeError reports a write to a protected attribute that has
// already been assigned.
type ProtectedAttributeError struct {
	// Name is the attribute the caller tried to modify.
	Name string
}

// Error implements the error interface.
func (e *ProtectedAttributeError) Error() string {
	return fmt.Sprintf("Class attribute '%s' must not be modified.", e.Name)
}

// IsProtectedError returns true if err is, or wraps, a ProtectedAttributeError.
func IsProtectedError(err error) bool {
	var pe *ProtectedAttributeError
	return errors.As(err, &pe)
}

// ProtectedName returns the attribute name carried by a ProtectedAttributeError
// anywhere in err's chain.
func ProtectedName(err error) (string, bool) {
	var pe *ProtectedAttributeError
	if errors.As(err, &pe) {
		return pe.Name, true
	}
	return "", false
}
