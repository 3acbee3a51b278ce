package harness

import (
	"fmt"

	"github.com/simphotonics/lockattr/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Target   string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s on %s: expected %s, got %s", e.Type, e.Target, e.Expected, e.Actual)
}

// evaluateAssertions runs every assertion against the final state and
// returns failure messages.
func evaluateAssertions(assertions []Assertion, t target) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, t); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(a Assertion, t target) error {
	name := a.Object + "." + a.Attr

	switch a.Type {
	case AssertFinalValue:
		return assertFinalValue(t, name, a)
	case AssertUnset:
		return assertUnset(t, name, a)
	case AssertWriteCount:
		return assertWriteCount(t, name, a)
	case AssertLocked:
		return assertLocked(t, name, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFinalValue(t target, name string, a Assertion) error {
	want, err := ir.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}

	got, ok, err := t.get(a.Object, a.Attr)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{Type: a.Type, Target: name, Expected: render(want), Actual: "unset"}
	}
	if !ir.Equal(want, got) {
		return &AssertionError{Type: a.Type, Target: name, Expected: render(want), Actual: render(got)}
	}
	return nil
}

func assertUnset(t target, name string, a Assertion) error {
	got, ok, err := t.get(a.Object, a.Attr)
	if err != nil {
		return err
	}
	if ok {
		return &AssertionError{Type: a.Type, Target: name, Expected: "unset", Actual: render(got)}
	}
	return nil
}

func assertWriteCount(t target, name string, a Assertion) error {
	n, err := t.writes(a.Object, a.Attr)
	if err != nil {
		return err
	}
	if n != int64(a.Count) {
		return &AssertionError{
			Type:     a.Type,
			Target:   name,
			Expected: fmt.Sprintf("%d writes", a.Count),
			Actual:   fmt.Sprintf("%d writes", n),
		}
	}
	return nil
}

func assertLocked(t target, name string, a Assertion) error {
	want := true
	if a.Locked != nil {
		want = *a.Locked
	}
	got := t.locked(a.Object, a.Attr)
	if got != want {
		return &AssertionError{
			Type:     a.Type,
			Target:   name,
			Expected: fmt.Sprintf("locked=%t", want),
			Actual:   fmt.Sprintf("locked=%t", got),
		}
	}
	return nil
}

// render formats a value as canonical JSON for messages.
func render(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
