package policy

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/simphotonics/lockattr/internal/guard"
)

// Rule is the compiled guard policy for one object kind.
type Rule struct {
	Kind string `json:"kind"`

	// Protect lists protected names in sorted order. Empty protects all.
	Protect []string `json:"protect,omitempty"`

	Scope guard.Scope `json:"-"`
}

// ProtectsAll reports whether the rule locks every attribute name.
func (r Rule) ProtectsAll() bool {
	return len(r.Protect) == 0
}

// Options returns the guard options the rule implies.
func (r Rule) Options() []guard.Option {
	return []guard.Option{guard.WithScope(r.Scope)}
}

// CompileError reports an invalid policy field with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var knownFields = []string{"protect", "scope"}

// CompileRule parses the CUE struct declared under guard.<kind>.
func CompileRule(kind string, v cue.Value) (*Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if kind == "" {
		return nil, &CompileError{Field: "kind", Message: "kind is required", Pos: v.Pos()}
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: kind, Message: "rule must be a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		if !slices.Contains(knownFields, iter.Label()) {
			return nil, &CompileError{
				Field:   kind + "." + iter.Label(),
				Message: fmt.Sprintf("unknown field (expected one of %v)", knownFields),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	rule := &Rule{Kind: kind}

	rule.Protect, err = parseProtect(kind, v)
	if err != nil {
		return nil, err
	}

	scopeVal := v.LookupPath(cue.ParsePath("scope"))
	if scopeVal.Exists() {
		s, err := scopeVal.String()
		if err != nil {
			return nil, &CompileError{Field: kind + ".scope", Message: "scope must be a string", Pos: scopeVal.Pos()}
		}
		rule.Scope, err = guard.ParseScope(s)
		if err != nil {
			return nil, &CompileError{Field: kind + ".scope", Message: err.Error(), Pos: scopeVal.Pos()}
		}
	}

	return rule, nil
}

// parseProtect reads the optional protect list. Duplicates collapse.
func parseProtect(kind string, v cue.Value) ([]string, error) {
	pv := v.LookupPath(cue.ParsePath("protect"))
	if !pv.Exists() {
		return nil, nil
	}

	list, err := pv.List()
	if err != nil {
		return nil, &CompileError{Field: kind + ".protect", Message: "protect must be a list of strings", Pos: pv.Pos()}
	}

	var names []string
	for list.Next() {
		name, err := list.Value().String()
		if err != nil {
			return nil, &CompileError{Field: kind + ".protect", Message: "protect entries must be strings", Pos: list.Value().Pos()}
		}
		if name == "" {
			return nil, &CompileError{Field: kind + ".protect", Message: "protect entries must not be empty", Pos: list.Value().Pos()}
		}
		names = append(names, name)
	}

	slices.Sort(names)
	return slices.Compact(names), nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
