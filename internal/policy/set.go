package policy

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Set is a compiled policy: one Rule per kind.
type Set struct {
	rules map[string]Rule
}

// Lookup returns the rule for kind.
func (s *Set) Lookup(kind string) (Rule, bool) {
	r, ok := s.rules[kind]
	return r, ok
}

// Rules returns all rules sorted by kind.
func (s *Set) Rules() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, k := range slices.Sorted(maps.Keys(s.rules)) {
		out = append(out, s.rules[k])
	}
	return out
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Compile extracts every rule under the top-level "guard" struct of v.
func Compile(v cue.Value) (*Set, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	gv := v.LookupPath(cue.ParsePath("guard"))
	if !gv.Exists() {
		return nil, &CompileError{Field: "guard", Message: "no guard rules found", Pos: v.Pos()}
	}

	iter, err := gv.Fields()
	if err != nil {
		return nil, &CompileError{Field: "guard", Message: "guard must be a struct of kinds", Pos: gv.Pos()}
	}

	set := &Set{rules: make(map[string]Rule)}
	for iter.Next() {
		rule, err := CompileRule(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		set.rules[rule.Kind] = *rule
	}

	if len(set.rules) == 0 {
		return nil, &CompileError{Field: "guard", Message: "no guard rules found", Pos: gv.Pos()}
	}
	return set, nil
}

// CompileString compiles CUE source text. Used by tests and embedded policies.
func CompileString(src string) (*Set, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src))
}

// Load loads a policy from a single .cue file or from a directory holding a
// CUE package.
func Load(path string) (*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("policy path: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadFile compiles a single CUE file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	ctx := cuecontext.New()
	return Compile(ctx.CompileBytes(data, cue.Filename(path)))
}

// LoadDir loads the CUE package in dir.
func LoadDir(dir string) (*Set, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("error scanning directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	return Compile(value)
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
