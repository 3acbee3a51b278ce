package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a write scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy is the path to a CUE policy file or directory.
	Policy string `yaml:"policy"`

	// Backend selects where objects live: store (default) or memory.
	Backend string `yaml:"backend,omitempty"`

	// Objects are created, in order, before any step runs.
	Objects []ObjectDecl `yaml:"objects"`

	// Steps are the attribute writes, applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state. Optional.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ObjectDecl declares a scenario object.
type ObjectDecl struct {
	// Ref is the name steps use to address the object.
	Ref string `yaml:"ref"`

	// Kind selects the policy rule.
	Kind string `yaml:"kind"`
}

// Step is one attribute write.
type Step struct {
	Set   string `yaml:"set"`
	Attr  string `yaml:"attr"`
	Value any    `yaml:"value"`

	// Expect is the required outcome: ok, protected or error.
	// Empty skips the check.
	Expect string `yaml:"expect,omitempty"`
}

// Step outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeProtected = "protected"
	OutcomeError     = "error"
)

// Assertion validates final state.
type Assertion struct {
	// Type is one of final_value, unset, write_count, locked.
	Type string `yaml:"type"`

	Object string `yaml:"object"`
	Attr   string `yaml:"attr"`

	// Value is the expected value (final_value).
	Value any `yaml:"value,omitempty"`

	// Count is the expected number of writes (write_count).
	Count int `yaml:"count,omitempty"`

	// Locked is the expected lock state (locked). Defaults to true.
	Locked *bool `yaml:"locked,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalValue = "final_value"
	AssertUnset      = "unset"
	AssertWriteCount = "write_count"
	AssertLocked     = "locked"
)

// LoadScenario reads and parses a scenario YAML file. The policy path is
// resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving a
// relative policy path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "asertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Policy != "" && !filepath.IsAbs(scenario.Policy) && basePath != "" {
		scenario.Policy = filepath.Join(basePath, scenario.Policy)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Policy == "" {
		return fmt.Errorf("policy is required")
	}
	if _, err := os.Stat(s.Policy); os.IsNotExist(err) {
		return fmt.Errorf("policy not found: %s", s.Policy)
	}
	switch s.Backend {
	case "", BackendStore, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if len(s.Objects) == 0 {
		return fmt.Errorf("objects list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	refs := make(map[string]bool, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.Ref == "" {
			return fmt.Errorf("objects[%d]: ref is required", i)
		}
		if obj.Kind == "" {
			return fmt.Errorf("objects[%d]: kind is required", i)
		}
		if refs[obj.Ref] {
			return fmt.Errorf("objects[%d]: duplicate ref %q", i, obj.Ref)
		}
		refs[obj.Ref] = true
	}

	for i, step := range s.Steps {
		if !refs[step.Set] {
			return fmt.Errorf("steps[%d]: unknown object %q", i, step.Set)
		}
		if step.Attr == "" {
			return fmt.Errorf("steps[%d]: attr is required", i)
		}
		switch step.Expect {
		case "", OutcomeOK, OutcomeProtected, OutcomeError:
		default:
			return fmt.Errorf("steps[%d]: unknown expect %q", i, step.Expect)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, refs); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, refs map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if !refs[a.Object] {
		return fmt.Errorf("assertions[%d]: unknown object %q", index, a.Object)
	}
	if a.Attr == "" {
		return fmt.Errorf("assertions[%d]: attr is required", index)
	}

	switch a.Type {
	case AssertFinalValue, AssertUnset, AssertLocked:
	case AssertWriteCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for write_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
