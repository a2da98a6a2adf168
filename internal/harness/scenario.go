package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vidindex/internal/engine"
	"github.com/roach88/vidindex/internal/ir"
)

// Scenario is one conformance case: a list of wire events applied in order
// followed by assertions on the resulting store.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Events are wire-format events. They are decoded at run time so that
	// malformed events can be the subject of an error assertion.
	Events []map[string]any `yaml:"events"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks the final store or the outcome of one event.
type Assertion struct {
	Type string `yaml:"type"`

	// Entity and ID select the entity for entity and absent assertions.
	Entity string `yaml:"entity,omitempty"`
	ID     string `yaml:"id,omitempty"`

	// Expect is a subset of the entity's outbound fields.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Where is a Read API filter for count assertions.
	Where map[string]any `yaml:"where,omitempty"`
	Count *int           `yaml:"count,omitempty"`

	// Event is the zero-based index of the failing event and Code the
	// expected IndexError code.
	Event *int   `yaml:"event,omitempty"`
	Code  string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertEntity = "entity"
	AssertAbsent = "absent"
	AssertCount  = "count"
	AssertError  = "error"
)

var errorCodes = map[string]bool{
	string(engine.ErrCodeSchemaViolation):  true,
	string(engine.ErrCodeOutOfOrder):       true,
	string(engine.ErrCodePositionConflict): true,
	string(engine.ErrCodeStoreUnavailable): true,
}

// LoadScenario reads and parses a scenario file. Unknown keys are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	errorAsserts := 0
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Events)); err != nil {
			return err
		}
		if assertion.Type == AssertError {
			errorAsserts++
		}
	}
	if errorAsserts > 1 {
		return fmt.Errorf("at most one error assertion is allowed, got %d", errorAsserts)
	}
	return nil
}

func validateAssertion(index int, a *Assertion, events int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEntity, AssertAbsent:
		if err := checkEntity(index, a.Entity); err != nil {
			return err
		}
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
		if a.Type == AssertEntity && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for entity", index)
		}
	case AssertCount:
		if err := checkEntity(index, a.Entity); err != nil {
			return err
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for count", index)
		}
	case AssertError:
		if a.Event == nil || *a.Event < 0 || *a.Event >= events {
			return fmt.Errorf("assertions[%d]: event must index one of the %d events", index, events)
		}
		if !errorCodes[a.Code] {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func checkEntity(index int, name string) error {
	if name == "" {
		return fmt.Errorf("assertions[%d]: entity is required", index)
	}
	if _, ok := ir.LookupEntity(name); !ok {
		return fmt.Errorf("assertions[%d]: unknown entity %q", index, name)
	}
	return nil
}
