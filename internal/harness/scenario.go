package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a set of query cases run against fixture tables.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions is an optional directory of CUE query definitions.
	// Relative paths are resolved against the scenario file location.
	Definitions string `yaml:"definitions,omitempty"`

	// Sources declares sequences and their item types in addition to those
	// found in Definitions. Fixture tables without a declaration are
	// sources of type "item".
	Sources map[string]string `yaml:"sources,omitempty"`

	// Fixtures maps table names to their items, in sequence order.
	Fixtures map[string][]any `yaml:"fixtures,omitempty"`

	// Cases are run in order against one store.
	Cases []Case `yaml:"cases"`
}

// Case compiles and runs one chain. Exactly one of Query and Chain is set.
type Case struct {
	Name string `yaml:"name"`

	// Query names a query from the scenario's definitions.
	Query string `yaml:"query,omitempty"`

	// Chain is inline chain text.
	Chain string `yaml:"chain,omitempty"`

	// Params are captured host values. For a named query they override
	// the query's own params.
	Params map[string]any `yaml:"params,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a case result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "result_equals": the executed value equals Expect
	// - "result_count": the executed sequence has Count items
	// - "result_contains": some item of the executed sequence matches Expect
	//   (objects match on the fields Expect names)
	// - "model_equals": the rendered query model equals Text
	// - "sql_contains": the compiled SQL contains Text
	// - "portable": the model has no portability warnings
	// - "error": the case failed with Code, and the message contains Text
	Type string `yaml:"type"`

	Expect any    `yaml:"expect,omitempty"`
	Count  int    `yaml:"count,omitempty"`
	Text   string `yaml:"text,omitempty"`
	Code   string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertResultEquals   = "result_equals"
	AssertResultCount    = "result_count"
	AssertResultContains = "result_contains"
	AssertModelEquals    = "model_equals"
	AssertSQLContains    = "sql_contains"
	AssertPortable       = "portable"
	AssertError          = "error"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// definitions path relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the definitions path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Definitions != "" && !filepath.IsAbs(scenario.Definitions) && basePath != "" {
		scenario.Definitions = filepath.Join(basePath, scenario.Definitions)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Definitions != "" {
		if _, err := os.Stat(scenario.Definitions); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: definitions not found: %s", scenario.Definitions)
		}
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
// Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true

		switch {
		case c.Query == "" && c.Chain == "":
			return fmt.Errorf("cases[%d]: one of query or chain is required", i)
		case c.Query != "" && c.Chain != "":
			return fmt.Errorf("cases[%d]: query and chain are mutually exclusive", i)
		case c.Query != "" && s.Definitions == "":
			return fmt.Errorf("cases[%d]: query %q requires definitions", i, c.Query)
		}

		if len(c.Assertions) == 0 {
			return fmt.Errorf("cases[%d]: assertions list is required and must be non-empty", i)
		}
		for j := range c.Assertions {
			if err := validateAssertion(i, j, &c.Assertions[j]); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(caseIndex, index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("cases[%d].assertions[%d]: type is required", caseIndex, index)
	}

	switch a.Type {
	case AssertResultEquals, AssertPortable:
	case AssertResultContains:
		if a.Expect == nil {
			return fmt.Errorf("cases[%d].assertions[%d]: expect is required for result_contains", caseIndex, index)
		}
	case AssertResultCount:
		if a.Count < 0 {
			return fmt.Errorf("cases[%d].assertions[%d]: count must be non-negative for result_count", caseIndex, index)
		}
	case AssertModelEquals, AssertSQLContains:
		if a.Text == "" {
			return fmt.Errorf("cases[%d].assertions[%d]: text is required for %s", caseIndex, index, a.Type)
		}
	case AssertError:
		if a.Code == "" && a.Text == "" {
			return fmt.Errorf("cases[%d].assertions[%d]: code or text is required for error", caseIndex, index)
		}
	default:
		return fmt.Errorf("cases[%d].assertions[%d]: unknown assertion type %q", caseIndex, index, a.Type)
	}

	return nil
}
