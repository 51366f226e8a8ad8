package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerql/internal/query"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the CUE catalog directory. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Catalog string `yaml:"catalog"`

	// Clock is the date the C sentinel resolves to. Any layout dateparse
	// understands is accepted. Defaults to 2024-01-01.
	Clock string `yaml:"clock,omitempty"`

	// DefaultLedger replaces {LEDGER} when a formula names none.
	DefaultLedger string `yaml:"default_ledger,omitempty"`

	// Steps are compiled in order.
	Steps []Step `yaml:"steps"`
}

// Step is one formula to compile and its expectation.
type Step struct {
	Formula string   `yaml:"formula"`
	Params  []string `yaml:"params,omitempty"`

	// Mode is summary (default) or details.
	Mode string `yaml:"mode,omitempty"`

	// Light parses without parameter indirection.
	Light bool `yaml:"light,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect specifies the expected compilation outcome. Error is exclusive
// with the SQL expectations.
type Expect struct {
	SQL        string   `yaml:"sql,omitempty"`
	Contains   []string `yaml:"contains,omitempty"`
	Excludes   []string `yaml:"excludes,omitempty"`
	Connection string   `yaml:"connection,omitempty"`
	Error      string   `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the catalog path relative to the scenario BEFORE validation
	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	var scenarios []*Scenario
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
		return fmt.Errorf("catalog not found: %s", s.Catalog)
	}

	if s.Clock != "" {
		if _, err := parseClock(s.Clock); err != nil {
			return fmt.Errorf("clock: %w", err)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Formula == "" {
			return fmt.Errorf("steps[%d]: formula is required", i)
		}
		if _, err := query.ParseMode(step.Mode); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Light && len(step.Params) > 0 {
			return fmt.Errorf("steps[%d]: light steps take no params", i)
		}
		if err := validateExpect(i, step.Expect); err != nil {
			return err
		}
	}

	return nil
}

// validateExpect validates a single step expectation.
func validateExpect(index int, e Expect) error {
	hasSQL := e.SQL != "" || len(e.Contains) > 0 || len(e.Excludes) > 0 || e.Connection != ""
	switch {
	case e.Error != "" && hasSQL:
		return fmt.Errorf("steps[%d].expect: error cannot be combined with sql expectations", index)
	case e.Error == "" && !hasSQL:
		return fmt.Errorf("steps[%d].expect: sql, contains, excludes, connection or error is required", index)
	case e.Error != "" && !knownErrorKinds[e.Error]:
		return fmt.Errorf("steps[%d].expect: unknown error kind %q", index, e.Error)
	}
	return nil
}
