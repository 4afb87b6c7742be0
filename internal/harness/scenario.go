package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/runproof/internal/run"
)

// Mode selects the operation a scenario exercises.
type Mode string

const (
	ModeDiff         Mode = "diff"
	ModeAssert       Mode = "assert"
	ModeReplayStub   Mode = "replay_stub"
	ModeReplayHybrid Mode = "replay_hybrid"
)

// Scenario defines a regression scenario: one operation over recorded runs
// plus assertions on its outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Mode Mode `yaml:"mode"`

	// Baseline is the run file diffed against, asserted against or replayed.
	// Paths are relative to the scenario file location.
	Baseline string `yaml:"baseline"`

	// Candidate is the compared run for diff and assert, and the rerun run
	// for replay_hybrid.
	Candidate string `yaml:"candidate,omitempty"`

	// Policy is an optional CUE policy file. Scenario fields override it.
	Policy string `yaml:"policy,omitempty"`

	Strict            bool `yaml:"strict,omitempty"`
	StopAtFirst       bool `yaml:"stop_at_first_divergence,omitempty"`
	MaxChangesPerStep int  `yaml:"max_changes_per_step,omitempty"`

	// Seed is decoded loosely so non-integer seeds reach the replay
	// engine's own validation.
	Seed       any    `yaml:"seed,omitempty"`
	FixedClock string `yaml:"fixed_clock,omitempty"`

	Select              *SelectClause `yaml:"select,omitempty"`
	AllowLengthMismatch bool          `yaml:"allow_length_mismatch,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// SelectClause names the steps a hybrid replay substitutes.
type SelectClause struct {
	StepTypes []string `yaml:"step_types,omitempty"`
	StepIDs   []string `yaml:"step_ids,omitempty"`
}

// Assertion validates one aspect of a scenario outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "identical": diff or assert identical flag equals Equals
	// - "passed": assertion verdict equals Equals
	// - "first_divergence": first divergent step is at Index (Status and StepType optional)
	// - "changed_paths": the step at Index changed exactly Paths
	//
	// Index is the 1-based step position, as in diff reports.
	// - "status_count": Count steps have Status
	// - "strict_failures": Count strict failures (of Kind, if set)
	// - "step_count": the replayed run has Count steps
	// - "step_metadata": metadata Field of replayed step Index equals Equals
	// - "error": the operation failed with configuration error Code
	Type string `yaml:"type"`

	Index    int      `yaml:"index,omitempty"`
	Status   string   `yaml:"status,omitempty"`
	StepType string   `yaml:"step_type,omitempty"`
	Paths    []string `yaml:"paths,omitempty"`
	Count    int      `yaml:"count,omitempty"`
	Kind     string   `yaml:"kind,omitempty"`
	Field    string   `yaml:"field,omitempty"`
	Code     string   `yaml:"code,omitempty"`
	Equals   any      `yaml:"equals,omitempty"`
}

// Assertion type constants.
const (
	AssertIdentical       = "identical"
	AssertPassed          = "passed"
	AssertFirstDivergence = "first_divergence"
	AssertChangedPaths    = "changed_paths"
	AssertStatusCount     = "status_count"
	AssertStrictFailures  = "strict_failures"
	AssertStepCount       = "step_count"
	AssertStepMetadata    = "step_metadata"
	AssertError           = "error"
)

// LoadScenario reads and parses a scenario YAML file. Run and policy paths
// resolve relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving run and policy paths relative to basePath.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Baseline = resolve(basePath, scenario.Baseline)
	scenario.Candidate = resolve(basePath, scenario.Candidate)
	scenario.Policy = resolve(basePath, scenario.Policy)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Baseline == "" {
		return fmt.Errorf("baseline is required")
	}

	switch s.Mode {
	case ModeDiff, ModeAssert, ModeReplayHybrid:
		if s.Candidate == "" {
			return fmt.Errorf("candidate is required for mode %s", s.Mode)
		}
	case ModeReplayStub:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if s.MaxChangesPerStep < 0 {
		return fmt.Errorf("max_changes_per_step must be non-negative")
	}

	for _, p := range []string{s.Baseline, s.Candidate, s.Policy} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	if s.Select != nil {
		for _, t := range s.Select.StepTypes {
			if _, err := run.ParseStepType(t); err != nil {
				return fmt.Errorf("select: %w", err)
			}
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Index < 0 {
		return fmt.Errorf("assertions[%d]: index must be non-negative", index)
	}
	switch a.Type {
	case AssertFirstDivergence, AssertChangedPaths, AssertStepMetadata:
		if a.Index < 1 {
			return fmt.Errorf("assertions[%d]: index (1-based step position) is required for %s", index, a.Type)
		}
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertIdentical, AssertPassed:
		if _, ok := a.Equals.(bool); !ok {
			return fmt.Errorf("assertions[%d]: equals must be a boolean for %s", index, a.Type)
		}
	case AssertFirstDivergence, AssertStrictFailures, AssertStepCount:
	case AssertChangedPaths:
		if len(a.Paths) == 0 {
			return fmt.Errorf("assertions[%d]: paths list is required for changed_paths", index)
		}
	case AssertStatusCount:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for status_count", index)
		}
	case AssertStepMetadata:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for step_metadata", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
