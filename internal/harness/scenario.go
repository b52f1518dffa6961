package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/speller/internal/grid"
	"github.com/roach88/speller/internal/monitor"
)

// Scenario is one scripted speller session with its expected outcome.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Grid      [][]string `yaml:"grid,omitempty"`
	Threshold *float64   `yaml:"threshold,omitempty"`
	Trigger   string     `yaml:"trigger,omitempty"`
	LogWindow int        `yaml:"log_window,omitempty"`
	MinGapMS  int64      `yaml:"min_gap_ms,omitempty"`

	// StepMS is how far the clock advances on every reading. Defaults to
	// DefaultStepMS.
	StepMS int64 `yaml:"step_ms,omitempty"`

	// Queued issues every step without waiting for the loop in between, so
	// the loop sees flashes, samples and control events as one backlog.
	// Per-step state and text are not observed; only the final state is.
	Queued bool `yaml:"queued,omitempty"`

	Steps  []Step `yaml:"steps"`
	Expect Expect `yaml:"expect"`
}

// Step kinds.
const (
	StepStart  = "start"
	StepStop   = "stop"
	StepReset  = "reset"
	StepFlash  = "flash"
	StepTick   = "tick"
	StepSample = "sample"
	StepWait   = "wait"
	StepLost   = "lost"
	StepAttach = "attach"
	StepDetach = "detach"
)

// DefaultStepMS is the clock advance per reading when a scenario sets none.
const DefaultStepMS = 10

// Step is one scripted action.
type Step struct {
	Do string `yaml:"do"`

	// Axis and Index select the scripted flash (flash).
	Axis  string `yaml:"axis,omitempty"`
	Index int    `yaml:"index,omitempty"`

	// Value is the offered probability (sample).
	Value *float64 `yaml:"value,omitempty"`

	// MS is the clock advance (wait).
	MS int64 `yaml:"ms,omitempty"`
}

// Expect holds the final-state checks. Unset fields are not checked.
type Expect struct {
	Symbols   []string `yaml:"symbols,omitempty"`
	Text      *string  `yaml:"text,omitempty"`
	State     string   `yaml:"state,omitempty"`
	Running   *bool    `yaml:"running,omitempty"`
	Connected *bool    `yaml:"connected,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Threshold != nil && (*s.Threshold < 0 || *s.Threshold > 1) {
		return fmt.Errorf("threshold must be in [0, 1], got %v", *s.Threshold)
	}
	if s.Trigger != "" {
		if _, err := monitor.ParseMode(s.Trigger); err != nil {
			return err
		}
	}
	if s.LogWindow < 0 {
		return fmt.Errorf("log_window must be non-negative")
	}
	if s.MinGapMS < 0 || s.StepMS < 0 {
		return fmt.Errorf("min_gap_ms and step_ms must be non-negative")
	}
	if s.Grid != nil {
		if _, err := grid.New(s.Grid); err != nil {
			return fmt.Errorf("grid: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	if s.Expect.State != "" {
		switch s.Expect.State {
		case "EMPTY", "ROW_PENDING", "COL_PENDING":
		default:
			return fmt.Errorf("expect.state: unknown state %q", s.Expect.State)
		}
	}
	return nil
}

// validateStep validates a single step based on its kind.
func validateStep(index int, st Step) error {
	switch st.Do {
	case StepStart, StepStop, StepReset, StepTick, StepLost, StepAttach, StepDetach:
	case StepFlash:
		if _, err := grid.ParseAxis(st.Axis); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		if st.Index < 0 {
			return fmt.Errorf("steps[%d]: index must be non-negative", index)
		}
	case StepSample:
		if st.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for sample", index)
		}
	case StepWait:
		if st.MS <= 0 {
			return fmt.Errorf("steps[%d]: ms must be positive for wait", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, st.Do)
	}
	return nil
}
