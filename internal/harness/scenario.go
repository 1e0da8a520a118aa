package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario; it also names the golden
	// file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// StartAt pins the clock at the start of the run, YYYY-MM-DD.
	StartAt string `yaml:"start_at"`

	// IDs is the fixed id sequence handed to the engine's id generator,
	// consumed in order by rule and event creation.
	IDs []string `yaml:"ids,omitempty"`

	// Steps is the ordered list of operations to execute.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store state after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ActionSpec names a pricing action in YAML form.
type ActionSpec struct {
	Kind      string  `yaml:"kind"`
	Percent   float64 `yaml:"percent,omitempty"`
	RateCents int64   `yaml:"rate_cents,omitempty"`
	MinStay   int     `yaml:"min_stay,omitempty"`
	Block     bool    `yaml:"block,omitempty"`
}

// Step is a single harness operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Identity and naming.
	ID    string `yaml:"id,omitempty"`
	Title string `yaml:"title,omitempty"`
	Name  string `yaml:"name,omitempty"`

	// Dates, YYYY-MM-DD.
	Start string `yaml:"start,omitempty"`
	End   string `yaml:"end,omitempty"`

	// Rule fields.
	Priority int         `yaml:"priority,omitempty"`
	Active   *bool       `yaml:"active,omitempty"`
	Action   *ActionSpec `yaml:"action,omitempty"`
	Rooms    []string    `yaml:"rooms,omitempty"`

	// Event fields.
	Category  string `yaml:"category,omitempty"`
	Suggested int    `yaml:"suggested,omitempty"`
	Rule      string `yaml:"rule,omitempty"`

	// Override fields.
	Strategy string  `yaml:"strategy,omitempty"`
	Urgency  string  `yaml:"urgency,omitempty"`
	Percent  float64 `yaml:"percent,omitempty"`
	Reason   string  `yaml:"reason,omitempty"`
	Staff    string  `yaml:"staff,omitempty"`

	// Advance is a duration ("72h") for the advance op.
	Advance string `yaml:"advance,omitempty"`

	// Expect is subset-matched against the step's result map.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion validates final store state.
type Assertion struct {
	// Type is "rule_state" or "event_status".
	Type string `yaml:"type"`

	// Rule is the rule id (rule_state).
	Rule string `yaml:"rule,omitempty"`

	// Event is the event id (event_status).
	Event string `yaml:"event,omitempty"`

	// Expect holds expected field values, subset-matched.
	Expect map[string]any `yaml:"expect"`
}

// Assertion type constants.
const (
	AssertRuleState   = "rule_state"
	AssertEventStatus = "event_status"
)

// Step op constants.
const (
	OpSeedRule       = "seed_rule"
	OpSeedEvent      = "seed_event"
	OpCreateEvent    = "create_event"
	OpCreateOverride = "create_override"
	OpRemoveOverride = "remove_override"
	OpListOverrides  = "list_overrides"
	OpCheck          = "check"
	OpSweep          = "sweep"
	OpAdvance        = "advance"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently skipping a
// check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

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
	if s.StartAt == "" {
		return fmt.Errorf("start_at is required")
	}
	if _, err := time.Parse("2006-01-02", s.StartAt); err != nil {
		return fmt.Errorf("start_at: %w", err)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpSeedRule:
		if s.ID == "" || s.Action == nil {
			return fmt.Errorf("steps[%d]: seed_rule requires id and action", index)
		}
	case OpSeedEvent:
		if s.ID == "" || s.Rule == "" {
			return fmt.Errorf("steps[%d]: seed_event requires id and rule", index)
		}
	case OpCreateEvent:
		if s.Title == "" || s.Action == nil {
			return fmt.Errorf("steps[%d]: create_event requires title and action", index)
		}
	case OpCreateOverride:
		if s.Name == "" || s.Strategy == "" {
			return fmt.Errorf("steps[%d]: create_override requires name and strategy", index)
		}
	case OpRemoveOverride:
		if s.Rule == "" {
			return fmt.Errorf("steps[%d]: remove_override requires rule", index)
		}
	case OpCheck:
		if s.Action == nil {
			return fmt.Errorf("steps[%d]: check requires action", index)
		}
	case OpAdvance:
		if s.Advance == "" {
			return fmt.Errorf("steps[%d]: advance requires a duration", index)
		}
		if _, err := time.ParseDuration(s.Advance); err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
	case OpListOverrides, OpSweep:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	for _, d := range []struct{ name, v string }{{"start", s.Start}, {"end", s.End}} {
		if d.v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d.v); err != nil {
			return fmt.Errorf("steps[%d]: %s: %w", index, d.name, err)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertRuleState:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for rule_state", index)
		}
	case AssertEventStatus:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_status", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if len(a.Expect) == 0 {
		return fmt.Errorf("assertions[%d]: expect is required", index)
	}
	return nil
}
