package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/onboarding/internal/model"
)

// Scenario defines a reconciliation conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Partition the scenario runs in. Default: "dev".
	Partition model.Partition `yaml:"partition,omitempty"`

	// Catalog is a YAML or CUE catalog path, relative to the scenario file.
	Catalog string `yaml:"catalog,omitempty"`

	// Templates define the catalog inline. Takes precedence over Catalog.
	Templates []model.Template `yaml:"templates,omitempty"`

	// Subject holds the raw form fields of the subject. submission_id is required.
	Subject map[string]any `yaml:"subject"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation in a scenario.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Fields are merged onto the subject before reconcile, propagate or sync.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Task is the target of complete and cancel.
	Task string `yaml:"task,omitempty"`

	// Reason is required by cancel.
	Reason string `yaml:"reason,omitempty"`

	// Faults apply for this step only.
	Faults *Faults `yaml:"faults,omitempty"`
}

// Faults injects store and sink failures.
type Faults struct {
	Insert []string `yaml:"insert,omitempty"` // task ids whose insert fails
	Update []string `yaml:"update,omitempty"` // task ids whose update fails
	Notify bool     `yaml:"notify,omitempty"` // every send fails
}

// Step operations.
const (
	OpReconcile = "reconcile"
	OpPropagate = "propagate"
	OpSync      = "sync"
	OpComplete  = "complete"
	OpCancel    = "cancel"
)

// Assertion validates final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Task is the task id (task_state, task_absent, trace_contains).
	Task string `yaml:"task,omitempty"`

	// Expect holds expected task fields (task_state). Subset match.
	// Keys: status, name, description, manager, employee_full_name,
	// assigned_to, task_type, cancellation_reason.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Action is the engine action (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Event filters notification_count.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number (task_count, trace_count, notification_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected notification order (notification_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertTaskState         = "task_state"
	AssertTaskAbsent        = "task_absent"
	AssertTaskCount         = "task_count"
	AssertTraceContains     = "trace_contains"
	AssertTraceCount        = "trace_count"
	AssertNotificationCount = "notification_count"
	AssertNotificationOrder = "notification_order"
)

// LoadScenario reads and parses a scenario YAML file. A relative Catalog
// path is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Catalog paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.Partition == "" {
		scenario.Partition = "dev"
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SubjectID returns the subject's submission_id field.
func (s *Scenario) SubjectID() string {
	return model.SubjectFromFields(s.Subject).ID
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.SubjectID() == "" {
		return fmt.Errorf("subject.submission_id is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st Step) error {
	switch st.Op {
	case OpReconcile, OpPropagate, OpSync:
		if st.Task != "" || st.Reason != "" {
			return fmt.Errorf("steps[%d]: task and reason are only valid for complete and cancel", index)
		}
	case OpComplete:
		if st.Task == "" {
			return fmt.Errorf("steps[%d]: task is required for complete", index)
		}
	case OpCancel:
		if st.Task == "" {
			return fmt.Errorf("steps[%d]: task is required for cancel", index)
		}
		if st.Reason == "" {
			return fmt.Errorf("steps[%d]: reason is required for cancel", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	if len(st.Fields) > 0 && (st.Op == OpComplete || st.Op == OpCancel) {
		return fmt.Errorf("steps[%d]: fields are not valid for %s", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTaskState:
		if a.Task == "" {
			return fmt.Errorf("assertions[%d]: task is required for task_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for task_state", index)
		}
		for key := range a.Expect {
			if _, ok := taskFields[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown task field %q", index, key)
			}
		}
	case AssertTaskAbsent:
		if a.Task == "" {
			return fmt.Errorf("assertions[%d]: task is required for task_absent", index)
		}
	case AssertTaskCount, AssertNotificationCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTraceContains:
		if a.Action == "" || a.Task == "" {
			return fmt.Errorf("assertions[%d]: action and task are required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertNotificationOrder:
		if a.Events == nil {
			return fmt.Errorf("assertions[%d]: events list is required for notification_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
