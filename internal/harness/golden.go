package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/onboarding/internal/model"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName  string             `json:"scenario_name"`
	Partition     model.Partition    `json:"partition"`
	SubjectID     string             `json:"subject_id"`
	Trace         []TraceEvent       `json:"trace"`
	Notifications []SentNotification `json:"notifications"`
}

// NewTraceSnapshot builds the snapshot of a run.
func NewTraceSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName:  scenario.Name,
		Partition:     scenario.Partition,
		SubjectID:     scenario.SubjectID(),
		Trace:         result.Trace,
		Notifications: result.Notifications,
	}
}

// toCanonicalMap converts a TraceSnapshot to the value types
// model.MarshalCanonical accepts. Empty optional fields are omitted.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		outcomes := make([]any, len(event.Outcomes))
		for j, o := range event.Outcomes {
			om := map[string]any{
				"task_id": o.TaskID,
				"action":  o.Action,
			}
			putIfSet(om, "status", o.Status)
			putIfSet(om, "notified", o.Notified)
			putIfSet(om, "error", o.Error)
			putIfSet(om, "notify_error", o.NotifyError)
			outcomes[j] = om
		}
		em := map[string]any{
			"seq":      event.Seq,
			"op":       event.Op,
			"outcomes": outcomes,
		}
		putIfSet(em, "task_id", event.TaskID)
		putIfSet(em, "error", event.Error)
		traceList[i] = em
	}

	sent := make([]any, len(s.Notifications))
	for i, n := range s.Notifications {
		sent[i] = map[string]any{
			"task_id":     n.TaskID,
			"event":       n.Event,
			"destination": n.Destination,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"partition":     string(s.Partition),
		"subject_id":    s.SubjectID,
		"trace":         traceList,
		"notifications": sent,
	}
}

func putIfSet(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// MarshalCanonical returns the snapshot's canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return model.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against the scenario's
// golden file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenario, result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
