package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceSnapshotCanonical(t *testing.T) {
	scenario := &Scenario{Name: "snap", Partition: "dev", Subject: map[string]any{"submission_id": "S1"}}
	result := NewResult()
	result.Trace = []TraceEvent{
		{Seq: 1, Op: OpComplete, TaskID: "ONB-S1-9", Error: "NOT_FOUND", Outcomes: []TraceOutcome{}},
		{Seq: 2, Op: OpReconcile, Outcomes: []TraceOutcome{
			{TaskID: "ONB-S1-3", Action: "create", Status: "Open", NotifyError: "NOTIFICATION_FAILURE"},
		}},
	}

	got, err := NewTraceSnapshot(scenario, result).MarshalCanonical()
	require.NoError(t, err)

	want := `{"notifications":[],"partition":"dev","scenario_name":"snap","subject_id":"S1","trace":[` +
		`{"error":"NOT_FOUND","op":"complete","outcomes":[],"seq":1,"task_id":"ONB-S1-9"},` +
		`{"op":"reconcile","outcomes":[{"action":"create","notify_error":"NOTIFICATION_FAILURE","status":"Open","task_id":"ONB-S1-3"}],"seq":2}]}`
	assert.Equal(t, want, string(got))
}
