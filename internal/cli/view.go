package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/roach88/onboarding/internal/engine"
	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/onboarding"
	"github.com/roach88/onboarding/internal/store"
)

// OutcomeView is the JSON form of one reconciliation step.
type OutcomeView struct {
	Flag        string `json:"flag,omitempty"`
	TaskID      string `json:"task_id"`
	Action      string `json:"action"`
	Status      string `json:"status,omitempty"`
	Notified    string `json:"notified,omitempty"`
	Error       string `json:"error,omitempty"`
	NotifyError string `json:"notify_error,omitempty"`
}

// SyncView is the JSON form of a submission write and its sync.
type SyncView struct {
	Submission         model.Subject `json:"submission"`
	CatalogFingerprint string        `json:"catalog_fingerprint,omitempty"`
	Outcomes           []OutcomeView `json:"outcomes"`
	Degraded           bool          `json:"degraded"`
	SyncError          string        `json:"sync_error,omitempty"`
}

func newSyncView(res onboarding.Result) SyncView {
	v := SyncView{
		Submission: res.Subject,
		Outcomes:   []OutcomeView{},
		Degraded:   res.Degraded(),
	}
	if res.SyncErr != nil {
		v.SyncError = res.SyncErr.Error()
	}
	if res.Report != nil {
		v.CatalogFingerprint = res.Report.CatalogFingerprint
		for _, o := range res.Report.Outcomes {
			v.Outcomes = append(v.Outcomes, newOutcomeView(o))
		}
	}
	return v
}

func newOutcomeView(o engine.Outcome) OutcomeView {
	v := OutcomeView{
		Flag:     o.Flag,
		TaskID:   o.TaskID,
		Action:   string(o.Action),
		Status:   string(o.Status),
		Notified: string(o.Notified),
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	if o.NotifyErr != nil {
		v.NotifyError = o.NotifyErr.Error()
	}
	return v
}

// String renders the text form.
func (v SyncView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Submission %s (%s)\n", v.Submission.ID, v.Submission.FullName())
	if len(v.Outcomes) > 0 {
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		for _, o := range v.Outcomes {
			line := fmt.Sprintf("  %s\t%s\t%s", o.Action, o.TaskID, o.Status)
			if o.Notified != "" {
				line += "\tnotified " + o.Notified
			}
			if o.Error != "" {
				line += "\terror: " + o.Error
			}
			if o.NotifyError != "" {
				line += "\tnotify error: " + o.NotifyError
			}
			fmt.Fprintln(tw, line)
		}
		tw.Flush()
	}
	if v.Degraded {
		fmt.Fprintf(&b, "✗ Tasks not fully synced: %s", v.SyncError)
	} else {
		b.WriteString("✓ Tasks in sync")
	}
	return b.String()
}

// TaskList renders tasks as a table in text mode.
type TaskList []model.Task

func (l TaskList) String() string {
	if len(l) == 0 {
		return "No tasks."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATUS\tTYPE\tASSIGNED TO\tMANAGER")
	for _, t := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Kind, t.AssignedTo, t.Manager)
	}
	tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// TaskView renders one task in detail in text mode.
type TaskView model.Task

func (t TaskView) String() string {
	var b strings.Builder
	writeKV(&b, "Task", t.ID)
	writeKV(&b, "Name", t.Name)
	writeKV(&b, "Status", string(t.Status))
	writeKV(&b, "Type", t.Kind)
	writeKV(&b, "Assigned to", t.AssignedTo)
	writeKV(&b, "Employee", t.EmployeeFullName)
	writeKV(&b, "Manager", t.Manager)
	writeKV(&b, "Description", t.Description)
	if t.CancellationReason != "" {
		writeKV(&b, "Reason", t.CancellationReason)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// SubmissionView renders one submission in detail in text mode.
type SubmissionView model.Subject

func (s SubmissionView) String() string {
	var b strings.Builder
	sub := model.Subject(s)
	writeKV(&b, "Submission", sub.ID)
	writeKV(&b, "Name", sub.FullName())
	writeKV(&b, "Manager", sub.Manager)
	if sub.Department != "" {
		writeKV(&b, "Department", sub.Department)
	}
	var requested []string
	for _, flag := range sortedFlags(sub.Flags) {
		if sub.Flags[flag] {
			requested = append(requested, flag)
		}
	}
	writeKV(&b, "Requested", strings.Join(requested, ", "))
	return strings.TrimSuffix(b.String(), "\n")
}

// SubmissionList renders submissions as a table in text mode.
type SubmissionList []model.Subject

func (l SubmissionList) String() string {
	if len(l) == 0 {
		return "No submissions."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMISSION\tNAME\tMANAGER")
	for _, s := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.FullName(), s.Manager)
	}
	tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// OutboxList renders pending notifications in text mode.
type OutboxList []store.OutboxEntry

func (l OutboxList) String() string {
	if len(l) == 0 {
		return "No pending notifications."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEVENT\tTASK\tDESTINATION")
	for _, e := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Message.Event, e.Message.TaskID, e.Message.Destination)
	}
	tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

func sortedFlags(flags map[string]bool) []string {
	return slices.Sorted(maps.Keys(flags))
}

func writeKV(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%-12s %s\n", key+":", value)
}
