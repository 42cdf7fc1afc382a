package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Op)
			if event.Error != "" {
				fmt.Fprintf(&buf, " error=%s", event.Error)
			}
			buf.WriteByte('\n')
			for _, o := range event.Outcomes {
				fmt.Fprintf(&buf, "      %s %s", o.Action, o.TaskID)
				if o.Error != "" {
					fmt.Fprintf(&buf, " error=%s", o.Error)
				}
				if o.NotifyError != "" {
					fmt.Fprintf(&buf, " notify_error=%s", o.NotifyError)
				}
				buf.WriteByte('\n')
			}
		}
	}

	return buf.String()
}

// taskFields maps task_state keys to task accessors.
var taskFields = map[string]func(model.Task) string{
	"status":              func(t model.Task) string { return string(t.Status) },
	"name":                func(t model.Task) string { return t.Name },
	"description":         func(t model.Task) string { return t.Description },
	"manager":             func(t model.Task) string { return t.Manager },
	"employee_full_name":  func(t model.Task) string { return t.EmployeeFullName },
	"assigned_to":         func(t model.Task) string { return t.AssignedTo },
	"task_type":           func(t model.Task) string { return t.Kind },
	"cancellation_reason": func(t model.Task) string { return t.CancellationReason },
}

// assertTaskState checks the task's fields against expect (subset match).
func assertTaskState(actx *AssertionContext, assertion Assertion) error {
	task, err := actx.Store.GetTask(actx.Ctx, actx.Partition, assertion.Task)
	if err != nil {
		return &AssertionError{
			Type:     AssertTaskState,
			Expected: fmt.Sprintf("task %s to exist", assertion.Task),
			Actual:   err.Error(),
		}
	}

	// Sorted keys keep failure messages stable
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		get, ok := taskFields[key]
		if !ok {
			return fmt.Errorf("task_state: unknown task field %q", key)
		}
		if got, want := get(task), assertion.Expect[key]; got != want {
			return &AssertionError{
				Type:     AssertTaskState,
				Expected: fmt.Sprintf("task %s %s = %q", assertion.Task, key, want),
				Actual:   fmt.Sprintf("%s = %q", key, got),
			}
		}
	}
	return nil
}

// assertTaskAbsent checks that no task with the id exists.
func assertTaskAbsent(actx *AssertionContext, assertion Assertion) error {
	task, err := actx.Store.GetTask(actx.Ctx, actx.Partition, assertion.Task)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("task_absent: %w", err)
	}
	return &AssertionError{
		Type:     AssertTaskAbsent,
		Expected: fmt.Sprintf("no task %s", assertion.Task),
		Actual:   fmt.Sprintf("task exists with status %s", task.Status),
	}
}

// assertTaskCount checks how many tasks the subject has.
func assertTaskCount(actx *AssertionContext, assertion Assertion) error {
	tasks, err := actx.Store.ListTasksBySubject(actx.Ctx, actx.Partition, actx.SubjectID)
	if err != nil {
		return fmt.Errorf("task_count: %w", err)
	}
	if len(tasks) != assertion.Count {
		ids := make([]string, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID
		}
		return &AssertionError{
			Type:     AssertTaskCount,
			Expected: fmt.Sprintf("%d tasks for subject %s", assertion.Count, actx.SubjectID),
			Actual:   fmt.Sprintf("%d tasks %v", len(tasks), ids),
		}
	}
	return nil
}

// assertTraceContains checks that some step produced the action on the task.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		for _, o := range event.Outcomes {
			if o.Action == assertion.Action && o.TaskID == assertion.Task {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s on %s", assertion.Action, assertion.Task),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		for _, o := range event.Outcomes {
			if o.Action == assertion.Action && o.Error == "" {
				count++
			}
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertNotificationCount counts sent notifications, optionally of one event.
func assertNotificationCount(sent []SentNotification, assertion Assertion) error {
	count := 0
	for _, n := range sent {
		if assertion.Event == "" || n.Event == assertion.Event {
			count++
		}
	}
	if count != assertion.Count {
		what := "notifications"
		if assertion.Event != "" {
			what = assertion.Event + " notifications"
		}
		return &AssertionError{
			Type:     AssertNotificationCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertNotificationOrder compares the sent events, in order, with the list.
func assertNotificationOrder(sent []SentNotification, assertion Assertion) error {
	got := make([]string, len(sent))
	for i, n := range sent {
		got[i] = n.Event
	}
	if !slices.Equal(got, assertion.Events) {
		return &AssertionError{
			Type:     AssertNotificationOrder,
			Expected: fmt.Sprintf("%v", assertion.Events),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx       context.Context
	Store     *store.Store
	Partition model.Partition
	SubjectID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for task assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTaskState, AssertTaskAbsent, AssertTaskCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertTaskState:
				err = assertTaskState(actx, assertion)
			case AssertTaskAbsent:
				err = assertTaskAbsent(actx, assertion)
			default:
				err = assertTaskCount(actx, assertion)
			}
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertNotificationCount:
			err = assertNotificationCount(result.Notifications, assertion)
		case AssertNotificationOrder:
			err = assertNotificationOrder(result.Notifications, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
