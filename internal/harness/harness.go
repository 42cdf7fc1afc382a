package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/engine"
	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
	"github.com/roach88/onboarding/internal/onboarding"
	"github.com/roach88/onboarding/internal/store"
	"github.com/roach88/onboarding/internal/testutil"
)

// stepInterval is how far the clock moves between steps.
const stepInterval = time.Minute

// Harness is the scenario execution environment.
// It runs steps with a deterministic clock against a throwaway store.
type Harness struct {
	tasks    *testutil.FaultyTaskStore
	sink     *faultySink
	recorder *notify.Recorder
	rec      *engine.Reconciler
	svc      *onboarding.Service
	clock    *testutil.FixedClock
	subject  model.Subject
	p        model.Partition
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and load the catalog
// 2. Execute steps, recording one trace event each
// 3. Evaluate assertions against the final store and the trace
//
// The returned error covers setup problems only; failed assertions are on
// the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	clock := testutil.NewFixedClock(testutil.Epoch)

	st, err := store.Open(":memory:", store.WithNow(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	provider, err := scenarioCatalog(ctx, st, scenario, logger)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		tasks:    testutil.NewFaultyTaskStore(st),
		recorder: notify.NewRecorder(),
		clock:    clock,
		subject:  model.SubjectFromFields(scenario.Subject),
		p:        scenario.Partition,
	}
	h.sink = &faultySink{next: h.recorder}
	h.rec = engine.New(h.tasks, provider, h.sink,
		engine.WithClock(clock),
		engine.WithLogger(logger),
	)
	h.svc = onboarding.NewService(st, st, h.rec,
		onboarding.WithClock(clock),
		onboarding.WithLogger(logger),
	)

	result := NewResult()
	for i, step := range scenario.Steps {
		ev := h.runStep(ctx, step)
		ev.Seq = i + 1
		result.Trace = append(result.Trace, ev)
		clock.Advance(stepInterval)
	}

	for _, msg := range h.recorder.Messages() {
		result.Notifications = append(result.Notifications, SentNotification{
			TaskID:      msg.TaskID,
			Event:       string(msg.Event),
			Destination: msg.Destination,
		})
	}

	actx := &AssertionContext{
		Ctx:       ctx,
		Store:     st,
		Partition: h.p,
		SubjectID: h.subject.ID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// scenarioCatalog picks the template source: inline templates are written
// to the categories table, a catalog file backs up the table, and the
// built-in templates back up everything.
func scenarioCatalog(ctx context.Context, st *store.Store, s *Scenario, logger *slog.Logger) (catalog.Provider, error) {
	if len(s.Templates) > 0 {
		if err := st.ReplaceCategories(ctx, s.Partition, s.Templates); err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
	}
	var def catalog.Provider = catalog.Static{Templates: catalog.DefaultTemplates()}
	if s.Catalog != "" {
		set, err := catalog.LoadFile(s.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		def = set
	}
	return catalog.Fallback{
		Primary: store.CategoryProvider{Store: st},
		Default: def,
		Logger:  logger,
	}, nil
}

func (h *Harness) runStep(ctx context.Context, step Step) TraceEvent {
	ev := TraceEvent{Op: step.Op, TaskID: step.Task, Outcomes: []TraceOutcome{}}
	h.applyFaults(step.Faults)
	defer h.clearFaults(step.Faults)

	switch step.Op {
	case OpReconcile, OpPropagate, OpSync:
		h.subject = model.ApplyFields(h.subject, step.Fields)
		var report *engine.Report
		var err error
		switch step.Op {
		case OpReconcile:
			report, err = h.rec.Reconcile(ctx, h.p, h.subject)
		case OpPropagate:
			report, err = h.rec.Propagate(ctx, h.p, h.subject)
		default:
			report, err = h.rec.Sync(ctx, h.p, h.subject)
		}
		if err != nil {
			ev.Error = errorCode(err)
			return ev
		}
		ev.Outcomes = traceOutcomes(report)
	case OpComplete:
		if _, err := h.svc.CompleteTask(ctx, h.p, step.Task); err != nil {
			ev.Error = errorCode(err)
		}
	case OpCancel:
		if _, err := h.svc.CancelTask(ctx, h.p, step.Task, step.Reason); err != nil {
			ev.Error = errorCode(err)
		}
	}
	return ev
}

// traceOutcomes keeps the steps that changed something or failed.
func traceOutcomes(report *engine.Report) []TraceOutcome {
	out := []TraceOutcome{}
	for _, o := range report.Outcomes {
		if !o.Action.Mutates() && o.Err == nil {
			continue
		}
		t := TraceOutcome{
			TaskID:   o.TaskID,
			Action:   string(o.Action),
			Status:   string(o.Status),
			Notified: string(o.Notified),
		}
		if o.Err != nil {
			t.Error = errorCode(o.Err)
		}
		if o.NotifyErr != nil {
			t.NotifyError = errorCode(o.NotifyErr)
		}
		out = append(out, t)
	}
	return out
}

// errorCode reduces an error to a stable string for traces.
func errorCode(err error) string {
	var se *engine.SyncError
	switch {
	case errors.As(err, &se):
		return string(se.Code)
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, onboarding.ErrTaskClosed):
		return "TASK_CLOSED"
	case errors.Is(err, onboarding.ErrReasonRequired):
		return "REASON_REQUIRED"
	}
	return "ERROR"
}

var errInjected = errors.New("injected fault")

func (h *Harness) applyFaults(f *Faults) {
	if f == nil {
		return
	}
	for _, id := range f.Insert {
		h.tasks.FailInsert(id, errInjected)
	}
	for _, id := range f.Update {
		h.tasks.FailUpdate(id, errInjected)
	}
	h.sink.fail = f.Notify
}

func (h *Harness) clearFaults(f *Faults) {
	if f == nil {
		return
	}
	for _, id := range f.Insert {
		h.tasks.FailInsert(id, nil)
	}
	for _, id := range f.Update {
		h.tasks.FailUpdate(id, nil)
	}
	h.sink.fail = false
}

// faultySink forwards to next unless failing is switched on.
// Steps run sequentially, so fail needs no lock.
type faultySink struct {
	next notify.Sink
	fail bool
}

func (s *faultySink) Send(ctx context.Context, msg notify.Message) error {
	if s.fail {
		return errInjected
	}
	return s.next.Send(ctx, msg)
}
