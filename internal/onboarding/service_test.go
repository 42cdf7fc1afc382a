package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/engine"
	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
	"github.com/roach88/onboarding/internal/store"
	"github.com/roach88/onboarding/internal/testutil"
)

type fixture struct {
	subs   *store.MemorySubmissionStore
	tasks  *store.MemoryTaskStore
	faulty *testutil.FaultyTaskStore
	sink   *notify.Recorder
	clock  *testutil.FixedClock
	svc    *Service
}

func newFixture(t *testing.T, provider catalog.Provider) *fixture {
	t.Helper()
	clock := testutil.NewFixedClock(testutil.Epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subs := store.NewMemorySubmissionStore(clock.Now)
	tasks := store.NewMemoryTaskStore(clock.Now)
	faulty := testutil.NewFaultyTaskStore(tasks)
	sink := notify.NewRecorder()

	r := engine.New(faulty, provider, sink, engine.WithClock(clock), engine.WithLogger(logger))
	svc := NewService(subs, tasks, r,
		WithIDGenerator(testutil.NewSequenceIDs("sub", "S1", "S2")),
		WithClock(clock),
		WithLogger(logger),
	)
	return &fixture{subs: subs, tasks: tasks, faulty: faulty, sink: sink, clock: clock, svc: svc}
}

func templates() catalog.Static {
	return catalog.Static{Templates: []model.Template{
		{
			Flag: model.FlagGasCard, ShortCode: "3", Kind: "Gas Card", NamePrefix: "Gas card for",
			AssignedTo: "Fleet", Description: "Issue fuel card", ToEmail: "fleet@example.com",
		},
		{
			Flag: model.FlagEmployeeID, ShortCode: "1", Kind: "Employee ID", NamePrefix: "Badge for",
			AssignedTo: "HR", Description: "Create badge", ToEmail: "hr@example.com",
		},
	}}
}

func form() map[string]any {
	return map[string]any{
		"LegalFirstName":       "Ada",
		"LegalLastName":        "Lovelace",
		"Manager":              "Grace Hopper",
		"GasCard_Requested":    "Yes",
		"EmployeeID_Requested": false,
	}
}

func TestCreate_AssignsIDAndSyncs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())

	res, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	assert.Equal(t, "S1", res.Subject.ID)
	assert.False(t, res.Degraded())
	assert.Equal(t, testutil.Epoch, res.Subject.CreatedAt)
	require.NotNil(t, res.Report)
	out, _ := res.Report.ByFlag(model.FlagGasCard)
	assert.Equal(t, engine.ActionCreate, out.Action)

	task, err := f.svc.Task(ctx, "dev", "ONB-S1-3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, task.Status)
	assert.Equal(t, "Gas card for Ada Lovelace", task.Name)
	assert.Equal(t, 1, f.sink.Len())
}

func TestCreate_KeepsCallerID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	fields := form()
	fields["submission_id"] = "EXT-9"

	res, err := f.svc.Create(ctx, "dev", fields)
	require.NoError(t, err)
	assert.Equal(t, "EXT-9", res.Subject.ID)

	_, err = f.svc.Create(ctx, "dev", fields)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUpdate_MergesPartialFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	_, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	res, err := f.svc.Update(ctx, "dev", "S1", map[string]any{"Manager": "Linus Torvalds"})
	require.NoError(t, err)

	assert.Equal(t, "Ada", res.Subject.FirstName, "absent fields keep stored values")
	assert.True(t, res.Subject.Requested(model.FlagGasCard))
	_, ok := res.Report.Find("ONB-S1-3", engine.ActionRefresh)
	assert.True(t, ok)

	task, err := f.svc.Task(ctx, "dev", "ONB-S1-3")
	require.NoError(t, err)
	assert.Equal(t, "Linus Torvalds", task.Manager)
}

func TestUpdate_ConcurrentMergesKeepEveryField(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	_, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Update(ctx, "dev", "S1", map[string]any{fmt.Sprintf("Note_%02d", i): "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sub, err := f.svc.Get(ctx, "dev", "S1")
	require.NoError(t, err)
	assert.Len(t, sub.Extra, writers, "no merge lost")
}

func TestCatalogFlagWithoutSuffix(t *testing.T) {
	ctx := context.Background()
	laptop := catalog.Static{Templates: []model.Template{{
		Flag: "Laptop_Needed", ShortCode: "7", Kind: "Laptop", NamePrefix: "Laptop for",
		AssignedTo: "IT", Description: "Image a laptop",
	}}}
	f := newFixture(t, laptop)
	fields := form()
	fields["Laptop_Needed"] = "yes"

	res, err := f.svc.Create(ctx, "dev", fields)
	require.NoError(t, err)
	require.False(t, res.Degraded())

	tasks, err := f.svc.Tasks(ctx, "dev", "S1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "ONB-S1-7", tasks[0].ID)
	assert.Equal(t, model.StatusOpen, tasks[0].Status)

	_, err = f.svc.Update(ctx, "dev", "S1", map[string]any{"Laptop_Needed": "no"})
	require.NoError(t, err)
	task, err := f.svc.Task(ctx, "dev", "ONB-S1-7")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotApplicable, task.Status)
}

func TestUpdate_FlagChangesReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	_, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, "dev", "S1", map[string]any{
		"GasCard_Requested":    "no",
		"EmployeeID_Requested": "1",
	})
	require.NoError(t, err)

	tasks, err := f.svc.Tasks(ctx, "dev", "S1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "ONB-S1-1", tasks[0].ID)
	assert.Equal(t, model.StatusOpen, tasks[0].Status)
	assert.Equal(t, "ONB-S1-3", tasks[1].ID)
	assert.Equal(t, model.StatusNotApplicable, tasks[1].Status)
}

func TestUpdate_UnknownSubmission(t *testing.T) {
	f := newFixture(t, templates())

	_, err := f.svc.Update(context.Background(), "dev", "missing", map[string]any{"Manager": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreate_DegradedWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	f.faulty.FailInsert("ONB-S1-3", errors.New("disk full"))

	res, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err, "the submission write succeeded")
	assert.True(t, res.Degraded())
	assert.True(t, engine.HasCode(res.SyncErr, engine.ErrCodeStoreWrite))

	_, err = f.svc.Get(ctx, "dev", "S1")
	require.NoError(t, err)

	f.faulty.FailInsert("ONB-S1-3", nil)
	res, err = f.svc.Resync(ctx, "dev", "S1")
	require.NoError(t, err)
	assert.False(t, res.Degraded())
	_, err = f.svc.Task(ctx, "dev", "ONB-S1-3")
	assert.NoError(t, err)
}

func TestCreate_DegradedWhenCatalogUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, catalog.Static{})

	res, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)
	assert.True(t, engine.IsAborting(res.SyncErr))
	assert.Nil(t, res.Report)

	subs, err := f.svc.List(ctx, "dev")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	_, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	task, err := f.svc.CompleteTask(ctx, "dev", "ONB-S1-3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, task.Status)

	// Clearing the flag afterwards leaves the completed task alone.
	_, err = f.svc.Update(ctx, "dev", "S1", map[string]any{"GasCard_Requested": false})
	require.NoError(t, err)
	task, err = f.svc.Task(ctx, "dev", "ONB-S1-3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, task.Status)

	_, err = f.svc.CompleteTask(ctx, "dev", "ONB-S1-3")
	assert.ErrorIs(t, err, ErrTaskClosed)
}

func TestCancelTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	_, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	_, err = f.svc.CancelTask(ctx, "dev", "ONB-S1-3", "  ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	task, err := f.svc.CancelTask(ctx, "dev", "ONB-S1-3", "hire withdrew")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, task.Status)
	assert.Equal(t, "hire withdrew", task.CancellationReason)

	_, err = f.svc.CancelTask(ctx, "dev", "missing", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete_KeepsTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	_, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "dev", "S1"))

	_, err = f.svc.Get(ctx, "dev", "S1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	all, err := f.svc.Tasks(ctx, "dev", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteTask_RecreatedOnResync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, templates())
	_, err := f.svc.Create(ctx, "dev", form())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTask(ctx, "dev", "ONB-S1-3"))
	_, err = f.svc.Task(ctx, "dev", "ONB-S1-3")
	require.ErrorIs(t, err, store.ErrNotFound)

	res, err := f.svc.Resync(ctx, "dev", "S1")
	require.NoError(t, err)
	_, ok := res.Report.Find("ONB-S1-3", engine.ActionCreate)
	assert.True(t, ok)
}

func TestService_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewFixedClock(testutil.Epoch)
	st, err := store.Open(filepath.Join(t.TempDir(), "onboard.db"), store.WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.ReplaceCategories(ctx, "dev", templates().Templates))
	outbox := &store.Outbox{Store: st}
	r := engine.New(st, store.CategoryProvider{Store: st}, outbox, engine.WithClock(clock))
	svc := NewService(st, st, r, WithIDGenerator(testutil.NewSequenceIDs("sub")), WithClock(clock))

	res, err := svc.Create(ctx, "dev", form())
	require.NoError(t, err)
	require.False(t, res.Degraded())
	assert.Equal(t, "sub-1", res.Subject.ID)

	clock.Advance(time.Minute)
	_, err = svc.Update(ctx, "dev", "sub-1", map[string]any{"GasCard_Requested": "false"})
	require.NoError(t, err)

	task, err := svc.Task(ctx, "dev", "ONB-sub-1-3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotApplicable, task.Status)

	pending, err := outbox.Pending(ctx, "dev", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, notify.EventCreated, pending[0].Message.Event)
	assert.Equal(t, notify.EventRetired, pending[1].Message.Event)
}
