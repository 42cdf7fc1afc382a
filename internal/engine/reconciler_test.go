package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
	"github.com/roach88/onboarding/internal/store"
	"github.com/roach88/onboarding/internal/testutil"
)

func TestReconcile_GasCardLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1")
	gasID := model.ComposeTaskID("S1", "3")

	// Flag false: nothing created.
	rep, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	out, _ := rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionNone, out.Action)
	_, err = f.mem.GetTask(ctx, "dev", gasID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// Flag true: task created Open.
	s.Flags[model.FlagGasCard] = true
	rep, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	out, _ = rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionCreate, out.Action)
	assert.Equal(t, notify.EventCreated, out.Notified)
	task, err := f.mem.GetTask(ctx, "dev", gasID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, task.Status)
	assert.Equal(t, "ONB-S1-3", task.ID)
	assert.Equal(t, "Issue gas card for Ada Lovelace", task.Name)
	assert.Equal(t, 1, f.sink.Len())

	// Same flags, same manager: no update, no notification.
	_, updatesBefore := f.store.Writes()
	rep, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Changed())
	_, updatesAfter := f.store.Writes()
	assert.Equal(t, updatesBefore, updatesAfter)
	assert.Equal(t, 1, f.sink.Len())

	// Flag false: retired with suffix.
	s.Flags[model.FlagGasCard] = false
	rep, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	out, _ = rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionRetire, out.Action)
	task, err = f.mem.GetTask(ctx, "dev", gasID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotApplicable, task.Status)
	assert.Equal(t, "Issue fuel card (Onboarding ID: S1) (No longer required)", task.Description)

	// Flag true again: same task resumed, not a new one.
	s.Flags[model.FlagGasCard] = true
	rep, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	out, _ = rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionResume, out.Action)
	assert.Equal(t, model.StatusOpen, out.Status)

	tasks, err := f.mem.ListTasksBySubject(ctx, "dev", "S1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, gasID, tasks[0].ID)

	assert.Equal(t,
		[]notify.Event{notify.EventCreated, notify.EventRetired, notify.EventResumed},
		events(f.sink.Messages()))
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard, model.FlagEmployeeID, model.FlagMobilePhone)

	_, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	inserts, updates := f.store.Writes()
	sent := f.sink.Len()

	for i := 0; i < 3; i++ {
		rep, err := f.r.Reconcile(ctx, "dev", s)
		require.NoError(t, err)
		assert.Equal(t, 0, rep.Changed())
	}

	i2, u2 := f.store.Writes()
	assert.Equal(t, inserts, i2)
	assert.Equal(t, updates, u2)
	assert.Equal(t, sent, f.sink.Len())

	tasks, err := f.mem.ListTasksBySubject(ctx, "dev", "S1")
	require.NoError(t, err)
	assert.Len(t, tasks, 3, "exactly one task per flag")
}

func TestReconcile_DeterministicAcrossStores(t *testing.T) {
	ctx := context.Background()
	s := subject("0190c6a1-7f3e-7a4b-9c2d-1e2f3a4b5c6d", model.FlagGasCard, model.FlagEmployeeID)

	a, err := newFixture(t).r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	b, err := newFixture(t).r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestReconcile_OutcomesInFlagOrder(t *testing.T) {
	f := newFixture(t)

	rep, err := f.r.Reconcile(context.Background(), "dev", subject("S1"))
	require.NoError(t, err)

	var flags []string
	for _, o := range rep.Outcomes {
		flags = append(flags, o.Flag)
	}
	assert.Equal(t, []string{model.FlagEmployeeID, model.FlagGasCard, model.FlagMobilePhone}, flags)
	assert.Equal(t, catalog.MustNew("dev", testTemplates()).Fingerprint(), rep.CatalogFingerprint)
}

func TestReconcile_FlagStatusCorrespondence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	flags := []string{model.FlagGasCard, model.FlagEmployeeID, model.FlagMobilePhone}

	// Walk every flag combination, twice, in a fixed order.
	for round := 0; round < 2; round++ {
		for mask := 0; mask < 1<<len(flags); mask++ {
			s := subject("S1")
			for i, fl := range flags {
				s.Flags[fl] = mask&(1<<i) != 0
			}
			_, err := f.r.Reconcile(ctx, "dev", s)
			require.NoError(t, err)

			for i, fl := range flags {
				tpl, _ := catalog.MustNew("dev", testTemplates()).Lookup(fl)
				task, err := f.mem.GetTask(ctx, "dev", model.ComposeTaskID("S1", tpl.ShortCode))
				if mask&(1<<i) != 0 {
					require.NoError(t, err)
					assert.Equal(t, model.StatusOpen, task.Status, "mask=%b flag=%s", mask, fl)
				} else if err == nil {
					assert.Equal(t, model.StatusNotApplicable, task.Status, "mask=%b flag=%s", mask, fl)
				} else {
					assert.ErrorIs(t, err, store.ErrNotFound)
				}
			}
		}
	}
}

func TestReconcile_TerminalProtection(t *testing.T) {
	for _, terminal := range []model.Status{model.StatusCompleted, model.StatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			s := subject("S1", model.FlagGasCard)
			gasID := model.ComposeTaskID("S1", "3")

			_, err := f.r.Reconcile(ctx, "dev", s)
			require.NoError(t, err)
			_, err = f.mem.UpdateTask(ctx, "dev", gasID, model.TaskPatch{Status: model.Ptr(terminal)})
			require.NoError(t, err)
			f.sink.Reset()

			s.Flags[model.FlagGasCard] = false
			rep, err := f.r.Reconcile(ctx, "dev", s)
			require.NoError(t, err)
			out, _ := rep.ByFlag(model.FlagGasCard)
			assert.Equal(t, ActionNone, out.Action)

			s.Flags[model.FlagGasCard] = true
			s.Manager = "Someone New"
			rep, err = f.r.Reconcile(ctx, "dev", s)
			require.NoError(t, err)
			out, _ = rep.ByFlag(model.FlagGasCard)
			assert.Equal(t, ActionNone, out.Action)

			task, err := f.mem.GetTask(ctx, "dev", gasID)
			require.NoError(t, err)
			assert.Equal(t, terminal, task.Status)
			assert.Equal(t, 0, f.sink.Len())
		})
	}
}

func TestReconcile_RefreshManagerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard)
	gasID := model.ComposeTaskID("S1", "3")

	_, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	before, err := f.mem.GetTask(ctx, "dev", gasID)
	require.NoError(t, err)
	f.sink.Reset()

	s.Manager = "Linus Torvalds"
	s.FirstName = "Augusta"
	f.clock.Advance(time.Hour)
	rep, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)

	out, _ := rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionRefresh, out.Action)
	assert.Equal(t, notify.EventManagerChanged, out.Notified)

	after, err := f.mem.GetTask(ctx, "dev", gasID)
	require.NoError(t, err)
	assert.Equal(t, "Linus Torvalds", after.Manager)
	assert.Equal(t, before.EmployeeFullName, after.EmployeeFullName, "name is the propagator's job")
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	msgs := f.sink.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "Linus Torvalds")
}

func TestReconcile_ResumeRefreshesManager(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard)

	_, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	s.Flags[model.FlagGasCard] = false
	_, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)

	s.Flags[model.FlagGasCard] = true
	s.Manager = "Linus Torvalds"
	_, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)

	task, err := f.mem.GetTask(ctx, "dev", model.ComposeTaskID("S1", "3"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, task.Status)
	assert.Equal(t, "Linus Torvalds", task.Manager)
}

func TestReconcile_RetireSuffixDoesNotStack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1")

	for i := 0; i < 3; i++ {
		s.Flags[model.FlagGasCard] = true
		_, err := f.r.Reconcile(ctx, "dev", s)
		require.NoError(t, err)
		s.Flags[model.FlagGasCard] = false
		_, err = f.r.Reconcile(ctx, "dev", s)
		require.NoError(t, err)
	}

	task, err := f.mem.GetTask(ctx, "dev", model.ComposeTaskID("S1", "3"))
	require.NoError(t, err)
	assert.Equal(t, "Issue fuel card (Onboarding ID: S1) (No longer required)", task.Description)
}

func TestReconcile_NotificationDestinations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.r.Reconcile(ctx, "dev", subject("S1", model.FlagGasCard, model.FlagEmployeeID, model.FlagMobilePhone))
	require.NoError(t, err)

	msgs := f.sink.Messages()
	require.Len(t, msgs, 2, "template without destination sends nothing")
	assert.Equal(t, "+15550100", msgs[0].Destination)
	assert.Equal(t, "fleet@example.com", msgs[1].Destination)
	assert.Equal(t, testutil.Epoch, msgs[0].CreatedAt)
}

func TestReconcile_PartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.r.Reconcile(ctx, "dev", subject("S1", model.FlagGasCard))
	require.NoError(t, err)

	_, err = f.mem.GetTask(ctx, "prod", model.ComposeTaskID("S1", "3"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReconcile_MissingIdentityAborts(t *testing.T) {
	f := newFixture(t)
	s := subject("  ", model.FlagGasCard)

	for _, op := range []func(context.Context, model.Partition, model.Subject) (*Report, error){
		f.r.Reconcile, f.r.Propagate, f.r.Sync,
	} {
		rep, err := op(context.Background(), "dev", s)
		assert.Nil(t, rep)
		assert.True(t, HasCode(err, ErrCodeMissingIdentity))
		assert.True(t, IsAborting(err))
	}
	inserts, updates := f.store.Writes()
	assert.Zero(t, inserts)
	assert.Zero(t, updates)
}

func TestReconcile_CatalogIntegrityAborts(t *testing.T) {
	bad := catalog.Static{Templates: []model.Template{
		{Flag: model.FlagGasCard, ShortCode: "3"},
		{Flag: model.FlagPurchasingCard, ShortCode: "3"},
	}}
	f := newFixtureWith(t, bad, nil)

	rep, err := f.r.Reconcile(context.Background(), "dev", subject("S1", model.FlagGasCard))

	assert.Nil(t, rep)
	assert.True(t, HasCode(err, ErrCodeCatalogIntegrity))
	assert.True(t, IsAborting(err))
	assert.True(t, catalog.IsIntegrityError(err), "cause is preserved")
	inserts, _ := f.store.Writes()
	assert.Zero(t, inserts)
}

func TestReconcile_CatalogUnavailableAborts(t *testing.T) {
	boom := errors.New("connection refused")
	provider := catalog.ProviderFunc(func(context.Context, model.Partition) (*catalog.Catalog, error) {
		return nil, boom
	})
	f := newFixtureWith(t, provider, nil)

	_, err := f.r.Sync(context.Background(), "dev", subject("S1"))

	assert.True(t, HasCode(err, ErrCodeCatalogUnavailable))
	assert.ErrorIs(t, err, boom)
}

func TestReconcile_StoreWriteFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gasID := model.ComposeTaskID("S1", "3")
	boom := errors.New("disk full")
	f.store.FailInsert(gasID, boom)
	s := subject("S1", model.FlagGasCard, model.FlagEmployeeID, model.FlagMobilePhone)

	rep, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err, "per-flag failures do not abort")

	out, _ := rep.ByFlag(model.FlagGasCard)
	assert.True(t, out.Failed())
	assert.True(t, HasCode(out.Err, ErrCodeStoreWrite))
	assert.ErrorIs(t, rep.Err(), boom)
	assert.Equal(t, 2, rep.Changed(), "other flags still applied")
	assert.Empty(t, out.Notified)

	// Retry converges once the store recovers.
	f.store.FailInsert(gasID, nil)
	rep, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	out, _ = rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionCreate, out.Action)
}

func TestReconcile_StoreReadFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.FailGet(model.ComposeTaskID("S1", "1"), errors.New("io timeout"))

	rep, err := f.r.Reconcile(ctx, "dev", subject("S1", model.FlagGasCard, model.FlagEmployeeID))
	require.NoError(t, err)

	out, _ := rep.ByFlag(model.FlagEmployeeID)
	assert.True(t, HasCode(out.Err, ErrCodeStoreRead))
	gas, _ := rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionCreate, gas.Action)
	assert.NoError(t, gas.Err)
}

func TestReconcile_UpdateFailureLeavesTaskUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard)
	gasID := model.ComposeTaskID("S1", "3")
	_, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	f.sink.Reset()

	f.store.FailUpdate(gasID, errors.New("locked"))
	s.Flags[model.FlagGasCard] = false
	rep, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)

	out, _ := rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionRetire, out.Action)
	assert.True(t, HasCode(out.Err, ErrCodeStoreWrite))
	assert.Equal(t, 0, f.sink.Len(), "no notification for a failed mutation")

	task, err := f.mem.GetTask(ctx, "dev", gasID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, task.Status)
}

func TestReconcile_NotificationFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	sink := &testutil.FailingSink{Err: errors.New("smtp down")}
	f := newFixtureWith(t, catalog.Static{Templates: testTemplates()}, sink)

	rep, err := f.r.Reconcile(ctx, "dev", subject("S1", model.FlagGasCard))
	require.NoError(t, err)

	out, _ := rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionCreate, out.Action)
	assert.NoError(t, out.Err)
	assert.True(t, HasCode(out.NotifyErr, ErrCodeNotification))
	assert.Empty(t, out.Notified)
	assert.NoError(t, rep.Err(), "notification failures are not store failures")
	assert.Error(t, rep.NotifyErr())
	assert.Len(t, sink.Attempts(), 1, "exactly one dispatch per transition")

	task, err := f.mem.GetTask(ctx, "dev", model.ComposeTaskID("S1", "3"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, task.Status)
}

func TestReconcile_PanickingSinkIsRecovered(t *testing.T) {
	ctx := context.Background()
	sink := notify.SinkFunc(func(ctx context.Context, msg notify.Message) error {
		panic("template engine exploded")
	})
	f := newFixtureWith(t, catalog.Static{Templates: testTemplates()}, sink)

	rep, err := f.r.Reconcile(ctx, "dev", subject("S1", model.FlagGasCard, model.FlagEmployeeID))
	require.NoError(t, err)

	for _, flag := range []string{model.FlagGasCard, model.FlagEmployeeID} {
		out, _ := rep.ByFlag(flag)
		assert.Equal(t, ActionCreate, out.Action, flag)
		assert.NoError(t, out.Err, flag)
		assert.True(t, HasCode(out.NotifyErr, ErrCodeNotification), flag)
		assert.ErrorContains(t, out.NotifyErr, "template engine exploded")
	}

	tasks, err := f.mem.ListTasksBySubject(ctx, "dev", "S1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2, "both tasks created despite the panics")
}

func TestReconcile_ExistingRowFromAnotherWriter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard)
	gasID := model.ComposeTaskID("S1", "3")

	// Lookup says missing, but the insert collides with a row written in between.
	_, err := f.mem.InsertTask(ctx, "dev", model.Task{ID: gasID, SubjectID: "S1", Status: model.StatusOpen})
	require.NoError(t, err)
	racing := &raceStore{FaultyTaskStore: f.store, hide: gasID}
	r := New(racing, catalog.Static{Templates: testTemplates()}, f.sink, WithClock(f.clock))

	rep, err := r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	out, _ := rep.ByFlag(model.FlagGasCard)
	assert.Equal(t, ActionNone, out.Action)
	assert.Equal(t, 0, f.sink.Len())
}

// raceStore hides one task from GetTask to simulate a concurrent writer.
type raceStore struct {
	*testutil.FaultyTaskStore
	hide string
}

func (r *raceStore) GetTask(ctx context.Context, p model.Partition, id string) (model.Task, error) {
	if id == r.hide {
		return model.Task{}, store.ErrNotFound
	}
	return r.FaultyTaskStore.GetTask(ctx, p, id)
}

func TestPropagate_ManagerOnlyChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard, model.FlagEmployeeID, model.FlagMobilePhone)
	_, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)

	// Spread statuses: one N/A, one Completed, one Open.
	s.Flags[model.FlagMobilePhone] = false
	_, err = f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	_, err = f.mem.UpdateTask(ctx, "dev", model.ComposeTaskID("S1", "1"), model.TaskPatch{Status: model.Ptr(model.StatusCompleted)})
	require.NoError(t, err)

	before, err := f.mem.ListTasksBySubject(ctx, "dev", "S1")
	require.NoError(t, err)
	f.sink.Reset()

	s.Manager = "Linus Torvalds"
	rep, err := f.r.Propagate(ctx, "dev", s)
	require.NoError(t, err)
	assert.Len(t, rep.Outcomes, 3)

	after, err := f.mem.ListTasksBySubject(ctx, "dev", "S1")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range after {
		assert.Equal(t, "Linus Torvalds", after[i].Manager, after[i].ID)
		assert.Equal(t, before[i].Status, after[i].Status, "status untouched for %s", after[i].ID)
	}
	assert.Equal(t, 0, f.sink.Len(), "propagation is silent")

	// Nothing left to change.
	rep, err = f.r.Propagate(ctx, "dev", s)
	require.NoError(t, err)
	assert.Empty(t, rep.Outcomes)
}

func TestPropagate_NameChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard)
	_, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)

	s.LastName = "King"
	rep, err := f.r.Propagate(ctx, "dev", s)
	require.NoError(t, err)
	require.Len(t, rep.Outcomes, 1)
	assert.Equal(t, ActionPropagate, rep.Outcomes[0].Action)

	task, err := f.mem.GetTask(ctx, "dev", model.ComposeTaskID("S1", "3"))
	require.NoError(t, err)
	assert.Equal(t, "Ada King", task.EmployeeFullName)
	assert.Equal(t, "Issue gas card for Ada Lovelace", task.Name, "task name is fixed at creation")
}

func TestPropagate_ListFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailList(errors.New("io timeout"))

	rep, err := f.r.Propagate(context.Background(), "dev", subject("S1"))
	require.NoError(t, err)
	assert.True(t, HasCode(rep.Err(), ErrCodeStoreRead))
}

func TestPropagate_UpdateFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard, model.FlagEmployeeID)
	_, err := f.r.Reconcile(ctx, "dev", s)
	require.NoError(t, err)
	f.store.FailUpdate(model.ComposeTaskID("S1", "1"), errors.New("locked"))

	s.Manager = "Linus Torvalds"
	rep, err := f.r.Propagate(ctx, "dev", s)
	require.NoError(t, err)

	assert.True(t, HasCode(rep.Err(), ErrCodeStoreWrite))
	gas, err := f.mem.GetTask(ctx, "dev", model.ComposeTaskID("S1", "3"))
	require.NoError(t, err)
	assert.Equal(t, "Linus Torvalds", gas.Manager)
}

func TestSync_ReconcilesThenPropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := subject("S1", model.FlagGasCard, model.FlagEmployeeID)
	_, err := f.r.Sync(ctx, "dev", s)
	require.NoError(t, err)

	// Retire employee id, then change manager: the open task is refreshed
	// by reconcile, the retired one by propagate.
	s.Flags[model.FlagEmployeeID] = false
	_, err = f.r.Sync(ctx, "dev", s)
	require.NoError(t, err)

	s.Manager = "Linus Torvalds"
	rep, err := f.r.Sync(ctx, "dev", s)
	require.NoError(t, err)

	_, ok := rep.Find(model.ComposeTaskID("S1", "3"), ActionRefresh)
	assert.True(t, ok)
	_, ok = rep.Find(model.ComposeTaskID("S1", "1"), ActionPropagate)
	assert.True(t, ok)
	_, ok = rep.Find(model.ComposeTaskID("S1", "3"), ActionPropagate)
	assert.False(t, ok, "already refreshed, nothing to propagate")

	retired, err := f.mem.GetTask(ctx, "dev", model.ComposeTaskID("S1", "1"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotApplicable, retired.Status)
	assert.Equal(t, "Linus Torvalds", retired.Manager)
}

// overlapStore records the highest number of concurrent GetTask calls.
type overlapStore struct {
	TaskStore
	mu          sync.Mutex
	active, max int
}

func (o *overlapStore) GetTask(ctx context.Context, p model.Partition, id string) (model.Task, error) {
	o.mu.Lock()
	o.active++
	if o.active > o.max {
		o.max = o.active
	}
	o.mu.Unlock()

	time.Sleep(time.Millisecond)

	o.mu.Lock()
	o.active--
	o.mu.Unlock()
	return o.TaskStore.GetTask(ctx, p, id)
}

func TestReconcile_SameSubjectIsSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tracked := &overlapStore{TaskStore: f.store}
	r := New(tracked, catalog.Static{Templates: testTemplates()}, f.sink, WithClock(f.clock))
	s := subject("S1", model.FlagGasCard, model.FlagEmployeeID, model.FlagMobilePhone)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reconcile(ctx, "dev", s)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, tracked.max, "passes for one subject never interleave")

	inserts, _ := f.store.Writes()
	assert.Equal(t, 3, inserts, "exactly one task per flag")
	created := 0
	for _, m := range f.sink.Messages() {
		if m.Event == notify.EventCreated {
			created++
		}
	}
	assert.Equal(t, 2, created, "one created notification per flag with a destination")
	assert.Zero(t, r.locks.size(), "lock entries released")
}

func TestReconcile_DifferentSubjectsConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := subject(string(rune('A'+i)), model.FlagGasCard)
			_, err := f.r.Reconcile(ctx, "dev", s)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := f.mem.ListTasks(ctx, "dev")
	require.NoError(t, err)
	assert.Len(t, all, 10)
}
