package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
	"github.com/roach88/onboarding/internal/store"
	"github.com/roach88/onboarding/internal/testutil"
)

// fixture wires a Reconciler to an in-memory store, a recorder and a fixed
// clock.
type fixture struct {
	mem   *store.MemoryTaskStore
	store *testutil.FaultyTaskStore
	sink  *notify.Recorder
	clock *testutil.FixedClock
	r     *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, catalog.Static{Templates: testTemplates()}, nil)
}

func newFixtureWith(t *testing.T, provider catalog.Provider, sink notify.Sink) *fixture {
	t.Helper()
	clock := testutil.NewFixedClock(testutil.Epoch)
	mem := store.NewMemoryTaskStore(clock.Now)
	faulty := testutil.NewFaultyTaskStore(mem)
	rec := notify.NewRecorder()
	if sink == nil {
		sink = rec
	}
	r := New(faulty, provider, sink,
		WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &fixture{mem: mem, store: faulty, sink: rec, clock: clock, r: r}
}

// testTemplates has one template per destination kind: email, phone, none.
func testTemplates() []model.Template {
	return []model.Template{
		{
			Flag:        model.FlagGasCard,
			ShortCode:   "3",
			Kind:        "Gas Card",
			NamePrefix:  "Issue gas card for",
			AssignedTo:  "Fleet",
			Description: "Issue fuel card",
			ToEmail:     "fleet@example.com",
		},
		{
			Flag:        model.FlagEmployeeID,
			ShortCode:   "1",
			Kind:        "Employee ID",
			NamePrefix:  "Create employee ID for",
			AssignedTo:  "HR",
			Description: "Create badge",
			ToPhone:     "+15550100",
		},
		{
			Flag:        model.FlagMobilePhone,
			ShortCode:   "5",
			Kind:        "Mobile Phone",
			NamePrefix:  "Provision phone for",
			AssignedTo:  "IT",
			Description: "Provision phone",
		},
	}
}

// subject builds Ada Lovelace with the given flags set to true.
func subject(id string, flags ...string) model.Subject {
	s := model.Subject{
		ID:        id,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Manager:   "Grace Hopper",
		Flags:     map[string]bool{},
	}
	for _, f := range flags {
		s.Flags[f] = true
	}
	return s
}

func events(msgs []notify.Message) []notify.Event {
	out := make([]notify.Event, len(msgs))
	for i, m := range msgs {
		out[i] = m.Event
	}
	return out
}
