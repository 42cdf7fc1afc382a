package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/onboarding/internal/model"
)

var testNow = time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

// createTestStore opens a fresh database in a temp dir with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithNow(func() time.Time { return testNow.Add(time.Hour) }))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTask builds an Open task for subject/code with fixed timestamps.
func createTestTask(subjectID, shortCode string) model.Task {
	subject := model.Subject{ID: subjectID, FirstName: "Ada", LastName: "Lovelace", Manager: "Grace"}
	tpl := model.Template{
		Flag:        model.FlagGasCard,
		ShortCode:   shortCode,
		Kind:        "Gas Card",
		NamePrefix:  "Issue gas card for",
		AssignedTo:  "Fleet",
		Description: "Issue fuel card",
		ToEmail:     "fleet@example.com",
	}
	return model.NewTask("dev", subject, tpl, testNow)
}
