package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onboarding/internal/model"
)

func testSubject(id string) model.Subject {
	return model.Subject{
		ID:         id,
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Manager:    "Grace",
		Department: "Engineering",
		Flags:      map[string]bool{model.FlagGasCard: true, model.FlagMobilePhone: false},
		Extra:      map[string]any{"Notes": "bring laptop"},
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func TestSubmissionRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sub := testSubject("S1")

	require.NoError(t, s.InsertSubmission(ctx, "dev", sub))

	got, err := s.GetSubmission(ctx, "dev", "S1")
	require.NoError(t, err)
	assert.Equal(t, sub, got)
}

func TestInsertSubmissionConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertSubmission(ctx, "dev", testSubject("S1")))
	assert.ErrorIs(t, s.InsertSubmission(ctx, "dev", testSubject("S1")), ErrConflict)
}

func TestUpdateSubmission(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sub := testSubject("S1")
	require.NoError(t, s.InsertSubmission(ctx, "dev", sub))

	sub.Manager = "Linus"
	sub.Flags = map[string]bool{model.FlagGasCard: false}
	sub.Extra = nil
	got, err := s.UpdateSubmission(ctx, "dev", sub)
	require.NoError(t, err)

	assert.Equal(t, "Linus", got.Manager)
	assert.False(t, got.Requested(model.FlagGasCard))
	assert.Nil(t, got.Extra)
	assert.Equal(t, testNow, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(testNow))
}

func TestUpdateSubmissionNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.UpdateSubmission(context.Background(), "dev", testSubject("S9"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDeleteSubmissions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertSubmission(ctx, "dev", testSubject("S2")))
	require.NoError(t, s.InsertSubmission(ctx, "dev", testSubject("S1")))
	require.NoError(t, s.InsertSubmission(ctx, "prod", testSubject("S3")))

	subs, err := s.ListSubmissions(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "S1", subs[0].ID)

	require.NoError(t, s.DeleteSubmission(ctx, "dev", "S1"))
	_, err = s.GetSubmission(ctx, "dev", "S1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSubmission(ctx, "dev", "S1"), ErrNotFound)
}
