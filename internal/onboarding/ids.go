package onboarding

import "github.com/google/uuid"

// IDGenerator produces subject ids for new submissions.
type IDGenerator interface {
	Generate() string
}

// UUIDv7 generates time-ordered UUIDs.
type UUIDv7 struct{}

// Generate returns a new UUIDv7, falling back to a random UUID if the
// clock source fails.
func (UUIDv7) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
