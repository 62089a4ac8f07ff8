package interfaces

import (
	"context"
	"time"

	"tutorrelay/pkg/types"
)

// TutorRegistry is the slice of the registry the HTTP layer needs.
type TutorRegistry interface {
	// UpsertTutor inserts a tutor or merges in over the existing record.
	// created reports whether a new tutor was inserted.
	UpsertTutor(in types.TutorInput) (tutor *types.Tutor, created bool, err error)

	// ListTutors returns copies of all tutors in insertion order.
	ListTutors() []types.Tutor

	// ListSessions returns copies of all sessions in insertion order.
	ListSessions() []types.Session

	// Sweep deactivates tutors whose cutoff has been reached and returns
	// their names.
	Sweep(now time.Time) []string

	// Stats returns counters for health reporting.
	Stats() map[string]int
}

// SessionRequester creates sessions and notifies the tutor.
type SessionRequester interface {
	RequestSession(ctx context.Context, req types.SessionRequest) (*types.Session, error)
}
