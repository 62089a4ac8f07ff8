package interfaces

import (
	"context"
	"time"

	"tutorrelay/pkg/types"
)

// Relay outcomes recorded by a Journal.
const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
)

// ResponseRecord describes one tutorResponse that was handled.
type ResponseRecord struct {
	SessionID   string
	TutorName   string
	StudentName string
	Status      string
	SessionCode *string
	Outcome     string
	At          time.Time
}

// Journal is an append-only audit trail of relay activity. It is never read
// back into the in-memory state.
type Journal interface {
	// RecordSession notes a created session and whether the tutor was notified.
	RecordSession(ctx context.Context, session *types.Session, outcome string) error

	// RecordResponse notes a tutor response and whether it reached the student.
	RecordResponse(ctx context.Context, rec ResponseRecord) error

	// HealthCheck verifies the journal's storage is reachable.
	HealthCheck(ctx context.Context) error

	// Close flushes pending records and releases the storage.
	Close() error
}
