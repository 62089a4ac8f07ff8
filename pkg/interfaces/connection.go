package interfaces

import "tutorrelay/pkg/types"

// Handle is a live real-time connection to a tutor or a student.
// Implementations must make TrySend safe for concurrent callers.
type Handle interface {
	// ID returns a process-unique identifier for logging.
	ID() string

	// TrySend queues v for delivery without blocking. It reports false when
	// the connection is closed or its outbound buffer is full; the message is
	// then lost.
	TrySend(v interface{}) bool

	// IsOpen reports whether the connection can still carry messages.
	IsOpen() bool

	// BindName records the normalized name the handle was registered under
	// for role, so a later disconnect can clean up after itself.
	BindName(role types.Role, key string)

	// BoundName returns the key recorded by BindName, or "".
	BoundName(role types.Role) string

	// Close closes the connection and releases its resources.
	Close() error
}
