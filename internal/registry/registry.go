package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tutorrelay/internal/availability"
	"tutorrelay/pkg/types"
)

// Registry holds tutors and sessions in memory. State is lost on restart.
type Registry struct {
	mu sync.RWMutex

	tutors     map[string]*types.Tutor // NormalizeName(name) -> tutor
	tutorOrder []string                // insertion order of tutor keys

	sessions     map[string]*types.Session // id -> session
	sessionOrder []string

	newID  func() string
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tutors:   make(map[string]*types.Tutor),
		sessions: make(map[string]*types.Session),
		newID:    newSessionID,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// newSessionID returns a UUIDv7: unique and ordered by creation time.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// UpsertTutor inserts a new tutor or merges the present fields of in over the
// existing record with the same case-insensitive name.
func (r *Registry) UpsertTutor(in types.TutorInput) (*types.Tutor, bool, error) {
	if err := in.Validate(); err != nil {
		return nil, false, err
	}
	key := types.NormalizeName(in.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.tutors[key]

	// Merge into a scratch copy so a failed validation leaves the stored
	// record untouched.
	merged := &types.Tutor{Subjects: []string{}}
	if exists {
		merged = existing.Clone()
	}
	in.ApplyTo(merged)
	if err := merged.Validate(); err != nil {
		return nil, false, err
	}

	if exists {
		*existing = *merged
		r.logger.Info("Tutor updated", zap.String("tutor", merged.Name), zap.Bool("active", merged.Active))
		return merged.Clone(), false, nil
	}

	r.tutors[key] = merged
	r.tutorOrder = append(r.tutorOrder, key)
	r.logger.Info("Tutor added", zap.String("tutor", merged.Name), zap.Bool("active", merged.Active))
	return merged.Clone(), true, nil
}

// GetTutor looks a tutor up by case-insensitive name.
func (r *Registry) GetTutor(name string) (*types.Tutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tutors[types.NormalizeName(name)]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// ListTutors returns all tutors in insertion order.
func (r *Registry) ListTutors() []types.Tutor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Tutor, 0, len(r.tutorOrder))
	for _, key := range r.tutorOrder {
		out = append(out, *r.tutors[key].Clone())
	}
	return out
}

// CreateSession checks the tutor's availability and, if it passes, stores a
// new pending session.
func (r *Registry) CreateSession(req types.SessionRequest, now time.Time) (*types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tutor := r.tutors[types.NormalizeName(req.TutorName)]
	if err := availability.Check(tutor, req.Course, req.RequestedMinutes, now); err != nil {
		return nil, err
	}

	session := &types.Session{
		ID:               r.newID(),
		StudentName:      req.StudentName,
		TutorName:        req.TutorName,
		Course:           req.Course,
		RequestedMinutes: req.RequestedMinutes,
		Location:         req.Location,
		Timestamp:        now,
	}
	r.sessions[session.ID] = session
	r.sessionOrder = append(r.sessionOrder, session.ID)

	cp := *session
	return &cp, nil
}

// GetSession returns the session with the given id.
func (r *Registry) GetSession(id string) (*types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// ListSessions returns every session ever created, in insertion order.
func (r *Registry) ListSessions() []types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Session, 0, len(r.sessionOrder))
	for _, id := range r.sessionOrder {
		out = append(out, *r.sessions[id])
	}
	return out
}

// Sweep deactivates every active tutor whose cutoff has been reached and
// returns their names. Running it twice in a row is a no-op the second time.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deactivated []string
	for _, key := range r.tutorOrder {
		t := r.tutors[key]
		if !t.Active || t.ActiveUntil == "" {
			continue
		}
		if availability.CutoffReached(t.ActiveUntil, now) {
			t.Active = false
			deactivated = append(deactivated, t.Name)
			r.logger.Info("Tutor deactivated after cutoff",
				zap.String("tutor", t.Name), zap.String("active_until", t.ActiveUntil))
		}
	}
	return deactivated
}

// Stats returns registry counters.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, t := range r.tutors {
		if t.Active {
			active++
		}
	}
	return map[string]int{
		"tutors":        len(r.tutors),
		"active_tutors": active,
		"sessions":      len(r.sessions),
	}
}
