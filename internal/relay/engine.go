// Package relay implements the session protocol: a student's request is
// checked against the registry, pushed to the tutor's live connection, and
// the tutor's answer is pushed back to the student. Every push is best
// effort. A participant who is not connected misses the frame; nothing is
// queued or retried.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"tutorrelay/internal/metrics"
	"tutorrelay/internal/registry"
	"tutorrelay/internal/websocket"
	appErrors "tutorrelay/pkg/errors"
	"tutorrelay/pkg/interfaces"
	"tutorrelay/pkg/types"
)

// Engine ties the registry to the connection directory.
type Engine struct {
	registry  *registry.Registry
	directory *websocket.Directory
	journal   interfaces.Journal
	metrics   *metrics.Metrics
	clock     func() time.Time
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records relay activity to j.
func WithJournal(j interfaces.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithMetrics reports relay counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a relay engine over reg and dir.
func NewEngine(reg *registry.Registry, dir *websocket.Directory, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		directory: dir,
		clock:     time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequestSession validates req, creates the session and notifies the tutor
// if they are connected. The session is returned even when the notification
// is dropped.
func (e *Engine) RequestSession(ctx context.Context, req types.SessionRequest) (*types.Session, error) {
	if err := req.Validate(); err != nil {
		e.metrics.SessionRejected(errorCode(err))
		return nil, err
	}

	session, err := e.registry.CreateSession(req, e.clock())
	if err != nil {
		e.metrics.SessionRejected(errorCode(err))
		e.logger.Info("Session request rejected",
			zap.String("tutor", req.TutorName),
			zap.String("student", req.StudentName),
			zap.String("course", req.Course),
			zap.Error(err))
		return nil, err
	}
	e.metrics.SessionRequested()

	frame := types.NewSessionRequestFrame{Type: types.FrameNewSessionRequest, Session: session}
	outcome := e.push(types.RoleTutor, session.TutorName, frame)
	e.metrics.RelayMessage(types.FrameNewSessionRequest, outcome)

	fields := []zap.Field{
		zap.String("session_id", session.ID),
		zap.String("tutor", session.TutorName),
		zap.String("student", session.StudentName),
	}
	if outcome == interfaces.OutcomeDelivered {
		e.logger.Info("Session request sent to tutor", fields...)
	} else {
		e.logger.Info("Tutor not connected, session request dropped (no offline queue)", fields...)
	}

	if e.journal != nil {
		if err := e.journal.RecordSession(ctx, session, outcome); err != nil {
			e.logger.Warn("Failed to journal session", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	return session, nil
}

// HandleFrame processes one inbound real-time frame. Malformed or unknown
// frames are logged and dropped; nothing is ever sent back as an error.
func (e *Engine) HandleFrame(h interfaces.Handle, data []byte) {
	var frame types.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		e.logger.Info("Invalid frame dropped", zap.String("connection", h.ID()), zap.Error(err))
		return
	}

	switch frame.Type {
	case types.FrameRegisterTutor:
		e.register(h, types.RoleTutor, firstNonEmpty(frame.TutorName, frame.Name))
	case types.FrameRegisterStudent:
		e.register(h, types.RoleStudent, firstNonEmpty(frame.StudentName, frame.Name))
	case types.FrameTutorResponse:
		e.handleTutorResponse(h, frame)
	case types.FramePing:
		h.TrySend(types.PongFrame{Type: types.FramePong})
	default:
		e.logger.Debug("Unknown frame type", zap.String("connection", h.ID()), zap.String("type", frame.Type))
	}
}

// HandleDisconnect drops h's directory bindings.
func (e *Engine) HandleDisconnect(h interfaces.Handle) {
	tutor := h.BoundName(types.RoleTutor)
	student := h.BoundName(types.RoleStudent)

	e.directory.Unregister(h)
	e.updateConnectionGauges()

	if tutor != "" || student != "" {
		e.logger.Info("Participant disconnected",
			zap.String("connection", h.ID()),
			zap.String("tutor", tutor),
			zap.String("student", student))
	}
}

func (e *Engine) register(h interfaces.Handle, role types.Role, name string) {
	if err := e.directory.Register(role, name, h); err != nil {
		e.logger.Info("Registration ignored",
			zap.String("connection", h.ID()),
			zap.String("role", string(role)),
			zap.Error(err))
		return
	}
	e.updateConnectionGauges()
	e.logger.Info("Participant registered",
		zap.String("connection", h.ID()),
		zap.String("role", string(role)),
		zap.String("name", name))
}

func (e *Engine) handleTutorResponse(h interfaces.Handle, frame types.Frame) {
	if frame.SessionID == "" {
		e.logger.Info("tutorResponse without sessionId dropped", zap.String("connection", h.ID()))
		return
	}
	if frame.Status != types.StatusAccepted && frame.Status != types.StatusRejected {
		e.logger.Info("tutorResponse with invalid status dropped",
			zap.String("session_id", frame.SessionID),
			zap.String("status", frame.Status))
		return
	}

	session, ok := e.registry.GetSession(frame.SessionID)
	if !ok {
		e.logger.Info("tutorResponse for unknown session dropped", zap.String("session_id", frame.SessionID))
		return
	}

	code := frame.SessionCode
	if code != nil && *code == "" {
		code = nil
	}

	out := types.TutorResponseFrame{
		Type:        types.FrameTutorResponse,
		Status:      frame.Status,
		SessionID:   session.ID,
		TutorName:   session.TutorName,
		Course:      session.Course,
		SessionCode: code,
	}
	outcome := e.push(types.RoleStudent, session.StudentName, out)
	e.metrics.RelayMessage(types.FrameTutorResponse, outcome)

	fields := []zap.Field{
		zap.String("session_id", session.ID),
		zap.String("tutor", session.TutorName),
		zap.String("student", session.StudentName),
		zap.String("status", frame.Status),
	}
	if outcome == interfaces.OutcomeDelivered {
		e.logger.Info("Tutor response relayed to student", fields...)
	} else {
		e.logger.Info("Student not connected, tutor response dropped (no offline queue)", fields...)
	}

	if e.journal != nil {
		rec := interfaces.ResponseRecord{
			SessionID:   session.ID,
			TutorName:   session.TutorName,
			StudentName: session.StudentName,
			Status:      frame.Status,
			SessionCode: code,
			Outcome:     outcome,
			At:          e.clock(),
		}
		if err := e.journal.RecordResponse(context.Background(), rec); err != nil {
			e.logger.Warn("Failed to journal tutor response", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
}

// push sends v to the live connection of name, reporting the outcome.
func (e *Engine) push(role types.Role, name string, v interface{}) string {
	h, ok := e.directory.Lookup(role, name)
	if !ok || !h.TrySend(v) {
		return interfaces.OutcomeDropped
	}
	return interfaces.OutcomeDelivered
}

func (e *Engine) updateConnectionGauges() {
	if e.metrics == nil {
		return
	}
	stats := e.directory.Stats()
	e.metrics.SetLiveConnections(string(types.RoleTutor), stats["tutor_connections"])
	e.metrics.SetLiveConnections(string(types.RoleStudent), stats["student_connections"])
}

func errorCode(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return appErrors.ErrInternal.Code
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
