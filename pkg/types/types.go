package types

import (
	"encoding/json"
	"time"
)

// Role identifies which side of a session a live connection speaks for.
type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// Real-time frame tags. Inbound and outbound tutorResponse share a tag.
const (
	FrameRegisterTutor     = "registerTutor"
	FrameRegisterStudent   = "registerStudent"
	FrameTutorResponse     = "tutorResponse"
	FramePing              = "ping"
	FramePong              = "pong"
	FrameNewSessionRequest = "newSessionRequest"
)

// Tutor response statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Tutor is a registered tutor. Name keeps the caller's spelling; identity is
// NormalizeName(Name). HourlyRate, Phone and Paypal are opaque: whatever JSON
// value the caller sent is stored and echoed back unchanged.
type Tutor struct {
	Name        string          `json:"name"`
	Active      bool            `json:"active"`
	ActiveUntil string          `json:"activeUntil,omitempty"`
	Subjects    []string        `json:"subjects"`
	HourlyRate  json.RawMessage `json:"hourlyRate,omitempty"`
	Phone       json.RawMessage `json:"phone,omitempty"`
	Paypal      json.RawMessage `json:"paypal,omitempty"`
}

// TutorInput is a partial tutor record. Nil fields are absent and leave the
// stored value untouched on update.
type TutorInput struct {
	Name        string          `json:"name" validate:"required"`
	Active      *bool           `json:"active"`
	ActiveUntil *string         `json:"activeUntil"`
	Subjects    []string        `json:"subjects"`
	HourlyRate  json.RawMessage `json:"hourlyRate"`
	Phone       json.RawMessage `json:"phone"`
	Paypal      json.RawMessage `json:"paypal"`
}

// Session is a student's request to be matched with a tutor. It carries no
// outcome: accept/reject only ever travels over the student's live connection.
type Session struct {
	ID               string    `json:"id"`
	StudentName      string    `json:"studentName"`
	TutorName        string    `json:"tutorName"`
	Course           string    `json:"course"`
	RequestedMinutes int       `json:"requestedMinutes"`
	Location         string    `json:"location"`
	Timestamp        time.Time `json:"timestamp"`
}

// SessionRequest is the student-originated request for a session.
type SessionRequest struct {
	StudentName      string `json:"studentName" validate:"required"`
	TutorName        string `json:"tutorName" validate:"required"`
	Course           string `json:"course" validate:"required"`
	RequestedMinutes int    `json:"requestedMinutes" validate:"required"`
	Location         string `json:"location"`
}

// Frame is an inbound real-time frame. Only the fields relevant to Type are set.
type Frame struct {
	Type        string  `json:"type"`
	Name        string  `json:"name,omitempty"`
	TutorName   string  `json:"tutorName,omitempty"`
	StudentName string  `json:"studentName,omitempty"`
	SessionID   string  `json:"sessionId,omitempty"`
	Status      string  `json:"status,omitempty"`
	SessionCode *string `json:"sessionCode,omitempty"`
}

// NewSessionRequestFrame is pushed to a tutor when a student requests a session.
type NewSessionRequestFrame struct {
	Type    string   `json:"type"`
	Session *Session `json:"session"`
}

// TutorResponseFrame is pushed to a student when their tutor answers.
type TutorResponseFrame struct {
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	SessionID   string  `json:"sessionId"`
	TutorName   string  `json:"tutorName"`
	Course      string  `json:"course"`
	SessionCode *string `json:"sessionCode"`
}

// PongFrame answers an application-level ping.
type PongFrame struct {
	Type string `json:"type"`
}
