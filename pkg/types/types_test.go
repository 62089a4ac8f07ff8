package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "tutorrelay/pkg/errors"
)

func TestIsValidActiveUntil(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"00:00", true},
		{"09:30", true},
		{"19:59", true},
		{"23:59", true},
		{"24:00", false},
		{"25:00", false},
		{"9:30", false},
		{"09:60", false},
		{"09:5", false},
		{"0930", false},
		{" 09:30", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidActiveUntil(tt.in))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "bob", NormalizeName("Bob"))
	assert.Equal(t, "bob", NormalizeName("BOB"))
	assert.Equal(t, "ana maria", NormalizeName("  Ana Maria "))
}

func TestTutorInputValidateRequiresName(t *testing.T) {
	in := TutorInput{Name: "   "}
	err := in.Validate()
	assert.True(t, errors.Is(err, appErrors.ErrInvalidInput))

	in = TutorInput{Name: " Ana "}
	require.NoError(t, in.Validate())
	assert.Equal(t, "Ana", in.Name)
}

func TestTutorInputApplyToMergesPresentFields(t *testing.T) {
	existing := &Tutor{
		Name:        "Ana",
		Active:      true,
		ActiveUntil: "18:00",
		Subjects:    []string{"Math"},
		HourlyRate:  json.RawMessage(`20`),
		Phone:       json.RawMessage(`"555-0100"`),
	}

	inactive := false
	in := TutorInput{Name: "ANA", Active: &inactive, Paypal: json.RawMessage(`"ana@example.com"`)}
	in.ApplyTo(existing)

	assert.Equal(t, "ANA", existing.Name)
	assert.False(t, existing.Active)
	assert.Equal(t, "18:00", existing.ActiveUntil)
	assert.Equal(t, []string{"Math"}, existing.Subjects)
	assert.JSONEq(t, `20`, string(existing.HourlyRate))
	assert.JSONEq(t, `"555-0100"`, string(existing.Phone))
	assert.JSONEq(t, `"ana@example.com"`, string(existing.Paypal))
}

func TestTutorInputDecodesAbsentFieldsAsNil(t *testing.T) {
	var in TutorInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Ana","subjects":["Math"]}`), &in))

	assert.Nil(t, in.Active)
	assert.Nil(t, in.ActiveUntil)
	assert.Nil(t, in.HourlyRate)
	assert.Equal(t, []string{"Math"}, in.Subjects)
}

func TestTutorInputKeepsOpaqueFieldsVerbatim(t *testing.T) {
	var in TutorInput
	require.NoError(t, json.Unmarshal([]byte(
		`{"name":"Ana","hourlyRate":"$25/hr","phone":5551234,"paypal":{"email":"ana@example.com"}}`), &in))

	tutor := &Tutor{}
	in.ApplyTo(tutor)

	out, err := json.Marshal(tutor)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"name":"Ana","active":false,"subjects":null,"hourlyRate":"$25/hr","phone":5551234,"paypal":{"email":"ana@example.com"}}`,
		string(out))
}

func TestTutorValidateChecksCutoffOnlyWhileActive(t *testing.T) {
	active := &Tutor{Name: "Ana", Active: true, ActiveUntil: "25:00"}
	assert.True(t, errors.Is(active.Validate(), appErrors.ErrInvalidFormat))

	active.ActiveUntil = "09:30"
	assert.NoError(t, active.Validate())

	inactive := &Tutor{Name: "Ana", Active: false, ActiveUntil: "25:00"}
	assert.NoError(t, inactive.Validate())
}

func TestTutorCloneIsDeep(t *testing.T) {
	orig := &Tutor{Name: "Ana", Subjects: []string{"Math"}, HourlyRate: json.RawMessage(`15`)}
	c := orig.Clone()

	c.Subjects[0] = "Physics"
	c.HourlyRate[0] = '9'

	assert.Equal(t, "Math", orig.Subjects[0])
	assert.Equal(t, "15", string(orig.HourlyRate))
}

func TestTutorTeaches(t *testing.T) {
	tutor := &Tutor{Subjects: []string{"Math", "CS101"}}
	assert.True(t, tutor.Teaches("Math"))
	assert.True(t, tutor.Teaches("CS101"))
	assert.False(t, tutor.Teaches("math"))
	assert.False(t, tutor.Teaches("Physics"))
}

func TestSessionRequestValidate(t *testing.T) {
	valid := SessionRequest{StudentName: "Sam", TutorName: "Ana", Course: "Math", RequestedMinutes: 30}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(r *SessionRequest)
		wantErr *appErrors.Error
	}{
		{"missing student", func(r *SessionRequest) { r.StudentName = "" }, appErrors.ErrMissingFields},
		{"missing tutor", func(r *SessionRequest) { r.TutorName = "" }, appErrors.ErrMissingFields},
		{"missing course", func(r *SessionRequest) { r.Course = "" }, appErrors.ErrMissingFields},
		{"zero minutes", func(r *SessionRequest) { r.RequestedMinutes = 0 }, appErrors.ErrMissingFields},
		{"negative minutes", func(r *SessionRequest) { r.RequestedMinutes = -5 }, appErrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSessionRequestValidateNamesMissingFields(t *testing.T) {
	req := SessionRequest{Course: "Math"}
	err := req.Validate()
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, "MISSING_FIELDS", appErr.Code)
	assert.Contains(t, appErr.Message, "studentName")
	assert.Contains(t, appErr.Message, "tutorName")
	assert.Contains(t, appErr.Message, "requestedMinutes")
}

func TestTutorResponseFrameEncodesNullSessionCode(t *testing.T) {
	frame := TutorResponseFrame{
		Type:      FrameTutorResponse,
		Status:    StatusAccepted,
		SessionID: "s1",
		TutorName: "Ana",
		Course:    "Math",
	}
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessionCode":null`)
}

func TestSessionJSONFieldNames(t *testing.T) {
	s := Session{ID: "1", StudentName: "Sam", TutorName: "Ana", Course: "Math", RequestedMinutes: 30, Timestamp: time.Unix(0, 0).UTC()}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"id", "studentName", "tutorName", "course", "requestedMinutes", "location", "timestamp"} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "status")
}
