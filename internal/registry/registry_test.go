package registry

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "tutorrelay/pkg/errors"
	"tutorrelay/pkg/interfaces"
	"tutorrelay/pkg/types"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func at(hhmm string) time.Time {
	ts, err := time.ParseInLocation("2006-01-02 15:04", "2026-03-02 "+hhmm, time.Local)
	if err != nil {
		panic(err)
	}
	return ts
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

func addTutor(t *testing.T, r *Registry, name, until string, subjects ...string) {
	t.Helper()
	in := types.TutorInput{Name: name, Active: boolPtr(true), Subjects: subjects}
	if until != "" {
		in.ActiveUntil = strPtr(until)
	}
	_, _, err := r.UpsertTutor(in)
	require.NoError(t, err)
}

func TestRegistry_ImplementsTutorRegistry(t *testing.T) {
	var _ interfaces.TutorRegistry = NewRegistry()
}

func TestUpsertTutor_InsertThenMerge(t *testing.T) {
	r := NewRegistry()

	tutor, created, err := r.UpsertTutor(types.TutorInput{
		Name:     "Alice",
		Active:   boolPtr(true),
		Subjects: []string{"Math"},
		Phone:    json.RawMessage(`"555-0100"`),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Alice", tutor.Name)

	tutor, created, err = r.UpsertTutor(types.TutorInput{
		Name:       "  alice ",
		HourlyRate: json.RawMessage(`30`),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice", tutor.Name)
	assert.True(t, tutor.Active)
	assert.Equal(t, []string{"Math"}, tutor.Subjects)
	assert.JSONEq(t, `"555-0100"`, string(tutor.Phone))
	assert.JSONEq(t, `30`, string(tutor.HourlyRate))

	tutors := r.ListTutors()
	require.Len(t, tutors, 1)
	assert.Equal(t, "alice", tutors[0].Name)
}

func TestUpsertTutor_RequiresName(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.UpsertTutor(types.TutorInput{Name: "   "})
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
	assert.Empty(t, r.ListTutors())
}

func TestUpsertTutor_ActiveUntilFormat(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.UpsertTutor(types.TutorInput{Name: "Bob", Active: boolPtr(true), ActiveUntil: strPtr("25:00")})
	assert.ErrorIs(t, err, appErrors.ErrInvalidFormat)
	assert.Empty(t, r.ListTutors())

	tutor, _, err := r.UpsertTutor(types.TutorInput{Name: "Bob", Active: boolPtr(true), ActiveUntil: strPtr("09:30")})
	require.NoError(t, err)
	assert.Equal(t, "09:30", tutor.ActiveUntil)
}

func TestUpsertTutor_FailedMergeLeavesRecordUntouched(t *testing.T) {
	r := NewRegistry()
	addTutor(t, r, "Carol", "17:00", "Physics")

	_, _, err := r.UpsertTutor(types.TutorInput{Name: "carol", ActiveUntil: strPtr("7pm"), Phone: json.RawMessage(`"x"`)})
	assert.ErrorIs(t, err, appErrors.ErrInvalidFormat)

	tutor, ok := r.GetTutor("CAROL")
	require.True(t, ok)
	assert.Equal(t, "Carol", tutor.Name)
	assert.Equal(t, "17:00", tutor.ActiveUntil)
	assert.Empty(t, tutor.Phone)
}

func TestUpsertTutor_InactiveCutoffIsNotChecked(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.UpsertTutor(types.TutorInput{Name: "Dan", Active: boolPtr(false), ActiveUntil: strPtr("whenever")})
	assert.NoError(t, err)
}

func TestUpsertTutor_ReactivationChecksStoredCutoff(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.UpsertTutor(types.TutorInput{Name: "Dan", Active: boolPtr(false), ActiveUntil: strPtr("whenever")})
	require.NoError(t, err)

	// The merged record would be active with a malformed cutoff.
	_, _, err = r.UpsertTutor(types.TutorInput{Name: "dan", Active: boolPtr(true)})
	assert.ErrorIs(t, err, appErrors.ErrInvalidFormat)

	tutor, ok := r.GetTutor("Dan")
	require.True(t, ok)
	assert.False(t, tutor.Active)
	assert.Equal(t, "whenever", tutor.ActiveUntil)

	tutor, created, err := r.UpsertTutor(types.TutorInput{Name: "dan", Active: boolPtr(true), ActiveUntil: strPtr("16:00")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, tutor.Active)
	assert.Equal(t, "16:00", tutor.ActiveUntil)
}

func TestListTutors_ReturnsCopies(t *testing.T) {
	r := NewRegistry()
	addTutor(t, r, "Erin", "", "Chemistry")

	tutors := r.ListTutors()
	tutors[0].Subjects[0] = "Mutated"
	tutors[0].Active = false

	tutor, ok := r.GetTutor("erin")
	require.True(t, ok)
	assert.Equal(t, []string{"Chemistry"}, tutor.Subjects)
	assert.True(t, tutor.Active)
}

func TestListTutors_InsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"Zed", "Amy", "Mia"} {
		addTutor(t, r, name, "")
	}
	addTutor(t, r, "amy", "")

	var names []string
	for _, tutor := range r.ListTutors() {
		names = append(names, tutor.Name)
	}
	assert.Equal(t, []string{"Zed", "amy", "Mia"}, names)
}

func TestCreateSession_Eligibility(t *testing.T) {
	r := NewRegistry(WithIDGenerator(seqIDs()))
	addTutor(t, r, "Alice", "10:00", "Math")
	_, _, err := r.UpsertTutor(types.TutorInput{Name: "Ivan", Active: boolPtr(false), Subjects: []string{"Math"}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     types.SessionRequest
		now     time.Time
		wantErr *appErrors.Error
	}{
		{"fits before cutoff", types.SessionRequest{StudentName: "S", TutorName: "Alice", Course: "Math", RequestedMinutes: 5}, at("09:50"), nil},
		{"case-insensitive tutor", types.SessionRequest{StudentName: "S", TutorName: "ALICE", Course: "Math", RequestedMinutes: 10}, at("09:50"), nil},
		{"exceeds remaining time", types.SessionRequest{StudentName: "S", TutorName: "Alice", Course: "Math", RequestedMinutes: 20}, at("09:50"), appErrors.ErrInsufficientTime},
		{"subject not taught", types.SessionRequest{StudentName: "S", TutorName: "Alice", Course: "History", RequestedMinutes: 5}, at("09:00"), appErrors.ErrSubjectNotTaught},
		{"subject is case-sensitive", types.SessionRequest{StudentName: "S", TutorName: "Alice", Course: "math", RequestedMinutes: 5}, at("09:00"), appErrors.ErrSubjectNotTaught},
		{"inactive tutor", types.SessionRequest{StudentName: "S", TutorName: "Ivan", Course: "Math", RequestedMinutes: 5}, at("09:00"), appErrors.ErrInactive},
		{"unknown tutor", types.SessionRequest{StudentName: "S", TutorName: "Nobody", Course: "Math", RequestedMinutes: 5}, at("09:00"), appErrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := r.CreateSession(tt.req, tt.now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, session)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, session.ID)
			assert.Equal(t, tt.req.TutorName, session.TutorName)
			assert.Equal(t, tt.now, session.Timestamp)
		})
	}

	assert.Len(t, r.ListSessions(), 2)
}

func TestCreateSession_StoresAndListsInOrder(t *testing.T) {
	r := NewRegistry(WithIDGenerator(seqIDs()))
	addTutor(t, r, "Alice", "", "Math")

	for i := 0; i < 3; i++ {
		_, err := r.CreateSession(types.SessionRequest{
			StudentName: fmt.Sprintf("student-%d", i), TutorName: "Alice", Course: "Math", RequestedMinutes: 30, Location: "Library",
		}, at("12:00"))
		require.NoError(t, err)
	}

	sessions := r.ListSessions()
	require.Len(t, sessions, 3)
	for i, s := range sessions {
		assert.Equal(t, fmt.Sprintf("session-%d", i+1), s.ID)
		assert.Equal(t, fmt.Sprintf("student-%d", i), s.StudentName)
		assert.Equal(t, "Library", s.Location)
	}

	got, ok := r.GetSession("session-2")
	require.True(t, ok)
	assert.Equal(t, "student-1", got.StudentName)

	_, ok = r.GetSession("missing")
	assert.False(t, ok)
}

func TestCreateSession_DefaultIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	addTutor(t, r, "Alice", "", "Math")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := r.CreateSession(types.SessionRequest{StudentName: "S", TutorName: "Alice", Course: "Math", RequestedMinutes: 1}, time.Now())
		require.NoError(t, err)
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestSweep_DeactivatesAtCutoff(t *testing.T) {
	r := NewRegistry()
	addTutor(t, r, "Alice", "10:00", "Math")
	addTutor(t, r, "Bob", "18:00", "Math")
	addTutor(t, r, "Cleo", "", "Math")

	assert.Empty(t, r.Sweep(at("09:59")))

	assert.Equal(t, []string{"Alice"}, r.Sweep(at("10:00")))
	assert.Empty(t, r.Sweep(at("10:00")), "second sweep is a no-op")

	_, err := r.CreateSession(types.SessionRequest{StudentName: "S", TutorName: "alice", Course: "Math", RequestedMinutes: 1}, at("10:01"))
	assert.ErrorIs(t, err, appErrors.ErrInactive)

	stats := r.Stats()
	assert.Equal(t, 3, stats["tutors"])
	assert.Equal(t, 2, stats["active_tutors"])
	assert.Equal(t, 0, stats["sessions"])
}

func TestSweep_ReactivatedTutorStaysUntilNextCutoff(t *testing.T) {
	r := NewRegistry()
	addTutor(t, r, "Alice", "10:00", "Math")
	r.Sweep(at("10:05"))

	_, _, err := r.UpsertTutor(types.TutorInput{Name: "Alice", Active: boolPtr(true), ActiveUntil: strPtr("23:00")})
	require.NoError(t, err)

	assert.Empty(t, r.Sweep(at("10:06")))
	tutor, _ := r.GetTutor("alice")
	assert.True(t, tutor.Active)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	addTutor(t, r, "Alice", "", "Math")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			_, _, _ = r.UpsertTutor(types.TutorInput{Name: fmt.Sprintf("tutor-%d", i), Active: boolPtr(true)})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = r.CreateSession(types.SessionRequest{StudentName: "S", TutorName: "Alice", Course: "Math", RequestedMinutes: 1}, time.Now())
		}()
		go func() {
			defer wg.Done()
			_ = r.ListTutors()
			_ = r.Sweep(time.Now())
		}()
	}
	wg.Wait()

	assert.Len(t, r.ListTutors(), 21)
	assert.Len(t, r.ListSessions(), 20)
}
