package types

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "tutorrelay/pkg/errors"
)

var (
	activeUntilRegex = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	validate         = validator.New()
)

// NormalizeName returns the identity key for a participant name. Every lookup
// and insert of tutors and connections goes through it.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsValidActiveUntil reports whether s is a 24-hour HH:MM time of day.
func IsValidActiveUntil(s string) bool {
	return activeUntilRegex.MatchString(s)
}

// Teaches reports whether course is one of the tutor's subjects.
func (t *Tutor) Teaches(course string) bool {
	for _, s := range t.Subjects {
		if s == course {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share the registry's slices.
func (t *Tutor) Clone() *Tutor {
	c := *t
	c.Subjects = append([]string(nil), t.Subjects...)
	if t.Subjects != nil && c.Subjects == nil {
		c.Subjects = []string{}
	}
	c.HourlyRate = cloneRaw(t.HourlyRate)
	c.Phone = cloneRaw(t.Phone)
	c.Paypal = cloneRaw(t.Paypal)
	return &c
}

// Validate checks that the input names a tutor.
func (in *TutorInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return appErrors.ErrInvalidInput
	}
	return nil
}

// ApplyTo merges the present fields of in over t.
func (in *TutorInput) ApplyTo(t *Tutor) {
	t.Name = in.Name
	if in.Active != nil {
		t.Active = *in.Active
	}
	if in.ActiveUntil != nil {
		t.ActiveUntil = strings.TrimSpace(*in.ActiveUntil)
	}
	if in.Subjects != nil {
		t.Subjects = append([]string{}, in.Subjects...)
	}
	if in.HourlyRate != nil {
		t.HourlyRate = cloneRaw(in.HourlyRate)
	}
	if in.Phone != nil {
		t.Phone = cloneRaw(in.Phone)
	}
	if in.Paypal != nil {
		t.Paypal = cloneRaw(in.Paypal)
	}
}

// Validate checks the merged tutor record. A cutoff only matters while the
// tutor is active, so it is only checked then.
func (t *Tutor) Validate() error {
	if t.Active && t.ActiveUntil != "" && !IsValidActiveUntil(t.ActiveUntil) {
		return appErrors.ErrInvalidFormat
	}
	return nil
}

// Validate reports ErrMissingFields when a required field is empty and
// ErrInvalidInput when the requested length is negative.
func (r *SessionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			missing := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				missing = append(missing, lowerFirst(fe.Field()))
			}
			return appErrors.Wrap(err, appErrors.ErrMissingFields.Code, appErrors.ErrMissingFields.Status,
				appErrors.ErrMissingFields.Message+": "+strings.Join(missing, ", "))
		}
		return appErrors.ErrMissingFields
	}
	if r.RequestedMinutes < 0 {
		return appErrors.Clone(appErrors.ErrInvalidInput, "requestedMinutes must be a positive integer")
	}
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
