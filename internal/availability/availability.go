// Package availability decides whether a tutor can take a session right now.
package availability

import (
	"math"
	"strconv"
	"time"

	appErrors "tutorrelay/pkg/errors"
	"tutorrelay/pkg/types"
)

// Check applies the eligibility rules in order and returns the error of the
// first one that fails, or nil when the tutor can take the session.
func Check(t *types.Tutor, course string, requestedMinutes int, now time.Time) error {
	if t == nil {
		return appErrors.ErrNotFound
	}
	if !t.Active {
		return appErrors.ErrInactive
	}
	if !t.Teaches(course) {
		return appErrors.ErrSubjectNotTaught
	}
	if t.ActiveUntil == "" {
		return nil
	}

	remaining, ok := RemainingMinutes(t.ActiveUntil, now)
	if !ok {
		// Stored cutoffs are validated on upsert; an unparsable one cannot
		// grant time.
		return appErrors.ErrInsufficientTime
	}
	if remaining < requestedMinutes {
		return appErrors.ErrInsufficientTime
	}
	return nil
}

// RemainingMinutes returns the whole minutes from now until today's cutoff,
// rounded down. The value is negative once the cutoff has passed; there is no
// wraparound into the next day.
func RemainingMinutes(cutoff string, now time.Time) (int, bool) {
	at, ok := todayAt(cutoff, now)
	if !ok {
		return 0, false
	}
	return int(math.Floor(at.Sub(now).Minutes())), true
}

// CutoffReached reports whether the wall-clock time of day has reached cutoff
// at minute resolution.
func CutoffReached(cutoff string, now time.Time) bool {
	if !types.IsValidActiveUntil(cutoff) {
		return false
	}
	return now.Format("15:04") >= cutoff
}

func todayAt(cutoff string, now time.Time) (time.Time, bool) {
	if !types.IsValidActiveUntil(cutoff) {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(cutoff[:2])
	minute, _ := strconv.Atoi(cutoff[3:])
	y, m, d := now.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, now.Location()), true
}
