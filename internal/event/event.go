// Package event defines the upcoming-event model and its providers.
//
// Events are consumed read-only: the reminder engine polls a Source each
// scan tick and never mutates what it gets back. Event identity is
// derived, not stored, so identical source data always yields the same
// identifier (the scan loop and the state store both rely on this).
package event

import (
	"errors"
	"strings"
	"time"
)

// Event is a scheduled, time-boxed occurrence.
type Event struct {
	Category  string    // normalized tag ("ruins", "altars", "major", "chronicle")
	Name      string    // display name
	StartTime time.Time // UTC
	EndTime   time.Time // UTC; zero when the source does not provide one
	Zone      string    // optional location hint
}

// ID derives the deterministic event identifier: "<category>:<RFC3339 start>".
// The category is normalized here rather than trusted: a ":" inside it
// would shift the separator and break TimeFromID, which retention
// pruning depends on.
func (e Event) ID() string {
	return NormalizeCategory(e.Category) + ":" + e.StartTime.UTC().Format(time.RFC3339)
}

// Started reports whether the event has begun by now.
func (e Event) Started(now time.Time) bool { return !now.Before(e.StartTime) }

// Ended reports whether the event is over. Events without an end time end
// the moment they start.
func (e Event) Ended(now time.Time) bool {
	if e.EndTime.IsZero() {
		return e.Started(now)
	}
	return now.After(e.EndTime)
}

// MultiDay reports whether the event spans more than one calendar day.
func (e Event) MultiDay() bool {
	return !e.EndTime.IsZero() && e.EndTime.Sub(e.StartTime) > 24*time.Hour
}

var errBadEventID = errors.New("malformed event id")

// TimeFromID recovers the start timestamp embedded in an event identifier.
func TimeFromID(id string) (time.Time, error) {
	_, rest, ok := strings.Cut(id, ":")
	if !ok {
		return time.Time{}, errBadEventID
	}
	t, err := time.Parse(time.RFC3339, rest)
	if err != nil {
		return time.Time{}, errBadEventID
	}
	return t.UTC(), nil
}

// NormalizeCategory lowercases and trims a raw category tag. Colons are
// stripped because the derived identifier uses ":" as its separator.
func NormalizeCategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ":", "")
	return strings.ReplaceAll(s, " ", "_")
}
