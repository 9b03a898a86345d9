package event

import (
	"testing"
	"time"
)

func TestIDIsDeterministic(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	a := Event{Category: "major", StartTime: start}
	b := Event{Category: "major", StartTime: start, Name: "different name, same identity"}
	if a.ID() != b.ID() {
		t.Fatalf("ID must depend only on category and start: %q vs %q", a.ID(), b.ID())
	}
	if a.ID() != a.ID() {
		t.Fatalf("ID must be stable across calls")
	}
	if want := "major:2026-03-14T12:00:00Z"; a.ID() != want {
		t.Fatalf("ID = %q, want %q", a.ID(), want)
	}
}

func TestIDNormalizesAwkwardCategories(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	e := Event{Category: "Major: Pass", StartTime: start}

	if want := "major_pass:2026-03-14T12:00:00Z"; e.ID() != want {
		t.Fatalf("ID = %q, want %q", e.ID(), want)
	}
	got, err := TimeFromID(e.ID())
	if err != nil {
		t.Fatalf("TimeFromID must survive a colon-bearing category: %v", err)
	}
	if !got.Equal(start) {
		t.Fatalf("TimeFromID = %v, want %v", got, start)
	}
}

func TestIDNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	start := time.Date(2026, 3, 14, 19, 0, 0, 0, loc)
	e := Event{Category: "ruins", StartTime: start}
	if want := "ruins:2026-03-14T12:00:00Z"; e.ID() != want {
		t.Fatalf("ID = %q, want %q", e.ID(), want)
	}
}

func TestTimeFromID(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	e := Event{Category: "altars", StartTime: start}
	got, err := TimeFromID(e.ID())
	if err != nil {
		t.Fatalf("TimeFromID: %v", err)
	}
	if !got.Equal(start) {
		t.Fatalf("TimeFromID = %v, want %v", got, start)
	}

	for _, bad := range []string{"", "nocolon", "major:not-a-time"} {
		if _, err := TimeFromID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"  Major  ":     "major",
		"Lost Chapter":  "lost_chapter",
		"ruins:special": "ruinsspecial",
		"ALTARS":        "altars",
	}
	for in, want := range cases {
		if got := NormalizeCategory(in); got != want {
			t.Fatalf("NormalizeCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEndedAndMultiDay(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Minute)

	point := Event{Category: "ruins", StartTime: start}
	if !point.Ended(now) {
		t.Fatalf("event without end time ends at start")
	}

	boxed := Event{Category: "major", StartTime: start, EndTime: start.Add(2 * time.Hour)}
	if boxed.Ended(now) {
		t.Fatalf("boxed event still running")
	}
	if boxed.MultiDay() {
		t.Fatalf("two-hour event is not multi-day")
	}

	long := Event{Category: "chronicle", StartTime: start, EndTime: start.Add(5 * 24 * time.Hour)}
	if !long.MultiDay() {
		t.Fatalf("five-day event is multi-day")
	}
}
