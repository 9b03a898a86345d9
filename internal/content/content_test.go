package content

import (
	"strings"
	"testing"
	"time"

	"herald/internal/event"
)

func testEvent(start time.Time) event.Event {
	return event.Event{Category: "major", Name: "Pass Fight", StartTime: start}
}

func TestDirectSubstitutesNames(t *testing.T) {
	r := NewRendererWithSeed(1)
	now := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	ev := testEvent(now.Add(time.Hour))

	text := r.Direct(ev, "Ana", "Governor Ana", time.Hour, now)
	if strings.Contains(text, "{name}") || strings.Contains(text, "{gov}") {
		t.Fatalf("unexpanded placeholder in %q", text)
	}
	if !strings.Contains(text, "Ana") {
		t.Fatalf("display name missing from %q", text)
	}
	if !strings.Contains(text, "Starts in 1h") {
		t.Fatalf("relative time missing from %q", text)
	}
}

func TestDirectGovernorFallsBackToDisplayName(t *testing.T) {
	r := NewRendererWithSeed(1)
	now := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	text := r.Direct(testEvent(now.Add(time.Hour)), "Ana", "", time.Hour, now)
	if !strings.Contains(text, "Hey Ana (Ana)!") {
		t.Fatalf("fallback greeting missing from %q", text)
	}
}

func TestChannelStartsNow(t *testing.T) {
	r := NewRendererWithSeed(1)
	now := time.Date(2026, 3, 14, 12, 0, 10, 0, time.UTC)
	ev := testEvent(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	text := r.Channel(ev, 0, now)
	if !strings.Contains(text, "Starts NOW") {
		t.Fatalf("T-0 within a minute must read NOW, got %q", text)
	}

	// A very late fire keeps the relative phrasing.
	late := r.Channel(ev, 0, now.Add(10*time.Minute))
	if strings.Contains(late, "Starts NOW") {
		t.Fatalf("late fire must not read NOW, got %q", late)
	}
}

func TestChannelQuoteOnlyInFinalHour(t *testing.T) {
	r := NewRendererWithSeed(1)
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ev := testEvent(start)

	early := r.Channel(ev, 24*time.Hour, start.Add(-24*time.Hour))
	if strings.Contains(early, "\U0001F4AC") {
		t.Fatalf("24h reminder must not carry a quote: %q", early)
	}

	final := r.Channel(ev, time.Hour, start.Add(-time.Hour))
	if !strings.Contains(final, "\U0001F4AC") {
		t.Fatalf("1h reminder must carry a quote: %q", final)
	}
}

func TestUnknownCategoryFallsBackToDefaultQuotes(t *testing.T) {
	r := NewRendererWithSeed(1)
	now := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	ev := event.Event{Category: "mystery", Name: "Mystery", StartTime: now.Add(time.Hour)}

	text := r.Direct(ev, "Ana", "", time.Hour, now)
	found := false
	for _, q := range directQuotes["_default"] {
		probe := strings.SplitN(q, "{", 2)[0]
		if probe != "" && strings.Contains(text, probe) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected a default quote in %q", text)
	}
}

func TestHumanDelta(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{26 * time.Hour, "26h"},
		{90 * time.Minute, "1h 30m"},
		{45 * time.Minute, "45m"},
		{20 * time.Second, "under a minute"},
	}
	for _, tc := range cases {
		if got := humanDelta(tc.d); got != tc.want {
			t.Fatalf("humanDelta(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
