package reminder

import (
	"testing"
	"time"
)

type sentSet map[Key]bool

func (s sentSet) WasSent(key Key) bool { return s[key] }

func TestShouldFire(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	key := Key{EventID: "major:2026-03-14T12:00:00Z", Recipient: User(2), Window: Window(24 * time.Hour)}
	grace := 15 * time.Minute

	cases := []struct {
		name         string
		scheduledFor time.Time
		sent         bool
		want         bool
	}{
		{"five minutes late fires", now.Add(-5 * time.Minute), false, true},
		{"twenty minutes late is dropped", now.Add(-20 * time.Minute), false, false},
		{"already sent never fires", now.Add(-5 * time.Minute), true, false},
		{"early does not fire", now.Add(time.Minute), false, false},
		{"exactly on time fires", now, false, true},
		{"exactly grace late still fires", now.Add(-grace), false, true},
		{"one second past grace is dropped", now.Add(-grace - time.Second), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sent := sentSet{}
			if tc.sent {
				sent[key] = true
			}
			if got := ShouldFire(sent, key, tc.scheduledFor, now, grace); got != tc.want {
				t.Fatalf("ShouldFire = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldFireAfterMarkSent(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	key := Key{EventID: "ruins:2026-03-14T13:00:00Z", Recipient: User(7), Window: Window(time.Hour)}

	st := NewState(nil, discardLogger())
	if !ShouldFire(st, key, now, now, DefaultGrace) {
		t.Fatalf("expected first check to fire")
	}
	st.MarkSent(key, now)
	if ShouldFire(st, key, now, now.Add(time.Second), DefaultGrace) {
		t.Fatalf("expected re-check after MarkSent to be rejected")
	}
}
