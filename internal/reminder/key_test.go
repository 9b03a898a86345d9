package reminder

import (
	"testing"
	"time"
)

func TestKeyEquality(t *testing.T) {
	a := Key{EventID: "major:2026-03-14T12:00:00Z", Recipient: User(2), Window: Window(24 * time.Hour)}
	b := Key{EventID: "major:2026-03-14T12:00:00Z", Recipient: User(2), Window: Window(24 * time.Hour)}
	if a != b {
		t.Fatalf("identical keys must compare equal")
	}

	c := a
	c.Day = "2026-03-14"
	if a == c {
		t.Fatalf("daily key must not equal its non-daily form")
	}
}

func TestKeyBucket(t *testing.T) {
	k := Key{EventID: "e", Recipient: Channel(-100123), Window: Window(0)}
	if got := k.Bucket(); got != "channel:-100123" {
		t.Fatalf("Bucket = %q", got)
	}

	k.Day = "2026-03-15"
	if got := k.Bucket(); got != "channel:-100123@2026-03-15" {
		t.Fatalf("daily Bucket = %q", got)
	}

	u := Key{EventID: "e", Recipient: User(42), Window: Window(time.Hour)}
	if got := u.Bucket(); got != "user:42" {
		t.Fatalf("user Bucket = %q", got)
	}
}

func TestKeyString(t *testing.T) {
	k := Key{EventID: "major:2026-03-14T12:00:00Z", Recipient: User(2), Window: Window(24 * time.Hour)}
	if got := k.String(); got != "major:2026-03-14T12:00:00Z|user:2|24h" {
		t.Fatalf("String = %q", got)
	}
}
