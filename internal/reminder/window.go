package reminder

import (
	"fmt"
	"strings"
	"time"
)

// Window is a lead-time offset before an event's start. Zero means "at
// start".
type Window time.Duration

// StandardWindows is the production lead-time set, largest first.
var StandardWindows = []Window{
	Window(24 * time.Hour),
	Window(12 * time.Hour),
	Window(4 * time.Hour),
	Window(time.Hour),
	Window(0),
}

// TestWindows compresses the whole ladder into under two minutes for
// end-to-end diagnostics.
var TestWindows = []Window{
	Window(time.Minute),
	Window(30 * time.Second),
	Window(10 * time.Second),
	Window(0),
}

func (w Window) Duration() time.Duration { return time.Duration(w) }

func (w Window) Seconds() int64 { return int64(time.Duration(w) / time.Second) }

// Name renders the compact human label used in logs, subscriber
// preferences and failure records: "24h", "12h", "1h", "1m", "30s" and
// "now" for zero.
func (w Window) Name() string {
	d := time.Duration(w)
	switch {
	case d == 0:
		return "now"
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

// ParseWindowName is the inverse of Name.
func ParseWindowName(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "now" || s == "0" {
		return Window(0), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid reminder window %q", s)
	}
	return Window(d), nil
}

// WindowFromSeconds rebuilds a Window from its persisted form.
func WindowFromSeconds(sec int64) Window {
	return Window(time.Duration(sec) * time.Second)
}
