package reminder

import (
	"testing"
	"time"
)

func TestWindowNames(t *testing.T) {
	cases := []struct {
		w    Window
		want string
	}{
		{Window(24 * time.Hour), "24h"},
		{Window(12 * time.Hour), "12h"},
		{Window(4 * time.Hour), "4h"},
		{Window(time.Hour), "1h"},
		{Window(time.Minute), "1m"},
		{Window(30 * time.Second), "30s"},
		{Window(0), "now"},
	}
	for _, tc := range cases {
		if got := tc.w.Name(); got != tc.want {
			t.Fatalf("Name(%v) = %q, want %q", time.Duration(tc.w), got, tc.want)
		}
		back, err := ParseWindowName(tc.want)
		if err != nil {
			t.Fatalf("ParseWindowName(%q): %v", tc.want, err)
		}
		if back != tc.w {
			t.Fatalf("round trip %q = %v, want %v", tc.want, back, tc.w)
		}
	}
}

func TestParseWindowNameRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-1h", "24"} {
		if _, err := ParseWindowName(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestWindowSecondsRoundTrip(t *testing.T) {
	for _, w := range append(append([]Window{}, StandardWindows...), TestWindows...) {
		if got := WindowFromSeconds(w.Seconds()); got != w {
			t.Fatalf("WindowFromSeconds(%d) = %v, want %v", w.Seconds(), got, w)
		}
	}
}
