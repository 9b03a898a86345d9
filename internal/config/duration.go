package config

import (
	"fmt"
	"strings"
	"time"
)

// Durations is every time knob in the document, fully resolved. Parsing
// and defaulting live together so Validate and the startup wiring can
// never disagree about how a field reads.
type Durations struct {
	TelegramCallTimeout time.Duration
	EventsRefresh       time.Duration
	EventsHorizon       time.Duration
	SubscribersTTL      time.Duration

	PollInterval    time.Duration
	ScanHorizon     time.Duration
	CatchUp         time.Duration
	Grace           time.Duration
	Retention       time.Duration
	ExpiryDelay     time.Duration
	SummaryInterval time.Duration

	StorageBusyTimeout time.Duration

	PprofReadTimeout  time.Duration
	PprofWriteTimeout time.Duration
	PprofIdleTimeout  time.Duration
}

// Defaults applied when a field is absent or "0". The pprof and storage
// timeouts default to zero: their consumers pick the behavior for an
// unset value.
var defaultDurations = Durations{
	TelegramCallTimeout: 10 * time.Second,
	EventsRefresh:       time.Hour,
	EventsHorizon:       72 * time.Hour,
	SubscribersTTL:      time.Minute,
	PollInterval:        5 * time.Minute,
	ScanHorizon:         48 * time.Hour,
	CatchUp:             5 * time.Minute,
	Grace:               15 * time.Minute,
	Retention:           48 * time.Hour,
	ExpiryDelay:         time.Hour,
	SummaryInterval:     time.Minute,
}

// Durations resolves the document's duration strings. Empty fields take
// their defaults; the first malformed or negative field aborts with its
// config path in the error.
func (c *Config) Durations() (Durations, error) {
	busy := ""
	if c.Storage != nil {
		busy = c.Storage.BusyTimeout
	}

	out := defaultDurations
	fields := []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"telegram.call_timeout", c.Telegram.CallTimeout, &out.TelegramCallTimeout},
		{"events.refresh", c.Events.Refresh, &out.EventsRefresh},
		{"events.horizon", c.Events.Horizon, &out.EventsHorizon},
		{"subscribers.ttl", c.Subscribers.TTL, &out.SubscribersTTL},
		{"reminders.poll_interval", c.Reminders.PollInterval, &out.PollInterval},
		{"reminders.horizon", c.Reminders.Horizon, &out.ScanHorizon},
		{"reminders.catch_up", c.Reminders.CatchUp, &out.CatchUp},
		{"reminders.grace", c.Reminders.Grace, &out.Grace},
		{"reminders.retention", c.Reminders.Retention, &out.Retention},
		{"reminders.expiry_delay", c.Reminders.ExpiryDelay, &out.ExpiryDelay},
		{"reminders.summary_interval", c.Reminders.SummaryInterval, &out.SummaryInterval},
		{"storage.busy_timeout", busy, &out.StorageBusyTimeout},
		{"pprof.read_timeout", c.Pprof.ReadTimeout, &out.PprofReadTimeout},
		{"pprof.write_timeout", c.Pprof.WriteTimeout, &out.PprofWriteTimeout},
		{"pprof.idle_timeout", c.Pprof.IdleTimeout, &out.PprofIdleTimeout},
	}
	for _, f := range fields {
		s := strings.TrimSpace(f.raw)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return Durations{}, fmt.Errorf("%s: invalid duration %q: %w", f.path, f.raw, err)
		}
		if d < 0 {
			return Durations{}, fmt.Errorf("%s: duration must be >= 0", f.path)
		}
		if d > 0 {
			*f.dst = d
		}
	}
	return out, nil
}
