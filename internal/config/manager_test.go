package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalJSON = `{
	"telegram": {"token": "123:abc", "channel_id": -100123},
	"logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
	"events": {"url": "https://example.com/events.ics"},
	"subscribers": {"path": "./subscriptions.json"},
	"reminders": {}
}`

func TestParseJSON(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", minimalJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.ChannelID != -100123 {
		t.Fatalf("channel_id = %d", cfg.Telegram.ChannelID)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get must return the committed config")
	}
}

func TestParseYAML(t *testing.T) {
	m := NewManager(writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  channel_id: -100123
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
events:
  path: ./events.ics
subscribers:
  path: ./subscriptions.json
reminders:
  poll_interval: 5m
  test_mode: true
`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Reminders.TestMode {
		t.Fatalf("yaml fields not decoded: %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", `{"telegram": {"token": "x"}, "surprise": 1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", minimalJSON+`{}`))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected trailing-data error")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram:    TelegramConfig{Token: "123:abc"},
			Events:      EventsConfig{URL: "https://example.com/e.ics"},
			Subscribers: SubscribersConfig{Path: "./subs.json"},
		}
	}

	if err := Validate(base()); err != nil {
		t.Fatalf("minimal config must validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"missing event source", func(c *Config) { c.Events = EventsConfig{} }},
		{"both event sources", func(c *Config) { c.Events.Path = "./e.ics" }},
		{"missing subscribers", func(c *Config) { c.Subscribers.Path = "" }},
		{"bad duration", func(c *Config) { c.Reminders.Grace = "soon" }},
		{"negative duration", func(c *Config) { c.Reminders.PollInterval = "-5m" }},
		{"bad window", func(c *Config) { c.Reminders.Windows = []string{"yesterday"} }},
		{"storage without path", func(c *Config) { c.Storage = &StorageConfig{Driver: "file"} }},
		{"unknown storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "etcd", Path: "x"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDurationsResolveDefaultsAndOverrides(t *testing.T) {
	cfg := &Config{}
	durs, err := cfg.Durations()
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if durs.PollInterval != 5*time.Minute || durs.Grace != 15*time.Minute || durs.EventsHorizon != 72*time.Hour {
		t.Fatalf("defaults = %+v", durs)
	}
	if durs.PprofReadTimeout != 0 || durs.StorageBusyTimeout != 0 {
		t.Fatalf("unset optional timeouts must stay zero: %+v", durs)
	}

	cfg.Reminders.PollInterval = "90s"
	cfg.Storage = &StorageConfig{BusyTimeout: "250ms"}
	durs, err = cfg.Durations()
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if durs.PollInterval != 90*time.Second {
		t.Fatalf("poll_interval = %v, want 90s", durs.PollInterval)
	}
	if durs.StorageBusyTimeout != 250*time.Millisecond {
		t.Fatalf("busy_timeout = %v, want 250ms", durs.StorageBusyTimeout)
	}

	// Explicit zero reads as "use the default".
	cfg.Reminders.PollInterval = "0s"
	durs, err = cfg.Durations()
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if durs.PollInterval != 5*time.Minute {
		t.Fatalf("explicit zero must fall back: %v", durs.PollInterval)
	}

	cfg.Reminders.Grace = "soon"
	if _, err := cfg.Durations(); err == nil {
		t.Fatalf("malformed duration must be rejected")
	}
}

func TestSummarizeChange(t *testing.T) {
	a := &Config{Telegram: TelegramConfig{Token: "x", ChannelID: 1}}
	b := &Config{Telegram: TelegramConfig{Token: "x", ChannelID: 2}, Logging: LoggingConfig{Level: "debug"}}

	changed, _ := SummarizeChange(a, b)
	want := map[string]bool{"telegram": true, "logging": true}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v", changed)
	}
	for _, c := range changed {
		if !want[c] {
			t.Fatalf("unexpected section %q in %v", c, changed)
		}
	}

	if changed, _ := SummarizeChange(b, b); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}
