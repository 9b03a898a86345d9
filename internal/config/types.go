package config

// Config is the whole herald configuration document. JSON and YAML are
// both accepted; YAML is coerced to JSON so one strict decoder covers
// both formats.
//
// All durations are Go duration strings (e.g. "30s", "5m", "48h").
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Pprof       PprofConfig       `json:"pprof,omitempty"`
	Events      EventsConfig      `json:"events"`
	Subscribers SubscribersConfig `json:"subscribers"`
	Reminders   RemindersConfig   `json:"reminders"`
	Storage     *StorageConfig    `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// ChannelID is the broadcast destination for channel reminders.
	// Zero disables channel reminders.
	ChannelID int64 `json:"channel_id"`

	// CallTimeout bounds each API call (default "10s").
	CallTimeout string `json:"call_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// EventsConfig points herald at the upcoming-event feed.
type EventsConfig struct {
	// URL of the ICS feed; Path reads a local file instead (tests,
	// air-gapped setups). Exactly one should be set.
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`

	Refresh string `json:"refresh,omitempty"` // default "1h"
	Horizon string `json:"horizon,omitempty"` // default "72h"

	// Categories whitelists event categories; empty means all.
	Categories []string `json:"categories,omitempty"`

	// CachePath persists the last good snapshot so feed outages degrade
	// to stale data instead of an empty horizon.
	CachePath string `json:"cache_path,omitempty"`
}

type SubscribersConfig struct {
	Path string `json:"path"`
	TTL  string `json:"ttl,omitempty"` // registry re-read interval, default "1m"
}

type RemindersConfig struct {
	PollInterval string `json:"poll_interval,omitempty"` // default "5m"
	Horizon      string `json:"horizon,omitempty"`       // default "48h"
	CatchUp      string `json:"catch_up,omitempty"`      // default "5m"
	Grace        string `json:"grace,omitempty"`         // default "15m"
	Retention    string `json:"retention,omitempty"`     // default "48h"
	ExpiryDelay  string `json:"expiry_delay,omitempty"`  // default "1h"

	// Windows overrides the lead-time ladder, window names like
	// ["24h","12h","4h","1h","now"]. Empty means the standard ladder.
	Windows []string `json:"windows,omitempty"`

	// TestMode compresses the ladder to seconds and schedules against a
	// synthetic near-future event. Diagnostics only.
	TestMode bool `json:"test_mode,omitempty"`

	RatePerSec      int    `json:"rate_per_sec,omitempty"` // default 20
	Burst           int    `json:"burst,omitempty"`        // default 5
	SummaryInterval string `json:"summary_interval,omitempty"`
}

// StorageConfig controls the persistence layer. Nil means memory-only:
// every restart forgets delivery history.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./herald_state" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
