package config

import (
	"reflect"
	"sort"
	"strings"

	logx "herald/pkg/logx"
)

// SummarizeChange reports which sections differ between two configs,
// with safe structured attrs for the reload log line. Secrets (tokens)
// are never included, only whether they are set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Telegram.ChannelID != newCfg.Telegram.ChannelID ||
		strings.TrimSpace(oldCfg.Telegram.CallTimeout) != strings.TrimSpace(newCfg.Telegram.CallTimeout) ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int64("telegram.channel_id", newCfg.Telegram.ChannelID),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(stripPprofToken(oldCfg.Pprof), stripPprofToken(newCfg.Pprof)) ||
		(strings.TrimSpace(oldCfg.Pprof.Token) != "") != (strings.TrimSpace(newCfg.Pprof.Token) != "") {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Events, newCfg.Events) {
		changed = append(changed, "events")
		attrs = append(attrs,
			logx.Bool("events.url_set", strings.TrimSpace(newCfg.Events.URL) != ""),
			logx.Bool("events.path_set", strings.TrimSpace(newCfg.Events.Path) != ""),
			logx.Int("events.categories", len(newCfg.Events.Categories)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Subscribers, newCfg.Subscribers) {
		changed = append(changed, "subscribers")
		attrs = append(attrs, logx.String("subscribers.path", newCfg.Subscribers.Path))
	}

	if !reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("reminders.poll_interval", strings.TrimSpace(newCfg.Reminders.PollInterval)),
			logx.Bool("reminders.test_mode", newCfg.Reminders.TestMode),
			logx.Int("reminders.windows", len(newCfg.Reminders.Windows)),
		)
	}

	oldS, newS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func stripPprofToken(p PprofConfig) PprofConfig {
	p.Token = ""
	return p
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
