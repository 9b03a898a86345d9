package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks everything that can be checked without touching the
// network. Watch() runs it before committing a reload; main runs it once
// at startup.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(cfg.Events.URL) == "" && strings.TrimSpace(cfg.Events.Path) == "" {
		return errors.New("events: one of url or path is required")
	}
	if strings.TrimSpace(cfg.Events.URL) != "" && strings.TrimSpace(cfg.Events.Path) != "" {
		return errors.New("events: url and path are mutually exclusive")
	}
	if strings.TrimSpace(cfg.Subscribers.Path) == "" {
		return errors.New("subscribers.path is required")
	}

	if _, err := cfg.Durations(); err != nil {
		return err
	}

	for _, w := range cfg.Reminders.Windows {
		s := strings.ToLower(strings.TrimSpace(w))
		if s == "now" || s == "0" {
			continue
		}
		if d, err := time.ParseDuration(s); err != nil || d < 0 {
			return fmt.Errorf("reminders.windows: invalid window %q", w)
		}
	}

	if cfg.Storage != nil {
		driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		switch driver {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(cfg.Storage.Path) == "" {
				return errors.New("storage.path is required when storage is enabled")
			}
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
		}
	}
	return nil
}
