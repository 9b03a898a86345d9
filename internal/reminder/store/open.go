package store

import (
	"context"
	"errors"
	"strings"

	logx "herald/pkg/logx"
)

// Store is the persistence API used by the reminder engine. Loads
// return empty documents when nothing has been written yet.
type Store interface {
	LoadSent(ctx context.Context) (SentDoc, error)
	SaveSent(ctx context.Context, doc SentDoc) error
	LoadScheduled(ctx context.Context) (ScheduledDoc, error)
	SaveScheduled(ctx context.Context, doc ScheduledDoc) error
	LoadRefs(ctx context.Context) (RefDoc, error)
	SaveRefs(ctx context.Context, doc RefDoc) error
	AppendFailure(ctx context.Context, r FailureRecord) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if persistence is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
