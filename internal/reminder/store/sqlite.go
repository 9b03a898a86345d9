//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "herald/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) loadEventTable(ctx context.Context, table string) (map[string]map[string][]int64, error) {
	out := map[string]map[string][]int64{}
	rows, err := s.db.QueryContext(ctx, `SELECT event_id, recipient, lead_sec FROM `+table)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var eventID, recipient string
		var lead int64
		if err := rows.Scan(&eventID, &recipient, &lead); err != nil {
			return out, err
		}
		recips := out[eventID]
		if recips == nil {
			recips = map[string][]int64{}
			out[eventID] = recips
		}
		recips[recipient] = append(recips[recipient], lead)
	}
	return out, rows.Err()
}

func (s *sqliteStore) saveEventTable(ctx context.Context, table string, events map[string]map[string][]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO `+table+`(event_id, recipient, lead_sec) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for eventID, recips := range events {
		for recipient, leads := range recips {
			for _, lead := range leads {
				if _, err := stmt.ExecContext(ctx, eventID, recipient, lead); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadSent(ctx context.Context) (SentDoc, error) {
	if s == nil || s.db == nil {
		return NewSentDoc(), ErrDisabled
	}
	events, err := s.loadEventTable(ctx, "sent")
	return SentDoc{Version: sentDocVersion, Events: events}, err
}

func (s *sqliteStore) SaveSent(ctx context.Context, doc SentDoc) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	return s.saveEventTable(ctx, "sent", doc.Events)
}

func (s *sqliteStore) LoadScheduled(ctx context.Context) (ScheduledDoc, error) {
	if s == nil || s.db == nil {
		return NewScheduledDoc(), ErrDisabled
	}
	events, err := s.loadEventTable(ctx, "scheduled")
	return ScheduledDoc{Version: sentDocVersion, Events: events}, err
}

func (s *sqliteStore) SaveScheduled(ctx context.Context, doc ScheduledDoc) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	return s.saveEventTable(ctx, "scheduled", doc.Events)
}

func (s *sqliteStore) LoadRefs(ctx context.Context) (RefDoc, error) {
	doc := NewRefDoc()
	if s == nil || s.db == nil {
		return doc, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ref_key, chat_id, message_id, event_id, event_name, start_unix, end_unix FROM refs`)
	if err != nil {
		return doc, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var r Ref
		var name sql.NullString
		var start, end sql.NullInt64
		if err := rows.Scan(&key, &r.ChatID, &r.MessageID, &r.EventID, &name, &start, &end); err != nil {
			return doc, err
		}
		r.EventName = name.String
		r.StartUnix = start.Int64
		r.EndUnix = end.Int64
		doc.Refs[key] = r
	}
	return doc, rows.Err()
}

func (s *sqliteStore) SaveRefs(ctx context.Context, doc RefDoc) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM refs`); err != nil {
		return err
	}
	for key, r := range doc.Refs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO refs(ref_key, chat_id, message_id, event_id, event_name, start_unix, end_unix) VALUES(?,?,?,?,?,?,?)`,
			key, r.ChatID, r.MessageID, r.EventID, nullStr(r.EventName), r.StartUnix, r.EndUnix,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendFailure(ctx context.Context, r FailureRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failed(at, event_id, recipient, window, reason) VALUES(?,?,?,?,?)`,
		r.At.Format(time.RFC3339Nano), r.EventID, r.Recipient, r.Window, nullStr(r.Reason),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
