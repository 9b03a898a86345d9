package store

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("store disabled")

// Config configures the persistence backend.
//
// Driver values:
//   - "file": JSON documents under Path's directory, sharing its base name
//   - "sqlite": SQLite database file (requires the sqlite build tag)
//
// If Driver is empty or "none", persistence is disabled and every
// restart starts from a clean slate.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// sentDocVersion is the current on-disk schema version for sent records.
const sentDocVersion = 2

// SentDoc is the authoritative record of delivered reminders:
// event ID -> recipient key -> lead seconds already fired.
//
// Recipient keys take the form "user:<id>", "channel:<id>" or
// "channel:<id>@<yyyy-mm-dd>" for once-per-day channel notices.
type SentDoc struct {
	Version int                           `json:"version"`
	Events  map[string]map[string][]int64 `json:"events"`
}

func NewSentDoc() SentDoc {
	return SentDoc{Version: sentDocVersion, Events: map[string]map[string][]int64{}}
}

// ScheduledDoc mirrors SentDoc for in-flight markers. Markers are
// advisory: a marker with no live task behind it is stale and must be
// ignored after restart.
type ScheduledDoc struct {
	Version int                           `json:"version"`
	Events  map[string]map[string][]int64 `json:"events"`
}

func NewScheduledDoc() ScheduledDoc {
	return ScheduledDoc{Version: sentDocVersion, Events: map[string]map[string][]int64{}}
}

// Ref identifies a channel message the engine placed and may later edit
// or delete. Event metadata rides along so reconciliation can still
// reason about refs whose event feed entry has disappeared.
type Ref struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	EventID   string `json:"event_id"`
	EventName string `json:"event_name,omitempty"`
	StartUnix int64  `json:"start_unix,omitempty"`
	EndUnix   int64  `json:"end_unix,omitempty"`
}

// RefDoc maps a ref key (normally the event ID) to the message placed
// for it.
type RefDoc struct {
	Version int            `json:"version"`
	Refs    map[string]Ref `json:"refs"`
}

func NewRefDoc() RefDoc {
	return RefDoc{Version: sentDocVersion, Refs: map[string]Ref{}}
}

// FailureRecord logs a reminder that could not be delivered.
type FailureRecord struct {
	At        time.Time `json:"at"`
	EventID   string    `json:"event_id"`
	Recipient string    `json:"recipient"`
	Window    string    `json:"window"`
	Reason    string    `json:"reason"`
}
