// Package subscriber provides read-only access to the recipient registry:
// who wants reminders, for which event categories, at which lead times.
//
// The registry file is owned by an external subscription manager; herald
// only ever reads it. Malformed entries are normalized or dropped, never
// fatal.
package subscriber

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	logx "herald/pkg/logx"
)

// Subscription is one recipient's reminder preferences after
// normalization: categories and window names are lowercased, deduplicated
// and filtered against the valid sets.
type Subscription struct {
	Username   string   `json:"username"`
	Categories []string `json:"subscriptions"`
	Windows    []string `json:"reminder_times"`

	// GovernorName is the in-game name used for personalized greetings,
	// when the registry knows it.
	GovernorName string `json:"governor_name,omitempty"`
}

// Registry yields the current subscriber snapshot, keyed by recipient id.
type Registry interface {
	All(ctx context.Context) (map[string]Subscription, error)
}

// Valid subscription vocabulary. "fights" and "all" are aliases expanded
// by ExpandCategories.
var (
	ValidCategories = []string{"ruins", "altars", "major", "chronicle", "fights", "all"}
	ValidWindows    = []string{"24h", "12h", "4h", "1h", "now"}

	// DefaultWindows applies when a subscriber never picked lead times.
	DefaultWindows = []string{"24h", "12h", "4h", "1h", "now"}
)

// ExpandCategories resolves alias categories into concrete ones:
// "fights" adds altars+major, "all" adds every concrete category.
func ExpandCategories(categories []string) map[string]bool {
	out := map[string]bool{}
	for _, c := range categories {
		out[c] = true
	}
	if out["fights"] {
		out["altars"] = true
		out["major"] = true
	}
	if out["all"] {
		out["ruins"] = true
		out["altars"] = true
		out["major"] = true
	}
	return out
}

// FileRegistry reads the subscription JSON document, re-reading it at
// most once per TTL so each scan tick sees a fresh-enough snapshot
// without hammering the disk.
type FileRegistry struct {
	path string
	ttl  time.Duration
	log  logx.Logger

	mu       sync.Mutex
	cache    map[string]Subscription
	loadedAt time.Time
}

func NewFileRegistry(path string, ttl time.Duration, log logx.Logger) *FileRegistry {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &FileRegistry{path: path, ttl: ttl, log: log}
}

func (r *FileRegistry) All(ctx context.Context) (map[string]Subscription, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cache != nil && time.Since(r.loadedAt) < r.ttl {
		return r.cache, nil
	}

	subs := r.loadLocked()
	r.cache = subs
	r.loadedAt = time.Now()
	return subs, nil
}

// loadLocked reads and normalizes the registry file. Any failure yields
// the previous snapshot (or an empty one) rather than an error: a broken
// registry must never stop the scan loop.
func (r *FileRegistry) loadLocked() map[string]Subscription {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("subscriber registry unreadable", logx.String("path", r.path), logx.Err(err))
		}
		if r.cache != nil {
			return r.cache
		}
		return map[string]Subscription{}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		r.log.Warn("subscriber registry malformed; keeping previous snapshot", logx.String("path", r.path), logx.Err(err))
		if r.cache != nil {
			return r.cache
		}
		return map[string]Subscription{}
	}

	out := make(map[string]Subscription, len(raw))
	for id, entry := range raw {
		var s Subscription
		if err := json.Unmarshal(entry, &s); err != nil {
			// Drop the one bad entry, keep the rest.
			r.log.Warn("dropping malformed subscriber entry", logx.String("recipient", id))
			continue
		}
		s.Categories = normalize(s.Categories, ValidCategories)
		s.Windows = normalize(s.Windows, ValidWindows)
		if len(s.Windows) == 0 {
			s.Windows = DefaultWindows
		}
		if s.Username == "" {
			s.Username = "Unknown"
		}
		out[id] = s
	}
	return out
}

func normalize(values, valid []string) []string {
	ok := map[string]bool{}
	for _, v := range valid {
		ok[v] = true
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if ok[v] && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// StaticRegistry is a fixed in-memory registry for tests and test mode.
type StaticRegistry map[string]Subscription

func (s StaticRegistry) All(ctx context.Context) (map[string]Subscription, error) {
	_ = ctx
	return s, nil
}
