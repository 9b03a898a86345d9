package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	logx "herald/pkg/logx"
)

// FeedConfig configures the ICS-backed event source.
type FeedConfig struct {
	// URL or Path: exactly one must be set. URL is fetched over HTTP,
	// Path is read from disk (useful for exported calendars).
	URL  string
	Path string

	// Refresh is how often the feed is re-fetched. Default 1h.
	Refresh time.Duration

	// Horizon bounds how far ahead occurrences are expanded. Default 72h.
	Horizon time.Duration

	// Categories restricts which normalized categories are kept.
	// Empty means keep everything.
	Categories []string

	// CachePath, when set, persists the last good snapshot so a restart
	// with an unreachable feed still has events to work from.
	CachePath string
}

// Feed loads events from an iCalendar feed, expanding recurring entries
// within the horizon. The last good snapshot is kept in memory (and
// optionally on disk), so a failing fetch degrades to stale data instead
// of an empty calendar.
type Feed struct {
	cfg  FeedConfig
	log  logx.Logger
	http *http.Client

	mu        sync.Mutex
	events    []Event
	refreshed time.Time
}

const maxOccurrencesPerEvent = 500

func NewFeed(cfg FeedConfig, log logx.Logger) (*Feed, error) {
	if strings.TrimSpace(cfg.URL) == "" && strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("ics feed needs a url or a path")
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = time.Hour
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 72 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Feed{
		cfg:  cfg,
		log:  log,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	f.loadCache()
	return f, nil
}

func (f *Feed) Upcoming(ctx context.Context) ([]Event, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

// LastRefreshed reports when the feed was last fetched successfully.
func (f *Feed) LastRefreshed() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed
}

// Run refreshes the feed on a fixed interval until ctx is canceled.
// The initial refresh happens immediately.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.Refresh(ctx); err != nil {
		f.log.Warn("initial calendar refresh failed; serving cached events", logx.Err(err))
	}
	ticker := time.NewTicker(f.cfg.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.Refresh(ctx); err != nil {
				f.log.Warn("calendar refresh failed", logx.Err(err))
			}
		}
	}
}

// Refresh fetches and re-expands the feed. On failure the previous
// snapshot stays in place.
func (f *Feed) Refresh(ctx context.Context) error {
	body, err := f.fetch(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	events, err := f.parse(body, now)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.events = events
	f.refreshed = now
	f.mu.Unlock()

	f.log.Info("calendar refreshed", logx.Int("events", len(events)))
	f.saveCache(events, now)
	return nil
}

func (f *Feed) fetch(ctx context.Context) ([]byte, error) {
	if p := strings.TrimSpace(f.cfg.Path); p != "" {
		return os.ReadFile(p)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func (f *Feed) parse(body []byte, now time.Time) ([]Event, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	allowed := map[string]bool{}
	for _, c := range f.cfg.Categories {
		allowed[NormalizeCategory(c)] = true
	}

	rangeEnd := now.Add(f.cfg.Horizon)
	out := make([]Event, 0, len(cal.Events()))

	for _, ve := range cal.Events() {
		evs, err := f.expandVEvent(ve, now, rangeEnd)
		if err != nil {
			// Skip the broken entry, keep parsing the rest.
			f.log.Warn("skipping unparseable calendar entry", logx.Err(err))
			continue
		}
		for _, ev := range evs {
			if len(allowed) > 0 && !allowed[ev.Category] {
				continue
			}
			out = append(out, ev)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *Feed) expandVEvent(ve *ical.VEvent, rangeStart, rangeEnd time.Time) ([]Event, error) {
	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("dtstart: %w", err)
	}
	end, _ := ve.GetEndAt()

	name := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		name = strings.TrimSpace(p.Value)
	}
	category := ""
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		category = NormalizeCategory(strings.Split(p.Value, ",")[0])
	}
	if category == "" {
		// Fall back to the first word of the summary.
		category = NormalizeCategory(strings.SplitN(name, " ", 2)[0])
	}
	zone := ""
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		zone = strings.TrimSpace(p.Value)
	}

	base := Event{Category: category, Name: name, Zone: zone}
	dur := time.Duration(0)
	if !end.IsZero() && end.After(start) {
		dur = end.Sub(start)
	}

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil {
		// Single occurrence: keep events still in range (ongoing or ahead).
		evEnd := start
		if dur > 0 {
			evEnd = start.Add(dur)
		}
		if evEnd.Before(rangeStart) || start.After(rangeEnd) {
			return nil, nil
		}
		ev := base
		ev.StartTime = start.UTC()
		if dur > 0 {
			ev.EndTime = start.Add(dur).UTC()
		}
		return []Event{ev}, nil
	}

	r, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("rrule: %w", err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)

	// Widen the expansion window backwards so in-progress occurrences of
	// long events are not lost.
	lookBack := rangeStart
	if dur > 0 {
		lookBack = rangeStart.Add(-dur)
	}
	occTimes := set.Between(lookBack.In(start.Location()), rangeEnd.In(start.Location()), true)
	if len(occTimes) > maxOccurrencesPerEvent {
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	out := make([]Event, 0, len(occTimes))
	for _, occ := range occTimes {
		ev := base
		ev.StartTime = occ.UTC()
		if dur > 0 {
			ev.EndTime = occ.Add(dur).UTC()
		}
		out = append(out, ev)
	}
	return out, nil
}

// ---- snapshot cache ----

type feedCache struct {
	Refreshed time.Time `json:"refreshed"`
	Events    []Event   `json:"events"`
}

func (f *Feed) loadCache() {
	path := strings.TrimSpace(f.cfg.CachePath)
	if path == "" {
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var c feedCache
	if err := json.Unmarshal(b, &c); err != nil {
		f.log.Warn("calendar cache unreadable; ignoring", logx.String("path", path), logx.Err(err))
		return
	}
	f.mu.Lock()
	f.events = c.Events
	f.refreshed = c.Refreshed
	f.mu.Unlock()
	f.log.Info("calendar cache loaded", logx.Int("events", len(c.Events)), logx.Time("refreshed", c.Refreshed))
}

func (f *Feed) saveCache(events []Event, refreshed time.Time) {
	path := strings.TrimSpace(f.cfg.CachePath)
	if path == "" {
		return
	}
	b, err := json.MarshalIndent(feedCache{Refreshed: refreshed, Events: events}, "", "  ")
	if err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.log.Warn("calendar cache save failed", logx.Err(err))
		return
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		f.log.Warn("calendar cache save failed", logx.Err(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		f.log.Warn("calendar cache save failed", logx.Err(err))
	}
}
