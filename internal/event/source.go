package event

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Source produces the current upcoming-event snapshot. Implementations
// must be safe for concurrent use; callers treat the returned slice as
// read-only.
type Source interface {
	Upcoming(ctx context.Context) ([]Event, error)
}

// Static is a fixed in-memory source, used by the diagnostic test-mode
// path and by tests.
type Static struct {
	mu     sync.Mutex
	events []Event
}

func NewStatic(events ...Event) *Static {
	s := &Static{}
	s.Set(events...)
	return s
}

func (s *Static) Set(events ...Event) {
	cp := make([]Event, len(events))
	copy(cp, events)
	sort.Slice(cp, func(i, j int) bool { return cp[i].StartTime.Before(cp[j].StartTime) })
	s.mu.Lock()
	s.events = cp
	s.mu.Unlock()
}

func (s *Static) Upcoming(ctx context.Context) ([]Event, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

// SyntheticTest returns a Static source holding one near-future event,
// matching the diagnostic path's needs: a short event starting in two
// minutes so the shortened reminder windows all fire quickly.
func SyntheticTest(now time.Time) *Static {
	start := now.Add(2 * time.Minute)
	return NewStatic(Event{
		Category:  "ruins",
		Name:      "Test Ruins",
		StartTime: start.UTC(),
		EndTime:   start.Add(30 * time.Second).UTC(),
		Zone:      "Test Zone",
	})
}
