package reminder

import (
	"context"
	"sync"
	"time"

	"herald/internal/event"
	"herald/internal/reminder/store"
	logx "herald/pkg/logx"
)

// State owns the engine's durable maps: sent records (authoritative
// dedup), scheduled markers (in-flight guards) and message refs. All
// mutation goes through State's methods under one mutex; persistence is
// flushed by a coalescing background writer so file I/O never stalls the
// scan loop or delivery tasks.
//
// A nil store is valid: the engine then runs memory-only.
type State struct {
	log logx.Logger
	st  store.Store

	mu        sync.Mutex
	sent      map[string]map[string][]int64 // event -> bucket -> lead seconds
	sentAt    map[Key]time.Time             // in-memory only, current process
	scheduled map[string]map[string][]int64
	refs      map[string]store.Ref

	dirtySent      bool
	dirtyScheduled bool
	dirtyRefs      bool
	flushCh        chan struct{}
}

func NewState(st store.Store, log logx.Logger) *State {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &State{
		log:       log,
		st:        st,
		sent:      map[string]map[string][]int64{},
		sentAt:    map[Key]time.Time{},
		scheduled: map[string]map[string][]int64{},
		refs:      map[string]store.Ref{},
		flushCh:   make(chan struct{}, 1),
	}
}

// Load pulls sent records and message refs from the store. Markers from
// a previous run are counted for diagnostics and discarded: a marker
// with no live task behind it must not block redelivery.
func (s *State) Load(ctx context.Context) error {
	if s.st == nil {
		return nil
	}

	sent, err := s.st.LoadSent(ctx)
	if err != nil {
		s.log.Warn("sent records unavailable, starting empty", logx.Err(err))
		sent = store.NewSentDoc()
	}
	refs, err := s.st.LoadRefs(ctx)
	if err != nil {
		s.log.Warn("message refs unavailable, starting empty", logx.Err(err))
		refs = store.NewRefDoc()
	}
	if sched, err := s.st.LoadScheduled(ctx); err == nil {
		if stale := countLeads(sched.Events); stale > 0 {
			s.log.Info("discarding stale in-flight markers from previous run",
				logx.Int("count", stale))
		}
	}

	s.mu.Lock()
	s.sent = sent.Events
	s.refs = refs.Refs
	s.scheduled = map[string]map[string][]int64{}
	s.dirtyScheduled = true
	s.mu.Unlock()
	s.signalFlush()
	return nil
}

// RunFlusher writes dirty documents until ctx is cancelled, then takes a
// final pass so a clean shutdown loses nothing. A failed write leaves
// the document dirty; the next mutation retries it.
func (s *State) RunFlusher(ctx context.Context) error {
	if s.st == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return nil
		case <-s.flushCh:
			s.flush(ctx)
		}
	}
}

func (s *State) signalFlush() {
	select {
	case s.flushCh <- struct{}{}:
	default:
	}
}

func (s *State) flush(ctx context.Context) {
	s.mu.Lock()
	var sentDoc *store.SentDoc
	var schedDoc *store.ScheduledDoc
	var refDoc *store.RefDoc
	if s.dirtySent {
		d := store.SentDoc{Events: cloneEvents(s.sent)}
		sentDoc = &d
		s.dirtySent = false
	}
	if s.dirtyScheduled {
		d := store.ScheduledDoc{Events: cloneEvents(s.scheduled)}
		schedDoc = &d
		s.dirtyScheduled = false
	}
	if s.dirtyRefs {
		d := store.RefDoc{Refs: make(map[string]store.Ref, len(s.refs))}
		for k, v := range s.refs {
			d.Refs[k] = v
		}
		refDoc = &d
		s.dirtyRefs = false
	}
	s.mu.Unlock()

	if sentDoc != nil {
		if err := s.st.SaveSent(ctx, *sentDoc); err != nil {
			s.log.Error("sent records flush failed", logx.Err(err))
			s.mu.Lock()
			s.dirtySent = true
			s.mu.Unlock()
		}
	}
	if schedDoc != nil {
		if err := s.st.SaveScheduled(ctx, *schedDoc); err != nil {
			s.log.Error("scheduled markers flush failed", logx.Err(err))
			s.mu.Lock()
			s.dirtyScheduled = true
			s.mu.Unlock()
		}
	}
	if refDoc != nil {
		if err := s.st.SaveRefs(ctx, *refDoc); err != nil {
			s.log.Error("message refs flush failed", logx.Err(err))
			s.mu.Lock()
			s.dirtyRefs = true
			s.mu.Unlock()
		}
	}
}

// MarkSent records a delivery. The key is consumed for the rest of the
// event's lifetime; only Prune removes it.
func (s *State) MarkSent(key Key, at time.Time) {
	lead := key.Window.Seconds()
	bucket := key.Bucket()

	s.mu.Lock()
	recips := s.sent[key.EventID]
	if recips == nil {
		recips = map[string][]int64{}
		s.sent[key.EventID] = recips
	}
	if !containsLead(recips[bucket], lead) {
		recips[bucket] = append(recips[bucket], lead)
	}
	s.sentAt[key] = at
	s.dirtySent = true
	s.mu.Unlock()
	s.signalFlush()
}

func (s *State) WasSent(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return containsLead(s.sent[key.EventID][key.Bucket()], key.Window.Seconds())
}

// SentAt reports when this process delivered the key. Keys delivered by
// a previous run have no timestamp, only presence.
func (s *State) SentAt(key Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.sentAt[key]
	return at, ok
}

// MarkScheduled acquires the in-flight marker. It reports false when the
// marker is already held, in which case the caller must not launch a
// second task for the key.
func (s *State) MarkScheduled(key Key) bool {
	lead := key.Window.Seconds()
	bucket := key.Bucket()

	s.mu.Lock()
	recips := s.scheduled[key.EventID]
	if containsLead(recips[bucket], lead) {
		s.mu.Unlock()
		return false
	}
	if recips == nil {
		recips = map[string][]int64{}
		s.scheduled[key.EventID] = recips
	}
	recips[bucket] = append(recips[bucket], lead)
	s.dirtyScheduled = true
	s.mu.Unlock()
	s.signalFlush()
	return true
}

// UnmarkScheduled releases the in-flight marker. Tasks call it deferred
// so the marker never outlives its task.
func (s *State) UnmarkScheduled(key Key) {
	lead := key.Window.Seconds()
	bucket := key.Bucket()

	s.mu.Lock()
	recips := s.scheduled[key.EventID]
	if recips == nil {
		s.mu.Unlock()
		return
	}
	recips[bucket] = removeLead(recips[bucket], lead)
	if len(recips[bucket]) == 0 {
		delete(recips, bucket)
	}
	if len(recips) == 0 {
		delete(s.scheduled, key.EventID)
	}
	s.dirtyScheduled = true
	s.mu.Unlock()
	s.signalFlush()
}

func (s *State) IsScheduled(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return containsLead(s.scheduled[key.EventID][key.Bucket()], key.Window.Seconds())
}

// Ref returns the broadcast message placed for a ref key, if any.
func (s *State) Ref(key string) (store.Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refs[key]
	return r, ok
}

func (s *State) SetRef(key string, r store.Ref) {
	s.mu.Lock()
	s.refs[key] = r
	s.dirtyRefs = true
	s.mu.Unlock()
	s.signalFlush()
}

func (s *State) DeleteRef(key string) {
	s.mu.Lock()
	if _, ok := s.refs[key]; ok {
		delete(s.refs, key)
		s.dirtyRefs = true
	}
	s.mu.Unlock()
	s.signalFlush()
}

// Refs snapshots all current message refs.
func (s *State) Refs() map[string]store.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]store.Ref, len(s.refs))
	for k, v := range s.refs {
		out[k] = v
	}
	return out
}

// RecordFailure appends one undeliverable reminder to the failure log.
func (s *State) RecordFailure(ctx context.Context, key Key, reason string, at time.Time) {
	if s.st == nil {
		return
	}
	err := s.st.AppendFailure(ctx, store.FailureRecord{
		At:        at,
		EventID:   key.EventID,
		Recipient: key.Bucket(),
		Window:    key.Window.Name(),
		Reason:    reason,
	})
	if err != nil {
		s.log.Error("failure log append failed", logx.Err(err))
	}
}

// Prune drops sent records and markers for events whose derivable start
// time is older than maxAge. It returns how many events were removed.
func (s *State) Prune(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for _, events := range []map[string]map[string][]int64{s.sent, s.scheduled} {
		for eventID := range events {
			start, err := event.TimeFromID(eventID)
			if err != nil {
				// Underivable ids cannot age out any other way.
				delete(events, eventID)
				removed++
				continue
			}
			if start.Before(cutoff) {
				delete(events, eventID)
				removed++
			}
		}
	}
	if removed > 0 {
		s.dirtySent = true
		s.dirtyScheduled = true
	}
	for key := range s.sentAt {
		if start, err := event.TimeFromID(key.EventID); err != nil || start.Before(cutoff) {
			delete(s.sentAt, key)
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.signalFlush()
	}
	return removed
}

func containsLead(leads []int64, lead int64) bool {
	for _, l := range leads {
		if l == lead {
			return true
		}
	}
	return false
}

func removeLead(leads []int64, lead int64) []int64 {
	out := leads[:0]
	for _, l := range leads {
		if l != lead {
			out = append(out, l)
		}
	}
	return out
}

func cloneEvents(in map[string]map[string][]int64) map[string]map[string][]int64 {
	out := make(map[string]map[string][]int64, len(in))
	for eventID, recips := range in {
		c := make(map[string][]int64, len(recips))
		for bucket, leads := range recips {
			c[bucket] = append([]int64(nil), leads...)
		}
		out[eventID] = c
	}
	return out
}

func countLeads(events map[string]map[string][]int64) int {
	n := 0
	for _, recips := range events {
		for _, leads := range recips {
			n += len(leads)
		}
	}
	return n
}
