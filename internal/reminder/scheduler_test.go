package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"herald/internal/content"
	"herald/internal/event"
	"herald/internal/runtime/supervisor"
	"herald/internal/subscriber"
	"herald/internal/transport"
)

type fakeAdapter struct {
	mu       sync.Mutex
	channel  []string
	direct   []int64
	directFn func(recipientID int64) error
	deleted  []transport.MessageRef
	edited   []transport.MessageRef
	nextID   int
}

func (f *fakeAdapter) SendChannel(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = append(f.channel, text)
	f.nextID++
	return transport.MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) SendDirect(ctx context.Context, recipientID int64, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	fn := f.directFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(recipientID); err != nil {
			return transport.MessageRef{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, recipientID)
	f.nextID++
	return transport.MessageRef{ChatID: recipientID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, ref)
	return nil
}

func (f *fakeAdapter) DeleteMessage(ctx context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeAdapter) Probe(ctx context.Context, ref transport.MessageRef) error { return nil }

func (f *fakeAdapter) Stop(ctx context.Context) error { return nil }

func (f *fakeAdapter) directCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.direct)
}

func (f *fakeAdapter) channelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channel)
}

func testScheduler(t *testing.T, adapter transport.Adapter, src event.Source, subs subscriber.Registry, now time.Time) (*Scheduler, *supervisor.Supervisor) {
	t.Helper()
	sup := supervisor.New(context.Background())
	t.Cleanup(func() { _ = sup.Stop(context.Background()) })

	sched := NewScheduler(
		Config{ChannelID: -100123},
		NewState(nil, discardLogger()),
		src,
		subs,
		adapter,
		content.NewRendererWithSeed(1),
		sup,
		discardLogger(),
	)
	sched.now = func() time.Time { return now }
	return sched, sup
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func TestDueBounds(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s, _ := testScheduler(t, &fakeAdapter{}, event.NewStatic(), subscriber.StaticRegistry{}, now)

	cases := []struct {
		name         string
		scheduledFor time.Time
		want         bool
	}{
		{"on time", now, true},
		{"within catch-up", now.Add(4 * time.Minute), true},
		{"past catch-up", now.Add(6 * time.Minute), false},
		{"within grace", now.Add(-14 * time.Minute), true},
		{"past grace", now.Add(-16 * time.Minute), false},
	}
	for _, tc := range cases {
		if got := s.due(tc.scheduledFor, now); got != tc.want {
			t.Fatalf("%s: due = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestScanDeliversChannelAndDirect(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ev := event.Event{Category: "major", Name: "Pass Fight", StartTime: now.Add(time.Hour)}
	adapter := &fakeAdapter{}
	subs := subscriber.StaticRegistry{
		"42": {Username: "Ana", Categories: []string{"fights"}, Windows: []string{"1h"}},
	}
	s, sup := testScheduler(t, adapter, event.NewStatic(ev), subs, now)

	s.scanOnce(context.Background())
	waitFor(t, func() bool { return adapter.channelCount() == 1 && adapter.directCount() == 1 })

	chKey := Key{EventID: ev.ID(), Recipient: Channel(-100123), Window: Window(time.Hour)}
	dmKey := Key{EventID: ev.ID(), Recipient: User(42), Window: Window(time.Hour)}
	waitFor(t, func() bool { return s.state.WasSent(chKey) && s.state.WasSent(dmKey) })

	// A second scan finds both keys consumed and sends nothing new.
	s.scanOnce(context.Background())
	_ = sup.Wait(context.Background())
	if adapter.channelCount() != 1 || adapter.directCount() != 1 {
		t.Fatalf("rescan re-sent: channel=%d direct=%d", adapter.channelCount(), adapter.directCount())
	}
}

func TestDirectCandidateFiltering(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ev := event.Event{Category: "ruins", Name: "Ruins", StartTime: now.Add(time.Hour)}
	s, _ := testScheduler(t, &fakeAdapter{}, event.NewStatic(), subscriber.StaticRegistry{}, now)

	// Wrong category yields nothing.
	sub := subscriber.Subscription{Username: "Bo", Categories: []string{"major"}, Windows: []string{"1h"}}
	if got := s.directCandidates(ev, "7", sub, now); len(got) != 0 {
		t.Fatalf("unsubscribed category produced %d candidates", len(got))
	}

	// "all" alias covers ruins.
	sub.Categories = []string{"all"}
	if got := s.directCandidates(ev, "7", sub, now); len(got) != 1 {
		t.Fatalf("all alias produced %d candidates, want 1", len(got))
	}

	// Window not requested by the subscriber is skipped.
	sub.Windows = []string{"24h"}
	if got := s.directCandidates(ev, "7", sub, now); len(got) != 0 {
		t.Fatalf("unrequested window produced %d candidates", len(got))
	}

	// Non-numeric registry key is skipped.
	sub.Windows = []string{"1h"}
	if got := s.directCandidates(ev, "bogus", sub, now); len(got) != 0 {
		t.Fatalf("non-numeric recipient produced %d candidates", len(got))
	}
}

func TestConcurrentLaunchSingleTask(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ev := event.Event{Category: "major", Name: "Pass Fight", StartTime: now.Add(time.Hour + 4*time.Minute)}
	adapter := &fakeAdapter{}
	s, sup := testScheduler(t, adapter, event.NewStatic(), subscriber.StaticRegistry{}, now)

	c := candidate{
		key:          Key{EventID: ev.ID(), Recipient: User(2), Window: Window(time.Hour)},
		ev:           ev,
		scheduledFor: now.Add(4 * time.Minute),
		displayName:  "Ana",
	}

	// Two scan passes both observe the same due pair.
	s.launch(context.Background(), c)
	s.launch(context.Background(), c)

	s.stats.mu.Lock()
	launched := s.stats.launched
	s.stats.mu.Unlock()
	if launched != 1 {
		t.Fatalf("launched %d tasks, want 1", launched)
	}
	if !s.state.IsScheduled(c.key) {
		t.Fatalf("marker must be held while the task sleeps")
	}

	// Shutdown abandons the sleeping task; the marker must not leak.
	_ = sup.Stop(context.Background())
	if s.state.IsScheduled(c.key) {
		t.Fatalf("marker must be released when the task exits")
	}
	if adapter.directCount() != 0 {
		t.Fatalf("abandoned task must not deliver")
	}
}

func TestUnreachableRecipientNotMarkedSent(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ev := event.Event{Category: "ruins", Name: "Ruins", StartTime: now.Add(time.Hour)}
	adapter := &fakeAdapter{directFn: func(int64) error { return transport.ErrRecipientUnreachable }}
	s, _ := testScheduler(t, adapter, event.NewStatic(), subscriber.StaticRegistry{}, now)

	c := candidate{
		key:          Key{EventID: ev.ID(), Recipient: User(9), Window: Window(time.Hour)},
		ev:           ev,
		scheduledFor: now,
		displayName:  "Cy",
	}
	s.deliver(context.Background(), c)

	if s.state.WasSent(c.key) {
		t.Fatalf("unreachable recipient must stay eligible for retry")
	}
	s.stats.mu.Lock()
	blocked := s.stats.blocked
	s.stats.mu.Unlock()
	if blocked != 1 {
		t.Fatalf("blocked = %d, want 1", blocked)
	}
}

func TestChannelDeliveryReplacesPreviousMessage(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ev := event.Event{Category: "major", Name: "Pass Fight", StartTime: now.Add(time.Hour)}
	adapter := &fakeAdapter{}
	s, _ := testScheduler(t, adapter, event.NewStatic(), subscriber.StaticRegistry{}, now)

	first := candidate{
		key:          Key{EventID: ev.ID(), Recipient: Channel(-100123), Window: Window(4 * time.Hour)},
		ev:           ev,
		scheduledFor: now,
	}
	s.deliver(context.Background(), first)

	second := first
	second.key.Window = Window(time.Hour)
	s.deliver(context.Background(), second)

	adapter.mu.Lock()
	deleted := len(adapter.deleted)
	adapter.mu.Unlock()
	if deleted != 1 {
		t.Fatalf("previous channel message not replaced: %d deletes", deleted)
	}
	ref, ok := s.state.Ref(ev.ID())
	if !ok || ref.MessageID != 2 {
		t.Fatalf("ref = %+v, %v; want latest message", ref, ok)
	}
}

func TestMultiDayDailyNotice(t *testing.T) {
	start := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)
	end := start.Add(5 * 24 * time.Hour)
	now := time.Date(2026, 3, 14, 14, 0, 30, 0, time.UTC) // day 3, just past the daily occurrence
	ev := event.Event{Category: "chronicle", Name: "Chronicle", StartTime: start, EndTime: end}
	s, _ := testScheduler(t, &fakeAdapter{}, event.NewStatic(), subscriber.StaticRegistry{}, now)

	cands := s.channelCandidates(ev, now)
	var daily *candidate
	for i := range cands {
		if cands[i].key.Day != "" {
			daily = &cands[i]
		}
	}
	if daily == nil {
		t.Fatalf("expected a daily candidate for an in-progress multi-day event")
	}
	if daily.key.Day != "2026-03-14" {
		t.Fatalf("daily key day = %q", daily.key.Day)
	}

	// The same day never yields a second notice once sent.
	s.state.MarkSent(daily.key, now)
	for _, c := range s.channelCandidates(ev, now.Add(time.Minute)) {
		if c.key.Day != "" {
			t.Fatalf("daily notice repeated within the same day")
		}
	}
}
