package reminder

import (
	"context"
	"testing"
	"time"

	"herald/internal/event"
	"herald/internal/reminder/store"
	"herald/internal/subscriber"
)

func TestReconcileDropsDeadAndKeepsLive(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	live := event.Event{Category: "major", Name: "Pass Fight", StartTime: now.Add(time.Hour)}
	adapter := &fakeAdapter{}
	s, _ := testScheduler(t, adapter, event.NewStatic(live), subscriber.StaticRegistry{}, now)

	s.state.SetRef(live.ID(), store.Ref{
		ChatID: -100123, MessageID: 1, EventID: live.ID(), StartUnix: live.StartTime.Unix(),
	})
	deadID := "ruins:2026-03-10T12:00:00Z"
	s.state.SetRef(deadID, store.Ref{
		ChatID: -100123, MessageID: 2, EventID: deadID,
	})

	s.ReconcileOnStartup(context.Background())

	if _, ok := s.state.Ref(live.ID()); !ok {
		t.Fatalf("ref for a live event must survive reconciliation")
	}
	if _, ok := s.state.Ref(deadID); ok {
		t.Fatalf("ref for a dead event must be dropped")
	}
	adapter.mu.Lock()
	deleted := len(adapter.deleted)
	adapter.mu.Unlock()
	if deleted != 1 {
		t.Fatalf("dead event message deletes = %d, want 1", deleted)
	}
}

func TestRefreshRefsEditsUpcomingOnly(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{}
	s, _ := testScheduler(t, adapter, event.NewStatic(), subscriber.StaticRegistry{}, now)

	upcomingID := "major:2026-03-14T14:00:00Z"
	s.state.SetRef(upcomingID, store.Ref{
		ChatID: -100123, MessageID: 1, EventID: upcomingID,
		EventName: "Pass Fight", StartUnix: now.Add(2 * time.Hour).Unix(),
	})
	startedID := "chronicle:2026-03-13T12:00:00Z"
	s.state.SetRef(startedID, store.Ref{
		ChatID: -100123, MessageID: 2, EventID: startedID,
		EventName: "Chronicle",
		StartUnix: now.Add(-24 * time.Hour).Unix(),
		EndUnix:   now.Add(24 * time.Hour).Unix(),
	})

	s.refreshRefs(context.Background())

	adapter.mu.Lock()
	edited := adapter.edited
	adapter.mu.Unlock()
	if len(edited) != 1 {
		t.Fatalf("edits = %d, want only the upcoming ref", len(edited))
	}
	if edited[0].MessageID != 1 {
		t.Fatalf("edited message %d, want 1", edited[0].MessageID)
	}
}
