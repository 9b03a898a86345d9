package reminder

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"herald/internal/event"
	"herald/internal/transport"
	logx "herald/pkg/logx"
)

// ReconcileOnStartup aligns persisted message refs with the live event
// source after a restart. Refs whose event is still upcoming are probed
// and kept; refs whose message vanished are dropped; refs whose event no
// longer exists get their message deleted. A malformed ref never blocks
// the rest.
func (s *Scheduler) ReconcileOnStartup(ctx context.Context) {
	refs := s.state.Refs()
	if len(refs) == 0 {
		return
	}

	live := map[string]bool{}
	events, err := s.events.Upcoming(ctx)
	if err != nil {
		s.log.Warn("event source unavailable during reconciliation, keeping refs", logx.Err(err))
		return
	}
	for _, ev := range events {
		live[ev.ID()] = true
	}

	kept, dropped, deleted := 0, 0, 0
	for refKey, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		mref := transport.MessageRef{ChatID: ref.ChatID, MessageID: ref.MessageID}
		if mref.IsZero() {
			s.state.DeleteRef(refKey)
			dropped++
			continue
		}

		if !live[ref.EventID] {
			if err := s.adapter.DeleteMessage(ctx, mref); err != nil && !errors.Is(err, transport.ErrMessageNotFound) {
				s.log.Warn("orphaned reminder delete failed",
					logx.String("event", ref.EventID), logx.Err(err))
			}
			s.state.DeleteRef(refKey)
			deleted++
			continue
		}

		switch err := s.adapter.Probe(ctx, mref); {
		case err == nil:
			kept++
		case errors.Is(err, transport.ErrMessageNotFound):
			s.state.DeleteRef(refKey)
			dropped++
		default:
			// Transient probe failure: keep the ref, next startup or
			// the expiry job settles it.
			s.log.Debug("ref probe inconclusive",
				logx.String("event", ref.EventID), logx.Err(err))
			kept++
		}
	}

	s.log.Info("startup reconciliation complete",
		logx.Int("kept", kept),
		logx.Int("dropped", dropped),
		logx.Int("deleted", deleted),
	)
}

// StartMaintenance schedules the background housekeeping jobs: expiring
// refs for finished events and pruning aged-out state. The returned cron
// is already running; the caller stops it on shutdown.
func (s *Scheduler) StartMaintenance(ctx context.Context) *cron.Cron {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.log}),
		cron.SkipIfStillRunning(cronLogger{s.log}),
	))

	_, _ = c.AddFunc("@every 10m", func() {
		s.expireRefs(ctx)
	})
	_, _ = c.AddFunc("@every 30m", func() {
		s.refreshRefs(ctx)
	})
	_, _ = c.AddFunc("@every 1h", func() {
		if n := s.state.Prune(s.cfg.Retention, s.now()); n > 0 {
			s.log.Info("pruned aged reminder state", logx.Int("events", n))
		}
	})

	c.Start()
	return c
}

// expireRefs removes refs once the event's end (plus a settling delay)
// has passed, deleting the now-stale channel message.
func (s *Scheduler) expireRefs(ctx context.Context) {
	now := s.now()
	for refKey, ref := range s.state.Refs() {
		endUnix := ref.EndUnix
		if endUnix == 0 {
			endUnix = ref.StartUnix
		}
		if endUnix == 0 {
			continue
		}
		end := time.Unix(endUnix, 0)
		if end.Add(s.cfg.ExpiryDelay).After(now) {
			continue
		}
		mref := transport.MessageRef{ChatID: ref.ChatID, MessageID: ref.MessageID}
		if !mref.IsZero() {
			if err := s.adapter.DeleteMessage(ctx, mref); err != nil && !errors.Is(err, transport.ErrMessageNotFound) {
				s.log.Warn("expired reminder delete failed",
					logx.String("event", ref.EventID), logx.Err(err))
			}
		}
		s.state.DeleteRef(refKey)
	}
}

// refreshRefs re-renders the countdown text of channel reminders still
// on display, so a message posted hours ago does not show a stale
// "Starts in 4h". A vanished message drops its ref.
func (s *Scheduler) refreshRefs(ctx context.Context) {
	now := s.now()
	for refKey, ref := range s.state.Refs() {
		if ctx.Err() != nil {
			return
		}
		mref := transport.MessageRef{ChatID: ref.ChatID, MessageID: ref.MessageID}
		if mref.IsZero() || ref.StartUnix == 0 {
			continue
		}

		ev := event.Event{
			Category:  categoryFromID(ref.EventID),
			Name:      ref.EventName,
			StartTime: time.Unix(ref.StartUnix, 0).UTC(),
		}
		if ref.EndUnix > 0 {
			ev.EndTime = time.Unix(ref.EndUnix, 0).UTC()
		}
		// Countdown text only makes sense ahead of the start; the
		// expiry job owns everything past it.
		if ev.Started(now) {
			continue
		}

		lead := ev.StartTime.Sub(now)
		text := s.render.Channel(ev, lead, now)
		switch err := s.adapter.EditText(ctx, mref, text, nil); {
		case err == nil:
		case errors.Is(err, transport.ErrMessageNotFound):
			s.state.DeleteRef(refKey)
		default:
			s.log.Debug("reminder refresh failed",
				logx.String("event", ref.EventID), logx.Err(err))
		}
	}
}

func categoryFromID(id string) string {
	cat, _, _ := strings.Cut(id, ":")
	return cat
}

// cronLogger adapts logx to cron's logger interface.
type cronLogger struct {
	log logx.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.log.Debug(msg, logx.Any("args", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Error(msg, logx.Err(err), logx.Any("args", kv))
}
