package reminder

import (
	"context"
	"errors"
	"runtime/debug"

	"herald/internal/event"
	"herald/internal/reminder/store"
	"herald/internal/transport"
	logx "herald/pkg/logx"
)

// deliver renders and sends one reminder. It re-runs the admission test
// at fire time: a delayed task may wake up to find a sibling already
// delivered the key, or find itself past grace after a long suspend.
func (s *Scheduler) deliver(ctx context.Context, c candidate) {
	now := s.now()
	if !ShouldFire(s.state, c.key, c.scheduledFor, now, s.cfg.Grace) {
		s.stats.addSkipped()
		return
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	switch c.key.Recipient.Kind {
	case KindChannel:
		s.deliverChannel(ctx, c)
	default:
		s.deliverDirect(ctx, c)
	}
}

func (s *Scheduler) deliverChannel(ctx context.Context, c candidate) {
	now := s.now()
	text := s.render.Channel(c.ev, c.key.Window.Duration(), now)

	ref, err := s.adapter.SendChannel(ctx, c.key.Recipient.ID, text, nil)
	if err != nil {
		s.log.Error("channel reminder failed",
			logx.String("key", c.key.String()),
			logx.Err(err),
			logx.Stack(string(debug.Stack())),
		)
		s.stats.addFailed()
		return
	}

	s.state.MarkSent(c.key, now)
	n := s.stats.addSuccess()

	// Only the latest reminder for an event stays visible.
	if prev, ok := s.state.Ref(c.ev.ID()); ok {
		old := transport.MessageRef{ChatID: prev.ChatID, MessageID: prev.MessageID}
		if err := s.adapter.DeleteMessage(ctx, old); err != nil && !errors.Is(err, transport.ErrMessageNotFound) {
			s.log.Warn("stale reminder delete failed",
				logx.String("event", c.ev.ID()), logx.Err(err))
		}
	}
	s.state.SetRef(c.ev.ID(), store.Ref{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
		EventID:   c.ev.ID(),
		EventName: c.ev.Name,
		StartUnix: c.ev.StartTime.Unix(),
		EndUnix:   endUnix(c.ev),
	})

	s.logSuccess(n, c)
}

func (s *Scheduler) deliverDirect(ctx context.Context, c candidate) {
	now := s.now()
	text := s.render.Direct(c.ev, c.displayName, c.governorName, c.key.Window.Duration(), now)

	_, err := s.adapter.SendDirect(ctx, c.key.Recipient.ID, text, nil)
	switch {
	case err == nil:
		s.state.MarkSent(c.key, now)
		s.logSuccess(s.stats.addSuccess(), c)

	case errors.Is(err, transport.ErrRecipientUnreachable):
		// Not marked sent: the recipient may unblock before a later
		// window, and each window retries independently.
		s.state.RecordFailure(ctx, c.key, err.Error(), now)
		s.stats.addBlocked()
		s.log.Warn("recipient unreachable",
			logx.String("key", c.key.String()),
			logx.String("name", c.displayName),
		)

	default:
		s.stats.addFailed()
		s.log.Error("direct reminder failed",
			logx.String("key", c.key.String()),
			logx.Err(err),
			logx.Stack(string(debug.Stack())),
		)
	}
}

// endUnix falls back to the start when the source carries no end time.
func endUnix(ev event.Event) int64 {
	if !ev.EndTime.IsZero() {
		return ev.EndTime.Unix()
	}
	return ev.StartTime.Unix()
}

// logSuccess emits a milestone line every tenth delivery in a cycle and
// a debug line otherwise.
func (s *Scheduler) logSuccess(n int, c candidate) {
	if n%10 == 0 {
		s.log.Info("reminders delivered",
			logx.Int("count", n),
			logx.String("event", c.ev.ID()),
		)
		return
	}
	s.log.Debug("reminder delivered",
		logx.String("key", c.key.String()),
		logx.String("window", c.key.Window.Name()),
	)
}
