package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"

	logx "herald/pkg/logx"
)

// launch hands one due candidate to a supervised delivery task. The
// in-flight marker is the sole duplicate guard between concurrent scan
// passes: whoever acquires it owns the delivery, everyone else skips.
func (s *Scheduler) launch(ctx context.Context, c candidate) {
	if ctx.Err() != nil {
		return
	}
	if !s.state.MarkScheduled(c.key) {
		return
	}
	s.stats.addLaunched()

	name := "deliver/" + uuid.NewString()[:8]
	key := c.key
	s.sup.Go(name, func(taskCtx context.Context) error {
		defer s.state.UnmarkScheduled(key)

		if delay := c.scheduledFor.Sub(s.now()); delay > 0 {
			s.log.Debug("delivery waiting until due",
				logx.String("key", key.String()),
				logx.Duration("delay", delay),
			)
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-taskCtx.Done():
				// Shutdown abandons the wait; the next run's scan
				// re-evaluates the key since the marker dies with us.
				return nil
			case <-timer.C:
			}
		}

		s.deliver(taskCtx, c)
		return nil
	})
}
