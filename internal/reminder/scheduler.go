package reminder

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"herald/internal/content"
	"herald/internal/event"
	"herald/internal/runtime/supervisor"
	"herald/internal/subscriber"
	"herald/internal/transport"
	logx "herald/pkg/logx"
)

// Config tunes the scheduling engine. Zero values fall back to the
// production defaults noted per field.
type Config struct {
	PollInterval time.Duration // scan tick, default 5m
	Horizon      time.Duration // how far ahead events are considered, default 48h
	CatchUp      time.Duration // pre-due lookahead inside a tick, default 5m
	Grace        time.Duration // late-fire tolerance, default 15m
	Retention    time.Duration // state age-out past event start, default 48h
	ExpiryDelay  time.Duration // ref removal delay past event end, default 1h

	// ChannelID is the broadcast destination. Zero disables channel
	// reminders; private reminders still run.
	ChannelID int64

	// Windows overrides the lead-time ladder. Empty means
	// StandardWindows, or TestWindows when TestMode is set.
	Windows []Window

	// TestMode swaps in the short window ladder and a synthetic
	// near-future event instead of the live source.
	TestMode bool

	// SendRate caps outbound messages per second across all delivery
	// tasks. Zero means 20/s with a small burst.
	SendRate  rate.Limit
	SendBurst int

	// SummaryInterval throttles the per-cycle summary log line,
	// default 60s.
	SummaryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Minute
	}
	if c.Horizon <= 0 {
		c.Horizon = 48 * time.Hour
	}
	if c.CatchUp <= 0 {
		c.CatchUp = 5 * time.Minute
	}
	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}
	if c.Retention <= 0 {
		c.Retention = 48 * time.Hour
	}
	if c.ExpiryDelay <= 0 {
		c.ExpiryDelay = time.Hour
	}
	if len(c.Windows) == 0 {
		if c.TestMode {
			c.Windows = TestWindows
		} else {
			c.Windows = StandardWindows
		}
	}
	if c.SendRate <= 0 {
		c.SendRate = 20
	}
	if c.SendBurst <= 0 {
		c.SendBurst = 5
	}
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = time.Minute
	}
	return c
}

// Scheduler owns the whole engine: state maps, scan loop, delivery
// tasks and reconciliation. Everything it mutates hangs off this struct;
// there are no package-level trackers.
type Scheduler struct {
	cfg     Config
	log     logx.Logger
	state   *State
	events  event.Source
	subs    subscriber.Registry
	adapter transport.Adapter
	render  *content.Renderer
	sup     *supervisor.Supervisor
	limiter *rate.Limiter
	stats   *cycleStats

	// now is swappable for tests.
	now func() time.Time
}

func NewScheduler(
	cfg Config,
	state *State,
	events event.Source,
	subs subscriber.Registry,
	adapter transport.Adapter,
	render *content.Renderer,
	sup *supervisor.Supervisor,
	log logx.Logger,
) *Scheduler {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	if render == nil {
		render = content.NewRenderer()
	}
	if cfg.TestMode {
		events = event.SyntheticTest(time.Now())
	}
	return &Scheduler{
		cfg:     cfg,
		log:     log,
		state:   state,
		events:  events,
		subs:    subs,
		adapter: adapter,
		render:  render,
		sup:     sup,
		limiter: rate.NewLimiter(cfg.SendRate, cfg.SendBurst),
		stats:   newCycleStats(log, rate.Sometimes{Interval: cfg.SummaryInterval}),
		now:     time.Now,
	}
}

// candidate is one potentially-due reminder found by a scan pass.
type candidate struct {
	key          Key
	ev           event.Event
	scheduledFor time.Time

	// Private-delivery rendering context, empty for channel keys.
	displayName  string
	governorName string
}

// Run is the scan loop. It performs an immediate pass so a restart does
// not wait a full tick to catch up, then ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scan loop starting",
		logx.Duration("poll", s.cfg.PollInterval),
		logx.Duration("horizon", s.cfg.Horizon),
		logx.Bool("test_mode", s.cfg.TestMode),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scheduler) scanOnce(ctx context.Context) {
	now := s.now()
	s.stats.startCycle()

	events, err := s.events.Upcoming(ctx)
	if err != nil {
		s.log.Error("event source unavailable, skipping cycle", logx.Err(err))
		return
	}
	subs, err := s.subs.All(ctx)
	if err != nil {
		s.log.Error("subscriber registry unavailable, skipping cycle", logx.Err(err))
		return
	}

	seen := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		if !s.inHorizon(ev, now) {
			continue
		}
		seen++

		for _, c := range s.channelCandidates(ev, now) {
			s.launch(ctx, c)
		}
		for recipientID, sub := range subs {
			if ctx.Err() != nil {
				return
			}
			for _, c := range s.directCandidates(ev, recipientID, sub, now) {
				s.launch(ctx, c)
			}
		}
	}

	s.stats.summarize(seen, len(subs))
}

// inHorizon admits events starting within the lookahead window, plus
// multi-day events already underway (their daily notices are still
// live).
func (s *Scheduler) inHorizon(ev event.Event, now time.Time) bool {
	if ev.MultiDay() && ev.Started(now) && !ev.Ended(now) {
		return true
	}
	// Events with a real end time stop mattering once they are over.
	// Events without one stay eligible through the grace band so a
	// slightly late start reminder still fires.
	if !ev.EndTime.IsZero() && ev.Ended(now) {
		return false
	}
	until := ev.StartTime.Sub(now)
	return until <= s.cfg.Horizon && until >= -s.cfg.Grace
}

// due reports whether a reminder instant is close enough to act on this
// tick: at most Grace in the past, at most CatchUp in the future.
func (s *Scheduler) due(scheduledFor, now time.Time) bool {
	delta := scheduledFor.Sub(now)
	return delta <= s.cfg.CatchUp && delta >= -s.cfg.Grace
}

// channelCandidates yields the broadcast reminders due for one event:
// the per-window ladder, plus a once-per-day notice while a multi-day
// event is underway.
func (s *Scheduler) channelCandidates(ev event.Event, now time.Time) []candidate {
	if s.cfg.ChannelID == 0 {
		return nil
	}
	var out []candidate
	for _, w := range s.cfg.Windows {
		scheduledFor := ev.StartTime.Add(-w.Duration())
		if !s.due(scheduledFor, now) {
			continue
		}
		key := Key{EventID: ev.ID(), Recipient: Channel(s.cfg.ChannelID), Window: w}
		if s.state.WasSent(key) {
			continue
		}
		out = append(out, candidate{key: key, ev: ev, scheduledFor: scheduledFor})
	}

	if ev.MultiDay() && ev.Started(now) && !ev.Ended(now) {
		// Each in-progress day repeats the start-of-day notice at the
		// event's original clock time.
		st := ev.StartTime.UTC()
		y, m, d := now.UTC().Date()
		occurrence := time.Date(y, m, d, st.Hour(), st.Minute(), st.Second(), 0, time.UTC)
		if occurrence.After(ev.StartTime) && s.due(occurrence, now) {
			key := Key{
				EventID:   ev.ID(),
				Recipient: Channel(s.cfg.ChannelID),
				Window:    Window(0),
				Day:       DayOf(now),
			}
			if !s.state.WasSent(key) {
				out = append(out, candidate{key: key, ev: ev, scheduledFor: occurrence})
			}
		}
	}
	return out
}

// directCandidates yields the private reminders due for one (event,
// subscriber) pair, honoring the subscriber's categories and requested
// windows.
func (s *Scheduler) directCandidates(ev event.Event, recipientID string, sub subscriber.Subscription, now time.Time) []candidate {
	id, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		s.log.Warn("subscriber id is not numeric, skipping", logx.String("recipient", recipientID))
		return nil
	}
	wants := subscriber.ExpandCategories(sub.Categories)
	if !wants[event.NormalizeCategory(ev.Category)] {
		return nil
	}

	requested := map[string]bool{}
	for _, name := range sub.Windows {
		requested[name] = true
	}

	var out []candidate
	for _, w := range s.cfg.Windows {
		if !s.cfg.TestMode && !requested[w.Name()] {
			continue
		}
		scheduledFor := ev.StartTime.Add(-w.Duration())
		if !s.due(scheduledFor, now) {
			continue
		}
		key := Key{EventID: ev.ID(), Recipient: User(id), Window: w}
		if s.state.WasSent(key) {
			continue
		}
		out = append(out, candidate{
			key:          key,
			ev:           ev,
			scheduledFor: scheduledFor,
			displayName:  sub.Username,
			governorName: sub.GovernorName,
		})
	}
	return out
}
