package reminder

import (
	"sync"

	"golang.org/x/time/rate"

	logx "herald/pkg/logx"
)

// cycleStats counts delivery outcomes for the current scan cycle.
// Counters reset at the top of every cycle; the summary line is
// throttled so busy horizons do not flood the log.
type cycleStats struct {
	log      logx.Logger
	throttle rate.Sometimes

	mu       sync.Mutex
	launched int
	success  int
	blocked  int
	failed   int
	skipped  int
}

func newCycleStats(log logx.Logger, throttle rate.Sometimes) *cycleStats {
	return &cycleStats{log: log, throttle: throttle}
}

func (c *cycleStats) startCycle() {
	c.mu.Lock()
	c.launched, c.success, c.blocked, c.failed, c.skipped = 0, 0, 0, 0, 0
	c.mu.Unlock()
}

func (c *cycleStats) addLaunched() {
	c.mu.Lock()
	c.launched++
	c.mu.Unlock()
}

// addSuccess returns the running success count so the caller can emit a
// milestone line every tenth delivery.
func (c *cycleStats) addSuccess() int {
	c.mu.Lock()
	c.success++
	n := c.success
	c.mu.Unlock()
	return n
}

func (c *cycleStats) addBlocked() {
	c.mu.Lock()
	c.blocked++
	c.mu.Unlock()
}

func (c *cycleStats) addFailed() {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func (c *cycleStats) addSkipped() {
	c.mu.Lock()
	c.skipped++
	c.mu.Unlock()
}

func (c *cycleStats) summarize(eventsSeen, subscribers int) {
	c.mu.Lock()
	launched, success, blocked, failed, skipped := c.launched, c.success, c.blocked, c.failed, c.skipped
	c.mu.Unlock()

	c.throttle.Do(func() {
		c.log.Info("scan cycle complete",
			logx.Int("events", eventsSeen),
			logx.Int("subscribers", subscribers),
			logx.Int("launched", launched),
			logx.Int("sent", success),
			logx.Int("blocked", blocked),
			logx.Int("failed", failed),
			logx.Int("skipped", skipped),
		)
	})
}
