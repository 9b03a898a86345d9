package reminder

import "time"

// DefaultGrace bounds how late a due reminder may still fire. A process
// that was down longer than this simply drops the missed window instead
// of notifying about a moment long gone.
const DefaultGrace = 15 * time.Minute

// SentChecker answers whether a key was already delivered.
type SentChecker interface {
	WasSent(key Key) bool
}

// ShouldFire is the single admission test for both the immediate path
// and the catch-up path after a restart. The late boundary is inclusive:
// a reminder exactly grace late still fires.
func ShouldFire(sent SentChecker, key Key, scheduledFor, now time.Time, grace time.Duration) bool {
	if sent.WasSent(key) {
		return false
	}
	if now.Before(scheduledFor) {
		return false
	}
	if now.Sub(scheduledFor) > grace {
		return false
	}
	return true
}
