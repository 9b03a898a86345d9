// Package content renders reminder text. Rendering is deliberately
// isolated from scheduling: the engine decides WHEN, this package decides
// WHAT the message says.
package content

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"herald/internal/event"
)

// Personalized direct-message quotes. Placeholders:
//
//	{name} -> platform display name
//	{gov}  -> in-game governor name (falls back to {name} if unknown)
var directQuotes = map[string][]string{
	"ruins": {
		"Ruins incoming, {gov}! Time to claim what's ours.",
		"The timer's up soon, {name}. March fast, earn that honour!",
		"Ruins window opening — be there, {gov}!",
	},
	"altars": {
		"Altar fight brewing — hold the line, {gov}!",
		"No surrender, {name}. We fight with purpose.",
		"Altar pressure wins wars. Be early, {gov}!",
	},
	"major": {
		"Pass fight — let's get ready to rumble, {gov}!",
		"It's fighting time, {name}! Today we write history.",
		"Sharpen those spears, {gov}!",
	},
	"chronicle": {
		"New page in the Chronicle — make your mark, {name}.",
		"History remembers the bold. Be there, {gov}.",
		"Chronicle incoming — get ready, {name}.",
	},
	"_default": {
		"Opportunity knocks, {gov}. Answer in force.",
		"Discipline wins the day, {name}. Form up.",
		"Steel your resolve, {gov}.",
	},
}

// Public (non-personalized) quotes, shown only at T-1h and T-0 in channel
// reminders.
var publicQuotes = map[string][]string{
	"ruins": {
		"Ruins window opens soon — send your marches.",
		"Eye on Ruins: let's earn that honour!",
	},
	"altars": {
		"Altar fight ahead — forward march!",
		"Hold the altar. Buffs, marches and heals ready.",
	},
	"major": {
		"Pass fight prep — gather at staging, check rallies and markers.",
		"Big push soon — comms on, formations locked.",
	},
	"chronicle": {
		"New Chronicle approaching — check out what's needed.",
		"New stage unlocking — watch objectives and timers.",
	},
	"_default": {
		"Next event approaching — be ready.",
		"Countdown on — gear up and form ranks.",
	},
}

// Renderer builds reminder text. The rand source is injectable so tests
// can pin quote selection.
type Renderer struct {
	rng *rand.Rand
}

func NewRenderer() *Renderer {
	return &Renderer{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func NewRendererWithSeed(seed int64) *Renderer {
	return &Renderer{rng: rand.New(rand.NewSource(seed))}
}

func (r *Renderer) pick(quotes map[string][]string, category string) string {
	candidates := quotes[strings.ToLower(strings.TrimSpace(category))]
	if len(candidates) == 0 {
		candidates = quotes["_default"]
	}
	return candidates[r.rng.Intn(len(candidates))]
}

// Channel renders the shared broadcast reminder for an event at the given
// lead time. A hype quote is appended only in the final hour.
func (r *Renderer) Channel(ev event.Event, lead time.Duration, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F4E3 %s\n", ev.Name)

	remaining := ev.StartTime.Sub(now)
	if startsNow(lead, remaining) {
		b.WriteString("Starts NOW")
	} else {
		fmt.Fprintf(&b, "Starts in %s", humanDelta(remaining))
	}

	if lead <= time.Hour {
		fmt.Fprintf(&b, "\n\n\U0001F4AC %s", r.pick(publicQuotes, ev.Category))
	}

	fmt.Fprintf(&b, "\n\nEvent starts: %s", ev.StartTime.UTC().Format("Monday, 02 January 2006 at 15:04 UTC"))
	return b.String()
}

// Direct renders the personalized private reminder.
func (r *Renderer) Direct(ev event.Event, displayName, governorName string, lead time.Duration, now time.Time) string {
	if strings.TrimSpace(governorName) == "" {
		governorName = displayName
	}
	quote := r.pick(directQuotes, ev.Category)
	quote = strings.ReplaceAll(quote, "{name}", displayName)
	quote = strings.ReplaceAll(quote, "{gov}", governorName)

	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F4EC %s – Reminder\n", ev.Name)
	fmt.Fprintf(&b, "Hey %s (%s)!\n", displayName, governorName)

	remaining := ev.StartTime.Sub(now)
	if startsNow(lead, remaining) {
		b.WriteString("⏰ Starts NOW\n")
	} else {
		fmt.Fprintf(&b, "⏰ Starts in %s\n", humanDelta(remaining))
	}

	fmt.Fprintf(&b, "\n\U0001F4AC %s", quote)
	return b.String()
}

// startsNow treats a T-0 reminder within a minute of the actual start as
// "now"; a late T-0 keeps the relative phrasing.
func startsNow(lead, remaining time.Duration) bool {
	if lead != 0 {
		return false
	}
	if remaining < 0 {
		remaining = -remaining
	}
	return remaining < time.Minute
}

func humanDelta(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return "under a minute"
	}
}
