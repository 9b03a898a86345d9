package reminder

import (
	"fmt"
	"strconv"
	"time"
)

// RecipientKind distinguishes private deliveries from shared broadcast
// destinations.
type RecipientKind uint8

const (
	KindUser RecipientKind = iota
	KindChannel
)

func (k RecipientKind) String() string {
	if k == KindChannel {
		return "channel"
	}
	return "user"
}

// Recipient is a delivery target: a private chat or a broadcast channel.
type Recipient struct {
	Kind RecipientKind
	ID   int64
}

func User(id int64) Recipient    { return Recipient{Kind: KindUser, ID: id} }
func Channel(id int64) Recipient { return Recipient{Kind: KindChannel, ID: id} }

func (r Recipient) String() string {
	return r.Kind.String() + ":" + strconv.FormatInt(r.ID, 10)
}

// Key identifies exactly one required notification instance. It is a
// comparable value type: two keys are the same reminder iff the structs
// compare equal, with no string-splicing ambiguity.
//
// Day is set only for once-per-day channel notices inside multi-day
// events (UTC calendar date, "2006-01-02"); it is empty otherwise.
type Key struct {
	EventID   string
	Recipient Recipient
	Window    Window
	Day       string
}

// Bucket is the recipient slot the key occupies inside the persisted
// per-event map. Daily keys fold the date into the bucket so each day
// dedups independently.
func (k Key) Bucket() string {
	b := k.Recipient.String()
	if k.Day != "" {
		b += "@" + k.Day
	}
	return b
}

func (k Key) String() string {
	if k.Day != "" {
		return fmt.Sprintf("%s|%s|%s|%s", k.EventID, k.Recipient, k.Window.Name(), k.Day)
	}
	return fmt.Sprintf("%s|%s|%s", k.EventID, k.Recipient, k.Window.Name())
}

// DayOf formats the UTC calendar date used by daily keys.
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
