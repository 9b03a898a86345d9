package transport

import (
	"context"
	"errors"
)

// ErrRecipientUnreachable marks a permanent recipient failure: the
// recipient exists but cannot be messaged (blocked the bot, disabled
// private messages). Callers must not retry within the same reminder
// window; a later window is attempted independently.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// ErrMessageNotFound is returned by Probe/Edit/Delete when the referenced
// message no longer exists.
var ErrMessageNotFound = errors.New("message not found")

// MessageRef identifies a message previously posted by the bot.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

func (r MessageRef) IsZero() bool { return r.ChatID == 0 || r.MessageID == 0 }

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Silent         bool
}

// Adapter is the delivery transport boundary. Implementations own
// transport-level concerns (API calls, per-call timeouts); they do not
// own dedup or scheduling.
type Adapter interface {
	// SendChannel posts to a shared broadcast destination.
	SendChannel(ctx context.Context, chatID int64, text string, opt *SendOptions) (MessageRef, error)

	// SendDirect messages a single recipient's private channel.
	// Returns ErrRecipientUnreachable when the recipient cannot be reached
	// by design (blocked/disabled private messages).
	SendDirect(ctx context.Context, recipientID int64, text string, opt *SendOptions) (MessageRef, error)

	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error

	// Probe checks that a previously posted message still exists.
	// Returns ErrMessageNotFound if it does not.
	Probe(ctx context.Context, ref MessageRef) error

	Stop(ctx context.Context) error
}
