package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"herald/internal/transport"
	logx "herald/pkg/logx"
)

type Config struct {
	Token       string
	CallTimeout time.Duration
}

// Adapter implements transport.Adapter on the Telegram Bot API.
//
// The adapter is send-only: herald never consumes incoming updates, so no
// poller is started.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) SendChannel(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	msg, err := a.bot.Send(tele.ChatID(chatID), text, sendOptions(opt))
	if err != nil {
		return transport.MessageRef{}, mapError(err)
	}
	return transport.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendDirect(ctx context.Context, recipientID int64, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	msg, err := a.bot.Send(&tele.User{ID: recipientID}, text, sendOptions(opt))
	if err != nil {
		return transport.MessageRef{}, mapError(err)
	}
	return transport.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Edit(stored(ref), text, sendOptions(opt))
	if err != nil && !isNotModified(err) {
		return mapError(err)
	}
	return nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref transport.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.bot.Delete(stored(ref)); err != nil {
		return mapError(err)
	}
	return nil
}

// Probe checks message existence. The Bot API has no message fetch, so we
// re-apply the (empty) reply markup: "not modified" means the message is
// there, "not found" means it is gone.
func (a *Adapter) Probe(ctx context.Context, ref transport.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.EditReplyMarkup(stored(ref), nil)
	if err == nil || isNotModified(err) {
		return nil
	}
	return mapError(err)
}

func (a *Adapter) Stop(ctx context.Context) error {
	_ = ctx
	return nil
}

func stored(ref transport.MessageRef) tele.Editable {
	return &tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func sendOptions(opt *transport.SendOptions) *tele.SendOptions {
	out := &tele.SendOptions{}
	if opt == nil {
		return out
	}
	out.ParseMode = opt.ParseMode
	out.DisableWebPagePreview = opt.DisablePreview
	out.DisableNotification = opt.Silent
	return out
}

func isNotModified(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, tele.ErrSameMessageContent) ||
		strings.Contains(strings.ToLower(err.Error()), "not modified")
}

// mapError translates Bot API errors into transport sentinels.
// Avoid depending on every telebot error constant across versions;
// fall back to description matching for the rest.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated) {
		return transport.ErrRecipientUnreachable
	}
	desc := strings.ToLower(err.Error())
	switch {
	case strings.Contains(desc, "bot was blocked"),
		strings.Contains(desc, "user is deactivated"),
		strings.Contains(desc, "can't initiate conversation"),
		strings.Contains(desc, "forbidden"):
		return transport.ErrRecipientUnreachable
	case strings.Contains(desc, "message to edit not found"),
		strings.Contains(desc, "message to delete not found"),
		strings.Contains(desc, "message not found"):
		return transport.ErrMessageNotFound
	}
	return err
}
