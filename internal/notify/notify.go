package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/core/telegram/sender"
)

// Sender is the part of *tele.Bot used to deliver notifications.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Options configures a Notifier.
type Options struct {
	Sender Sender
	ChatID int64
	// Queue delivers sends asynchronously; nil sends inline.
	Queue *sender.Queue
}

// Notifier pushes messages to the configured chat.
type Notifier struct {
	send  Sender
	chat  tele.ChatID
	queue *sender.Queue
}

// New validates opts and returns a Notifier.
func New(opts Options) (*Notifier, error) {
	if opts.Sender == nil {
		return nil, errs.Configuration("notify", errors.New("nil sender"))
	}
	if opts.ChatID == 0 {
		return nil, errs.Configuration("notify", errors.New("chat id is required (telegram.chat_id or TELEGRAM_CHAT_ID)"))
	}
	return &Notifier{send: opts.Sender, chat: tele.ChatID(opts.ChatID), queue: opts.Queue}, nil
}

// ChatID returns the destination chat.
func (n *Notifier) ChatID() int64 { return int64(n.chat) }

// Notify schedules text for delivery. Markdown selects the legacy Markdown parse mode
// used by cron scripts. With a queue the call returns once the send is accepted.
func (n *Notifier) Notify(ctx context.Context, text string, markdown bool) error {
	if strings.TrimSpace(text) == "" {
		return errs.Validation("notify", errors.New("text is empty"))
	}
	ctx = logger.WithConversation(ctx, int64(n.chat), 0)
	opts := &tele.SendOptions{}
	action := "notify.text"
	if markdown {
		opts.ParseMode = tele.ModeMarkdown
		action = "notify.md"
	}
	run := func() error {
		_, err := n.send.Send(n.chat, text, opts)
		return err
	}

	if n.queue == nil {
		return n.deliver(ctx, action, run)
	}
	err := n.queue.Enqueue(ctx, action, "sendMessage", run)
	switch {
	case err == nil:
		logger.Debug(ctx, logger.CompNotify, "notify.enqueue", slog.Int("count", len(text)))
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, logger.CompNotify, "queue.fallback", slog.String("err", err.Error()))
		return n.deliver(ctx, action, run)
	default:
		return errs.External("notify", err)
	}
}

func (n *Notifier) deliver(ctx context.Context, action string, run func() error) error {
	if err := run(); err != nil {
		attrs := append([]slog.Attr{slog.String("status", "fail"), slog.String("op", action)}, logger.ErrAttrs(err)...)
		logger.Error(ctx, logger.CompNotify, "notify.send", attrs...)
		return errs.External("notify", errors.New(sender.Redact(err)))
	}
	logger.Info(ctx, logger.CompNotify, "notify.send", slog.String("status", "ok"), slog.String("op", action))
	return nil
}
