package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/core/telegram/sender"
)

var globalSender atomic.Pointer[sender.Queue]

// SetSender wires the asynchronous queue used by helper functions. Nil sends synchronously.
func SetSender(q *sender.Queue) {
	globalSender.Store(q)
}

func currentSender() *sender.Queue {
	return globalSender.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	q := currentSender()
	if q == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := q.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends text to the current recipient through the queue.
// opts may carry a parse mode and reply markup.
func SendText(c tele.Context, text string, opts *tele.SendOptions) error {
	action := "send.text"
	if opts != nil && opts.ParseMode != tele.ModeDefault {
		action = "send.md"
	}
	return sendAsync(c, action, "sendMessage", func() error {
		if opts != nil {
			return c.Send(text, opts)
		}
		return c.Send(text)
	})
}
