package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/logger"
	tghelpers "github.com/m3rciful/timebot/core/telegram/helpers"
)

// AccessOptions restricts the bot to a set of users.
type AccessOptions struct {
	// Allowed user ids; an empty set admits everyone.
	Allowed  map[int64]struct{}
	OnReject tele.HandlerFunc
}

// AccessMiddleware drops updates from users outside opts.Allowed.
func AccessMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if len(opts.Allowed) == 0 {
			return next
		}
		return func(c tele.Context) error {
			user := c.Sender()
			if user != nil {
				if _, ok := opts.Allowed[user.ID]; ok {
					return next(c)
				}
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.access",
				slog.String("status", "skip"),
				slog.String("reason", "not_allowed"),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
