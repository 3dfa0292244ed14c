package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
	tg "github.com/m3rciful/timebot/core/telegram"
	"github.com/m3rciful/timebot/core/telegram/callbacks"
	"github.com/m3rciful/timebot/core/telegram/middleware"
)

// CallbackRoute acknowledges button presses and dispatches them.
func CallbackRoute(d *dispatch.Dispatcher) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.ParseCallbackData(c.Callback())
		_ = c.Respond()
		return dispatchWithSummary(c, d, NewRequest(c), slog.String("cb_key", key))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
