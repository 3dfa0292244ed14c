package router

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
	tg "github.com/m3rciful/timebot/core/telegram"
	"github.com/m3rciful/timebot/core/telegram/middleware"
)

// TextRoutes sends every text message, commands included, through the dispatcher.
// Telebot falls back to OnText for commands without their own endpoint.
func TextRoutes(d *dispatch.Dispatcher) []tg.Route {
	handler := func(c tele.Context) error {
		return dispatchWithSummary(c, d, NewRequest(c))
	}
	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}}
}
