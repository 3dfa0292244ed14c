package router

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
	tg "github.com/m3rciful/timebot/core/telegram"
	"github.com/m3rciful/timebot/core/telegram/middleware"
)

// VoiceRoutes dispatches voice notes and audio files.
func VoiceRoutes(d *dispatch.Dispatcher) []tg.Route {
	handler := middleware.RecoverMiddleware(middleware.LoggerMiddleware(func(c tele.Context) error {
		return dispatchWithSummary(c, d, NewRequest(c))
	}))
	return []tg.Route{
		{Endpoint: tele.OnVoice, Handler: handler},
		{Endpoint: tele.OnAudio, Handler: handler},
	}
}

// Routes returns every route the dispatcher needs.
func Routes(d *dispatch.Dispatcher) []tg.Route {
	routes := TextRoutes(d)
	routes = append(routes, CallbackRoute(d))
	return append(routes, VoiceRoutes(d)...)
}
