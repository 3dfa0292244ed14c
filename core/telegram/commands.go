package telegram

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/logger"
)

// MenuCommands converts the visible registry commands into the Telegram command menu.
func MenuCommands(reg *dispatch.Registry) []tele.Command {
	if reg == nil {
		return nil
	}
	visible := reg.List(true)
	out := make([]tele.Command, 0, len(visible))
	for _, cmd := range visible {
		desc := cmd.Description
		if desc == "" {
			desc = cmd.Name
		}
		out = append(out, tele.Command{Text: cmd.Name, Description: desc})
	}
	return out
}

// SetupCommands publishes the command menu shown by Telegram clients.
func SetupCommands(bot *tele.Bot, reg *dispatch.Registry) {
	cmds := MenuCommands(reg)
	if bot == nil || len(cmds) == 0 {
		return
	}
	if err := bot.SetCommands(cmds); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.commands.set",
		slog.String("status", "ok"),
		slog.Int("commands", len(cmds)),
	)
}
