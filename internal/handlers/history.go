package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/telegram/format"
)

const historyLimit = 10

// History lists the entries this chat logged through the bot.
func (h *Handlers) History(ctx context.Context, req *dispatch.Request) error {
	entries, err := h.d.History.RecentEntries(ctx, req.Key.ChatID, req.Key.UserID, historyLimit)
	if err != nil {
		return errs.External("journal.history", err)
	}
	if len(entries) == 0 {
		return req.Send(ctx, "📭 No time entries logged from this chat yet. Start with /logtime.")
	}
	var b strings.Builder
	b.WriteString("🗂 " + format.Bold("Logged from this chat") + "\n\n")
	total := 0.0
	for _, e := range entries {
		total += e.Hours
		line := fmt.Sprintf("%s  %.2fh  %s / %s", e.EntryDate, e.Hours, e.ProjectName, e.TaskName)
		b.WriteString(format.V2(line) + "\n")
		if e.Description != "" {
			b.WriteString("    " + format.V2("💬 "+e.Description) + "\n")
		}
	}
	b.WriteString("\n" + format.Bold(fmt.Sprintf("Total: %.2fh", total)))
	return req.SendMD(ctx, b.String())
}
