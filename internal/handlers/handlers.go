// Package handlers implements the bot's commands on top of the dispatch registry.
package handlers

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/telegram/sender"
	"github.com/m3rciful/timebot/internal/config"
	"github.com/m3rciful/timebot/internal/journal"
	"github.com/m3rciful/timebot/internal/odoo"
	"github.com/m3rciful/timebot/internal/timelog"
)

// Gateway is the read side of the ERP used by report commands.
type Gateway interface {
	Company(ctx context.Context, id int64) (odoo.Company, error)
	RecentEntries(ctx context.Context, limit int, companyID int64) ([]odoo.TimeEntry, error)
	TimeEntries(ctx context.Context, from, to time.Time, companyID int64) ([]odoo.TimeEntry, error)
	Invoices(ctx context.Context, from, to time.Time, companyID int64) ([]odoo.Invoice, error)
}

// Flow is the time logging conversation.
type Flow interface {
	Start(ctx context.Context, req *dispatch.Request) error
	CancelIdle(ctx context.Context, req *dispatch.Request) error
}

// History lists time entries recorded by the bot.
type History interface {
	RecentEntries(ctx context.Context, chatID, userID int64, limit int) ([]journal.Entry, error)
}

// Deps are the collaborators of the command set. Nil Flow or History leave
// the related commands unregistered.
type Deps struct {
	Gateway   Gateway
	CompanyID int64
	Flow      Flow
	History   History
	Scripts   []config.ScriptConfig

	Location   *time.Location
	Now        func() time.Time
	Started    time.Time
	QueueStats func() sender.Stats
	// Intn returns a number in [0, n); used by joke and test.
	Intn func(n int) int
}

// Handlers holds the command implementations.
type Handlers struct {
	d   Deps
	reg *dispatch.Registry
}

// New fills defaults for d.
func New(d Deps) *Handlers {
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Started.IsZero() {
		d.Started = d.Now()
	}
	if d.Intn == nil {
		d.Intn = rand.IntN
	}
	return &Handlers{d: d}
}

func (h *Handlers) now() time.Time { return h.d.Now().In(h.d.Location) }

// Register adds every command to reg and installs the echo handler as default.
func (h *Handlers) Register(reg *dispatch.Registry) error {
	h.reg = reg
	cmds := []dispatch.Command{
		{Name: "start", Description: "Show welcome message", Handler: h.Start},
		{Name: "help", Description: "Show this help", Handler: h.Help},
		{Name: "ping", Description: "Test bot response", Handler: h.Ping},
		{Name: "status", Description: "Get system status", Handler: h.Status},
		{Name: "hello", Description: "Say hello", Handler: h.Hello},
		{Name: "time", Description: "Get current time", Handler: h.Time},
		{Name: "joke", Description: "Get a random joke", Handler: h.Joke},
		{Name: "test", Description: "Run the test script", Handler: h.Test},
	}
	if h.d.Gateway != nil {
		cmds = append(cmds,
			dispatch.Command{Name: "showtime", Description: "Show recent Odoo time entries", Handler: h.ShowTime},
			dispatch.Command{Name: "timeweek", Description: "Show weekly time summary", Handler: h.TimeWeek},
			dispatch.Command{Name: "timemonth", Description: "Show monthly time summary", Handler: h.TimeMonth},
			dispatch.Command{Name: "summary", Description: "Show time summary tables for weeks, months and quarters", Handler: h.Summary},
			dispatch.Command{Name: "invoiced", Description: "Show invoiced and paid amounts", Handler: h.Invoiced},
		)
	}
	if h.d.Flow != nil {
		cmds = append(cmds,
			dispatch.Command{Name: timelog.EntryCommand, Description: "Log time to an Odoo task", Handler: h.d.Flow.Start, Aliases: []string{"log"}},
			dispatch.Command{Name: dispatch.CancelCommand, Description: "Cancel the current entry", Handler: h.d.Flow.CancelIdle},
		)
	}
	if h.d.History != nil {
		cmds = append(cmds, dispatch.Command{Name: "history", Description: "Show time entries logged from this chat", Handler: h.History})
	}
	for _, sc := range h.d.Scripts {
		cmds = append(cmds, scriptCommand(sc))
	}
	for _, c := range cmds {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	reg.SetDefault(h.Echo)
	return nil
}
