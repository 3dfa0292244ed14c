package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/state"
	"github.com/m3rciful/timebot/core/telegram/sender"
	"github.com/m3rciful/timebot/internal/config"
	"github.com/m3rciful/timebot/internal/journal"
	"github.com/m3rciful/timebot/internal/odoo"
	"github.com/m3rciful/timebot/internal/report"
)

var (
	berlin, _ = time.LoadLocation("Europe/Berlin")
	// Friday 2026-10-16 11:30 in Berlin.
	fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	chat     = state.Key{ChatID: 10, UserID: 20}
)

type span struct{ from, to string }

type fakeGateway struct {
	mu       sync.Mutex
	entries  []odoo.TimeEntry
	invoices []odoo.Invoice
	err      error
	ranges   []span
	invRange []span
}

func (g *fakeGateway) Company(_ context.Context, id int64) (odoo.Company, error) {
	return odoo.Company{ID: id, Name: "Acme GmbH"}, nil
}

func (g *fakeGateway) RecentEntries(_ context.Context, limit int, _ int64) ([]odoo.TimeEntry, error) {
	if g.err != nil {
		return nil, g.err
	}
	if limit < len(g.entries) {
		return g.entries[:limit], nil
	}
	return g.entries, nil
}

func (g *fakeGateway) TimeEntries(_ context.Context, from, to time.Time, _ int64) ([]odoo.TimeEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ranges = append(g.ranges, span{from.Format(odoo.DateLayout), to.Format(odoo.DateLayout)})
	return g.entries, g.err
}

func (g *fakeGateway) Invoices(_ context.Context, from, to time.Time, _ int64) ([]odoo.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invRange = append(g.invRange, span{from.Format(odoo.DateLayout), to.Format(odoo.DateLayout)})
	return g.invoices, g.err
}

type fakeFlow struct{ started, cancelled int }

func (f *fakeFlow) Start(context.Context, *dispatch.Request) error {
	f.started++
	return nil
}

func (f *fakeFlow) CancelIdle(ctx context.Context, req *dispatch.Request) error {
	f.cancelled++
	return req.Send(ctx, "Nothing to cancel.")
}

type fakeHistory struct {
	entries []journal.Entry
	err     error
	asked   state.Key
}

func (f *fakeHistory) RecentEntries(_ context.Context, chatID, userID int64, _ int) ([]journal.Entry, error) {
	f.asked = state.Key{ChatID: chatID, UserID: userID}
	return f.entries, f.err
}

type replies []dispatch.Reply

func (r *replies) Reply(_ context.Context, rep dispatch.Reply) error {
	*r = append(*r, rep)
	return nil
}

func (r replies) last() dispatch.Reply { return r[len(r)-1] }

func (r replies) texts() []string {
	out := make([]string, len(r))
	for i, rep := range r {
		out[i] = rep.Text
	}
	return out
}

type bot struct {
	h    *Handlers
	disp *dispatch.Dispatcher
	gw   *fakeGateway
	flow *fakeFlow
	hist *fakeHistory
}

func newBot(t *testing.T, mutate ...func(*Deps)) *bot {
	t.Helper()
	b := &bot{gw: &fakeGateway{}, flow: &fakeFlow{}, hist: &fakeHistory{}}
	d := Deps{
		Gateway:   b.gw,
		CompanyID: 3,
		Flow:      b.flow,
		History:   b.hist,
		Location:  berlin,
		Now:       func() time.Time { return fixedNow },
		Started:   fixedNow.Add(-(26*time.Hour + 5*time.Minute)),
		Intn:      func(int) int { return 1 },
	}
	for _, m := range mutate {
		m(&d)
	}
	b.h = New(d)
	reg := dispatch.NewRegistry()
	require.NoError(t, b.h.Register(reg))
	b.disp = dispatch.New(reg, dispatch.Options{AdminID: 1})
	return b
}

func (b *bot) command(name string) (replies, dispatch.Outcome) {
	var out replies
	res := b.disp.Dispatch(context.Background(), &dispatch.Request{
		Key: chat, Kind: dispatch.KindCommand, Command: name, Text: "/" + name, Replier: &out,
	})
	return out, res
}

func TestRegisterCommands(t *testing.T) {
	b := newBot(t)
	var names []string
	for _, c := range b.disp.Registry().List(false) {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{
		"start", "help", "ping", "status", "hello", "time", "joke", "test",
		"showtime", "timeweek", "timemonth", "summary", "invoiced",
		"logtime", "cancel", "history",
	}, names)

	cmd, ok := b.disp.Registry().Lookup("/log")
	require.True(t, ok)
	assert.Equal(t, "logtime", cmd.Name)
}

func TestRegisterWithoutOptionalDeps(t *testing.T) {
	h := New(Deps{})
	reg := dispatch.NewRegistry()
	require.NoError(t, h.Register(reg))
	for _, name := range []string{"showtime", "logtime", "cancel", "history"} {
		_, ok := reg.Lookup(name)
		assert.False(t, ok, name)
	}
}

func TestSimpleCommands(t *testing.T) {
	b := newBot(t)
	cases := map[string]string{
		"ping":  "🏓 Pong! Bot is alive and responding.",
		"hello": "👋 Hello! How can I help you today?",
		"time":  "🕐 Current time: 2026-10-16 11:30:00",
		"joke":  jokes[1],
	}
	for name, want := range cases {
		out, res := b.command(name)
		require.Equal(t, "ok", res.Status, name)
		assert.Equal(t, []string{want}, out.texts(), name)
	}
}

func TestHelpListsRegistry(t *testing.T) {
	b := newBot(t, func(d *Deps) {
		d.Scripts = []config.ScriptConfig{{Name: "backup", Command: "true", AdminOnly: true}}
	})
	out, _ := b.command("help")
	require.Len(t, out, 1)
	text := out[0].Text
	assert.True(t, strings.HasPrefix(text, "🤖 Bot Commands:\n\n/backup - Run backup (admin)\n"))
	assert.Contains(t, text, "/logtime - Log time to an Odoo task\n")
	assert.Contains(t, text, "/summary - Show time summary tables for weeks, months and quarters\n")
	assert.Less(t, strings.Index(text, "/cancel"), strings.Index(text, "/help"))
}

func TestTestCommand(t *testing.T) {
	b := newBot(t)
	out, _ := b.command("test")
	require.Len(t, out, 2)
	assert.Equal(t, "🧪 Running test script...", out[0].Text)
	assert.Contains(t, out[1].Text, "🎲 Lucky Number: 2\n")
	assert.Contains(t, out[1].Text, "⏰ Execution Time: 11:30:00\n")
	assert.Contains(t, out[1].Text, "42 × 2 = 84")
}

func TestStatus(t *testing.T) {
	b := newBot(t, func(d *Deps) {
		d.QueueStats = func() sender.Stats { return sender.Stats{Sent: 7, Failed: 1, Pending: 2} }
	})
	out, _ := b.command("status")
	require.Len(t, out, 1)
	assert.True(t, out[0].Markdown)
	assert.Contains(t, out[0].Text, "*System Status*")
	assert.Contains(t, out[0].Text, "Uptime: 1 days, 2 hours, 5 minutes")
	assert.Contains(t, out[0].Text, "Sender: 7 sent, 1 failed, 2 pending")
}

func TestEchoDefault(t *testing.T) {
	b := newBot(t)
	var out replies
	b.disp.Dispatch(context.Background(), &dispatch.Request{Key: chat, Kind: dispatch.KindText, Text: "hi there", Replier: &out})
	assert.Equal(t, []string{"You said: hi there"}, out.texts())
}

func TestFlowCommands(t *testing.T) {
	b := newBot(t)
	b.command("logtime")
	out, _ := b.command("cancel")
	assert.Equal(t, 1, b.flow.started)
	assert.Equal(t, 1, b.flow.cancelled)
	assert.Equal(t, []string{"Nothing to cancel."}, out.texts())
}

func entry(day int, project string, hours float64) odoo.TimeEntry {
	return odoo.TimeEntry{
		ID:          int64(day),
		Date:        time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC),
		Project:     project,
		Task:        "Dev",
		Description: "work",
		Hours:       hours,
	}
}

func TestShowTime(t *testing.T) {
	b := newBot(t)
	b.gw.entries = []odoo.TimeEntry{entry(15, "Website", 2), entry(14, "Shop", 1.5)}

	out, res := b.command("showtime")
	require.Equal(t, "ok", res.Status)
	require.Len(t, out, 2)
	assert.Equal(t, "⏳ Fetching recent time entries from Odoo...", out[0].Text)
	assert.Equal(t, dispatch.Reply{Text: report.RecentEntries("Acme GmbH", b.gw.entries), Markdown: true}, out[1])
}

func TestTimeWeekAndMonthRanges(t *testing.T) {
	b := newBot(t)
	b.gw.entries = []odoo.TimeEntry{entry(12, "Website", 3)}

	out, _ := b.command("timeweek")
	assert.Equal(t, "⏳ Fetching weekly summary from Odoo...", out[0].Text)
	start, end := report.WeekRange(fixedNow.In(berlin))
	assert.Equal(t, report.PeriodSummary(report.WeekSummary, "Acme GmbH", start, end, b.gw.entries), out.last().Text)

	b.command("timemonth")
	assert.Equal(t, []span{{"2026-10-12", "2026-10-18"}, {"2026-10-01", "2026-10-31"}}, b.gw.ranges)
}

func TestSummaryFetchesTwelveRanges(t *testing.T) {
	b := newBot(t)
	b.gw.entries = []odoo.TimeEntry{entry(1, "Website", 8)}

	out, res := b.command("summary")
	require.Equal(t, "ok", res.Status)
	require.Len(t, b.gw.ranges, 12)
	assert.Contains(t, b.gw.ranges, span{"2026-09-21", "2026-09-27"})
	assert.Contains(t, b.gw.ranges, span{"2026-07-01", "2026-07-31"})
	assert.Contains(t, b.gw.ranges, span{"2026-01-01", "2026-03-31"})
	assert.NotContains(t, b.gw.ranges, span{"2025-10-01", "2025-12-31"})

	today := fixedNow.In(berlin)
	rows := func(ps []report.Period) []report.PeriodHours {
		out := make([]report.PeriodHours, len(ps))
		for i, p := range ps {
			out[i] = report.PeriodHours{Period: p, Hours: 8}
		}
		return out
	}
	want := report.SummaryTables("Acme GmbH",
		rows(report.LastWeeks(today, 4)),
		rows(report.LastMonths(today, 4)),
		rows(report.LastQuarters(today, 4)),
	)
	assert.Equal(t, want, out.last().Text)
	assert.True(t, out.last().Markdown)
}

func TestSummaryFailureIsReported(t *testing.T) {
	b := newBot(t)
	b.gw.err = errs.External("odoo.account.analytic.line.search_read", errors.New("connection refused"))

	out, res := b.command("summary")
	assert.Equal(t, "fail", res.Status)
	assert.True(t, errs.Is(res.Err, errs.KindExternal))
	assert.Contains(t, out.last().Text, "connection refused")
}

func TestInvoiced(t *testing.T) {
	b := newBot(t)
	b.gw.invoices = []odoo.Invoice{{ID: 1, AmountTotal: 1000, AmountResidual: 250, AmountUntaxed: 800}}

	out, res := b.command("invoiced")
	require.Equal(t, "ok", res.Status)
	assert.Equal(t, "💰 Fetching invoice summary from Odoo...", out[0].Text)
	require.Len(t, b.gw.invRange, 8)

	today := fixedNow.In(berlin)
	recs := func(ps []report.Period) []report.InvoiceRecord {
		out := make([]report.InvoiceRecord, len(ps))
		for i, p := range ps {
			out[i] = report.InvoiceRecord{Period: p.Label, Invoiced: 800, Paid: 600}
		}
		return out
	}
	want := report.InvoiceTables("Acme GmbH", recs(report.LastMonths(today, 4)), recs(report.LastQuarters(today, 4)))
	assert.Equal(t, want, out.last().Text)
}

func TestHistory(t *testing.T) {
	b := newBot(t)
	out, _ := b.command("history")
	assert.Equal(t, []string{"📭 No time entries logged from this chat yet. Start with /logtime."}, out.texts())
	assert.Equal(t, chat, b.hist.asked)

	b.hist.entries = []journal.Entry{
		{EntryDate: "2026-10-16", Hours: 1.5, ProjectName: "Website", TaskName: "Bugfix", Description: "fixed login"},
		{EntryDate: "2026-10-15", Hours: 2, ProjectName: "Shop", TaskName: "Review"},
	}
	out, _ = b.command("history")
	text := out.last().Text
	assert.Contains(t, text, `2026\-10\-16  1\.50h  Website / Bugfix`)
	assert.Contains(t, text, "💬 fixed login")
	assert.Contains(t, text, `*Total: 3\.50h*`)

	b.hist.err = errors.New("database is locked")
	_, res := b.command("history")
	assert.True(t, errs.Is(res.Err, errs.KindExternal))
}
