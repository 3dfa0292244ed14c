package handlers

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/internal/report"
)

const (
	recentLimit = 5
	periodsBack = 4
	// fetchLimit bounds concurrent Odoo calls of one report.
	fetchLimit = 4
)

func (h *Handlers) company(ctx context.Context) (string, error) {
	c, err := h.d.Gateway.Company(ctx, h.d.CompanyID)
	if err != nil {
		return "", err
	}
	return c.Name, nil
}

// ShowTime lists the latest time entries.
func (h *Handlers) ShowTime(ctx context.Context, req *dispatch.Request) error {
	if err := req.Send(ctx, "⏳ Fetching recent time entries from Odoo..."); err != nil {
		return err
	}
	company, err := h.company(ctx)
	if err != nil {
		return err
	}
	entries, err := h.d.Gateway.RecentEntries(ctx, recentLimit, h.d.CompanyID)
	if err != nil {
		return err
	}
	return req.SendMD(ctx, report.RecentEntries(company, entries))
}

// TimeWeek summarizes the current week per project.
func (h *Handlers) TimeWeek(ctx context.Context, req *dispatch.Request) error {
	start, end := report.WeekRange(h.now())
	return h.periodSummary(ctx, req, "⏳ Fetching weekly summary from Odoo...", report.WeekSummary, start, end)
}

// TimeMonth summarizes the current month per project.
func (h *Handlers) TimeMonth(ctx context.Context, req *dispatch.Request) error {
	start, end := report.MonthRange(h.now())
	return h.periodSummary(ctx, req, "⏳ Fetching monthly summary from Odoo...", report.MonthSummary, start, end)
}

func (h *Handlers) periodSummary(ctx context.Context, req *dispatch.Request, progress string, kind report.SummaryKind, start, end time.Time) error {
	if err := req.Send(ctx, progress); err != nil {
		return err
	}
	company, err := h.company(ctx)
	if err != nil {
		return err
	}
	entries, err := h.d.Gateway.TimeEntries(ctx, start, end, h.d.CompanyID)
	if err != nil {
		return err
	}
	return req.SendMD(ctx, report.PeriodSummary(kind, company, start, end, entries))
}

// Summary renders hour tables for the last four weeks, months and quarters.
func (h *Handlers) Summary(ctx context.Context, req *dispatch.Request) error {
	if err := req.Send(ctx, "⏳ Generating comprehensive time summary from Odoo..."); err != nil {
		return err
	}
	company, err := h.company(ctx)
	if err != nil {
		return err
	}
	today := h.now()
	groups := [][]report.Period{
		report.LastWeeks(today, periodsBack),
		report.LastMonths(today, periodsBack),
		report.LastQuarters(today, periodsBack),
	}
	start := time.Now()
	rows := make([][]report.PeriodHours, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for gi, periods := range groups {
		rows[gi] = make([]report.PeriodHours, len(periods))
		for pi, p := range periods {
			g.Go(func() error {
				entries, err := h.d.Gateway.TimeEntries(gctx, p.Start, p.End, h.d.CompanyID)
				if err != nil {
					return err
				}
				rows[gi][pi] = report.PeriodHours{Period: p, Hours: report.TotalHours(entries)}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(ctx, logger.CompReports, "report.summary",
		slog.String("status", "ok"),
		slog.Int("count", 3*periodsBack),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return req.SendMD(ctx, report.SummaryTables(company, rows[0], rows[1], rows[2]))
}

// Invoiced renders invoiced and paid amounts for the last four months and quarters.
func (h *Handlers) Invoiced(ctx context.Context, req *dispatch.Request) error {
	if err := req.Send(ctx, "💰 Fetching invoice summary from Odoo..."); err != nil {
		return err
	}
	company, err := h.company(ctx)
	if err != nil {
		return err
	}
	today := h.now()
	groups := [][]report.Period{
		report.LastMonths(today, periodsBack),
		report.LastQuarters(today, periodsBack),
	}
	start := time.Now()
	rows := make([][]report.InvoiceRecord, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for gi, periods := range groups {
		rows[gi] = make([]report.InvoiceRecord, len(periods))
		for pi, p := range periods {
			g.Go(func() error {
				invoices, err := h.d.Gateway.Invoices(gctx, p.Start, p.End, h.d.CompanyID)
				if err != nil {
					return err
				}
				rows[gi][pi] = report.SumInvoices(p.Label, invoices)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(ctx, logger.CompReports, "report.invoiced",
		slog.String("status", "ok"),
		slog.Int("count", 2*periodsBack),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return req.SendMD(ctx, report.InvoiceTables(company, rows[0], rows[1]))
}
