package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/timebot/core/telegram/format"
	"github.com/m3rciful/timebot/internal/odoo"
)

// Rendered reports are MarkdownV2.

var (
	ruleDouble = format.V2(strings.Repeat("=", 40))
	ruleSingle = format.V2(strings.Repeat("-", 40))
)

// SummaryKind selects the wording of PeriodSummary.
type SummaryKind int

const (
	WeekSummary SummaryKind = iota
	MonthSummary
)

func heading(title, company string) string {
	return "📊 " + format.Bold(title) + " " + format.V2("("+company+")")
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "No date"
	}
	return t.Format(odoo.DateLayout)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// RecentEntries renders the latest time entries with a total.
func RecentEntries(company string, entries []odoo.TimeEntry) string {
	if len(entries) == 0 {
		return format.V2("📊 No recent time entries found for " + company)
	}
	var b strings.Builder
	b.WriteString(heading("Recent Time Entries", company))
	b.WriteString("\n" + ruleDouble + "\n\n")
	for i, e := range entries {
		b.WriteString(format.Bold(fmt.Sprintf("Entry %d:", i+1)) + "\n")
		fmt.Fprintf(&b, "📅 %s\n📁 %s\n📋 %s\n💬 %s\n⏱ %s",
			format.V2(fmtDate(e.Date)),
			format.V2(orDefault(e.Project, NoProject)),
			format.V2(orDefault(e.Task, "No Task")),
			format.V2(e.Description),
			format.V2(fmt.Sprintf("%.2fh", e.Hours)),
		)
		b.WriteString("\n" + ruleSingle + "\n\n")
	}
	b.WriteString(format.Bold(fmt.Sprintf("Total: %.2fh", TotalHours(entries))))
	return b.String()
}

// PeriodSummary renders hours per project for the range start..end.
func PeriodSummary(kind SummaryKind, company string, start, end time.Time, entries []odoo.TimeEntry) string {
	title, noun, caption := "Week Summary", "week", fmtDate(start)+" to "+fmtDate(end)
	if kind == MonthSummary {
		title, noun, caption = "Month Summary", "month", start.Format("January 2006")
	}
	if len(entries) == 0 {
		return format.V2(fmt.Sprintf("📊 No time entries for this %s\n(%s to %s)", noun, fmtDate(start), fmtDate(end)))
	}
	var b strings.Builder
	b.WriteString(heading(title, company) + "\n")
	b.WriteString("📅 " + format.V2(caption) + "\n")
	b.WriteString(ruleDouble + "\n\n")
	for _, p := range GroupByProject(entries) {
		fmt.Fprintf(&b, "📁 %s: %s\n", format.V2(p.Project), format.Bold(fmt.Sprintf("%.2fh", p.Hours)))
	}
	b.WriteString("\n" + ruleDouble + "\n")
	b.WriteString(format.Bold(fmt.Sprintf("Total: %.2fh", TotalHours(entries))))
	return b.String()
}

func percent(hours, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	return hours / expected * 100
}

func hoursTable(header, divider string, rows []PeriodHours) string {
	var b strings.Builder
	b.WriteString(header + "\n" + divider + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s  | %5.1f | %3.0f%% |\n", r.Label, r.Hours, percent(r.Hours, r.Expected))
	}
	return format.CodeBlock(b.String())
}

// SummaryTables renders week, month and quarter tables with the share of expected hours.
func SummaryTables(company string, weeks, months, quarters []PeriodHours) string {
	var b strings.Builder
	b.WriteString(heading("Time Summary", company) + "\n\n")
	b.WriteString(format.Bold("Weeks") + "\n")
	b.WriteString(hoursTable("| Week   | Hours |    % |", "|--------|-------|------|", weeks))
	b.WriteString("\n\n" + format.Bold("Months") + "\n")
	b.WriteString(hoursTable("| Month     | Hours |    % |", "|-----------|-------|------|", months))
	b.WriteString("\n\n" + format.Bold("Quarters") + "\n")
	b.WriteString(hoursTable("| Quarter  | Hours |    % |", "|----------|-------|------|", quarters))
	return b.String()
}

func invoiceTable(header, divider string, rows []InvoiceRecord) string {
	var b strings.Builder
	b.WriteString(header + "\n" + divider + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s  | %10.2f | %10.2f |\n", r.Period, r.Invoiced, r.Paid)
	}
	return format.CodeBlock(b.String())
}

// InvoiceTables renders invoiced and paid untaxed amounts per month and quarter.
func InvoiceTables(company string, months, quarters []InvoiceRecord) string {
	var b strings.Builder
	b.WriteString("💰 " + format.Bold("Invoice Summary") + " " + format.V2("("+company+")") + "\n\n")
	b.WriteString(format.Bold("Months") + "\n")
	b.WriteString(invoiceTable("| Month     |   Invoiced |       Paid |", "|-----------|------------|------------|", months))
	b.WriteString("\n\n" + format.Bold("Quarters") + "\n")
	b.WriteString(invoiceTable("| Quarter  |   Invoiced |       Paid |", "|----------|------------|------------|", quarters))
	return b.String()
}
