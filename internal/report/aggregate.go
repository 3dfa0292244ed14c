package report

import (
	"sort"

	"github.com/m3rciful/timebot/internal/odoo"
)

// NoProject labels entries without a project.
const NoProject = "No Project"

// ProjectHours is the summed time of one project.
type ProjectHours struct {
	Project string
	Hours   float64
}

// PeriodHours is the logged time of one period.
type PeriodHours struct {
	Period
	Hours float64
}

// InvoiceRecord is the invoiced and paid (untaxed) amount of one period.
type InvoiceRecord struct {
	Period   string
	Invoiced float64
	Paid     float64
}

// GroupByProject sums hours per project, sorted by hours descending.
// Ties keep the order in which projects first appear.
func GroupByProject(entries []odoo.TimeEntry) []ProjectHours {
	index := make(map[string]int)
	var out []ProjectHours
	for _, e := range entries {
		name := e.Project
		if name == "" {
			name = NoProject
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, ProjectHours{Project: name})
		}
		out[i].Hours += e.Hours
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hours > out[j].Hours })
	return out
}

// TotalHours sums the hours of entries.
func TotalHours(entries []odoo.TimeEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Hours
	}
	return total
}

// PaidAmount apportions the untaxed amount by the paid share of the total.
// Tax is assumed proportional across the paid and unpaid parts.
func PaidAmount(total, residual, untaxed float64) float64 {
	if total <= 0 {
		return 0
	}
	return (total - residual) / total * untaxed
}

// SumInvoices builds the record of one period: invoiced is the untaxed sum,
// paid the apportioned untaxed amount already settled.
func SumInvoices(period string, invoices []odoo.Invoice) InvoiceRecord {
	rec := InvoiceRecord{Period: period}
	for _, inv := range invoices {
		rec.Invoiced += inv.AmountUntaxed
		rec.Paid += PaidAmount(inv.AmountTotal, inv.AmountResidual, inv.AmountUntaxed)
	}
	return rec
}
