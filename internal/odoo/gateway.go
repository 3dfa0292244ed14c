package odoo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
)

// ErrNoCompany is returned when the user cannot see any company.
var ErrNoCompany = errors.New("no companies found")

// RPC is the subset of Client used by Gateway.
type RPC interface {
	UID(ctx context.Context) (int64, error)
	ExecuteKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error
}

// Gateway translates bot queries into Odoo model calls and returns plain records.
//
// When a caller passes company id 0 the configured default is used, and when
// that is 0 too the first company Odoo lists is taken. Multi-company users get
// whatever Odoo sorts first.
type Gateway struct {
	rpc            RPC
	defaultCompany int64
}

// NewGateway creates a Gateway. defaultCompany may be 0.
func NewGateway(rpc RPC, defaultCompany int64) *Gateway {
	return &Gateway{rpc: rpc, defaultCompany: defaultCompany}
}

// Companies lists the companies visible to the user, ordered by id.
func (g *Gateway) Companies(ctx context.Context) ([]Company, error) {
	var rows []companyRow
	err := g.rpc.ExecuteKW(ctx, "res.company", "search_read",
		[]any{[]any{}},
		map[string]any{"fields": []string{"id", "name"}, "order": "id asc"},
		&rows)
	if err != nil {
		return nil, err
	}
	out := make([]Company, 0, len(rows))
	for _, r := range rows {
		out = append(out, Company{ID: r.ID, Name: string(r.Name)})
	}
	return out, nil
}

// Company resolves id to a company; 0 selects the default.
func (g *Gateway) Company(ctx context.Context, id int64) (Company, error) {
	if id == 0 {
		id = g.defaultCompany
	}
	companies, err := g.Companies(ctx)
	if err != nil {
		return Company{}, err
	}
	if len(companies) == 0 {
		return Company{}, errs.External("odoo.company", ErrNoCompany)
	}
	if id == 0 {
		return companies[0], nil
	}
	for _, c := range companies {
		if c.ID == id {
			return c, nil
		}
	}
	return Company{}, errs.External("odoo.company", fmt.Errorf("company %d not found", id))
}

func (g *Gateway) items(ctx context.Context, model string, domain []any) ([]Item, error) {
	var rows []itemRow
	err := g.rpc.ExecuteKW(ctx, model, "search_read",
		[]any{domain},
		map[string]any{"fields": []string{"id", "name"}, "order": "name asc"},
		&rows)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, Item{ID: r.ID, Name: string(r.Name)})
	}
	return out, nil
}

// Projects lists the active projects of a company.
func (g *Gateway) Projects(ctx context.Context, companyID int64) ([]Item, error) {
	c, err := g.Company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return g.items(ctx, "project.project", []any{
		[]any{"company_id", "=", c.ID},
	})
}

// Tasks lists the open tasks of a project.
func (g *Gateway) Tasks(ctx context.Context, projectID int64) ([]Item, error) {
	return g.items(ctx, "project.task", []any{
		[]any{"project_id", "=", projectID},
	})
}

var lineFields = []string{"id", "date", "project_id", "task_id", "name", "unit_amount"}

func (g *Gateway) lines(ctx context.Context, domain []any, kwargs map[string]any) ([]TimeEntry, error) {
	kwargs["fields"] = lineFields
	var rows []lineRow
	if err := g.rpc.ExecuteKW(ctx, "account.analytic.line", "search_read", []any{domain}, kwargs, &rows); err != nil {
		return nil, err
	}
	out := make([]TimeEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

func (g *Gateway) timesheetDomain(ctx context.Context, companyID int64) ([]any, error) {
	uid, err := g.rpc.UID(ctx)
	if err != nil {
		return nil, err
	}
	c, err := g.Company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return []any{
		[]any{"project_id", "!=", false},
		[]any{"user_id", "=", uid},
		[]any{"company_id", "=", c.ID},
	}, nil
}

// TimeEntries lists the user's timesheet lines dated from..to inclusive.
func (g *Gateway) TimeEntries(ctx context.Context, from, to time.Time, companyID int64) ([]TimeEntry, error) {
	domain, err := g.timesheetDomain(ctx, companyID)
	if err != nil {
		return nil, err
	}
	domain = append(domain,
		[]any{"date", ">=", from.Format(DateLayout)},
		[]any{"date", "<=", to.Format(DateLayout)},
	)
	return g.lines(ctx, domain, map[string]any{"order": "date desc, id desc"})
}

// RecentEntries lists the user's latest timesheet lines.
func (g *Gateway) RecentEntries(ctx context.Context, limit int, companyID int64) ([]TimeEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	domain, err := g.timesheetDomain(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return g.lines(ctx, domain, map[string]any{"order": "date desc, id desc", "limit": limit})
}

// Invoices lists posted customer invoices dated from..to inclusive.
func (g *Gateway) Invoices(ctx context.Context, from, to time.Time, companyID int64) ([]Invoice, error) {
	c, err := g.Company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	domain := []any{
		[]any{"move_type", "=", "out_invoice"},
		[]any{"state", "=", "posted"},
		[]any{"company_id", "=", c.ID},
		[]any{"invoice_date", ">=", from.Format(DateLayout)},
		[]any{"invoice_date", "<=", to.Format(DateLayout)},
	}
	var rows []moveRow
	err = g.rpc.ExecuteKW(ctx, "account.move", "search_read", []any{domain}, map[string]any{
		"fields": []string{"id", "name", "invoice_date", "amount_total", "amount_residual", "amount_untaxed"},
		"order":  "invoice_date asc",
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.invoice())
	}
	return out, nil
}

// Employee returns the active employee id of the current user in a company.
func (g *Gateway) Employee(ctx context.Context, companyID int64) (int64, error) {
	uid, err := g.rpc.UID(ctx)
	if err != nil {
		return 0, err
	}
	var ids []int64
	err = g.rpc.ExecuteKW(ctx, "hr.employee", "search", []any{[]any{
		[]any{"user_id", "=", uid},
		[]any{"company_id", "=", companyID},
		[]any{"active", "=", true},
	}}, map[string]any{"limit": 1}, &ids)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, errs.External("odoo.employee", ErrNoEmployee)
	}
	return ids[0], nil
}

// CreateTimeEntry writes a timesheet line and returns its id. The employee
// lookup runs first, so a user without an employee record never triggers a write.
func (g *Gateway) CreateTimeEntry(ctx context.Context, in TimeEntryInput) (int64, error) {
	if in.ProjectID == 0 || in.TaskID == 0 {
		return 0, errs.Validation("odoo.create_time_entry", errors.New("project and task are required"))
	}
	if in.Hours <= 0 {
		return 0, errs.Validation("odoo.create_time_entry", errors.New("hours must be positive"))
	}
	c, err := g.Company(ctx, in.CompanyID)
	if err != nil {
		return 0, err
	}
	employee, err := g.Employee(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	values := map[string]any{
		"date":        date.Format(DateLayout),
		"project_id":  in.ProjectID,
		"task_id":     in.TaskID,
		"name":        in.Description,
		"unit_amount": in.Hours,
		"employee_id": employee,
		"company_id":  c.ID,
	}
	var id int64
	if err := g.rpc.ExecuteKW(ctx, "account.analytic.line", "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	logger.Info(ctx, logger.CompOdoo, "odoo.time_entry.create",
		slog.String("status", "ok"),
		slog.Int64("entry_id", id),
		slog.Int64("company_id", c.ID),
		slog.Int64("project_id", in.ProjectID),
		slog.Int64("task_id", in.TaskID),
		slog.Float64("hours", in.Hours),
	)
	return id, nil
}
