package odoo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

var jsonFalse = []byte("false")

// many2one decodes Odoo's [id, "display name"] pairs; false becomes the zero value.
type many2one struct {
	ID   int64
	Name string
}

func (m *many2one) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, jsonFalse) || bytes.Equal(b, []byte("null")) {
		*m = many2one{}
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("many2one: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("many2one: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &m.ID); err != nil {
		return fmt.Errorf("many2one id: %w", err)
	}
	return json.Unmarshal(pair[1], &m.Name)
}

// text decodes char fields that Odoo sends as false when empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, jsonFalse) || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = text(s)
	return nil
}

func (t text) date() time.Time {
	if t == "" {
		return time.Time{}
	}
	d, err := time.Parse(DateLayout, string(t))
	if err != nil {
		return time.Time{}
	}
	return d
}

type companyRow struct {
	ID   int64 `json:"id"`
	Name text  `json:"name"`
}

type itemRow struct {
	ID   int64 `json:"id"`
	Name text  `json:"name"`
}

type lineRow struct {
	ID         int64    `json:"id"`
	Date       text     `json:"date"`
	Project    many2one `json:"project_id"`
	Task       many2one `json:"task_id"`
	Name       text     `json:"name"`
	UnitAmount float64  `json:"unit_amount"`
}

type moveRow struct {
	ID             int64   `json:"id"`
	Name           text    `json:"name"`
	InvoiceDate    text    `json:"invoice_date"`
	AmountTotal    float64 `json:"amount_total"`
	AmountResidual float64 `json:"amount_residual"`
	AmountUntaxed  float64 `json:"amount_untaxed"`
}

func (r lineRow) entry() TimeEntry {
	return TimeEntry{
		ID:          r.ID,
		Date:        r.Date.date(),
		Project:     r.Project.Name,
		Task:        r.Task.Name,
		Description: string(r.Name),
		Hours:       r.UnitAmount,
	}
}

func (r moveRow) invoice() Invoice {
	return Invoice{
		ID:             r.ID,
		Name:           string(r.Name),
		Date:           r.InvoiceDate.date(),
		AmountTotal:    r.AmountTotal,
		AmountResidual: r.AmountResidual,
		AmountUntaxed:  r.AmountUntaxed,
	}
}
