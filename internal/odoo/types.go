package odoo

import (
	"errors"
	"time"
)

// DateLayout is the wire format of Odoo date fields.
const DateLayout = "2006-01-02"

// ErrNoEmployee is returned by CreateTimeEntry when the current user has no
// active employee record in the target company.
var ErrNoEmployee = errors.New("no active employee record for the current user in this company")

// Company is an Odoo res.company record.
type Company struct {
	ID   int64
	Name string
}

// Item is a selectable project or task.
type Item struct {
	ID   int64
	Name string
}

// TimeEntry is a read-only account.analytic.line record.
type TimeEntry struct {
	ID          int64
	Date        time.Time
	Project     string
	Task        string
	Description string
	Hours       float64
}

// Invoice is a posted customer invoice (account.move, move_type out_invoice).
type Invoice struct {
	ID             int64
	Name           string
	Date           time.Time
	AmountTotal    float64
	AmountResidual float64
	AmountUntaxed  float64
}

// TimeEntryInput describes a timesheet line to create.
type TimeEntryInput struct {
	// CompanyID 0 selects the first company.
	CompanyID   int64
	ProjectID   int64
	TaskID      int64
	Description string
	Hours       float64
	Date        time.Time
}
