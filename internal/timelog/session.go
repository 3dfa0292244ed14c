package timelog

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/m3rciful/timebot/internal/odoo"
)

// State is the step a session is waiting on.
type State int

const (
	AwaitingProjectSearch State = iota
	AwaitingProjectChoice
	AwaitingTaskSearch
	AwaitingTaskChoice
	AwaitingHours
	AwaitingDescription
	Committed
	Cancelled
)

func (s State) String() string {
	switch s {
	case AwaitingProjectSearch:
		return "awaiting_project_search"
	case AwaitingProjectChoice:
		return "awaiting_project_choice"
	case AwaitingTaskSearch:
		return "awaiting_task_search"
	case AwaitingTaskChoice:
		return "awaiting_task_choice"
	case AwaitingHours:
		return "awaiting_hours"
	case AwaitingDescription:
		return "awaiting_description"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// MaxChoices caps the number of rendered search results.
const MaxChoices = 20

// MaxHours is the largest accepted entry.
const MaxHours = 24.0

// Session is the collected state of one guided entry.
type Session struct {
	State       State
	Project     odoo.Item
	Task        odoo.Item
	Hours       float64
	Description string
	Date        time.Time

	// Projects and Tasks are loaded once per session; Matches is the current choice list.
	Projects []odoo.Item
	Tasks    []odoo.Item
	Matches  []odoo.Item
}

// Search returns the items whose name contains query, ignoring case.
func Search(items []odoo.Item, query string) []odoo.Item {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []odoo.Item
	for _, it := range items {
		if strings.Contains(fold.String(it.Name), q) {
			out = append(out, it)
		}
	}
	return out
}

// ParseHours reads a positive amount of at most MaxHours. A comma is accepted
// as decimal separator and a trailing "h" is ignored.
func ParseHours(input string) (float64, bool) {
	s := strings.TrimSpace(strings.ToLower(input))
	s = strings.TrimSuffix(s, "h")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v <= 0 || v > MaxHours {
		return 0, false
	}
	return v, true
}

func find(items []odoo.Item, id int64) (odoo.Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return odoo.Item{}, false
}
