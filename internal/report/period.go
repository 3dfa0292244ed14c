package report

import (
	"fmt"
	"time"
)

// Expected working hours per period, used for the percentage columns.
const (
	ExpectedWeekHours    = 40.0
	ExpectedMonthHours   = 160.0
	ExpectedQuarterHours = 480.0
)

// Period is a labelled, inclusive date range.
type Period struct {
	Label    string
	Start    time.Time
	End      time.Time
	Expected float64
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekRange returns Monday and Sunday of the week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	day := midnight(t)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// NextMonth returns the month after (year, month); December rolls into January.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// MonthRange returns the first and last day of the calendar month containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	ny, nm := NextMonth(t.Year(), t.Month())
	next := time.Date(ny, nm, 1, 0, 0, 0, 0, t.Location())
	return start, next.AddDate(0, 0, -1)
}

// Quarter returns 1..4 for month m.
func Quarter(m time.Month) int {
	return (int(m)-1)/3 + 1
}

// QuarterRange returns the first and last day of the quarter containing t.
func QuarterRange(t time.Time) (time.Time, time.Time) {
	first := time.Month((Quarter(t.Month())-1)*3 + 1)
	start := time.Date(t.Year(), first, 1, 0, 0, 0, 0, t.Location())
	_, end := MonthRange(start.AddDate(0, 2, 0))
	return start, end
}

// LastWeeks returns the week containing today followed by the n-1 previous weeks.
func LastWeeks(today time.Time, n int) []Period {
	out := make([]Period, 0, n)
	for i := 0; i < n; i++ {
		d := today.AddDate(0, 0, -7*i)
		start, end := WeekRange(d)
		_, week := d.ISOWeek()
		out = append(out, Period{
			Label:    fmt.Sprintf("KW %02d", week),
			Start:    start,
			End:      end,
			Expected: ExpectedWeekHours,
		})
	}
	return out
}

// LastMonths returns the current month followed by the n-1 previous months.
func LastMonths(today time.Time, n int) []Period {
	out := make([]Period, 0, n)
	for i := 0; i < n; i++ {
		first := time.Date(today.Year(), today.Month()-time.Month(i), 1, 0, 0, 0, 0, today.Location())
		start, end := MonthRange(first)
		out = append(out, Period{
			Label:    start.Format("Jan 2006"),
			Start:    start,
			End:      end,
			Expected: ExpectedMonthHours,
		})
	}
	return out
}

// LastQuarters returns the current quarter followed by the n-1 previous quarters.
func LastQuarters(today time.Time, n int) []Period {
	out := make([]Period, 0, n)
	q, year := Quarter(today.Month()), today.Year()
	for i := 0; i < n; i++ {
		first := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, today.Location())
		start, end := QuarterRange(first)
		out = append(out, Period{
			Label:    fmt.Sprintf("Q%d %d", q, year),
			Start:    start,
			End:      end,
			Expected: ExpectedQuarterHours,
		})
		q--
		if q < 1 {
			q = 4
			year--
		}
	}
	return out
}
