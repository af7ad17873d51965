package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minYear = 2000
	maxYear = 9999

	// DueDay is the day of the following month on which a bill falls due.
	DueDay = 10
)

// Period is a calendar month being billed.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewPeriod builds a validated period.
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	if !p.Valid() {
		return Period{}, fmt.Errorf("invalid period %d/%d", month, year)
	}
	return p, nil
}

// PeriodOf returns the period containing t (UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// Valid reports month in 1..12 and a year in a plausible range.
func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= minYear && p.Year <= maxYear
}

// Start is the first day of the month at UTC midnight.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first day of the next month (exclusive bound).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether day falls within the period.
func (p Period) Contains(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(p.Start()) && d.Before(p.End())
}

// DaysInMonth is calendar-correct, leap years included.
func (p Period) DaysInMonth() int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Next returns the following month.
func (p Period) Next() Period {
	return PeriodOf(p.End())
}

// Previous returns the preceding month.
func (p Period) Previous() Period {
	return PeriodOf(p.Start().AddDate(0, -1, 0))
}

// DueDate is the DueDay of the following month; December rolls into January.
func (p Period) DueDate() time.Time {
	n := p.Next()
	return time.Date(n.Year, time.Month(n.Month), DueDay, 0, 0, 0, 0, time.UTC)
}

// String renders "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ParsePeriod accepts "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Period{}, fmt.Errorf("period %q: expected YYYY-MM", s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return Period{}, fmt.Errorf("period %q: %w", s, err)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return Period{}, fmt.Errorf("period %q: %w", s, err)
	}
	return NewPeriod(month, year)
}
