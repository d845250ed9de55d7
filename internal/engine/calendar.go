package engine

import (
	"fmt"
	"time"
)

// dateLayout is the wire format for all calendar dates (ISO date-only).
const dateLayout = "2006-01-02"

// Market session hours (KRX, 한국거래소).
const (
	marketOpenHour    = 9
	marketCloseHour   = 15
	marketCloseMinute = 30
)

// Calendar answers business-day and trading-session questions for the
// exchange. All dates are calendar dates in exchange-local time (KST);
// never shifted through UTC (날짜 비교에서 하루 밀림 방지).
// ⭐ SSOT: 영업일/장중 판정은 여기서만
type Calendar struct {
	loc      *time.Location
	holidays map[string]bool
}

// krxHolidays lists fixed exchange holidays (ISO dates). Weekends are
// handled separately. The table covers the years the engine operates
// over and is extended as new calendars are published.
var krxHolidays = []string{
	// 2024
	"2024-01-01", "2024-02-09", "2024-02-12", "2024-03-01", "2024-04-10",
	"2024-05-01", "2024-05-06", "2024-05-15", "2024-06-06", "2024-08-15",
	"2024-09-16", "2024-09-17", "2024-09-18", "2024-10-01", "2024-10-03",
	"2024-10-09", "2024-12-25", "2024-12-31",
	// 2025
	"2025-01-01", "2025-01-28", "2025-01-29", "2025-01-30", "2025-03-03",
	"2025-05-01", "2025-05-05", "2025-05-06", "2025-06-06", "2025-08-15",
	"2025-10-03", "2025-10-06", "2025-10-07", "2025-10-08", "2025-10-09",
	"2025-12-25", "2025-12-31",
	// 2026
	"2026-01-01", "2026-02-16", "2026-02-17", "2026-02-18", "2026-03-02",
	"2026-05-01", "2026-05-05", "2026-05-25", "2026-08-17", "2026-09-24",
	"2026-09-25", "2026-10-05", "2026-10-09", "2026-12-25", "2026-12-31",
}

// NewCalendar creates a KRX calendar.
func NewCalendar() *Calendar {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		// tzdata 없는 환경 대비
		loc = time.FixedZone("KST", 9*60*60)
	}

	holidays := make(map[string]bool, len(krxHolidays))
	for _, d := range krxHolidays {
		holidays[d] = true
	}

	return &Calendar{loc: loc, holidays: holidays}
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Normalize truncates a time to its calendar date (midnight, KST).
func (c *Calendar) Normalize(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// ParseDate parses an ISO date-only string as an exchange-local date.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// FormatDate renders a date as an ISO date-only string.
func (c *Calendar) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// IsBusinessDay reports whether the date is a trading day.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	t = c.Normalize(t)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[c.FormatDate(t)]
}

// PrevBusinessDay returns the closest trading day strictly before t.
func (c *Calendar) PrevBusinessDay(t time.Time) time.Time {
	d := c.Normalize(t).AddDate(0, 0, -1)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextBusinessDay returns the closest trading day strictly after t.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	d := c.Normalize(t).AddDate(0, 0, 1)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// BusinessDaysBetween returns all trading days in [from, to], ascending.
func (c *Calendar) BusinessDaysBetween(from, to time.Time) []time.Time {
	from = c.Normalize(from)
	to = c.Normalize(to)

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// SameDate reports whether two times fall on the same exchange-local date.
func (c *Calendar) SameDate(a, b time.Time) bool {
	return c.Normalize(a).Equal(c.Normalize(b))
}

// IsMarketOpen reports whether the exchange session is in progress
// at the given instant (09:00–15:30 KST on trading days).
func (c *Calendar) IsMarketOpen(now time.Time) bool {
	now = now.In(c.loc)
	if !c.IsBusinessDay(now) {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	open := marketOpenHour * 60
	close := marketCloseHour*60 + marketCloseMinute
	return minutes >= open && minutes < close
}
