package domain

import "time"

// DateWindow restricts observations to a month/day range. Zero fields are absent.
type DateWindow struct {
	StartMonth int
	StartDay   int
	EndMonth   int
	EndDay     int
}

// Unbounded reports whether the window places no temporal restriction.
func (w DateWindow) Unbounded() bool {
	return w.StartMonth == 0 && w.EndMonth == 0
}

// Wraps reports whether the resolved window crosses the year boundary.
func (w DateWindow) Wraps() bool {
	start, end := w.months()
	return end < start
}

// Contains reports whether date falls inside the window.
func (w DateWindow) Contains(date time.Time) bool {
	if w.Unbounded() {
		return true
	}
	start, end := w.months()
	month := int(date.Month())

	var inMonths bool
	if end < start {
		inMonths = month >= start || month <= end
	} else {
		inMonths = month >= start && month <= end
	}
	if !inMonths {
		return false
	}
	return w.containsDay(date, start, end)
}

func (w DateWindow) months() (start, end int) {
	start, end = w.StartMonth, w.EndMonth
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = 12
	}
	return start, end
}

// containsDay narrows the boundary months. It is skipped entirely when the
// rule gave neither day bound.
func (w DateWindow) containsDay(date time.Time, start, end int) bool {
	if w.StartDay == 0 && w.EndDay == 0 {
		return true
	}
	startDay, endDay := w.StartDay, w.EndDay
	if startDay == 0 {
		startDay = 1
	}
	if endDay == 0 {
		endDay = DaysIn(time.Month(end), date.Year())
	}

	month, day := int(date.Month()), date.Day()
	switch {
	case month == start && month == end:
		return day >= startDay && day <= endDay
	case month == start:
		return day >= startDay
	case month == end:
		return day <= endDay
	default:
		return true
	}
}

// DaysIn returns the number of days in month for year.
func DaysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
