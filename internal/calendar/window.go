package calendar

import "time"

// Window is an inclusive date range used for both provider queries and grid
// rendering. Start is always local midnight; End is local end-of-day so that
// inclusive range queries against the provider pick up events on the last day.
type Window struct {
	Start time.Time
	End   time.Time
}

// WeekWindow returns the Monday-anchored week containing now. On Saturday or
// Sunday it rolls forward to next week's Monday: the grid only shows weekday
// columns, and a week that has already elapsed by the weekend is useless.
func WeekWindow(now time.Time) Window {
	var offset int
	switch now.Weekday() {
	case time.Sunday:
		offset = -1
	case time.Saturday:
		offset = -2
	default:
		offset = int(now.Weekday()) - 1
	}

	y, m, d := now.AddDate(0, 0, -offset).Date()
	monday := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := monday.AddDate(0, 0, 6)
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999000000, now.Location())

	return Window{Start: monday, End: end}
}

// MonthWindow returns the calendar month containing now, first day midnight
// through last day end-of-day.
func MonthWindow(now time.Time) Window {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	last = time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 999000000, now.Location())
	return Window{Start: first, End: last}
}

// Weekdays returns the five weekday dates (Monday through Friday) of the
// window, each at local midnight. These are the grid columns.
func (w Window) Weekdays() [5]time.Time {
	var days [5]time.Time
	for i := range days {
		days[i] = w.Start.AddDate(0, 0, i)
	}
	return days
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
