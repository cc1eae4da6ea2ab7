package calendar

import (
	"sort"
	"time"
)

// Visible-hours window for the weekly grid. The 08:00 slot is included; 20:00
// is an exclusive boundary.
const (
	VisibleStartMinute = 8 * 60
	VisibleEndMinute   = 20 * 60
	SlotMinutes        = 30
	SlotHeight         = 30 // pixels per slot
)

// Placement positions a timed event inside a weekday column. Top and Height
// are pixel offsets derived from the slot height.
type Placement struct {
	EventID string `json:"eventId"`
	Column  int    `json:"column"`
	Top     int    `json:"top"`
	Height  int    `json:"height"`
}

// AllDayPlacement positions an all-day event; it has no vertical extent and is
// rendered in a dedicated row above the timed grid.
type AllDayPlacement struct {
	EventID string `json:"eventId"`
	Column  int    `json:"column"`
}

// Grid is the layout of one week's events over the five weekday columns.
type Grid struct {
	AllDay []AllDayPlacement `json:"allDay"`
	Timed  []Placement       `json:"timed"`
}

// LayoutWeek positions events on the weekly grid for the given window. Events
// whose start date falls outside Monday-Friday are dropped, as are timed
// events entirely outside the visible hours. Timed events that cross a
// boundary are clipped to it, and a 30-minute floor keeps zero-length events
// visible. Overlapping events in one column are not de-overlapped; they share
// the column and are left to the rendering surface to stack.
func LayoutWeek(events []Event, window Window) Grid {
	days := window.Weekdays()

	var grid Grid
	starts := make(map[string]time.Time, len(events))

	for _, ev := range events {
		col, ok := columnFor(ev.Start, days)
		if !ok {
			continue
		}

		if ev.AllDay {
			grid.AllDay = append(grid.AllDay, AllDayPlacement{EventID: ev.ID, Column: col})
			continue
		}

		p, ok := placeTimed(ev, col)
		if !ok {
			continue
		}
		grid.Timed = append(grid.Timed, p)
		starts[ev.ID] = ev.Start
	}

	sort.SliceStable(grid.Timed, func(i, j int) bool {
		a, b := grid.Timed[i], grid.Timed[j]
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return starts[a.EventID].Before(starts[b.EventID])
	})
	sort.SliceStable(grid.AllDay, func(i, j int) bool {
		return grid.AllDay[i].Column < grid.AllDay[j].Column
	})

	return grid
}

// placeTimed clips a timed event to the visible-hours window and converts it
// to pixel offsets. Returns false when the event is entirely outside the
// window.
func placeTimed(ev Event, col int) (Placement, bool) {
	start := minuteOfDay(ev.Start)
	end := minuteOfDay(ev.End)

	if end <= VisibleStartMinute || start >= VisibleEndMinute {
		return Placement{}, false
	}

	startClamped := start
	if startClamped < VisibleStartMinute {
		startClamped = VisibleStartMinute
	}
	endClamped := end
	if endClamped > VisibleEndMinute {
		endClamped = VisibleEndMinute
	}

	duration := endClamped - startClamped
	if duration < SlotMinutes {
		duration = SlotMinutes
	}

	return Placement{
		EventID: ev.ID,
		Column:  col,
		Top:     (startClamped - VisibleStartMinute) * SlotHeight / SlotMinutes,
		Height:  duration * SlotHeight / SlotMinutes,
	}, true
}

func columnFor(start time.Time, days [5]time.Time) (int, bool) {
	for i, day := range days {
		if sameDate(start, day) {
			return i, true
		}
	}
	return 0, false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
