package calendar

import (
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

// Event is an immutable snapshot of a provider calendar event. An event is
// either timed (Start/End carry a clock time) or all-day (AllDay is set and
// Start/End are local midnights); the flag drives all layout decisions.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
}

// FromGoogle converts a calendar/v3 event into the domain model. The provider
// marks all-day events with a bare date in Start.Date; timed events carry an
// RFC3339 Start.DateTime. Events without a start are rejected. A missing end
// falls back to the start instant.
func FromGoogle(item *gcal.Event, loc *time.Location) (Event, error) {
	if item == nil || item.Start == nil {
		return Event{}, fmt.Errorf("event %q has no start", eventID(item))
	}

	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}

	var err error
	if item.Start.Date != "" {
		ev.AllDay = true
		ev.Start, err = time.ParseInLocation("2006-01-02", item.Start.Date, loc)
		if err != nil {
			return Event{}, fmt.Errorf("event %q: parse start date: %w", item.Id, err)
		}
		if item.End != nil && item.End.Date != "" {
			ev.End, err = time.ParseInLocation("2006-01-02", item.End.Date, loc)
			if err != nil {
				return Event{}, fmt.Errorf("event %q: parse end date: %w", item.Id, err)
			}
		} else {
			ev.End = ev.Start
		}
		return ev, nil
	}

	ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, fmt.Errorf("event %q: parse start time: %w", item.Id, err)
	}
	ev.Start = ev.Start.In(loc)

	if item.End != nil && item.End.DateTime != "" {
		ev.End, err = time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return Event{}, fmt.Errorf("event %q: parse end time: %w", item.Id, err)
		}
		ev.End = ev.End.In(loc)
	} else {
		ev.End = ev.Start
	}

	return ev, nil
}

func eventID(item *gcal.Event) string {
	if item == nil {
		return ""
	}
	return item.Id
}
