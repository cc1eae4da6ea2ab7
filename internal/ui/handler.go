package ui

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/hearthcal/hearthcal/internal/auth"
	"github.com/hearthcal/hearthcal/internal/calendar"
	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/google"
	"github.com/hearthcal/hearthcal/internal/http/errors"
	"github.com/hearthcal/hearthcal/internal/store"
)

// TokenFlow is the slice of the token manager the UI needs: starting the
// authorization flow and completing it.
type TokenFlow interface {
	AuthCodeURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*store.Credential, error)
}

// EventSource lists events for a window.
type EventSource interface {
	FetchWindow(ctx context.Context, window calendar.Window) ([]calendar.Event, error)
}

// Handler serves the dashboard pages and the JSON API.
type Handler struct {
	cfg         *config.Config
	authService *auth.Service
	sessions    *auth.SessionManager
	tokens      TokenFlow
	fetcher     EventSource
	templates   map[string]*template.Template

	// now is replaced in tests to pin the week window.
	now func() time.Time
}

func NewHandler(cfg *config.Config, authService *auth.Service, sessions *auth.SessionManager, tokens TokenFlow, fetcher EventSource) *Handler {
	return &Handler{
		cfg:         cfg,
		authService: authService,
		sessions:    sessions,
		tokens:      tokens,
		fetcher:     fetcher,
		templates:   templates,
		now:         time.Now,
	}
}

// gridPixelHeight is the full height of the timed area: 12 visible hours at
// two slots each.
const gridPixelHeight = (calendar.VisibleEndMinute - calendar.VisibleStartMinute) / calendar.SlotMinutes * calendar.SlotHeight

type dayView struct {
	Name  string
	Label string
}

type timedEventView struct {
	Title  string
	Time   string
	Column int
	Top    int
	Height int
	// Left and Width are percentages; each weekday column is a fifth of the
	// grid.
	Left int
}

type allDayEventView struct {
	Title  string
	Column int
}

type hourLabelView struct {
	Label string
	Top   int
}

// WeekPage renders the weekly dashboard. A fetch failure degrades to an empty
// grid with a banner rather than an error page: the wall display should keep
// showing the frame even when the provider is down.
func (h *Handler) WeekPage(w http.ResponseWriter, r *http.Request) {
	window := calendar.WeekWindow(h.now())

	var banner string
	events, err := h.fetcher.FetchWindow(r.Context(), window)
	if err != nil {
		errors.LogError(r, "fetch week events", err)
		banner = fetchBanner(err)
		events = nil
	}

	grid := calendar.LayoutWeek(events, window)
	byID := make(map[string]calendar.Event, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}

	days := make([]dayView, 0, 5)
	for _, day := range window.Weekdays() {
		days = append(days, dayView{
			Name:  day.Format("Mon"),
			Label: day.Format("Jan 2"),
		})
	}

	timed := make([]timedEventView, 0, len(grid.Timed))
	for _, p := range grid.Timed {
		ev := byID[p.EventID]
		timed = append(timed, timedEventView{
			Title:  ev.Title,
			Time:   ev.Start.Format("15:04") + " - " + ev.End.Format("15:04"),
			Column: p.Column,
			Top:    p.Top,
			Height: p.Height,
			Left:   p.Column * 20,
		})
	}

	allDay := make([]allDayEventView, 0, len(grid.AllDay))
	for _, p := range grid.AllDay {
		allDay = append(allDay, allDayEventView{Title: byID[p.EventID].Title, Column: p.Column})
	}

	hours := make([]hourLabelView, 0, 12)
	for minute := calendar.VisibleStartMinute; minute < calendar.VisibleEndMinute; minute += 60 {
		hours = append(hours, hourLabelView{
			Label: time.Date(0, 1, 1, minute/60, 0, 0, 0, time.UTC).Format("15:04"),
			Top:   (minute - calendar.VisibleStartMinute) * calendar.SlotHeight / calendar.SlotMinutes,
		})
	}

	data := h.withFlash(r, map[string]any{
		"Title":      "This Week",
		"WeekOf":     window.Start.Format("January 2, 2006"),
		"Days":       days,
		"Hours":      hours,
		"Timed":      timed,
		"AllDay":     allDay,
		"GridHeight": gridPixelHeight,
		"Banner":     banner,
		"IsAdmin":    h.sessions.IsAdmin(r),
	})
	h.render(w, r, "week.html", data)
}

func fetchBanner(err error) string {
	switch {
	case google.NeedsReauth(err):
		return "Calendar is not connected. An administrator needs to authorize access."
	default:
		return "Calendar is temporarily unavailable."
	}
}
