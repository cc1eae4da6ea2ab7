package ui

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthcal/hearthcal/internal/calendar"
	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/google"
	httperrors "github.com/hearthcal/hearthcal/internal/http/errors"
)

// defaultEventSpan is the window used when the events API is called without
// explicit bounds: from now through the next thirty days.
const defaultEventSpan = 30 * 24 * time.Hour

type eventsResponse struct {
	Events []calendar.Event `json:"events"`
	Error  string           `json:"error,omitempty"`
}

// Events lists calendar events as JSON. Optional timeMin and timeMax query
// parameters are RFC3339 timestamps. Errors keep the response shape: clients
// always get an events array, empty on failure.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseWindow(r)
	if err != nil {
		httperrors.LogWarn(r, "events query", err)
		h.writeJSON(w, http.StatusBadRequest, eventsResponse{Error: err.Error(), Events: []calendar.Event{}})
		return
	}

	events, err := h.fetcher.FetchWindow(r.Context(), window)
	if err != nil {
		httperrors.LogError(r, "fetch events", err)
		h.writeJSON(w, statusForFetchError(err), eventsResponse{Error: err.Error(), Events: []calendar.Event{}})
		return
	}

	h.writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

type weekResponse struct {
	Window struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"window"`
	Days   []time.Time      `json:"days"`
	Events []calendar.Event `json:"events"`
	Grid   calendar.Grid    `json:"grid"`
	Error  string           `json:"error,omitempty"`
}

// WeekGrid returns the current week's events together with their grid
// placements, ready for a client that renders the layout itself.
func (h *Handler) WeekGrid(w http.ResponseWriter, r *http.Request) {
	window := calendar.WeekWindow(h.now())

	var res weekResponse
	res.Window.Start = window.Start
	res.Window.End = window.End
	days := window.Weekdays()
	res.Days = days[:]
	res.Events = []calendar.Event{}

	events, err := h.fetcher.FetchWindow(r.Context(), window)
	if err != nil {
		httperrors.LogError(r, "fetch week", err)
		res.Error = err.Error()
		res.Grid = calendar.LayoutWeek(nil, window)
		h.writeJSON(w, statusForFetchError(err), res)
		return
	}

	res.Events = events
	res.Grid = calendar.LayoutWeek(events, window)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) parseWindow(r *http.Request) (calendar.Window, error) {
	now := h.now()
	window := calendar.Window{Start: now, End: now.Add(defaultEventSpan)}

	q := r.URL.Query()
	if raw := q.Get("timeMin"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return calendar.Window{}, fmt.Errorf("invalid timeMin: %w", err)
		}
		window.Start = t
	}
	if raw := q.Get("timeMax"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return calendar.Window{}, fmt.Errorf("invalid timeMax: %w", err)
		}
		window.End = t
	}
	if !window.End.After(window.Start) {
		return calendar.Window{}, fmt.Errorf("timeMax must be after timeMin")
	}
	return window, nil
}

// statusForFetchError maps the fetch error taxonomy onto HTTP statuses:
// missing authorization is the caller's problem, provider and network
// failures are upstream, and a half-configured deployment is ours.
func statusForFetchError(err error) int {
	var missing *config.MissingError
	var provider *google.ProviderError
	switch {
	case errors.As(err, &missing):
		return http.StatusInternalServerError
	case google.NeedsReauth(err):
		return http.StatusUnauthorized
	case errors.As(err, &provider):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
