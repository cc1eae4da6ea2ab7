package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hearthcal/hearthcal/internal/calendar"
	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/store"
)

type calendarEndpoint struct {
	srv *httptest.Server

	status int
	body   string

	lastPath  string
	lastQuery map[string]string
	lastAuth  string
}

func newCalendarEndpoint(t *testing.T) *calendarEndpoint {
	t.Helper()
	ce := &calendarEndpoint{status: http.StatusOK, body: `{"items":[]}`}

	ce.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ce.lastPath = r.URL.Path
		ce.lastAuth = r.Header.Get("Authorization")
		ce.lastQuery = map[string]string{}
		for key := range r.URL.Query() {
			ce.lastQuery[key] = r.URL.Query().Get(key)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ce.status)
		_, _ = w.Write([]byte(ce.body))
	}))
	t.Cleanup(ce.srv.Close)
	return ce
}

func newTestFetcher(t *testing.T, ce *calendarEndpoint) *EventFetcher {
	t.Helper()
	repo := &fakeCredentialRepo{cred: &store.Credential{
		RefreshToken: "rt",
		AccessToken:  "valid-access-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	cfg := testGoogleConfig()
	f := NewEventFetcher(cfg, NewTokenManager(cfg, repo))
	f.endpoint = ce.srv.URL
	f.loc = time.UTC
	return f
}

func testWindow() calendar.Window {
	return calendar.Window{
		Start: time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 23, 23, 59, 59, 0, time.UTC),
	}
}

func TestFetchWindowRequestShape(t *testing.T) {
	ce := newCalendarEndpoint(t)
	f := newTestFetcher(t, ce)

	if _, err := f.FetchWindow(context.Background(), testWindow()); err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}

	if !strings.Contains(ce.lastPath, "family@group.calendar.google.com") {
		t.Errorf("request path must address the configured calendar, got %s", ce.lastPath)
	}
	if got := ce.lastQuery["singleEvents"]; got != "true" {
		t.Errorf("singleEvents = %q, want true (recurring events must be expanded)", got)
	}
	if got := ce.lastQuery["orderBy"]; got != "startTime" {
		t.Errorf("orderBy = %q, want startTime", got)
	}
	if got := ce.lastQuery["timeMin"]; got != "2024-06-17T00:00:00Z" {
		t.Errorf("timeMin = %q", got)
	}
	if got := ce.lastQuery["timeMax"]; got != "2024-06-23T23:59:59Z" {
		t.Errorf("timeMax = %q", got)
	}
	if ce.lastAuth != "Bearer valid-access-token" {
		t.Errorf("Authorization = %q, want the stored access token", ce.lastAuth)
	}
}

func TestFetchWindowParsesEvents(t *testing.T) {
	ce := newCalendarEndpoint(t)
	ce.body = `{"items":[
		{"id":"ev-1","summary":"Dentist","location":"Main St",
		 "start":{"dateTime":"2024-06-17T09:00:00Z"},
		 "end":{"dateTime":"2024-06-17T09:30:00Z"}},
		{"id":"ev-2","summary":"School holiday",
		 "start":{"date":"2024-06-18"},
		 "end":{"date":"2024-06-19"}},
		{"id":"ev-broken","summary":"No start"}
	]}`
	f := newTestFetcher(t, ce)

	events, err := f.FetchWindow(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (malformed item skipped)", len(events))
	}

	if events[0].ID != "ev-1" || events[0].Title != "Dentist" || events[0].AllDay {
		t.Errorf("timed event parsed wrong: %+v", events[0])
	}
	if !events[0].Start.Equal(time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", events[0].Start)
	}
	if events[1].ID != "ev-2" || !events[1].AllDay {
		t.Errorf("all-day event parsed wrong: %+v", events[1])
	}
}

func TestFetchWindowEmptyCalendar(t *testing.T) {
	ce := newCalendarEndpoint(t)
	f := newTestFetcher(t, ce)

	events, err := f.FetchWindow(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("empty calendar must yield an empty non-nil slice, got %#v", events)
	}
}

func TestFetchWindowProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		hintPart string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, hintPart: "re-authorize"},
		{name: "forbidden", status: http.StatusForbidden, hintPart: "consent"},
		{name: "calendar not found", status: http.StatusNotFound, hintPart: "GOOGLE_CALENDAR_ID"},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ce := newCalendarEndpoint(t)
			ce.status = tc.status
			ce.body = `{"error":{"message":"provider says no"}}`
			f := newTestFetcher(t, ce)

			_, err := f.FetchWindow(context.Background(), testWindow())
			var provider *ProviderError
			if !errors.As(err, &provider) {
				t.Fatalf("expected *ProviderError, got %v", err)
			}
			if provider.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", provider.StatusCode, tc.status)
			}
			if tc.hintPart != "" && !strings.Contains(provider.Hint, tc.hintPart) {
				t.Errorf("Hint = %q, want it to mention %q", provider.Hint, tc.hintPart)
			}
		})
	}
}

func TestFetchWindowWithoutCredential(t *testing.T) {
	ce := newCalendarEndpoint(t)
	cfg := testGoogleConfig()
	f := NewEventFetcher(cfg, NewTokenManager(cfg, &fakeCredentialRepo{}))
	f.endpoint = ce.srv.URL

	_, err := f.FetchWindow(context.Background(), testWindow())
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if ce.lastPath != "" {
		t.Error("provider must not be contacted without a credential")
	}
}

func TestFetchWindowRequiresCalendarID(t *testing.T) {
	cfg := testGoogleConfig()
	cfg.CalendarID = ""
	f := NewEventFetcher(cfg, NewTokenManager(cfg, &fakeCredentialRepo{}))

	_, err := f.FetchWindow(context.Background(), testWindow())
	var missing *config.MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *config.MissingError, got %v", err)
	}
}
