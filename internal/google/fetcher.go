package google

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hearthcal/hearthcal/internal/calendar"
	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/metrics"
)

// EventFetcher retrieves the provider's event list for a time window. Every
// fetch validates the access token first, so an expired token triggers a
// synchronous refresh before the provider is contacted.
type EventFetcher struct {
	cfg    config.GoogleConfig
	tokens *TokenManager

	// endpoint overrides the calendar API base URL in tests.
	endpoint string
	loc      *time.Location
}

func NewEventFetcher(cfg config.GoogleConfig, tokens *TokenManager) *EventFetcher {
	return &EventFetcher{
		cfg:    cfg,
		tokens: tokens,
		loc:    time.Local,
	}
}

// FetchWindow lists the events between window.Start and window.End. Recurring
// events are expanded server-side and chronological ordering is requested
// from the provider; this component does not re-sort. Token errors propagate
// unchanged so the caller can distinguish "needs re-authorization" from a
// provider or network failure.
func (f *EventFetcher) FetchWindow(ctx context.Context, window calendar.Window) ([]calendar.Event, error) {
	if err := f.cfg.Validate(true); err != nil {
		return nil, err
	}

	token, err := f.tokens.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := f.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}

	res, err := svc.Events.List(f.cfg.CalendarID).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, providerError(err)
	}
	metrics.CountProviderRequest("events.list", http.StatusOK)

	events := make([]calendar.Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, err := calendar.FromGoogle(item, f.loc)
		if err != nil {
			// A malformed event should not poison the whole window.
			log.Printf("[WARN] skipping malformed provider event: %v", err)
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

func (f *EventFetcher) service(ctx context.Context, token string) (*gcal.Service, error) {
	hc := &http.Client{
		Timeout: providerTimeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if f.endpoint != "" {
		opts = append(opts, option.WithEndpoint(f.endpoint))
	}
	return gcal.NewService(ctx, opts...)
}

func providerError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		metrics.CountProviderRequest("events.list", apiErr.Code)
		return &ProviderError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Hint:       hintForStatus(apiErr.Code),
			Err:        err,
		}
	}
	return &NetworkError{Err: err}
}

func hintForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "the provider rejected the access token; it may have been revoked, re-authorize the calendar"
	case http.StatusForbidden:
		return "the calendar API is not enabled or the granted scope does not cover this calendar; check the consent configuration"
	case http.StatusNotFound:
		return "the calendar identifier was not found; check GOOGLE_CALENDAR_ID"
	default:
		return ""
	}
}
