package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"

	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/metrics"
	"github.com/hearthcal/hearthcal/internal/store"
)

const calendarScope = "https://www.googleapis.com/auth/calendar.readonly"

// providerTimeout bounds every outbound call to the provider so a hung
// request fails instead of stalling the caller.
const providerTimeout = 15 * time.Second

// tokenCache is a short-lived in-process copy of the stored access token. The
// database row stays the source of truth; the cache only saves a store read
// on the hot path and is bypassed the moment the token expires.
type tokenCache struct {
	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func (c *tokenCache) get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == "" || !now.Before(c.expiresAt) {
		return "", false
	}
	return c.accessToken, true
}

func (c *tokenCache) set(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
	c.expiresAt = expiresAt
}

// TokenManager owns the OAuth2 credential lifecycle: code exchange on first
// authorization, expiry tracking, and silent refresh. Concurrent refreshes of
// the same expired token are tolerated rather than coordinated; the provider
// keeps the old access token usable and the store write is last-write-wins.
type TokenManager struct {
	cfg      config.GoogleConfig
	creds    store.CredentialRepository
	client   *http.Client
	endpoint oauth2.Endpoint
	now      func() time.Time
	cache    *tokenCache
}

func NewTokenManager(cfg config.GoogleConfig, creds store.CredentialRepository) *TokenManager {
	return &TokenManager{
		cfg:      cfg,
		creds:    creds,
		client:   &http.Client{Timeout: providerTimeout},
		endpoint: oauthgoogle.Endpoint,
		now:      time.Now,
		cache:    &tokenCache{},
	}
}

func (m *TokenManager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		RedirectURL:  m.cfg.RedirectURI,
		Scopes:       []string{calendarScope},
		Endpoint:     m.endpoint,
	}
}

// AuthCodeURL builds the provider consent URL. access_type=offline is
// mandatory to be issued a refresh token at all, and prompt=consent forces
// refresh-token issuance even when the user has consented before.
func (m *TokenManager) AuthCodeURL(state string) (string, error) {
	if err := m.cfg.Validate(false); err != nil {
		return "", err
	}
	return m.oauthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// ExchangeCode trades an authorization code for tokens and persists them as
// the deployment's single credential.
func (m *TokenManager) ExchangeCode(ctx context.Context, code string) (*store.Credential, error) {
	if err := m.cfg.Validate(false); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	tok, err := m.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return nil, exchangeError(err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, &TokenExchangeError{Description: "provider response is missing tokens (was access_type=offline granted?)"}
	}

	cred := store.Credential{
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		ExpiresAt:    tok.Expiry,
	}
	if err := m.creds.Put(ctx, cred); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	m.cache.set(cred.AccessToken, cred.ExpiresAt)

	return &cred, nil
}

// ValidAccessToken returns an access token that is usable right now,
// refreshing it first when the stored one has expired. The expiry check is a
// strict now >= expires_at with no grace window, and it always happens
// synchronously before the caller talks to the provider.
func (m *TokenManager) ValidAccessToken(ctx context.Context) (string, error) {
	now := m.now()
	if token, ok := m.cache.get(now); ok {
		return token, nil
	}

	cred, err := m.creds.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if cred == nil {
		return "", ErrNoCredential
	}

	if now.Before(cred.ExpiresAt) {
		m.cache.set(cred.AccessToken, cred.ExpiresAt)
		return cred.AccessToken, nil
	}

	return m.refresh(ctx, cred)
}

// refresh performs a refresh-token grant and persists the new access token.
// The stored refresh token is never rotated, and a failed refresh leaves the
// credential row untouched.
func (m *TokenManager) refresh(ctx context.Context, cred *store.Credential) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	src := m.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		metrics.CountTokenRefresh("failure")
		return "", refreshError(err)
	}
	metrics.CountTokenRefresh("success")

	if err := m.creds.UpdateAccess(ctx, tok.AccessToken, tok.Expiry); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	m.cache.set(tok.AccessToken, tok.Expiry)

	return tok.AccessToken, nil
}

func exchangeError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return &TokenExchangeError{
			Code:        retrieve.ErrorCode,
			Description: retrieve.ErrorDescription,
			Err:         err,
		}
	}
	return &NetworkError{Err: err}
}

func refreshError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return &TokenRefreshError{
			Code:        retrieve.ErrorCode,
			Description: retrieve.ErrorDescription,
			Err:         err,
		}
	}
	return &NetworkError{Err: err}
}
