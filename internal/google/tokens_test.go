package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/store"
)

// fakeCredentialRepo is an in-memory CredentialRepository.
type fakeCredentialRepo struct {
	cred        *store.Credential
	getErr      error
	putCalls    int
	updateCalls int
}

func (f *fakeCredentialRepo) Get(ctx context.Context) (*store.Credential, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.cred == nil {
		return nil, nil
	}
	copied := *f.cred
	return &copied, nil
}

func (f *fakeCredentialRepo) Put(ctx context.Context, cred store.Credential) error {
	f.putCalls++
	f.cred = &cred
	return nil
}

func (f *fakeCredentialRepo) UpdateAccess(ctx context.Context, accessToken string, expiresAt time.Time) error {
	f.updateCalls++
	f.cred.AccessToken = accessToken
	f.cred.ExpiresAt = expiresAt
	return nil
}

type tokenEndpoint struct {
	srv *httptest.Server

	calls      atomic.Int64
	failStatus int
	failCode   string
	failDesc   string

	accessToken  string
	refreshToken string
	lastGrant    string
}

// newTokenEndpoint serves the OAuth token endpoint. Client credentials may
// arrive via Basic auth or form fields depending on the library's auth-style
// probe, so both are accepted.
func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	t.Helper()
	te := &tokenEndpoint{accessToken: "fresh-access-token"}

	te.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		te.calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		te.lastGrant = r.PostFormValue("grant_type")

		w.Header().Set("Content-Type", "application/json")
		if te.failStatus != 0 {
			w.WriteHeader(te.failStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             te.failCode,
				"error_description": te.failDesc,
			})
			return
		}

		body := map[string]any{
			"access_token": te.accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if te.refreshToken != "" {
			body["refresh_token"] = te.refreshToken
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(te.srv.Close)
	return te
}

func testGoogleConfig() config.GoogleConfig {
	return config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://dash.example.com/callback",
		CalendarID:   "family@group.calendar.google.com",
	}
}

func newTestManager(t *testing.T, te *tokenEndpoint, repo *fakeCredentialRepo) *TokenManager {
	t.Helper()
	m := NewTokenManager(testGoogleConfig(), repo)
	m.endpoint = oauth2.Endpoint{
		AuthURL:  te.srv.URL + "/auth",
		TokenURL: te.srv.URL + "/token",
	}
	return m
}

func TestAuthCodeURL(t *testing.T) {
	m := NewTokenManager(testGoogleConfig(), &fakeCredentialRepo{})

	raw, err := m.AuthCodeURL("state-1")
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	q := u.Query()
	for key, want := range map[string]string{
		"response_type": "code",
		"access_type":   "offline",
		"prompt":        "consent",
		"client_id":     "client-id",
		"redirect_uri":  "https://dash.example.com/callback",
		"state":         "state-1",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if !strings.Contains(q.Get("scope"), "calendar.readonly") {
		t.Errorf("scope = %q, want calendar.readonly", q.Get("scope"))
	}
}

func TestAuthCodeURLRequiresConfiguration(t *testing.T) {
	m := NewTokenManager(config.GoogleConfig{}, &fakeCredentialRepo{})

	_, err := m.AuthCodeURL("state")
	var missing *config.MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *config.MissingError, got %v", err)
	}
}

func TestExchangeCodeStoresCredential(t *testing.T) {
	te := newTokenEndpoint(t)
	te.refreshToken = "long-lived-refresh"
	repo := &fakeCredentialRepo{}
	m := newTestManager(t, te, repo)

	cred, err := m.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if te.lastGrant != "authorization_code" {
		t.Errorf("grant_type = %q, want authorization_code", te.lastGrant)
	}
	if cred.RefreshToken != "long-lived-refresh" || cred.AccessToken != "fresh-access-token" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if !cred.ExpiresAt.After(time.Now()) {
		t.Errorf("expiry must be in the future, got %v", cred.ExpiresAt)
	}
	if repo.putCalls != 1 {
		t.Errorf("putCalls = %d, want 1", repo.putCalls)
	}
}

func TestExchangeCodeThenValidAccessTokenNeedsNoRefresh(t *testing.T) {
	te := newTokenEndpoint(t)
	te.refreshToken = "long-lived-refresh"
	repo := &fakeCredentialRepo{}
	m := newTestManager(t, te, repo)

	if _, err := m.ExchangeCode(context.Background(), "auth-code"); err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}

	token, err := m.ValidAccessToken(context.Background())
	if err != nil {
		t.Fatalf("ValidAccessToken: %v", err)
	}
	if token != "fresh-access-token" {
		t.Errorf("token = %q, want the just-stored access token", token)
	}
	if got := te.calls.Load(); got != 1 {
		t.Errorf("token endpoint calls = %d, want 1 (exchange only)", got)
	}
}

func TestExchangeCodeProviderRejection(t *testing.T) {
	te := newTokenEndpoint(t)
	te.failStatus = http.StatusBadRequest
	te.failCode = "invalid_grant"
	te.failDesc = "redirect_uri_mismatch"
	repo := &fakeCredentialRepo{}
	m := newTestManager(t, te, repo)

	_, err := m.ExchangeCode(context.Background(), "bad-code")
	var exchange *TokenExchangeError
	if !errors.As(err, &exchange) {
		t.Fatalf("expected *TokenExchangeError, got %v", err)
	}
	if exchange.Code != "invalid_grant" || exchange.Description != "redirect_uri_mismatch" {
		t.Errorf("provider detail not carried verbatim: %+v", exchange)
	}
	if repo.putCalls != 0 {
		t.Errorf("failed exchange must not write the store, putCalls = %d", repo.putCalls)
	}
}

func TestExchangeCodeMissingRefreshToken(t *testing.T) {
	te := newTokenEndpoint(t) // no refresh_token in the response
	repo := &fakeCredentialRepo{}
	m := newTestManager(t, te, repo)

	_, err := m.ExchangeCode(context.Background(), "auth-code")
	var exchange *TokenExchangeError
	if !errors.As(err, &exchange) {
		t.Fatalf("expected *TokenExchangeError, got %v", err)
	}
	if repo.putCalls != 0 {
		t.Error("incomplete token response must not be persisted")
	}
}

func TestValidAccessTokenFirstRun(t *testing.T) {
	te := newTokenEndpoint(t)
	m := newTestManager(t, te, &fakeCredentialRepo{})

	_, err := m.ValidAccessToken(context.Background())
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if te.calls.Load() != 0 {
		t.Error("first-run must not contact the provider")
	}
}

func TestValidAccessTokenStoreFailure(t *testing.T) {
	te := newTokenEndpoint(t)
	repo := &fakeCredentialRepo{getErr: errors.New("connection refused")}
	m := newTestManager(t, te, repo)

	_, err := m.ValidAccessToken(context.Background())
	if err == nil || errors.Is(err, ErrNoCredential) {
		t.Fatalf("store failure must be distinguishable from first-run, got %v", err)
	}
}

func TestValidAccessTokenWithinValidityIsIdempotent(t *testing.T) {
	te := newTokenEndpoint(t)
	repo := &fakeCredentialRepo{cred: &store.Credential{
		RefreshToken: "rt",
		AccessToken:  "still-good",
		ExpiresAt:    time.Now().Add(30 * time.Minute),
	}}
	m := newTestManager(t, te, repo)

	for i := 0; i < 2; i++ {
		token, err := m.ValidAccessToken(context.Background())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if token != "still-good" {
			t.Errorf("call %d: token = %q, want still-good", i, token)
		}
	}
	if te.calls.Load() != 0 {
		t.Errorf("no refresh expected within validity, got %d calls", te.calls.Load())
	}
}

func TestValidAccessTokenRefreshesExpired(t *testing.T) {
	te := newTokenEndpoint(t)
	te.accessToken = "refreshed-access-token"
	repo := &fakeCredentialRepo{cred: &store.Credential{
		RefreshToken: "rt",
		AccessToken:  "stale",
		ExpiresAt:    time.Now().Add(-10 * time.Minute),
	}}
	m := newTestManager(t, te, repo)

	token, err := m.ValidAccessToken(context.Background())
	if err != nil {
		t.Fatalf("ValidAccessToken: %v", err)
	}
	if token != "refreshed-access-token" {
		t.Errorf("token = %q, want refreshed-access-token", token)
	}
	if te.lastGrant != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", te.lastGrant)
	}
	if got := te.calls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", got)
	}
	if repo.updateCalls != 1 {
		t.Errorf("updateCalls = %d, want 1", repo.updateCalls)
	}
	if repo.cred.RefreshToken != "rt" {
		t.Errorf("refresh token must not be rotated, got %q", repo.cred.RefreshToken)
	}

	// A second call inside the new validity window reuses the cached token.
	if _, err := m.ValidAccessToken(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got := te.calls.Load(); got != 1 {
		t.Errorf("second call must not refresh again, got %d calls", got)
	}
}

func TestValidAccessTokenRefreshRejected(t *testing.T) {
	te := newTokenEndpoint(t)
	te.failStatus = http.StatusBadRequest
	te.failCode = "invalid_grant"
	te.failDesc = "Token has been expired or revoked."
	before := store.Credential{
		RefreshToken: "revoked-rt",
		AccessToken:  "stale",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}
	repo := &fakeCredentialRepo{cred: &before}
	m := newTestManager(t, te, repo)

	_, err := m.ValidAccessToken(context.Background())
	var refresh *TokenRefreshError
	if !errors.As(err, &refresh) {
		t.Fatalf("expected *TokenRefreshError, got %v", err)
	}
	if refresh.Code != "invalid_grant" {
		t.Errorf("Code = %q, want invalid_grant", refresh.Code)
	}
	if !NeedsReauth(err) {
		t.Error("refresh rejection must be classified as needing re-authorization")
	}
	if repo.updateCalls != 0 {
		t.Error("failed refresh must leave the stored credential unchanged")
	}
	if repo.cred.AccessToken != "stale" || repo.cred.RefreshToken != "revoked-rt" {
		t.Errorf("credential mutated on failure: %+v", repo.cred)
	}
}

func TestNeedsReauth(t *testing.T) {
	if !NeedsReauth(ErrNoCredential) {
		t.Error("ErrNoCredential needs re-authorization")
	}
	if !NeedsReauth(&TokenRefreshError{Code: "invalid_grant"}) {
		t.Error("TokenRefreshError needs re-authorization")
	}
	if NeedsReauth(&ProviderError{StatusCode: 500}) {
		t.Error("provider failures are not an auth problem")
	}
	if NeedsReauth(&NetworkError{Err: errors.New("timeout")}) {
		t.Error("network failures are not an auth problem")
	}
}
