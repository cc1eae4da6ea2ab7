package google

import (
	"errors"
	"fmt"
)

// ErrNoCredential signals the normal first-run state: nothing has been
// authorized yet, so there is no credential to refresh.
var ErrNoCredential = errors.New("no stored calendar credential; complete the authorization flow first")

// ErrMissingCode signals an OAuth callback that arrived without a code
// parameter.
var ErrMissingCode = errors.New("no authorization code received")

// TokenExchangeError is a provider rejection of the authorization code
// exchange. It is fatal to the setup flow and carries the provider's error
// code and description verbatim: a redirect URI mismatch is the most common
// cause and the provider message is the only actionable signal.
type TokenExchangeError struct {
	Code        string
	Description string
	Err         error
}

func (e *TokenExchangeError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("token exchange failed: %s (check that the redirect URI matches the provider configuration exactly)", msg)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// TokenRefreshError is a provider rejection of a refresh-token grant, e.g. a
// revoked refresh token. The caller must treat it as "re-authorization
// required".
type TokenRefreshError struct {
	Code        string
	Description string
	Err         error
}

func (e *TokenRefreshError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("token refresh failed: %s; re-authorization is required", msg)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// ProviderError is a non-auth calendar API failure. StatusCode carries the
// provider's HTTP status for caller-side branching; Hint is a human-readable
// interpretation of the common statuses.
type ProviderError struct {
	StatusCode int
	Message    string
	Hint       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("calendar provider error (HTTP %d): %s: %s", e.StatusCode, e.Message, e.Hint)
	}
	return fmt.Sprintf("calendar provider error (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NetworkError is a transport-level failure talking to the provider, as
// opposed to a response the provider actually sent.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("calendar provider unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NeedsReauth reports whether err means the stored credential is unusable and
// the operator has to run the authorization flow again.
func NeedsReauth(err error) bool {
	var refreshErr *TokenRefreshError
	return errors.Is(err, ErrNoCredential) || errors.As(err, &refreshErr)
}
