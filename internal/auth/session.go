package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/hearthcal/hearthcal/internal/config"
)

const (
	sessionCookie = "hearthcal_session"
	stateCookie   = "hearthcal_oauth_state"

	sessionTTL = 24 * time.Hour
	stateTTL   = 10 * time.Minute
)

// SessionManager manages the admin session and the OAuth state cookie.
type SessionManager struct {
	codec  *securecookie.SecureCookie
	secure bool
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	hash := sha256.Sum256([]byte(cfg.Admin.SessionSecret))
	hashKey := hash[:]

	// Derive an AES-256 sized block key to avoid invalid key length errors.
	blockKey := hash[:]
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{codec: sc, secure: secure}
}

// Issue sets the admin session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter) error {
	value := map[string]any{
		"admin": true,
		"exp":   time.Now().Add(sessionTTL).Unix(),
	}

	encoded, err := m.codec.Encode(sessionCookie, value)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
	})
}

// IsAdmin reports whether the request carries a valid, unexpired admin
// session.
func (m *SessionManager) IsAdmin(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}

	var value map[string]any
	if err := m.codec.Decode(sessionCookie, c.Value, &value); err != nil {
		return false
	}

	exp, ok := value["exp"].(float64)
	if !ok || time.Unix(int64(exp), 0).Before(time.Now()) {
		return false
	}

	admin, ok := value["admin"].(bool)
	return ok && admin
}

// IssueState generates a random OAuth state value and pins it to the browser
// in a short-lived cookie, so the callback can verify the round trip.
func (m *SessionManager) IssueState(w http.ResponseWriter) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	state := hex.EncodeToString(raw)

	encoded, err := m.codec.Encode(stateCookie, state)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(stateTTL),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// VerifyState checks the state parameter from the callback against the cookie
// issued by IssueState, then clears the cookie either way.
func (m *SessionManager) VerifyState(w http.ResponseWriter, r *http.Request, state string) bool {
	defer http.SetCookie(w, &http.Cookie{
		Name:    stateCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})

	c, err := r.Cookie(stateCookie)
	if err != nil {
		return false
	}

	var issued string
	if err := m.codec.Decode(stateCookie, c.Value, &issued); err != nil {
		return false
	}
	return state != "" && issued == state
}
