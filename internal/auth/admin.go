package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hearthcal/hearthcal/internal/config"
)

// Service gates the administrative surface: the login form and the calendar
// authorization flow. There is a single operator account whose bcrypt hash
// comes from configuration; no user table is involved.
type Service struct {
	passwordHash string
	sessions     *SessionManager
}

func NewService(cfg *config.Config, sessions *SessionManager) *Service {
	return &Service{passwordHash: cfg.Admin.PasswordHash, sessions: sessions}
}

// VerifyPassword checks the submitted password against the configured hash.
func (s *Service) VerifyPassword(password string) bool {
	if password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)) == nil
}

// Login verifies the password and, on success, issues the session cookie.
func (s *Service) Login(w http.ResponseWriter, password string) bool {
	if !s.VerifyPassword(password) {
		return false
	}
	return s.sessions.Issue(w) == nil
}

// Logout clears the session cookie.
func (s *Service) Logout(w http.ResponseWriter) {
	s.sessions.Clear(w)
}

// RequireAdmin rejects requests without a valid admin session. API paths get
// a JSON-friendly 401; everything else is redirected to the login form.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.IsAdmin(r) {
			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"admin session required"}`))
				return
			}
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
