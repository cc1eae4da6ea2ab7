package ui

import (
	"net/http"
	"strings"

	"github.com/hearthcal/hearthcal/internal/google"
	"github.com/hearthcal/hearthcal/internal/http/errors"
)

// Authorize starts the calendar authorization flow. It returns the provider
// consent URL as JSON instead of redirecting, so the admin page can open it
// client-side.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.IssueState(w)
	if err != nil {
		errors.InternalError(w, r, err, "issue oauth state")
		return
	}

	authURL, err := h.tokens.AuthCodeURL(state)
	if err != nil {
		errors.LogError(r, "build auth url", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

// Callback completes the authorization flow. The provider redirects the
// admin's browser here; success and failure both render a human-readable page
// since there is no API client on the other end.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if msg := q.Get("error"); msg != "" {
		errors.LogInfo(r, "authorization declined: "+msg)
		h.renderCallbackError(w, r, http.StatusBadRequest, "Authorization was declined: "+msg)
		return
	}

	code := q.Get("code")
	if code == "" {
		errors.LogWarn(r, "oauth callback", google.ErrMissingCode)
		h.renderCallbackError(w, r, http.StatusBadRequest, google.ErrMissingCode.Error())
		return
	}

	if !h.sessions.VerifyState(w, r, q.Get("state")) {
		errors.LogInfo(r, "oauth callback with bad state")
		h.renderCallbackError(w, r, http.StatusBadRequest, "The authorization response could not be verified. Start the flow again.")
		return
	}

	if _, err := h.tokens.ExchangeCode(r.Context(), code); err != nil {
		errors.LogError(r, "token exchange", err)
		h.renderCallbackError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	h.render(w, r, "callback_success.html", map[string]any{
		"Title": "Calendar Connected",
	})
}

func (h *Handler) renderCallbackError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.renderStatus(w, r, status, "callback_error.html", map[string]any{
		"Title":   "Authorization Failed",
		"Message": message,
	})
}

// LoginForm renders the admin login page.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.sessions.IsAdmin(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.render(w, r, "login.html", h.withFlash(r, map[string]any{
		"Title": "Admin Login",
	}))
}

// Login checks the password and issues the admin session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errors.BadRequestError(w, r, err, "invalid form")
		return
	}

	password := strings.TrimSpace(r.PostFormValue("password"))
	if !h.authService.Login(w, password) {
		errors.LogInfo(r, "failed admin login attempt")
		h.redirect(w, r, "/admin/login", map[string]string{"error": "invalid password"})
		return
	}

	h.redirect(w, r, "/", map[string]string{"status": "signed in"})
}

// Logout clears the admin session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.Logout(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
