package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hearthcal/hearthcal/internal/http/csrf"
	"github.com/hearthcal/hearthcal/internal/http/errors"
)

// withFlash adds flash messages and the CSRF token to template data.
func (h *Handler) withFlash(r *http.Request, data map[string]any) map[string]any {
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		data["FlashMessage"] = status
	}
	if msg := q.Get("error"); msg != "" {
		data["FlashError"] = msg
	}
	if token := csrf.TokenFromContext(r.Context()); token != "" {
		data["CSRFToken"] = token
	}
	return data
}

// redirect redirects to a path with query parameters.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string, params map[string]string) {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	location := path
	if encoded := q.Encode(); encoded != "" {
		location += "?" + encoded
	}
	http.Redirect(w, r, location, http.StatusFound)
}

// render executes a template and writes the response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	h.renderStatus(w, r, http.StatusOK, name, data)
}

func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := h.templates[name]
	if !ok {
		errors.InternalError(w, r, fmt.Errorf("template not found"), fmt.Sprintf("template %q not found", name))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	// Each page set is a clone of the base layout with the page's blocks
	// redefined, so the layout is always the entry point.
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		errors.LogError(r, fmt.Sprintf("template render error for %q", name), err)
	}
}

// writeJSON marshals body as the response with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
