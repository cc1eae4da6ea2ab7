package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/hearthcal/hearthcal/internal/auth"
	"github.com/hearthcal/hearthcal/internal/config"
	"github.com/hearthcal/hearthcal/internal/http/csrf"
	"github.com/hearthcal/hearthcal/internal/http/ratelimit"
	"github.com/hearthcal/hearthcal/internal/metrics"
	"github.com/hearthcal/hearthcal/internal/store"
	"github.com/hearthcal/hearthcal/internal/ui"
)

// NewRouter wires all HTTP routes for the dashboard, the events API, and the
// admin surface.
func NewRouter(cfg *config.Config, st *store.Store, authService *auth.Service, uiHandler *ui.Handler) http.Handler {
	r := chi.NewRouter()

	// OAuth and login endpoints: 5 requests per second, burst of 10
	authRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// Dashboard API: 20 requests per second, burst of 50 (a wall display
	// polls these continuously)
	apiRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	// The dashboard itself is unauthenticated: it runs on a wall-mounted
	// display with no keyboard.
	r.Group(func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		// CSRF here only mints the token the page embeds in the logout form;
		// GET requests are never validated.
		r.Use(csrf.Middleware(cfg))
		r.Get("/", uiHandler.WeekPage)
		r.Get("/events", uiHandler.Events)
		r.Get("/api/week", uiHandler.WeekGrid)
	})

	// OAuth flow. /authorize needs an admin session so only the operator can
	// point the deployment at a Google account; /callback arrives from the
	// provider redirect and is verified by the state parameter instead.
	r.Group(func(r chi.Router) {
		r.Use(authRateLimiter.Middleware())
		r.With(authService.RequireAdmin).Get("/authorize", uiHandler.Authorize)
		r.Get("/callback", uiHandler.Callback)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authRateLimiter.Middleware())
		r.Use(csrf.Middleware(cfg))
		r.Get("/login", uiHandler.LoginForm)
		r.Post("/login", uiHandler.Login)
		r.With(authService.RequireAdmin).Post("/logout", uiHandler.Logout)
	})

	return r
}
