package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config holds runtime configuration sourced from environment variables.
//
// Server-level settings are validated at boot by Load. Google provider
// settings are deliberately not: they are checked at the entry of each
// operation that needs them (see GoogleConfig.Validate), so a half-configured
// deployment can still serve health checks and the admin login page.
type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	Google GoogleConfig

	Admin struct {
		PasswordHash  string
		SessionSecret string
	}

	PrometheusEnabled bool
	TrustedProxies    []string
}

// GoogleConfig carries the calendar provider settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CalendarID   string
}

// MissingError reports every required key that is unset, so an operator can
// fix the deployment in one pass instead of one variable at a time.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// Validate checks that all provider settings needed for OAuth and event
// fetching are present. CalendarID is only needed for fetching; callers that
// run the authorization flow alone pass needCalendar=false.
func (g GoogleConfig) Validate(needCalendar bool) error {
	var missing []string
	if g.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if g.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if g.RedirectURI == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URI")
	}
	if needCalendar && g.CalendarID == "" {
		missing = append(missing, "GOOGLE_CALENDAR_ID")
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.Google.RedirectURI = os.Getenv("GOOGLE_REDIRECT_URI")
	cfg.Google.CalendarID = os.Getenv("GOOGLE_CALENDAR_ID")

	cfg.Admin.PasswordHash = os.Getenv("APP_ADMIN_PASSWORD_HASH")
	cfg.Admin.SessionSecret = os.Getenv("APP_SESSION_SECRET")

	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Admin.PasswordHash == "" {
		return nil, errors.New("APP_ADMIN_PASSWORD_HASH is required (bcrypt hash of the admin password)")
	}
	if cfg.Admin.SessionSecret == "" {
		return nil, errors.New("APP_SESSION_SECRET is required")
	}
	if len(cfg.Admin.SessionSecret) < 32 {
		return nil, fmt.Errorf("APP_SESSION_SECRET must be at least 32 characters long (got %d)", len(cfg.Admin.SessionSecret))
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
