package store

import "time"

// Credential is the single stored Google Calendar credential for the
// deployment. There is exactly one logical row; a new authorization replaces
// it wholesale, a token refresh replaces only the access fields.
type Credential struct {
	RefreshToken string
	AccessToken  string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}
