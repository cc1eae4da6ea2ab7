package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// The credential table holds exactly one row, keyed by this fixed identity.
const credentialRowID = 1

// CredentialRepository is the durable home of the deployment's single Google
// Calendar credential. Get returns (nil, nil) when no credential has been
// stored yet, so callers can tell a normal first run apart from an
// unreachable database.
type CredentialRepository interface {
	Get(ctx context.Context) (*Credential, error)
	Put(ctx context.Context, cred Credential) error
	UpdateAccess(ctx context.Context, accessToken string, expiresAt time.Time) error
}

type credentialRepo struct {
	pool PgxPool
}

func (r *credentialRepo) Get(ctx context.Context) (*Credential, error) {
	defer observeDB(ctx, "credentials.get")()

	const q = `SELECT refresh_token, access_token, expires_at, updated_at
FROM google_calendar_tokens WHERE id=$1`

	var cred Credential
	err := r.pool.QueryRow(ctx, q, credentialRowID).
		Scan(&cred.RefreshToken, &cred.AccessToken, &cred.ExpiresAt, &cred.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return &cred, nil
}

func (r *credentialRepo) Put(ctx context.Context, cred Credential) error {
	defer observeDB(ctx, "credentials.put")()

	const q = `INSERT INTO google_calendar_tokens (id, refresh_token, access_token, expires_at, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE SET
        refresh_token = EXCLUDED.refresh_token,
        access_token = EXCLUDED.access_token,
        expires_at = EXCLUDED.expires_at,
        updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, q, credentialRowID, cred.RefreshToken, cred.AccessToken, cred.ExpiresAt); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// UpdateAccess replaces only the short-lived access token and its expiry. The
// refresh path uses this so a refresh never touches the stored refresh token.
func (r *credentialRepo) UpdateAccess(ctx context.Context, accessToken string, expiresAt time.Time) error {
	defer observeDB(ctx, "credentials.update_access")()

	const q = `UPDATE google_calendar_tokens
SET access_token=$2, expires_at=$3, updated_at=NOW() WHERE id=$1`

	tag, err := r.pool.Exec(ctx, q, credentialRowID, accessToken, expiresAt)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("update access token: no stored credential")
	}
	return nil
}
