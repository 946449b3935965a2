package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chirpwire/chirpwire/internal/core"
)

const identityKeySelfID = "self_id"

// Credentials returns the cached access token pair, or nil when none
// has been stored yet.
func (s *Store) Credentials(ctx context.Context) (*core.Credentials, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var creds core.Credentials
	row := s.DB.QueryRowContext(ctx, `
		SELECT access_token, access_secret FROM credentials WHERE id = 1
	`)
	if err := row.Scan(&creds.AccessToken, &creds.AccessSecret); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch credentials: %w", err)
	}

	return &creds, nil
}

// SaveCredentials replaces the cached access token pair wholesale.
func (s *Store) SaveCredentials(ctx context.Context, creds *core.Credentials) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if creds == nil {
		return errors.New("credentials are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO credentials (id, access_token, access_secret, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			access_secret = excluded.access_secret,
			updated_at = excluded.updated_at
	`, creds.AccessToken, creds.AccessSecret, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	return nil
}

// SelfID returns the cached identifier of the authenticated account, or
// an empty string when it has not been fetched yet.
func (s *Store) SelfID(ctx context.Context) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var value string
	row := s.DB.QueryRowContext(ctx, `
		SELECT value FROM identity WHERE key = ?
	`, identityKeySelfID)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("fetch self id: %w", err)
	}

	return value, nil
}

// SaveSelfID caches the identifier of the authenticated account.
func (s *Store) SaveSelfID(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("self id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO identity (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, identityKeySelfID, id, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store self id: %w", err)
	}

	return nil
}

// ResetCache removes cached credentials and identity so the next run
// re-authenticates from scratch.
func (s *Store) ResetCache(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM identity`); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}

	return nil
}
