package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chirpwire/chirpwire/internal/core"
)

// GetRateLimitState returns the stored window for one (endpoint, scope,
// scope id) triple, or nil when none is stored.
func (s *Store) GetRateLimitState(ctx context.Context, endpoint string, scope core.Scope, scopeID string) (*core.RateLimitState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		remaining   int
		windowStart int64
		resetAt     int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT requests_remaining, window_start, reset_at
		FROM rate_limit_states
		WHERE endpoint = ? AND scope = ? AND scope_id = ?
	`, endpoint, string(scope), scopeID)
	if err := row.Scan(&remaining, &windowStart, &resetAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit state: %w", err)
	}

	return &core.RateLimitState{
		Endpoint:          endpoint,
		Scope:             scope,
		ScopeID:           scopeID,
		RequestsRemaining: remaining,
		WindowStart:       time.Unix(windowStart, 0).UTC(),
		ResetAt:           time.Unix(resetAt, 0).UTC(),
	}, nil
}

// SaveRateLimitState upserts the window for one triple.
func (s *Store) SaveRateLimitState(ctx context.Context, state *core.RateLimitState) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO rate_limit_states (endpoint, scope, scope_id, requests_remaining, window_start, reset_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint, scope, scope_id) DO UPDATE SET
			requests_remaining = excluded.requests_remaining,
			window_start = excluded.window_start,
			reset_at = excluded.reset_at
	`, state.Endpoint, string(state.Scope), state.ScopeID,
		state.RequestsRemaining, state.WindowStart.UTC().Unix(), state.ResetAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store rate limit state: %w", err)
	}

	return nil
}

// ListRateLimitStates returns every stored window, ordered by endpoint
// then scope.
func (s *Store) ListRateLimitStates(ctx context.Context) ([]core.RateLimitState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT endpoint, scope, scope_id, requests_remaining, window_start, reset_at
		FROM rate_limit_states
		ORDER BY endpoint, scope, scope_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list rate limit states: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	var states []core.RateLimitState
	for rows.Next() {
		var (
			state       core.RateLimitState
			scope       string
			windowStart int64
			resetAt     int64
		)
		if err := rows.Scan(&state.Endpoint, &scope, &state.ScopeID, &state.RequestsRemaining, &windowStart, &resetAt); err != nil {
			return nil, fmt.Errorf("scan rate limit state: %w", err)
		}
		state.Scope = core.Scope(scope)
		state.WindowStart = time.Unix(windowStart, 0).UTC()
		state.ResetAt = time.Unix(resetAt, 0).UTC()
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limit states: %w", err)
	}

	return states, nil
}

// ResetRateLimitStates deletes stored windows. An empty endpoint resets
// everything; otherwise only the matching endpoint is cleared. Returns
// the number of rows removed.
func (s *Store) ResetRateLimitStates(ctx context.Context, endpoint string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result sql.Result
		err    error
	)
	if endpoint == "" {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM rate_limit_states`)
	} else {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM rate_limit_states WHERE endpoint = ?`, endpoint)
	}
	if err != nil {
		return 0, fmt.Errorf("reset rate limit states: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count reset rate limit states: %w", err)
	}
	return deleted, nil
}
