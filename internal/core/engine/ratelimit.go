// Package engine implements client-side rate-limit tracking.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/chirpwire/chirpwire/internal/core"
	"github.com/chirpwire/chirpwire/internal/core/limits"
)

// StateStore optionally persists window state across process runs. The
// in-memory map stays authoritative within a process; the store is only
// consulted on the first touch of a key and written after mutations.
type StateStore interface {
	GetRateLimitState(ctx context.Context, endpoint string, scope core.Scope, scopeID string) (*core.RateLimitState, error)
	SaveRateLimitState(ctx context.Context, state *core.RateLimitState) error
}

// RateLimiter tracks quota windows per (endpoint, scope, scope id).
//
// Windows are observer-driven: an expired window is reset on the next
// touch, with the new window starting at the touch time rather than at
// the old reset boundary. No background timer is involved.
//
// All operations hold one mutex, so a single limiter may be shared by
// concurrent callers. Reserve performs the admission check and the
// consumption decrement in the same critical section; callers that need
// the pair to be atomic must use it instead of CheckAdmission followed
// by RecordConsumption.
type RateLimiter struct {
	Table *limits.Table
	Store StateStore
	Clock func() time.Time

	// Logger receives warnings when the optional store misbehaves. The
	// store is best-effort bookkeeping: a read failure falls back to a
	// fresh window and a write failure never blocks a request, but
	// neither is silent.
	Logger *logging.Logger

	mu     sync.Mutex
	states map[string]*core.RateLimitState
}

// ScopeStatus is a read-only snapshot of one scope's window.
type ScopeStatus struct {
	Scope       core.Scope `json:"scope"`
	ScopeID     string     `json:"scope_id"`
	Limit       int        `json:"limit"`
	Remaining   int        `json:"remaining"`
	WindowStart time.Time  `json:"window_start"`
	ResetAt     time.Time  `json:"reset_at"`
}

// New returns a limiter over the given table.
func New(table *limits.Table) *RateLimiter {
	return &RateLimiter{Table: table}
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

type scopeRef struct {
	limit   *core.RateLimit
	scopeID string
}

// scopeRefs resolves which scopes participate for a call: a scope is
// consulted only when it is both configured for the endpoint and
// supplied an id by the caller.
func (r *RateLimiter) scopeRefs(endpoint, userID, appID string) []scopeRef {
	entry, ok := r.Table.Lookup(endpoint)
	if !ok {
		return nil
	}

	var refs []scopeRef
	if entry.UserLimit != nil && userID != "" {
		refs = append(refs, scopeRef{limit: entry.UserLimit, scopeID: userID})
	}
	if entry.AppLimit != nil && appID != "" {
		refs = append(refs, scopeRef{limit: entry.AppLimit, scopeID: appID})
	}
	return refs
}

func stateKey(endpoint string, scope core.Scope, scopeID string) string {
	return fmt.Sprintf("%s:%s:%s", endpoint, scope, scopeID)
}

// getOrCreate must be called with r.mu held.
func (r *RateLimiter) getOrCreate(ctx context.Context, endpoint string, ref scopeRef) *core.RateLimitState {
	key := stateKey(endpoint, ref.limit.Scope, ref.scopeID)
	if state, ok := r.states[key]; ok {
		return state
	}

	if r.states == nil {
		r.states = make(map[string]*core.RateLimitState)
	}

	if r.Store != nil {
		stored, err := r.Store.GetRateLimitState(ctx, endpoint, ref.limit.Scope, ref.scopeID)
		if err != nil {
			r.warnf("failed to load persisted rate limit state, starting a fresh window",
				zap.String("endpoint", endpoint),
				zap.String("scope", string(ref.limit.Scope)),
				zap.Error(err))
		} else if stored != nil {
			r.states[key] = stored
			return stored
		}
	}

	now := r.now()
	state := &core.RateLimitState{
		Endpoint:          endpoint,
		Scope:             ref.limit.Scope,
		ScopeID:           ref.scopeID,
		RequestsRemaining: ref.limit.Rate,
		WindowStart:       now,
		ResetAt:           now.Add(ref.limit.Period),
	}
	r.states[key] = state
	return state
}

// resetIfExpired applies the lazy window reset. A state at or past its
// reset time becomes a fresh window starting now.
func (r *RateLimiter) resetIfExpired(state *core.RateLimitState, limit *core.RateLimit) {
	now := r.now()
	if now.Before(state.ResetAt) {
		return
	}
	state.RequestsRemaining = limit.Rate
	state.WindowStart = now
	state.ResetAt = now.Add(limit.Period)
}

func (r *RateLimiter) exhausted(state *core.RateLimitState) bool {
	return state.RequestsRemaining <= 0 && r.now().Before(state.ResetAt)
}

// CheckAdmission reports whether a call to the endpoint may proceed.
// It returns false only when a configured-and-supplied scope is
// exhausted inside its window; either exhausted scope blocks the call.
// It has no side effects beyond the lazy reset of expired windows.
func (r *RateLimiter) CheckAdmission(ctx context.Context, endpoint, userID, appID string) bool {
	refs := r.scopeRefs(endpoint, userID, appID)
	if len(refs) == 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range refs {
		state := r.getOrCreate(ctx, endpoint, ref)
		r.resetIfExpired(state, ref.limit)
		if r.exhausted(state) {
			return false
		}
	}
	return true
}

// RecordConsumption decrements the remaining count for every configured
// and supplied scope, flooring at zero. Call it once per request
// actually sent, not per admission check.
func (r *RateLimiter) RecordConsumption(ctx context.Context, endpoint, userID, appID string) {
	refs := r.scopeRefs(endpoint, userID, appID)
	if len(refs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range refs {
		state := r.getOrCreate(ctx, endpoint, ref)
		r.resetIfExpired(state, ref.limit)
		if state.RequestsRemaining > 0 {
			state.RequestsRemaining--
		}
		r.persist(ctx, state)
	}
}

// Reserve atomically checks admission and, when admitted, records the
// consumption. It is the strict-mode path: the check and the decrement
// share one critical section, so two concurrent callers cannot both
// pass on the last remaining request. A granted reservation means the
// request will be sent, so consumption counts requests actually sent
// even when persistence fails.
func (r *RateLimiter) Reserve(ctx context.Context, endpoint, userID, appID string) bool {
	refs := r.scopeRefs(endpoint, userID, appID)
	if len(refs) == 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]*core.RateLimitState, len(refs))
	for i, ref := range refs {
		state := r.getOrCreate(ctx, endpoint, ref)
		r.resetIfExpired(state, ref.limit)
		if r.exhausted(state) {
			return false
		}
		states[i] = state
	}

	for _, state := range states {
		if state.RequestsRemaining > 0 {
			state.RequestsRemaining--
		}
		r.persist(ctx, state)
	}
	return true
}

// SyncWindow aligns the local windows for an endpoint with a reset time
// reported by the server. The server answering 429 is authoritative:
// the scopes are marked exhausted until resetAt, after which the lazy
// reset opens a fresh window. This keeps a locally-tracked window from
// outliving the server's and blocking a retry that the server would
// accept.
func (r *RateLimiter) SyncWindow(ctx context.Context, endpoint, userID, appID string, resetAt time.Time) {
	refs := r.scopeRefs(endpoint, userID, appID)
	if len(refs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range refs {
		state := r.getOrCreate(ctx, endpoint, ref)
		state.RequestsRemaining = 0
		state.ResetAt = resetAt
		if resetAt.Before(state.WindowStart) {
			state.WindowStart = resetAt
		}
		r.persist(ctx, state)
	}
}

// Status returns a normalized snapshot per configured-and-supplied
// scope. Expired windows are reset before the snapshot is taken, the
// same normalization the other operations apply.
func (r *RateLimiter) Status(ctx context.Context, endpoint, userID, appID string) []ScopeStatus {
	refs := r.scopeRefs(endpoint, userID, appID)
	if len(refs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]ScopeStatus, 0, len(refs))
	for _, ref := range refs {
		state := r.getOrCreate(ctx, endpoint, ref)
		r.resetIfExpired(state, ref.limit)
		statuses = append(statuses, ScopeStatus{
			Scope:       ref.limit.Scope,
			ScopeID:     ref.scopeID,
			Limit:       ref.limit.Rate,
			Remaining:   state.RequestsRemaining,
			WindowStart: state.WindowStart,
			ResetAt:     state.ResetAt,
		})
	}
	return statuses
}

// persist must be called with r.mu held. Write failures are logged,
// never propagated: the in-memory window already reflects a request
// that will be (or was) sent, and failing the request now would leave
// local quota consumed for nothing.
func (r *RateLimiter) persist(ctx context.Context, state *core.RateLimitState) {
	if r.Store == nil {
		return
	}
	if err := r.Store.SaveRateLimitState(ctx, state); err != nil {
		r.warnf("failed to persist rate limit state",
			zap.String("endpoint", state.Endpoint),
			zap.String("scope", string(state.Scope)),
			zap.Error(err))
	}
}

func (r *RateLimiter) warnf(msg string, fields ...zap.Field) {
	if r.Logger != nil {
		r.Logger.Warn(msg, fields...)
	}
}
