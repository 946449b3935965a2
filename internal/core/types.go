// Package core defines the shared domain types for chirpwire.
package core

import "time"

// Scope identifies the unit a quota is counted against.
type Scope string

const (
	// ScopeUser counts requests against the authenticated user.
	ScopeUser Scope = "user"
	// ScopeApp counts requests against the calling application.
	ScopeApp Scope = "app"
)

// RateLimit is one quota rule: Rate requests per Period within a scope.
type RateLimit struct {
	Rate   int
	Period time.Duration
	Scope  Scope
}

// EndpointLimits holds the quota rules and request parameters for one
// endpoint identifier. Nil limits mean the scope is not quota-tracked.
type EndpointLimits struct {
	UserLimit      *RateLimit
	AppLimit       *RateLimit
	MaxResults     int
	MaxQueryLength int
}

// Limit returns the rule for the given scope, or nil if unconfigured.
func (e EndpointLimits) Limit(scope Scope) *RateLimit {
	switch scope {
	case ScopeUser:
		return e.UserLimit
	case ScopeApp:
		return e.AppLimit
	default:
		return nil
	}
}

// RateLimitState tracks the current window for one (endpoint, scope,
// scope id) triple. Instances are created lazily on first touch and live
// for the lifetime of the owning limiter.
type RateLimitState struct {
	Endpoint          string    `json:"endpoint"`
	Scope             Scope     `json:"scope"`
	ScopeID           string    `json:"scope_id"`
	RequestsRemaining int       `json:"requests_remaining"`
	WindowStart       time.Time `json:"window_start"`
	ResetAt           time.Time `json:"reset_at"`
}

// Credentials is a long-lived access token pair. Replaced wholesale on
// re-authentication, never mutated in place.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	AccessSecret string `json:"access_secret"`
}

// UploadSession tracks one chunked upload from INIT through FINALIZE.
type UploadSession struct {
	MediaID      string
	TotalBytes   int64
	BytesSent    int64
	SegmentIndex int
}
