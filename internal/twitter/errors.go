package twitter

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredentials indicates the application consumer key or
// secret is not configured. Fatal; there is nothing to retry.
var ErrMissingCredentials = errors.New("api key and secret are required")

// ErrRateLimitExceeded indicates the dispatch retry budget was
// exhausted while waiting out repeated 429 responses.
var ErrRateLimitExceeded = errors.New("rate limit retry budget exhausted")

// AuthError is a failure during the interactive token exchange.
type AuthError struct {
	// Stage is one of "request_token", "authorize", "access_token".
	Stage string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitedError is returned in strict mode when the local limiter
// refuses admission; no request was sent.
type RateLimitedError struct {
	Endpoint string
	ResetAt  time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s is rate limited locally, window resets at %s", e.Endpoint, e.ResetAt.UTC().Format(time.RFC3339))
}

// RemoteAPIError is a non-2xx response with a message extracted from
// the server's error envelope, or the raw body when no envelope could
// be parsed.
type RemoteAPIError struct {
	StatusCode int
	Message    string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// TransportError is a network-level failure (timeout, DNS, reset). The
// request may or may not have reached the server.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UploadPhase identifies the chunked-upload phase that failed.
type UploadPhase string

const (
	UploadPhaseInit     UploadPhase = "INIT"
	UploadPhaseAppend   UploadPhase = "APPEND"
	UploadPhaseFinalize UploadPhase = "FINALIZE"
)

// UploadError is a chunked-upload failure. The session is abandoned;
// retrying means restarting from INIT.
type UploadError struct {
	Phase      UploadPhase
	StatusCode int
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media upload %s failed: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("media upload %s failed with status %d: %s", e.Phase, e.StatusCode, e.Message)
}

func (e *UploadError) Unwrap() error { return e.Err }
