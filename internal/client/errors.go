package client

import (
	"fmt"
	"time"
)

// TransientError is a retryable server-side failure: HTTP 502 or a
// transport-level error. The retry policy absorbs these with a fixed
// backoff and bounded attempts.
type TransientError struct {
	Op     string
	Status int // 0 for transport errors
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transient http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// AuthError is a credential failure (HTTP 401, or the authority's in-band
// token rotation). Handled with a single refresh-and-retry; fatal if the
// refresh fails or the retried call still rejects the credentials.
type AuthError struct {
	Op     string
	Status int
	// TokensRotated means the authority already handed out a fresh pair
	// via Set-Cookie; retry with the adopted tokens, no refresh needed.
	TokensRotated bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth rejected (http %d)", e.Op, e.Status)
}

// FatalError is any other non-2xx response. Never retried.
type FatalError struct {
	Op     string
	Status int
	Body   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
}

// RetryExhausted means the transient retry budget ran out. Cycle-level
// failure, not process-fatal.
type RetryExhausted struct {
	Op       string
	Attempts int
	Last     error
}

func (e *RetryExhausted) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *RetryExhausted) Unwrap() error { return e.Last }

// TooEarlyError is the authority telling us our pixel quota is spent and
// when the next pixel frees up. Not a failure of the call itself; the
// scheduler ends the batch and waits out the hint.
type TooEarlyError struct {
	RetryAfter time.Duration
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("too early: next pixel in %s", e.RetryAfter)
}
