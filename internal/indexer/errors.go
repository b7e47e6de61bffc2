package indexer

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports that the upstream has no such resource. Never retried.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput reports a malformed id or parameter. Fails fast, no
// network call is made.
var ErrInvalidInput = errors.New("invalid input")

// RateLimitedError reports that a request could not be admitted within the
// configured wait ceiling, or that the upstream returned 429 after local
// admission. RetryAfter is a hint; zero means none was provided.
type RateLimitedError struct {
	Endpoint   string
	RetryAfter time.Duration
	Upstream   bool
}

func (e *RateLimitedError) Error() string {
	if e.Upstream {
		return fmt.Sprintf("rate limited by upstream on %s (retry after %s)", e.Endpoint, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit budget exhausted for %s", e.Endpoint)
}

// UpstreamError is a non-2xx response from the social-graph API.
// Retryable errors (5xx, timeouts) are handled by the transport; a
// surfaced UpstreamError is terminal for the call.
type UpstreamError struct {
	Endpoint  string
	Status    int
	Retryable bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d on %s", e.Status, e.Endpoint)
}

// UnavailableError reports retry-budget exhaustion on transient failures.
type UnavailableError struct {
	Endpoint string
	Attempts int
	Last     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("upstream unavailable after %d attempts on %s: %v", e.Attempts, e.Endpoint, e.Last)
}

func (e *UnavailableError) Unwrap() error { return e.Last }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err is an input-validation failure.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsRateLimited reports whether err is a local or upstream rate limit.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// RetryAfterHint extracts the retry-after hint from a rate-limit error,
// or zero if err is not one.
func RetryAfterHint(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// IsUnavailable reports whether err is retry exhaustion against the upstream.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
