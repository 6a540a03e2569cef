package discord

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyGone reports that the referenced message no longer exists
// server-side (a stale search index entry).
var ErrAlreadyGone = errors.New("message already gone")

// ErrForbidden reports that the message cannot be acted on: missing
// permissions or an archived/locked container. Never retried.
var ErrForbidden = errors.New("action not permitted")

// RateLimitedError is returned when the API answers 429. RetryAfter carries
// the server-suggested wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// NotReadyError is returned when the search index is still being built
// (HTTP 202). RetryAfter carries the server-suggested wait.
type NotReadyError struct {
	RetryAfter time.Duration
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("search index not ready, retry after %s", e.RetryAfter)
}

// StatusError is returned for any other non-success response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}
