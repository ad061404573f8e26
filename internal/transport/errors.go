package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Common transport error types
var (
	ErrCircuitOpen = errors.New("circuit open")
	ErrConnection  = errors.New("connection error")
	ErrRateLimited = errors.New("rate limited")
	ErrTimeout     = errors.New("request timed out")
)

// ConnectionError wraps a failed network attempt with its transience class.
type ConnectionError struct {
	URL       string
	Transient bool
	Err       error
}

func (e *ConnectionError) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("%v (%s): %s: %v", ErrConnection, class, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return ErrConnection
}

// HTTPError represents a non-success HTTP status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("http status %d: %s", e.Status, body)
}

// NewConnectionError classifies err and wraps it. Timeouts, resets and
// refused connections are transient; everything else is permanent.
func NewConnectionError(url string, err error) *ConnectionError {
	return &ConnectionError{URL: url, Transient: classifyTransient(err), Err: err}
}

func classifyTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// url.Error wrapping loses syscall identity on some platforms.
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused")
}

// IsTransient reports whether err belongs to the retryable failure class:
// timeouts, connection resets, 5xx responses, and 429 rate limits.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Transient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500 || httpErr.Status == 429
	}

	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}
