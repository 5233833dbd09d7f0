package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx,
// network timeout).
type TransientError struct {
	Err        error
	StatusCode int
	// Throttled marks provider throttling, which is retried indefinitely
	// with a long randomized sleep rather than counted against attempts.
	Throttled bool
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status
// code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// NewThrottleError wraps a provider throttling error.
func NewThrottleError(err error) *TransientError {
	return &TransientError{Err: err, StatusCode: 429, Throttled: true}
}

// ErrInputTooLong signals the model rejected the prompt for size; the caller
// must shrink the input and retry.
var ErrInputTooLong = errors.New("input is too long")

// ErrMalformedOutput signals the completion was missing its result tag or
// failed to parse; the caller retries a bounded number of times.
var ErrMalformedOutput = errors.New("malformed model output")

// IsThrottled reports whether the error chain contains a throttling error.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) && te.Throttled {
		return true
	}
	msg := strings.ToUpper(err.Error())
	for _, p := range []string{"THROTTLING", "RATE_LIMIT_ERROR", "TOO MANY REQUESTS", "OVERLOADED_ERROR"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsInputTooLong reports whether the error chain contains an input-size
// rejection.
func IsInputTooLong(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInputTooLong) {
		return true
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "INPUT IS TOO LONG") ||
		strings.Contains(msg, "PROMPT IS TOO LONG")
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
		"invalid response status",
		"503",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// ThrottleDelay returns the randomized 10-30s backoff applied before
// retrying a throttled model call or reconnecting to the graph.
func ThrottleDelay() time.Duration {
	return time.Duration(10+rand.IntN(21)) * time.Second
}

// Sleep waits for d, returning early with the context error if ctx is
// canceled first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
