// Package resilience provides retry with backoff and the error taxonomy
// used across the pipeline's external-call sites.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ConfigError marks missing or malformed credentials/schema. Fatal, never
// retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// AuthError marks an upstream rejecting credentials. Fatal for that
// dependency; the orchestrator decides whether it is fatal for the run.
type AuthError struct {
	Service string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.Service, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError marks a 429-class rejection. Retryable with backoff.
type RateLimitError struct {
	Service string
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%s): %v", e.Service, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NetworkError marks a timeout or connection failure. Retryable for a
// bounded number of attempts, then treated as a soft per-item failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DataError marks a malformed record. The one record is skipped and the
// batch continues.
type DataError struct {
	Record string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error (%s): %v", e.Record, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// IsConfig reports whether err carries a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsAuth reports whether err carries an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimit reports whether err carries a RateLimitError.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// IsData reports whether err carries a DataError.
func IsData(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsRetryable reports whether an error is safe to retry: rate limits,
// network-level failures, and common transient patterns from wrapped HTTP
// client errors. Config and auth errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsConfig(err) || IsAuth(err) || IsData(err) {
		return false
	}
	if IsRateLimit(err) {
		return true
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
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

	// String heuristics for errors wrapped by HTTP clients.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RetryableStatus reports whether an HTTP status code indicates a
// transient server-side issue.
func RetryableStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
