package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx,
// network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// UnauthorizedError marks an authorization failure (401/403-equivalent).
// These abort retries immediately: repeating the call cannot succeed until
// credentials change.
type UnauthorizedError struct {
	Err        error
	StatusCode int
}

func (e *UnauthorizedError) Error() string {
	return e.Err.Error()
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Err
}

// NewUnauthorizedError wraps an error as an authorization failure.
func NewUnauthorizedError(err error, statusCode int) *UnauthorizedError {
	return &UnauthorizedError{Err: err, StatusCode: statusCode}
}

// IsUnauthorized reports whether the error chain contains an authorization
// failure.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
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
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsRetryable is the default retry predicate for provider calls: everything
// retries except authorization failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsUnauthorized(err)
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

// IsUnauthorizedHTTPStatus returns true for authentication/authorization
// status codes that must not be retried.
func IsUnauthorizedHTTPStatus(statusCode int) bool {
	return statusCode == 401 || statusCode == 403
}
