package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("api call failed: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("invalid input: missing field")
	if IsTransient(err) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsUnauthorized(t *testing.T) {
	err := NewUnauthorizedError(errors.New("forbidden"), 403)
	if !IsUnauthorized(err) {
		t.Error("expected UnauthorizedError to be detected")
	}
	wrapped := fmt.Errorf("endato: %w", err)
	if !IsUnauthorized(wrapped) {
		t.Error("expected wrapped UnauthorizedError to be detected")
	}
	if IsUnauthorized(errors.New("other")) {
		t.Error("plain error should not be unauthorized")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error is not retryable")
	}
	if !IsRetryable(errors.New("malformed json")) {
		t.Error("non-auth failures are retryable by default")
	}
	if IsRetryable(NewUnauthorizedError(errors.New("bad key"), 401)) {
		t.Error("auth failures must not be retryable")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestIsUnauthorizedHTTPStatus(t *testing.T) {
	if !IsUnauthorizedHTTPStatus(401) || !IsUnauthorizedHTTPStatus(403) {
		t.Error("401/403 are authorization failures")
	}
	if IsUnauthorizedHTTPStatus(404) {
		t.Error("404 is not an authorization failure")
	}
}
