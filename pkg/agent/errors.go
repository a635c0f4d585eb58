package agent

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError marks a provider call failure known to be transient, such
// as an attempt timeout or a dropped connection.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an error is worth retrying: transport errors,
// rate limits and server-side failures. Anything else (auth failures, bad
// requests) fails permanently.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		return true
	}

	errMsg := err.Error()

	// Network errors
	if strings.Contains(errMsg, "ECONNRESET") || strings.Contains(errMsg, "ETIMEDOUT") ||
		strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "timeout") {
		return true
	}

	// Rate limits
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") {
		return true
	}

	// Server errors
	if strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") || strings.Contains(errMsg, "504") {
		return true
	}

	return false
}
