package client

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Common errors returned by the client and the pagination loop built on it.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a
	// wait or an in-flight attempt.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrInvalidURL matches requests that could not be built from their URL.
	ErrInvalidURL = errors.New("invalid request url")

	// ErrNetwork matches connection failures and timeouts.
	ErrNetwork = errors.New("network error")

	// ErrServer matches 5xx responses.
	ErrServer = errors.New("server error")

	// ErrRateLimited matches a forbidden response with an exhausted quota.
	ErrRateLimited = errors.New("rate limit exhausted")

	// ErrAuthentication matches 401 responses. Never retried.
	ErrAuthentication = errors.New("authentication rejected")

	// ErrMalformedResponse matches bodies that are not usable structured data.
	ErrMalformedResponse = errors.New("malformed response body")

	// ErrHTTPStatus matches any other non-success status.
	ErrHTTPStatus = errors.New("unexpected http status")
)

// APIError represents a failed attempt against the remote API with its classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's class.
func (e *APIError) Is(target error) bool {
	return target != nil && target == sentinelFor(e.ErrorClass)
}

func sentinelFor(class ErrorClass) error {
	switch class {
	case ErrorClassNetwork:
		return ErrNetwork
	case ErrorClassServer:
		return ErrServer
	case ErrorClassRateLimit:
		return ErrRateLimited
	case ErrorClassAuth:
		return ErrAuthentication
	case ErrorClassMalformed:
		return ErrMalformedResponse
	case ErrorClassClient:
		return ErrHTTPStatus
	case ErrorClassRequest:
		return ErrInvalidURL
	case ErrorClassCancelled:
		return ErrContextCancelled
	default:
		return nil
	}
}

// ShouldRetry reports whether a page request failing with the given class
// is attempted again. Every other class ends the fetch.
func ShouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	case ErrorClassRateLimit:
		// Rate-limit waits are scheduling delays, not failures.
		return true
	default:
		return false
	}
}

// apiMessage returns the "message" field of a JSON error body, or "".
func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Message
}
