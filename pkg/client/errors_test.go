package client

import (
	"errors"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{name: "client error should not retry", errorClass: ErrorClassClient, expected: false},
		{name: "auth error should not retry", errorClass: ErrorClassAuth, expected: false},
		{name: "malformed body should not retry", errorClass: ErrorClassMalformed, expected: false},
		{name: "server error should retry", errorClass: ErrorClassServer, expected: true},
		{name: "rate limit should retry", errorClass: ErrorClassRateLimit, expected: true},
		{name: "network error should retry", errorClass: ErrorClassNetwork, expected: true},
		{name: "invalid request should not retry", errorClass: ErrorClassRequest, expected: false},
		{name: "cancelled attempt should not retry", errorClass: ErrorClassCancelled, expected: false},
		{name: "empty error class should not retry", errorClass: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ShouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("ShouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
				Message:    "Internal Server Error",
				Err:        errors.New("connection reset"),
			},
			expected: "api server error (status 500): Internal Server Error: connection reset",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "Not Found",
			},
			expected: "api client error (status 404): Not Found",
		},
		{
			name: "auth error",
			apiError: &APIError{
				StatusCode: 401,
				ErrorClass: ErrorClassAuth,
				Message:    "Unauthorized",
				Err:        errors.New("Bad credentials"),
			},
			expected: "api auth error (status 401): Unauthorized: Bad credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.apiError.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAPIError_IsSentinel(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		sentinel error
	}{
		{ErrorClassNetwork, ErrNetwork},
		{ErrorClassServer, ErrServer},
		{ErrorClassRateLimit, ErrRateLimited},
		{ErrorClassAuth, ErrAuthentication},
		{ErrorClassMalformed, ErrMalformedResponse},
		{ErrorClassClient, ErrHTTPStatus},
		{ErrorClassRequest, ErrInvalidURL},
		{ErrorClassCancelled, ErrContextCancelled},
	}

	all := []error{ErrNetwork, ErrServer, ErrRateLimited, ErrAuthentication, ErrMalformedResponse, ErrHTTPStatus, ErrInvalidURL, ErrContextCancelled}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			err := error(&APIError{ErrorClass: tt.class})
			for _, s := range all {
				want := s == tt.sentinel
				if got := errors.Is(err, s); got != want {
					t.Errorf("errors.Is(%s, %v) = %v, want %v", tt.class, s, got, want)
				}
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	apiError := &APIError{
		StatusCode: 500,
		ErrorClass: ErrorClassServer,
		Message:    "server error",
		Err:        wrappedErr,
	}

	if unwrapped := apiError.Unwrap(); unwrapped != wrappedErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, wrappedErr)
	}

	if !errors.Is(apiError, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}
	if !errors.Is(apiError, ErrServer) {
		t.Error("errors.Is should match the class sentinel")
	}
}

func TestAPIMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{body: `{"message": "Bad credentials", "documentation_url": "https://docs"}`, want: "Bad credentials"},
		{body: `{"other": 1}`, want: ""},
		{body: `not json`, want: ""},
		{body: ``, want: ""},
	}

	for _, tt := range tests {
		if got := apiMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("apiMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
