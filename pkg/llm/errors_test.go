package llm

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"auth 401", errors.New("HTTP 401 Unauthorized"), ErrorTypeAuth, false},
		{"bad api key", errors.New("invalid api key provided"), ErrorTypeAuth, false},
		{"rate limit", errors.New("429 too many requests"), ErrorTypeEndpoint, true},
		{"overloaded", errors.New("overloaded_error"), ErrorTypeEndpoint, true},
		{"server error", errors.New("HTTP 503 service unavailable"), ErrorTypeEndpoint, true},
		{"connection", errors.New("dial tcp: connection refused"), ErrorTypeEndpoint, true},
		{"model missing", errors.New("model gpt-5-ultra not found"), ErrorTypeModel, false},
		{"other", errors.New("something odd"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("ClassifyError type = %s, want %s", got.Type, tt.wantType)
			}
			if got.IsRetryable() != tt.retryable {
				t.Errorf("ClassifyError retryable = %v, want %v", got.IsRetryable(), tt.retryable)
			}
		})
	}
}

func TestClassifyError_PreservesStructuredErrors(t *testing.T) {
	orig := NewError(ErrorTypeResponse, "empty completion", true, nil)
	got := ClassifyError(orig)
	if got != orig {
		t.Error("ClassifyError should return an existing *Error unchanged")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(ErrorTypeEndpoint, "endpoint down", true, cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}
