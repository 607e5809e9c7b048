package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrProviderUnavailable, "provider down").
		WithCause(root).
		WithRetryable(true).
		WithAgentID("motivation_analyst")

	if GetErrorCode(err) != ErrProviderUnavailable {
		t.Fatalf("expected code %s, got %s", ErrProviderUnavailable, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_RetryabilityByConstructor(t *testing.T) {
	t.Parallel()

	if !IsRetryable(NewRateLimitError("slow down")) {
		t.Fatalf("rate limit must be retryable")
	}
	if !IsRetryable(NewProviderUnavailableError("502")) {
		t.Fatalf("provider unavailable must be retryable")
	}
	if IsRetryable(NewParseError("bad json")) {
		t.Fatalf("parse errors must never be retryable")
	}
	if IsRetryable(NewSchemaError("missing field")) {
		t.Fatalf("schema errors must never be retryable")
	}
	if IsRetryable(NewBudgetError("ceiling reached")) {
		t.Fatalf("budget errors must never be retryable")
	}
}

func TestAsError_WrapsForeignErrors(t *testing.T) {
	t.Parallel()

	if AsError(nil) != nil {
		t.Fatalf("nil in, nil out")
	}

	plain := errors.New("boom")
	wrapped := AsError(plain)
	if wrapped.Code != ErrInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %s", wrapped.Code)
	}
	if !errors.Is(wrapped, plain) {
		t.Fatalf("expected cause to be preserved")
	}

	structured := NewParseError("bad")
	if AsError(structured) != structured {
		t.Fatalf("structured errors pass through unchanged")
	}
}
