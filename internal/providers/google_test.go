package providers

import (
	"context"
	"errors"
	"testing"
)

func TestNewGoogleProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewGoogleProvider(context.Background(), GoogleConfig{})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewGoogleProvider_Defaults(t *testing.T) {
	p, err := NewGoogleProvider(context.Background(), GoogleConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "gemini-1.5-flash" {
		t.Fatalf("expected default model gemini-1.5-flash, got %q", p.defaultModel)
	}
	if p.Name() != "google" {
		t.Fatalf("expected name google, got %q", p.Name())
	}
}

func TestIsRetryableGoogleError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("context deadline exceeded: timeout"), true},
		{errors.New("invalid API key"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := isRetryableGoogleError(c.err); got != c.want {
			t.Errorf("isRetryableGoogleError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestMapToGeminiSchema_NilDefaultsToObject(t *testing.T) {
	schema, err := mapToGeminiSchema(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema == nil {
		t.Fatal("expected non-nil schema")
	}
}

func TestRetryWithBackoff_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 3, 0, func(error) bool { return false }, func() error {
		calls++
		return errors.New("permanent failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable error, got %d", calls)
	}
}

func TestRetryWithBackoff_RetriesUpToMax(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 3, 0, func(error) bool { return true }, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryWithBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 3, 0, func(error) bool { return true }, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}
