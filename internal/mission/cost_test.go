package mission

import "testing"

func TestCalculateCost_GeminiFlash(t *testing.T) {
	got := CalculateCost("gemini-1.5-flash", 10000, 10000)
	want := 0.00375
	if diff := got - want; diff > 1e-10 || diff < -1e-10 {
		t.Fatalf("CalculateCost(gemini-1.5-flash, 10000, 10000) = %v, want %v", got, want)
	}
}

func TestCalculateCost_UnknownModelFallsBackToUnknownRate(t *testing.T) {
	got := CalculateCost("some-model-nobody-has-heard-of", 1000, 1000)
	want := 0.008
	if diff := got - want; diff > 1e-10 || diff < -1e-10 {
		t.Fatalf("CalculateCost(unknown, 1000, 1000) = %v, want %v", got, want)
	}
}

func TestCalculateCost_GPT4o(t *testing.T) {
	got := CalculateCost("gpt-4o", 1000, 1000)
	want := 0.02
	if diff := got - want; diff > 1e-10 || diff < -1e-10 {
		t.Fatalf("CalculateCost(gpt-4o, 1000, 1000) = %v, want %v", got, want)
	}
}

func TestCalculateCost_ZeroTokens(t *testing.T) {
	if got := CalculateCost("gpt-4o", 0, 0); got != 0 {
		t.Fatalf("expected zero cost for zero tokens, got %v", got)
	}
}
