package providers

import (
	"errors"
	"testing"
)

func TestNewGroqProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewGroqProvider(GroqConfig{})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewGroqProvider_Defaults(t *testing.T) {
	p, err := NewGroqProvider(GroqConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "llama-3.3-70b-versatile" {
		t.Fatalf("expected default model llama-3.3-70b-versatile, got %q", p.defaultModel)
	}
	if p.Name() != "groq" {
		t.Fatalf("expected name groq, got %q", p.Name())
	}
}

func TestRecoverInlineFunctionCalls_WellFormed(t *testing.T) {
	text := `Sure, let me check that. <function=get_weather>{"city": "Boston", "unit": "f"}</function>`
	calls, err := recoverInlineFunctionCalls(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "get_weather" {
		t.Fatalf("expected get_weather, got %q", calls[0].Name)
	}
	if calls[0].Args["city"] != "Boston" {
		t.Fatalf("expected city Boston, got %v", calls[0].Args["city"])
	}
}

func TestRecoverInlineFunctionCalls_MissingClosingTag(t *testing.T) {
	text := `<function=complete_mission>{"summary": "done"}`
	calls, err := recoverInlineFunctionCalls(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0].Name != "complete_mission" {
		t.Fatalf("expected recovered complete_mission call, got %+v", calls)
	}
}

func TestRecoverInlineFunctionCalls_NestedObject(t *testing.T) {
	text := `<function=share_finding>{"topic": "x", "payload": {"nested": {"deep": 1}}}</function>`
	calls, err := recoverInlineFunctionCalls(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	payload, ok := calls[0].Args["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested payload object, got %T", calls[0].Args["payload"])
	}
	if _, ok := payload["nested"]; !ok {
		t.Fatal("expected nested key to survive brace balancing")
	}
}

func TestRecoverInlineFunctionCalls_NoMatch(t *testing.T) {
	calls, err := recoverInlineFunctionCalls("just a plain text response, no tool calls here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != nil {
		t.Fatalf("expected nil calls, got %+v", calls)
	}
}

func TestBalanceBraces_Unbalanced(t *testing.T) {
	_, ok := balanceBraces(`{"a": "b"`, 0)
	if ok {
		t.Fatal("expected unbalanced braces to fail")
	}
}

func TestBalanceBraces_StringWithEscapedQuote(t *testing.T) {
	s := `{"msg": "he said \"hi\""}`
	result, ok := balanceBraces(s, 0)
	if !ok {
		t.Fatalf("expected balanced braces, got unbalanced for %q", s)
	}
	if result != s {
		t.Fatalf("expected full string returned, got %q", result)
	}
}

func TestIsRetryableGroqError(t *testing.T) {
	if !isRetryableGroqError(errors.New("503 Service Unavailable")) {
		t.Fatal("expected 503 to be retryable")
	}
	if isRetryableGroqError(errors.New("invalid request: missing model")) {
		t.Fatal("expected validation error to not be retryable")
	}
}
