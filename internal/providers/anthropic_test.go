package providers

import (
	"errors"
	"testing"
)

func TestNewAnthropicProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(AnthropicConfig{})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewAnthropicProvider_Defaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "claude-3-5-sonnet-20241022" {
		t.Fatalf("expected default model claude-3-5-sonnet-20241022, got %q", p.defaultModel)
	}
	if p.Name() != "anthropic" {
		t.Fatalf("expected name anthropic, got %q", p.Name())
	}
}

func TestNewAnthropicProvider_CustomModel(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", DefaultModel: "claude-3-opus-20240229"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "claude-3-opus-20240229" {
		t.Fatalf("expected claude-3-opus-20240229, got %q", p.defaultModel)
	}
}

func TestIsRetryableAnthropicError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("overloaded_error: the service is temporarily overloaded"), true},
		{errors.New("429 rate_limit_error"), true},
		{errors.New("authentication_error: invalid x-api-key"), false},
	}
	for _, c := range cases {
		if got := isRetryableAnthropicError(c.err); got != c.want {
			t.Errorf("isRetryableAnthropicError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestToAnthropicTools_CarriesSchema(t *testing.T) {
	tools := []ToolDef{
		{
			Name:        "complete_mission",
			Description: "Finalize the mission with a summary",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"summary": map[string]any{"type": "string"}},
				"required":   []any{"summary"},
			},
		},
	}
	out := toAnthropicTools(tools)
	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	if out[0].OfTool == nil || out[0].OfTool.Name != "complete_mission" {
		t.Fatalf("expected complete_mission tool param, got %+v", out[0])
	}
}
