// This file implements the Anthropic Claude backend. It is not one of the
// spec's two required providers — it is wired in as a third model slot so
// agents can be bound to Claude for tasks where the operator prefers it,
// using the same uniform Generate contract as Google and Groq.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// AnthropicProvider talks to the Claude Messages API.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewAnthropicProvider constructs an AnthropicProvider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic provider: API key is required")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey), option.WithHTTPClient(SharedHTTPClient()))

	return &AnthropicProvider{
		client:       client,
		defaultModel: model,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
	}, nil
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Generate implements Provider.
func (p *AnthropicProvider) Generate(ctx context.Context, modelID, systemPrompt, userMessage string, tools []ToolDef) (string, []FunctionCall, *Usage, error) {
	model := modelID
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}

	var resp *anthropic.Message
	err := retryWithBackoff(ctx, p.maxRetries, p.retryDelay, isRetryableAnthropicError, func() error {
		var apiErr error
		resp, apiErr = p.client.Messages.New(ctx, params)
		return apiErr
	})
	if err != nil {
		return "", nil, nil, NewError("anthropic", model, err)
	}

	var text strings.Builder
	var calls []FunctionCall
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(variant.Input, &args)
			calls = append(calls, FunctionCall{Name: variant.Name, Args: args})
		}
	}

	usage := &Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return text.String(), calls, usage, nil
}

func toAnthropicTools(tools []ToolDef) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.Parameters["required"]; ok {
			schema.ExtraFields = map[string]any{"required": req}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func isRetryableAnthropicError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate_limit", "429", "500", "502", "503", "504", "overloaded", "timeout"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
