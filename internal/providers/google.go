package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// GoogleProvider talks to the Gemini API via the official
// google.golang.org/genai client. Generate issues a single non-streaming
// GenerateContent call: the runner wants a complete turn (text + tool
// calls + usage), not a token stream.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewGoogleProvider validates cfg and constructs the genai client.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google provider: API key is required")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-1.5-flash"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google provider: creating client: %w", err)
	}

	return &GoogleProvider{
		client:       client,
		defaultModel: model,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
	}, nil
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Generate implements Provider.
func (p *GoogleProvider) Generate(ctx context.Context, modelID, systemPrompt, userMessage string, tools []ToolDef) (string, []FunctionCall, *Usage, error) {
	model := modelID
	if model == "" {
		model = p.defaultModel
	}

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{toGeminiTool(tools)}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(userMessage, genai.RoleUser),
	}

	var resp *genai.GenerateContentResponse
	err := retryWithBackoff(ctx, p.maxRetries, p.retryDelay, isRetryableGoogleError, func() error {
		var genErr error
		resp, genErr = p.client.Models.GenerateContent(ctx, model, contents, config)
		return genErr
	})
	if err != nil {
		return "", nil, nil, NewError("google", model, err)
	}

	text, calls := extractGeminiResponse(resp)
	usage := extractGeminiUsage(resp)
	return text, calls, usage, nil
}

// CountTokens estimates token count for the given text using Gemini's
// character-based heuristic (~4 characters per token); the runner
// corrects the estimate against actual usage after the call returns.
func (p *GoogleProvider) CountTokens(text string) int {
	return (len(text) + 3) / 4
}

func extractGeminiResponse(resp *genai.GenerateContentResponse) (string, []FunctionCall) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	var calls []FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls = append(calls, FunctionCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	return text.String(), calls
}

func extractGeminiUsage(resp *genai.GenerateContentResponse) *Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	u := resp.UsageMetadata
	return &Usage{
		InputTokens:  int(u.PromptTokenCount),
		OutputTokens: int(u.CandidatesTokenCount),
		TotalTokens:  int(u.TotalTokenCount),
	}
}

// toGeminiTool converts the provider-neutral tool definitions into a
// single genai.Tool carrying one FunctionDeclaration per entry.
func toGeminiTool(tools []ToolDef) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema, _ := mapToGeminiSchema(t.Parameters)
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

// mapToGeminiSchema round-trips a raw JSON-Schema map through genai's
// Schema type. The subset the tool registry produces (object/string/
// number/array/boolean, properties, required) matches genai's schema
// shape directly.
func mapToGeminiSchema(m map[string]any) (*genai.Schema, error) {
	if m == nil {
		return &genai.Schema{Type: genai.TypeObject}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

func isRetryableGoogleError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "connection reset", "unavailable"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryWithBackoff runs op up to maxAttempts times, sleeping
// baseDelay*2^(attempt-1) between attempts, stopping early once
// isRetryable says the last error isn't worth retrying.
func retryWithBackoff(ctx context.Context, maxAttempts int, baseDelay time.Duration, isRetryable func(error) bool, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == maxAttempts {
			return lastErr
		}
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
