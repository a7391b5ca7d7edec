package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// GroqConfig configures a GroqProvider.
type GroqConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// GroqProvider talks to Groq's OpenAI-compatible chat completions
// endpoint via sashabaranov/go-openai pointed at Groq's base URL.
//
// Some Groq-hosted open models (notably Llama) occasionally emit tool
// calls as inline text in the form <function=NAME>{...}</function>
// instead of populating the API's structured tool_calls field. Generate
// recovers these with a regex pass and retries once with a correction
// message if the recovered JSON is malformed.
type GroqProvider struct {
	client       *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewGroqProvider constructs a GroqProvider.
func NewGroqProvider(cfg GroqConfig) (*GroqProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq provider: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = SharedHTTPClient()

	return &GroqProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: model,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
	}, nil
}

// Name implements Provider.
func (p *GroqProvider) Name() string { return "groq" }

// Generate implements Provider.
func (p *GroqProvider) Generate(ctx context.Context, modelID, systemPrompt, userMessage string, tools []ToolDef) (string, []FunctionCall, *Usage, error) {
	model := modelID
	if model == "" {
		model = p.defaultModel
	}

	messages := []openai.ChatCompletionMessage{}
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMessage})

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    toOpenAITools(tools),
	}

	var resp openai.ChatCompletionResponse
	err := retryWithBackoff(ctx, p.maxRetries, p.retryDelay, isRetryableGroqError, func() error {
		var reqErr error
		resp, reqErr = p.client.CreateChatCompletion(ctx, req)
		return reqErr
	})
	if err != nil {
		return "", nil, nil, NewError("groq", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, nil, NewError("groq", model, fmt.Errorf("empty choices in response"))
	}

	msg := resp.Choices[0].Message
	text := msg.Content
	calls, err := structuredOrRecoveredCalls(msg)
	if err != nil {
		// One retry with an explicit correction instruction, matching the
		// teacher's recovery contract for malformed inline tool calls.
		messages = append(messages, msg, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "CRITICAL ERROR: Your previous tool call was malformed. Please fix the JSON syntax and try again. Ensure all arguments are inside the brackets and there are no stray characters.",
		})
		req.Messages = messages
		resp, err = p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", nil, nil, NewError("groq", model, err)
		}
		if len(resp.Choices) == 0 {
			return "", nil, nil, NewError("groq", model, fmt.Errorf("empty choices on retry"))
		}
		msg = resp.Choices[0].Message
		text = msg.Content
		calls, err = structuredOrRecoveredCalls(msg)
		if err != nil {
			return text, nil, usageFromOpenAI(resp.Usage), NewError("groq", model, fmt.Errorf("tool call recovery failed after retry: %w", err))
		}
	}

	return text, calls, usageFromOpenAI(resp.Usage), nil
}

func structuredOrRecoveredCalls(msg openai.ChatCompletionMessage) ([]FunctionCall, error) {
	if len(msg.ToolCalls) > 0 {
		calls := make([]FunctionCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					return nil, fmt.Errorf("malformed structured tool call arguments: %w", err)
				}
			}
			calls = append(calls, FunctionCall{Name: tc.Function.Name, Args: args})
		}
		return calls, nil
	}
	return recoverInlineFunctionCalls(msg.Content)
}

// inlineFunctionCallPattern matches the malformed-but-recoverable shape
// some Groq-hosted models emit instead of structured tool calls:
// <function=name>{...json...}</function>, tolerating a missing closing
// tag and stray characters between the name and the opening brace.
var inlineFunctionCallPattern = regexp.MustCompile(`(?s)<function=([a-zA-Z0-9_-]+)[^{]*(\{.*?\})[^<]*(?:</function>)?`)

// recoverInlineFunctionCalls extracts <function=NAME>{...}</function>
// blocks from free-form text. Brace-balancing handles arguments that
// contain nested objects, which the pattern's non-greedy match alone
// would truncate.
func recoverInlineFunctionCalls(text string) ([]FunctionCall, error) {
	matches := inlineFunctionCallPattern.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return nil, nil
	}

	var calls []FunctionCall
	for _, m := range matches {
		name := text[m[2]:m[3]]
		braceStart := m[4]
		jsonStr, ok := balanceBraces(text, braceStart)
		if !ok {
			return nil, fmt.Errorf("unbalanced braces in inline call for %q", name)
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(jsonStr), &args); err != nil {
			return nil, fmt.Errorf("malformed inline call arguments for %q: %w", name, err)
		}
		calls = append(calls, FunctionCall{Name: name, Args: args})
	}
	return calls, nil
}

// balanceBraces walks forward from the first '{' at start and returns the
// substring through its matching close brace, respecting quoted strings
// and escapes so braces inside string values don't throw off the count.
func balanceBraces(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func toOpenAITools(tools []ToolDef) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func usageFromOpenAI(u openai.Usage) *Usage {
	return &Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}

func isRetryableGroqError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "connection reset"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Transcribe sends audio to Groq's Whisper-compatible transcription
// endpoint. This is the optional secondary capability the spec allows
// any OpenAI-style provider to offer beyond text generation.
func (p *GroqProvider) Transcribe(ctx context.Context, audio []byte, filename, model string) (string, error) {
	if model == "" {
		model = "whisper-large-v3"
	}
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", NewError("groq", model, err)
	}
	return resp.Text, nil
}
