// Package providers implements the concrete LLM backends behind the
// runner's uniform generation contract: Generate(system, userMessage,
// tools) -> (text, functionCalls, usage). Two backends exist — Google's
// Gemini API and Groq's OpenAI-compatible chat completions endpoint — plus
// a third, Anthropic's Claude, offered as an additional model slot. All
// three share one process-wide HTTP client so TLS handshakes and
// connection pooling are amortized across every provider call, not just
// calls to the same backend.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Usage reports token accounting for one generation call. OutputTokens may
// be zero for providers that don't report it; TotalTokens is always the
// sum the runner uses for cost and TPM accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// ToolDef describes a callable tool in provider-neutral form. Parameters
// is a JSON Schema object held as a plain map; each backend converts it
// into its own, slightly different envelope.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Provider is the uniform contract the runner calls through. Every
// concrete backend converts ToolDef/FunctionCall to and from its own wire
// format internally; the runner never sees provider-specific types.
type Provider interface {
	// Name is the stable lowercase provider identifier used for routing,
	// the provider registry, and logging (e.g. "google", "groq").
	Name() string

	// Generate runs one completion turn against modelID (the provider's
	// own model identifier, e.g. "gemini-1.5-flash" or
	// "llama-3.3-70b-versatile"; empty uses the provider's default).
	// tools may be empty. Function calls returned may be zero or more;
	// usage may be nil if the backend did not report token counts for
	// this call.
	Generate(ctx context.Context, modelID, systemPrompt, userMessage string, tools []ToolDef) (text string, calls []FunctionCall, usage *Usage, err error)
}

// SharedHTTPClient is the single *http.Client reused by every provider
// adapter. Industry standard: one client per process, not per request —
// reusing it keeps connections warm across calls to the same host.
func SharedHTTPClient() *http.Client {
	return sharedClient
}

var sharedClient = &http.Client{
	Timeout: 90 * time.Second,
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 20,
	},
}

// Error is a structured provider failure: which backend, which model, and
// the underlying cause. The runner logs Error() and propagates it as the
// mission's failure reason without needing to know the provider's own
// error shape.
type Error struct {
	Provider string
	Model    string
	Status   int
	Cause    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s[%s]: status %d: %v", e.Provider, e.Model, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Provider, e.Model, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause as a provider Error.
func NewError(provider, model string, cause error) *Error {
	return &Error{Provider: provider, Model: model, Cause: cause}
}

// WithStatus sets the HTTP status code associated with the failure.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}
