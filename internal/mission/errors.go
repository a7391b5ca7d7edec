package mission

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for mission runner operations.
var (
	// ErrCircularRecursion indicates an agent attempted to spawn itself,
	// directly or through its lineage.
	ErrCircularRecursion = errors.New("circular recursion detected")

	// ErrDepthLimitExceeded indicates a spawn_subagent call would exceed
	// MaxSwarmDepth.
	ErrDepthLimitExceeded = errors.New("swarm depth limit exceeded")

	// ErrBudgetExhausted indicates the mission's cost has reached or
	// exceeded its configured budget.
	ErrBudgetExhausted = errors.New("mission budget exhausted")

	// ErrOversightRejected indicates a human reviewer rejected a gated
	// tool call or capability proposal.
	ErrOversightRejected = errors.New("rejected by oversight")

	// ErrMissionNotFound indicates a lookup against a mission ID with no
	// matching record.
	ErrMissionNotFound = errors.New("mission not found")

	// ErrAgentNotFound indicates a lookup against an agent ID with no
	// matching record.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrSandboxViolation indicates a filesystem tool attempted to
	// escape its workspace root.
	ErrSandboxViolation = errors.New("path sandbox violation")
)

// ToolErrorType categorizes tool execution failures for retry decisions
// and for the error kind surfaced at the HTTP boundary.
type ToolErrorType string

const (
	ToolErrorNotFound     ToolErrorType = "not_found"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorNetwork      ToolErrorType = "network"
	ToolErrorPermission   ToolErrorType = "permission"
	ToolErrorRateLimit    ToolErrorType = "rate_limit"
	ToolErrorSandbox      ToolErrorType = "sandbox"
	ToolErrorHook         ToolErrorType = "hook"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorUnknown      ToolErrorType = "unknown"
)

// IsRetryable reports whether this error type suggests a retry could
// succeed. Timeout, network, and rate-limit failures are transient;
// everything else reflects a structural problem that a retry won't fix.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrorTimeout, ToolErrorNetwork, ToolErrorRateLimit:
		return true
	default:
		return false
	}
}

// ToolError is a structured failure from executing one tool call, carrying
// its type, a Retryable flag derived from that type, and the context for
// the mission log entry it produces. The runner does not retry a failed
// tool call.
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
	Retryable  bool
	Attempts   int
}

func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempts=%d)", e.Attempts))
	}
	return strings.Join(parts, " ")
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError wraps cause as a ToolError, inferring its type from the
// cause's message via classifyToolError.
func NewToolError(toolName string, cause error) *ToolError {
	err := &ToolError{ToolName: toolName, Cause: cause, Type: ToolErrorUnknown, Attempts: 1}
	if cause != nil {
		err.Message = cause.Error()
		err.Type = classifyToolError(cause)
		err.Retryable = err.Type.IsRetryable()
	}
	return err
}

// WithToolCallID sets the tool call ID for correlating the error with a
// specific dispatch.
func (e *ToolError) WithToolCallID(id string) *ToolError {
	e.ToolCallID = id
	return e
}

// WithAttempts sets the number of attempts already made.
func (e *ToolError) WithAttempts(n int) *ToolError {
	e.Attempts = n
	return e
}

// classifyToolError heuristically buckets a raw error by its message, for
// the many tool failures (subprocess exits, HTTP calls) that surface only
// as plain errors rather than already-typed ones.
func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}
	if errors.Is(err, ErrSandboxViolation) {
		return ToolErrorSandbox
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ToolErrorTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") || strings.Contains(msg, "refused") || strings.Contains(msg, "unreachable"):
		return ToolErrorNetwork
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ToolErrorRateLimit
	case strings.Contains(msg, "permission") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "unauthorized"):
		return ToolErrorPermission
	case strings.Contains(msg, "security fault") || strings.Contains(msg, "sandbox"):
		return ToolErrorSandbox
	case strings.Contains(msg, "hook"):
		return ToolErrorHook
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "required") || strings.Contains(msg, "missing"):
		return ToolErrorInvalidInput
	case strings.Contains(msg, "not found"):
		return ToolErrorNotFound
	default:
		return ToolErrorExecution
	}
}

// IsToolError reports whether err is or wraps a *ToolError.
func IsToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}

// GetToolError extracts a *ToolError from err's chain.
func GetToolError(err error) (*ToolError, bool) {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}
