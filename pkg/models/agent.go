// Package models provides the shared domain types for the orchestration
// engine: agents, missions, oversight entries, and the task payload that
// crosses the transport boundary into the runner.
package models

import "time"

// AgentStatus is the lifecycle status of a configured agent.
type AgentStatus string

const (
	AgentStatusIdle     AgentStatus = "idle"
	AgentStatusActive   AgentStatus = "active"
	AgentStatusThinking AgentStatus = "thinking"
	AgentStatusCoding   AgentStatus = "coding"
	AgentStatusSpeaking AgentStatus = "speaking"
)

// TokenUsage tracks cumulative token consumption for an agent.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Add accumulates usage from one generation call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// ModelConfig binds an agent (or a model slot) to a specific provider and
// model identifier, plus any per-agent overrides.
type ModelConfig struct {
	Provider     string   `json:"provider" db:"provider"`
	ModelID      string   `json:"model_id" db:"model_id"`
	APIKey       string   `json:"api_key,omitempty" db:"-"`
	BaseURL      string   `json:"base_url,omitempty" db:"base_url"`
	SystemPrompt string   `json:"system_prompt,omitempty" db:"system_prompt"`
	Temperature  *float64 `json:"temperature,omitempty" db:"temperature"`
	MaxTokens    *int     `json:"max_tokens,omitempty" db:"max_tokens"`
	ExternalID   string   `json:"external_id,omitempty" db:"external_id"`
	RPM          *int     `json:"rpm,omitempty" db:"rpm"`
	RPD          *int     `json:"rpd,omitempty" db:"rpd"`
	TPM          *int     `json:"tpm,omitempty" db:"tpm"`
	TPD          *int     `json:"tpd,omitempty" db:"tpd"`
}

// ProviderConfig describes a registered backend (Google, Groq, ...).
type ProviderConfig struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Protocol       string            `json:"protocol"`
	APIKey         string            `json:"api_key,omitempty"`
	BaseURL        string            `json:"base_url,omitempty"`
	CustomHeaders  map[string]string `json:"custom_headers,omitempty"`
	ExternalID     string            `json:"external_id,omitempty"`
	AudioModel     string            `json:"audio_model,omitempty"`
}

// ModelEntry is a catalog entry in the model registry: a named model bound
// to a provider with its own rate limits.
type ModelEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProviderID string `json:"provider_id"`
	RPM        *int   `json:"rpm,omitempty"`
	RPD        *int   `json:"rpd,omitempty"`
	TPM        *int   `json:"tpm,omitempty"`
	TPD        *int   `json:"tpd,omitempty"`
}

// Agent is a configured LLM persona: identity, model binding, capabilities,
// and governance state. The runner mutates Status, CostUSD and TokensUsed;
// everything else is set at registration or by the configuration endpoint.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Department  string `json:"department"`
	Description string `json:"description"`

	Status AgentStatus `json:"status"`

	ModelID        string      `json:"model_id"`
	Model          ModelConfig `json:"model"`
	ModelSlot2     string      `json:"model_2,omitempty"`
	ModelSlot3     string      `json:"model_3,omitempty"`
	ActiveModelSlot int        `json:"active_model_slot,omitempty"`

	Skills    []string `json:"skills"`
	Workflows []string `json:"workflows"`

	BudgetUSD  float64    `json:"budget_usd"`
	CostUSD    float64    `json:"cost_usd"`
	TokensUsed int64      `json:"tokens_used"`
	TokenUsage TokenUsage `json:"token_usage"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// MissionStatus is the lifecycle state of a Mission.
type MissionStatus string

const (
	MissionPending   MissionStatus = "pending"
	MissionActive    MissionStatus = "active"
	MissionCompleted MissionStatus = "completed"
	MissionFailed    MissionStatus = "failed"
	MissionPaused    MissionStatus = "paused"
)

// Mission is one execution of a user task by a root agent.
type Mission struct {
	ID        string        `json:"id"`
	AgentID   string        `json:"agent_id"`
	Title     string        `json:"title"`
	Status    MissionStatus `json:"status"`
	BudgetUSD float64       `json:"budget_usd"`
	CostUSD   float64       `json:"cost_usd"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// LogSeverity classifies a MissionLog entry.
type LogSeverity string

const (
	SeverityInfo    LogSeverity = "info"
	SeveritySuccess LogSeverity = "success"
	SeverityWarning LogSeverity = "warning"
	SeverityError   LogSeverity = "error"
)

// LogSource identifies who emitted a MissionLog entry.
type LogSource string

const (
	SourceUser           LogSource = "User"
	SourceSystem         LogSource = "System"
	SourceAgent          LogSource = "Agent"
	SourceFinanceAnalyst LogSource = "Finance Analyst"
)

// MissionLog is one append-only audit entry in a mission's timeline.
type MissionLog struct {
	ID        string         `json:"id"`
	MissionID string         `json:"mission_id"`
	AgentID   string         `json:"agent_id"`
	Source    LogSource      `json:"source"`
	Text      string         `json:"text"`
	Severity  LogSeverity    `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SwarmFinding is one entry on a mission's shared findings bulletin board.
type SwarmFinding struct {
	ID        string    `json:"id"`
	MissionID string    `json:"mission_id"`
	AgentID   string    `json:"agent_id"`
	Topic     string    `json:"topic"`
	Finding   string    `json:"finding"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCall is a single function invocation requested by the model, bound to
// the mission/agent that produced it.
type ToolCall struct {
	ID          string         `json:"id"`
	MissionID   string         `json:"mission_id,omitempty"`
	AgentID     string         `json:"agent_id"`
	Skill       string         `json:"skill"`
	Params      map[string]any `json:"params"`
	Department  string         `json:"department,omitempty"`
	Description string         `json:"description,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// CapabilityType distinguishes the two kinds of capability a proposal can add.
type CapabilityType string

const (
	CapabilitySkill    CapabilityType = "skill"
	CapabilityWorkflow CapabilityType = "workflow"
)

// CapabilityProposal is a request to add a new dynamic skill or workflow,
// generated by the propose_capability tool and gated by oversight.
type CapabilityProposal struct {
	Type             CapabilityType `json:"type"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	ExecutionCommand string         `json:"execution_command,omitempty"`
	Schema           map[string]any `json:"schema,omitempty"`
	Content          string         `json:"content,omitempty"`
}

// OversightStatus is the decision state of an OversightEntry.
type OversightStatus string

const (
	OversightPending  OversightStatus = "pending"
	OversightApproved OversightStatus = "approved"
	OversightRejected OversightStatus = "rejected"
)

// OversightEntry is a pending (or decided) human-approval request. ToolCall
// is always populated; CapabilityProposal is set as well for
// propose_capability requests.
type OversightEntry struct {
	ID                 string              `json:"id"`
	MissionID          string              `json:"mission_id,omitempty"`
	ToolCall           *ToolCall           `json:"tool_call,omitempty"`
	CapabilityProposal *CapabilityProposal `json:"capability_proposal,omitempty"`
	Status             OversightStatus     `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
}

// TaskPayload is the transport-level request to run one task against an
// agent. Every field but Message is an optional override of the agent's
// configured defaults.
type TaskPayload struct {
	Message     string   `json:"message"`
	ClusterID   string   `json:"clusterId,omitempty"`
	Department  string   `json:"department,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	ModelID     string   `json:"modelId,omitempty"`
	APIKey      string   `json:"apiKey,omitempty"`
	BaseURL     string   `json:"baseUrl,omitempty"`
	RPM         *int     `json:"rpm,omitempty"`
	TPM         *int     `json:"tpm,omitempty"`
	BudgetUSD   *float64 `json:"budgetUsd,omitempty"`
	SwarmDepth  int      `json:"swarmDepth,omitempty"`
	SwarmLineage []string `json:"swarmLineage,omitempty"`
	ExternalID  string   `json:"externalId,omitempty"`
	SafeMode    bool     `json:"safeMode,omitempty"`
}

// AgentConfigUpdate is a partial update applied to an Agent by the
// configuration endpoint. Nil fields are left unchanged.
type AgentConfigUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Role        *string   `json:"role,omitempty"`
	Department  *string   `json:"department,omitempty"`
	Description *string   `json:"description,omitempty"`
	BudgetUSD   *float64  `json:"budget_usd,omitempty"`
	Skills      *[]string `json:"skills,omitempty"`
	Workflows   *[]string `json:"workflows,omitempty"`
}
