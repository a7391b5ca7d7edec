// Package mission implements the orchestrator that binds the rate
// limiter, provider abstraction, tool dispatch table, oversight gate, and
// mission store into the state machine that runs one agent task end to
// end: validate, create the mission record, resolve the agent's model
// configuration, build the system prompt, call the provider under rate
// limit, gate the budget, dispatch any returned tool calls concurrently
// (including recursive sub-mission spawns), and finalize.
package mission

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/ratelimit"
	"github.com/haasonsaas/nexus/internal/skills"
	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/internal/workspace"
	"github.com/haasonsaas/nexus/pkg/models"
)

// defaultBudgetUSD is charged when neither the payload nor the agent
// configures a budget for a mission.
const defaultBudgetUSD = 1.0

// primaryCallTokenEstimate is the estimated token cost passed to the rate
// limiter ahead of the primary generation call, before the provider has
// reported real usage.
const primaryCallTokenEstimate = 512

// synthesisCallTokenEstimate is the estimate used for the smaller
// follow-up calls that fold a tool's result back into natural language.
const synthesisCallTokenEstimate = 256

// Engine is the mission runtime.
type Engine struct {
	Agents   storage.AgentStore
	Missions storage.MissionStore
	Skills   *skills.Registry
	Gate     *Gate
	Events   *Broadcaster
	Hooks    *Hooks

	// Providers is keyed by lowercase provider name ("google", "groq",
	// "anthropic"). ProviderConfigs and Models back the config-resolve
	// step's registry lookups, keyed by provider id and model id
	// respectively.
	Providers       map[string]providers.Provider
	ProviderConfigs map[string]models.ProviderConfig
	Models          map[string]models.ModelEntry

	DataDir        string
	discordWebhook string

	limitersMu sync.Mutex
	limiters   map[string]*ratelimit.Limiter

	toolCacheMu sync.Mutex
	toolCache   map[string][]providers.ToolDef
}

// EngineConfig constructs an Engine. Gate, Events, Models, and
// ProviderConfigs default to empty/new values when left nil.
type EngineConfig struct {
	Agents   storage.AgentStore
	Missions storage.MissionStore
	Skills   *skills.Registry
	Gate     *Gate
	Events   *Broadcaster
	Hooks    *Hooks

	Providers       map[string]providers.Provider
	ProviderConfigs map[string]models.ProviderConfig
	Models          map[string]models.ModelEntry

	DataDir        string
	DiscordWebhook string
}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Gate == nil {
		cfg.Gate = NewGate()
	}
	if cfg.Events == nil {
		cfg.Events = NewBroadcaster()
	}
	if cfg.Models == nil {
		cfg.Models = map[string]models.ModelEntry{}
	}
	if cfg.ProviderConfigs == nil {
		cfg.ProviderConfigs = map[string]models.ProviderConfig{}
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]providers.Provider{}
	}
	return &Engine{
		Agents:          cfg.Agents,
		Missions:        cfg.Missions,
		Skills:          cfg.Skills,
		Gate:            cfg.Gate,
		Events:          cfg.Events,
		Hooks:           cfg.Hooks,
		Providers:       cfg.Providers,
		ProviderConfigs: cfg.ProviderConfigs,
		Models:          cfg.Models,
		DataDir:         cfg.DataDir,
		discordWebhook:  cfg.DiscordWebhook,
		limiters:        make(map[string]*ratelimit.Limiter),
		toolCache:       make(map[string][]providers.ToolDef),
	}
}

// Run is the top-level entry point: it validates the request, creates the
// mission record, resolves the run context, and executes it. This is
// what the transport's POST /agents/:id/send handler calls; recursive
// spawn_subagent calls invoke execute directly instead, since a child
// mission shares its parent's mission_id rather than creating a new one.
func (e *Engine) Run(ctx context.Context, agentID string, payload models.TaskPayload) (string, error) {
	lineage := payload.SwarmLineage
	depth := payload.SwarmDepth

	if err := ValidateInput(agentID, lineage, depth, payload.Message); err != nil {
		return "", err
	}

	agent, err := e.Agents.Get(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("resolve agent %q: %w", agentID, err)
	}

	budget := agent.BudgetUSD
	if budget <= 0 {
		budget = defaultBudgetUSD
	}
	if payload.BudgetUSD != nil {
		budget = *payload.BudgetUSD
	}

	title := payload.Message
	if len(title) > 50 {
		title = title[:50]
	}

	mission := &models.Mission{AgentID: agentID, Title: title, BudgetUSD: budget}
	if err := e.Missions.CreateMission(ctx, mission); err != nil {
		return "", fmt.Errorf("create mission: %w", err)
	}
	if err := e.Missions.UpdateMissionStatus(ctx, mission.ID, models.MissionActive, 0); err != nil {
		return "", fmt.Errorf("activate mission: %w", err)
	}
	e.logStep(ctx, mission.ID, agentID, models.SourceUser, payload.Message, models.SeverityInfo, nil)

	rc, err := e.resolveRunContext(agent, payload, mission.ID, depth, lineage)
	if err != nil {
		e.logStep(ctx, mission.ID, agentID, models.SourceSystem, err.Error(), models.SeverityError, nil)
		_ = e.Missions.UpdateMissionStatus(ctx, mission.ID, models.MissionFailed, 0)
		return "", err
	}

	e.setAgentStatus(agentID, models.AgentStatusActive)

	output, _, err := e.execute(ctx, rc, payload.Message)
	return output, err
}

// execute runs steps 4 through 9 of the protocol against an already
// -resolved run context: build prompt, generate, gate budget, dispatch
// tools, finalize. It returns the cumulative token usage across the
// primary generation and every tool/synthesis call so a parent
// spawn_subagent call can fold a child's usage into its own accounting.
func (e *Engine) execute(ctx context.Context, rc RunContext, message string) (string, providers.Usage, error) {
	e.setAgentStatus(rc.AgentID, models.AgentStatusThinking)

	swarmText := e.swarmContextText(ctx, rc.MissionID)
	systemPrompt := BuildSystemPrompt(rc, rc.HierarchyLabel(), swarmText)
	tools := e.toolDefs(rc)

	limiter := e.limiterFor(rc.Model)
	if err := limiter.Acquire(ctx, primaryCallTokenEstimate); err != nil {
		e.failGeneration(ctx, rc, err)
		return "", providers.Usage{}, err
	}

	provider, err := e.providerFor(rc.Model)
	if err != nil {
		e.failGeneration(ctx, rc, err)
		return "", providers.Usage{}, err
	}

	text, calls, usage, err := provider.Generate(ctx, rc.Model.ModelID, systemPrompt, message, tools)
	if err != nil {
		e.failGeneration(ctx, rc, providers.NewError(rc.Model.Provider, rc.Model.ModelID, err))
		return "", providers.Usage{}, err
	}

	var cumulative providers.Usage
	if usage != nil {
		limiter.RecordUsage(usage.TotalTokens)
		cumulative = *usage
	}

	stepCost := CalculateCost(rc.Model.ModelID, cumulative.InputTokens, cumulative.OutputTokens)
	if err := e.Missions.UpdateMissionStatus(ctx, rc.MissionID, models.MissionActive, stepCost); err != nil {
		return "", cumulative, fmt.Errorf("post step cost: %w", err)
	}

	updated, err := e.Missions.GetMission(ctx, rc.MissionID)
	if err != nil {
		return "", cumulative, fmt.Errorf("reload mission: %w", err)
	}
	if updated.CostUSD >= updated.BudgetUSD {
		_ = e.Missions.UpdateMissionStatus(ctx, rc.MissionID, models.MissionPaused, 0)
		warning := fmt.Sprintf("Mission paused: cost $%.4f has reached or exceeded budget $%.2f.", updated.CostUSD, updated.BudgetUSD)
		e.logStep(ctx, rc.MissionID, rc.AgentID, models.SourceFinanceAnalyst, warning, models.SeverityWarning, nil)
		e.setAgentStatus(rc.AgentID, models.AgentStatusIdle)
		return "(PAUSED: Budget Exceeded) " + strings.TrimSpace(text), cumulative, nil
	}

	outputs, toolUsage, earlyReturn, err := e.dispatchTools(ctx, rc, text, calls)
	if err != nil {
		return "", cumulative, err
	}
	cumulative.InputTokens += toolUsage.InputTokens
	cumulative.OutputTokens += toolUsage.OutputTokens
	cumulative.TotalTokens += toolUsage.TotalTokens

	if earlyReturn != "" {
		final, err := e.finalize(ctx, rc, earlyReturn, stepCost, cumulative)
		return final, cumulative, err
	}

	combined := strings.TrimSpace(strings.Join(append([]string{text}, outputs...), "\n"))
	final, err := e.finalize(ctx, rc, combined, stepCost, cumulative)
	return final, cumulative, err
}

// finalize persists the mission as completed, recomputes the turn-level
// cost from cumulative usage and posts whatever remains beyond what the
// step-level check already persisted, dispatches the agent-stat update
// fire-and-forget, and trims the output per FinalizeRun.
func (e *Engine) finalize(ctx context.Context, rc RunContext, text string, alreadyPersistedCost float64, cumulative providers.Usage) (string, error) {
	finalCost := CalculateCost(rc.Model.ModelID, cumulative.InputTokens, cumulative.OutputTokens)
	remainder := finalCost - alreadyPersistedCost
	if remainder < 0 {
		remainder = 0
	}

	if err := e.Missions.UpdateMissionStatus(ctx, rc.MissionID, models.MissionCompleted, remainder); err != nil {
		return "", fmt.Errorf("finalize mission: %w", err)
	}

	go func(totalCost float64) {
		agent, err := e.Agents.Get(context.Background(), rc.AgentID)
		if err != nil {
			return
		}
		agent.Status = models.AgentStatusIdle
		agent.CostUSD += totalCost
		agent.TokensUsed += int64(cumulative.TotalTokens)
		agent.TokenUsage.Add(models.TokenUsage{
			InputTokens:  int64(cumulative.InputTokens),
			OutputTokens: int64(cumulative.OutputTokens),
			TotalTokens:  int64(cumulative.TotalTokens),
		})
		_ = e.Agents.Update(context.Background(), agent)
		e.Events.AgentStatus(rc.AgentID, models.AgentStatusIdle)
	}(finalCost)

	output := FinalizeRun(text)
	e.logStep(ctx, rc.MissionID, rc.AgentID, models.SourceAgent, output, models.SeveritySuccess, nil)
	return output, nil
}

// failGeneration handles the step-6 error path: agent idle, mission
// failed, an error-severity step logged, error propagated to the caller.
func (e *Engine) failGeneration(ctx context.Context, rc RunContext, err error) {
	e.setAgentStatus(rc.AgentID, models.AgentStatusIdle)
	_ = e.Missions.UpdateMissionStatus(ctx, rc.MissionID, models.MissionFailed, 0)
	e.logStep(ctx, rc.MissionID, rc.AgentID, models.SourceSystem, err.Error(), models.SeverityError, nil)
}

// resolveRunContext implements step 3: model/provider registry lookup,
// payload overrides, workspace root derivation, and safe_mode skill
// redaction.
func (e *Engine) resolveRunContext(agent *models.Agent, payload models.TaskPayload, missionID string, depth int, lineage []string) (RunContext, error) {
	modelID := firstNonEmpty(payload.ModelID, agent.ModelID, agent.Model.ModelID)
	model := agent.Model
	model.ModelID = modelID

	if entry, providerCfg, ok := e.lookupModel(modelID); ok {
		model.ModelID = entry.ID
		if providerCfg.ID != "" {
			model.Provider = providerCfg.Protocol
			model.BaseURL = providerCfg.BaseURL
			model.APIKey = providerCfg.APIKey
		}
		if entry.RPM != nil {
			model.RPM = entry.RPM
		}
		if entry.TPM != nil {
			model.TPM = entry.TPM
		}
	}

	if payload.Provider != "" {
		model.Provider = payload.Provider
	}
	if payload.APIKey != "" {
		model.APIKey = payload.APIKey
	}
	if payload.BaseURL != "" {
		model.BaseURL = payload.BaseURL
	}
	if payload.ModelID != "" {
		model.ModelID = payload.ModelID
	}
	if payload.ExternalID != "" {
		model.ExternalID = payload.ExternalID
	}
	if payload.RPM != nil {
		model.RPM = payload.RPM
	}
	if payload.TPM != nil {
		model.TPM = payload.TPM
	}

	workspaceRoot, err := workspace.ClusterWorkspace(e.DataDir, sanitizeClusterID(firstNonEmpty(payload.ClusterID, "executive-core")))
	if err != nil {
		return RunContext{}, fmt.Errorf("resolve workspace: %w", err)
	}

	department := agent.Department
	if payload.Department != "" {
		department = payload.Department
	}

	skillsList, workflowsList := agent.Skills, agent.Workflows
	if payload.SafeMode {
		skillsList = redactUnsafeSkills(skillsList)
		workflowsList = nil
	}

	return RunContext{
		AgentID:       agent.ID,
		Name:          agent.Name,
		Role:          agent.Role,
		Department:    department,
		Description:   agent.Description,
		Model:         model,
		Skills:        skillsList,
		Workflows:     workflowsList,
		MissionID:     missionID,
		Depth:         depth,
		Lineage:       lineage,
		SafeMode:      payload.SafeMode,
		WorkspaceRoot: workspaceRoot,
	}, nil
}

// childRunContext builds the run context for a spawn_subagent recursion:
// same mission, same workspace, same safe_mode, incremented depth and
// lineage, the child agent's own model binding.
func (e *Engine) childRunContext(parent RunContext, childAgent *models.Agent, depth int, lineage []string) RunContext {
	model := childAgent.Model
	if model.ModelID == "" {
		model.ModelID = childAgent.ModelID
	}
	skillsList := childAgent.Skills
	workflowsList := childAgent.Workflows
	if parent.SafeMode {
		skillsList = redactUnsafeSkills(skillsList)
		workflowsList = nil
	}
	return RunContext{
		AgentID:       childAgent.ID,
		Name:          childAgent.Name,
		Role:          childAgent.Role,
		Department:    childAgent.Department,
		Description:   childAgent.Description,
		Model:         model,
		Skills:        skillsList,
		Workflows:     workflowsList,
		MissionID:     parent.MissionID,
		Depth:         depth,
		Lineage:       lineage,
		SafeMode:      parent.SafeMode,
		WorkspaceRoot: parent.WorkspaceRoot,
	}
}

// lookupModel resolves modelID against the model registry, exact match
// first then case-insensitive, returning its provider's config too.
func (e *Engine) lookupModel(modelID string) (models.ModelEntry, models.ProviderConfig, bool) {
	if entry, ok := e.Models[modelID]; ok {
		return entry, e.ProviderConfigs[entry.ProviderID], true
	}
	lower := strings.ToLower(modelID)
	for id, entry := range e.Models {
		if strings.ToLower(id) == lower {
			return entry, e.ProviderConfigs[entry.ProviderID], true
		}
	}
	return models.ModelEntry{}, models.ProviderConfig{}, false
}

func (e *Engine) providerFor(model models.ModelConfig) (providers.Provider, error) {
	p, ok := e.Providers[strings.ToLower(model.Provider)]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", model.Provider)
	}
	return p, nil
}

// limiterFor returns the shared rate limiter for modelID, constructing it
// lazily from the resolved model config the first time that model is
// used so the sliding window persists across calls rather than resetting
// every turn.
func (e *Engine) limiterFor(model models.ModelConfig) *ratelimit.Limiter {
	e.limitersMu.Lock()
	defer e.limitersMu.Unlock()
	if l, ok := e.limiters[model.ModelID]; ok {
		return l
	}
	rpm, tpm := 0, 0
	if model.RPM != nil {
		rpm = *model.RPM
	}
	if model.TPM != nil {
		tpm = *model.TPM
	}
	l := ratelimit.New(rpm, tpm)
	e.limiters[model.ModelID] = l
	return l
}

// SuspendedLimiters counts the models whose rate limiter currently has no
// headroom to acquire against, for the engine's suspension gauge.
func (e *Engine) SuspendedLimiters() int {
	e.limitersMu.Lock()
	defer e.limitersMu.Unlock()
	count := 0
	for _, l := range e.limiters {
		if l.Suspended() {
			count++
		}
	}
	return count
}

// synthesize runs a follow-up provider call that folds a tool's raw
// result back into natural language from the acting agent's own voice —
// the shared machinery behind spawn_subagent, fetch_url, dynamic skills,
// and query_financial_logs all feeding a synthesis provider call.
func (e *Engine) synthesize(ctx context.Context, rc RunContext, instruction string) (string, providers.Usage, error) {
	limiter := e.limiterFor(rc.Model)
	if err := limiter.Acquire(ctx, synthesisCallTokenEstimate); err != nil {
		return "", providers.Usage{}, err
	}
	provider, err := e.providerFor(rc.Model)
	if err != nil {
		return "", providers.Usage{}, err
	}

	swarmText := e.swarmContextText(ctx, rc.MissionID)
	systemPrompt := BuildSystemPrompt(rc, rc.HierarchyLabel(), swarmText)

	text, _, usage, err := provider.Generate(ctx, rc.Model.ModelID, systemPrompt, instruction, nil)
	if err != nil {
		return "", providers.Usage{}, err
	}
	if usage == nil {
		return text, providers.Usage{}, nil
	}
	limiter.RecordUsage(usage.TotalTokens)
	return text, *usage, nil
}

func (e *Engine) swarmContextText(ctx context.Context, missionID string) string {
	findings, err := e.Missions.MissionContext(ctx, missionID)
	if err != nil || len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&b, "[%s] %s: %s\n", f.AgentID, f.Topic, f.Finding)
	}
	return b.String()
}

func (e *Engine) logStep(ctx context.Context, missionID, agentID string, source models.LogSource, text string, severity models.LogSeverity, metadata map[string]any) {
	entry := models.MissionLog{MissionID: missionID, AgentID: agentID, Source: source, Text: text, Severity: severity, Metadata: metadata}
	if err := e.Missions.AppendLog(ctx, &entry); err != nil {
		return
	}
	e.Events.Log(entry)
}

// setAgentStatus broadcasts the new status immediately and persists it
// fire-and-forget — matching the split between direct-await mission
// lifecycle writes and fire-and-forget agent-stat writes.
func (e *Engine) setAgentStatus(agentID string, status models.AgentStatus) {
	e.Events.AgentStatus(agentID, status)
	go func() {
		agent, err := e.Agents.Get(context.Background(), agentID)
		if err != nil {
			return
		}
		agent.Status = status
		_ = e.Agents.Update(context.Background(), agent)
	}()
}

// awaitOversight submits a tool-call oversight entry and blocks until a
// human decides it or the kill switch fires.
func (e *Engine) awaitOversight(rc RunContext, toolCall models.ToolCall) bool {
	entry := models.OversightEntry{
		ID:        uuid.NewString(),
		MissionID: rc.MissionID,
		ToolCall:  &toolCall,
		Status:    models.OversightPending,
		CreatedAt: time.Now().UTC(),
	}
	e.Events.OversightNew(entry)
	return e.Gate.Submit(entry, false)
}

// Kill halts the engine: every pending oversight entry is rejected and
// every non-idle agent transitions to idle, per the cancellation
// contract.
func (e *Engine) Kill(ctx context.Context) error {
	e.Gate.KillSwitch()
	e.Events.EngineKill()

	agents, _, err := e.Agents.List(ctx, "", 1000, 0)
	if err != nil {
		return fmt.Errorf("list agents for kill switch: %w", err)
	}
	for _, agent := range agents {
		if agent.Status == models.AgentStatusIdle {
			continue
		}
		agent.Status = models.AgentStatusIdle
		_ = e.Agents.Update(ctx, agent)
		e.Events.AgentStatus(agent.ID, models.AgentStatusIdle)
	}
	return nil
}

// Shutdown broadcasts engine:shutdown; the caller is responsible for the
// grace period before exiting the process.
func (e *Engine) Shutdown() {
	e.Events.EngineShutdown()
}

// toolDefs assembles the tool definitions available to rc, caching the
// result keyed on (sorted skills, safe_mode) so the JSON schemas aren't
// rebuilt on every call.
func (e *Engine) toolDefs(rc RunContext) []providers.ToolDef {
	key := toolDefsCacheKey(rc.Skills, rc.SafeMode)

	e.toolCacheMu.Lock()
	if defs, ok := e.toolCache[key]; ok {
		e.toolCacheMu.Unlock()
		return defs
	}
	e.toolCacheMu.Unlock()

	names := append([]string{}, rc.Skills...)
	if !rc.SafeMode {
		names = append(append([]string{}, alwaysAvailableTools...), rc.Skills...)
	}
	seen := make(map[string]bool, len(names))
	var defs []providers.ToolDef
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if rc.SafeMode && safeModeStrippedTools[name] {
			continue
		}
		if def, ok := builtinToolDef(name); ok {
			defs = append(defs, def)
			continue
		}
		if e.Skills == nil {
			continue
		}
		if skill, ok := e.Skills.Skill(name); ok {
			defs = append(defs, providers.ToolDef{Name: skill.Name, Description: skill.Description, Parameters: skill.Schema})
		}
	}

	e.toolCacheMu.Lock()
	e.toolCache[key] = defs
	e.toolCacheMu.Unlock()
	return defs
}

func toolDefsCacheKey(skillNames []string, safeMode bool) string {
	sorted := append([]string{}, skillNames...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",") + "|" + strconv.FormatBool(safeMode)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// sanitizeClusterID strips path-traversal-relevant characters from a
// cluster id before it becomes a workspace directory name.
func sanitizeClusterID(id string) string {
	id = strings.ReplaceAll(id, "..", "")
	id = strings.ReplaceAll(id, "/", "")
	id = strings.ReplaceAll(id, "\\", "")
	if id == "" {
		return "executive-core"
	}
	return id
}
