package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/tools/files"
	"github.com/haasonsaas/nexus/internal/tools/subagent"
	"github.com/haasonsaas/nexus/pkg/models"
)

// alwaysAvailableTools are offered to every agent regardless of its
// configured skills, except under safe_mode, where they are not added.
var alwaysAvailableTools = []string{
	"spawn_subagent",
	"share_finding",
	"complete_mission",
	"propose_capability",
}

// safeModeStrippedTools lists the tool names unavailable when a mission
// runs under safe_mode, regardless of the acting agent's own skill list.
var safeModeStrippedTools = map[string]bool{
	"issue_alpha_directive": true,
	"spawn_subagent":        true,
	"execute_bash":          true,
	"write_file":            true,
	"delete_file":           true,
	"append_file":           true,
	"deploy":                true,
}

// redactUnsafeSkills drops any skill name that safe_mode strips from a
// capability list, leaving everything else untouched.
func redactUnsafeSkills(skillNames []string) []string {
	out := make([]string, 0, len(skillNames))
	for _, s := range skillNames {
		if safeModeStrippedTools[s] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// dynamicSkillTimeout bounds how long a subprocess-backed skill may run
// before it is killed and reported as a timeout.
const dynamicSkillTimeout = 60 * time.Second

// dynamicSkillOutputLimit truncates a subprocess skill's combined stdout
// and stderr before it is folded into a synthesis call.
const dynamicSkillOutputLimit = 5000

// fetchURLBodyLimit truncates a fetch_url response body before synthesis.
const fetchURLBodyLimit = 3000

// builtinToolDef returns the JSON-schema tool definition for one of the
// built-in tool names, or false if name isn't a built-in (it may still be
// a dynamic skill resolved from the skill registry).
func builtinToolDef(name string) (providers.ToolDef, bool) {
	switch name {
	case "spawn_subagent":
		return providers.ToolDef{
			Name:        name,
			Description: "Delegate a task to another agent and wait for its result.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_id": map[string]any{"type": "string", "description": "ID of the agent to delegate to."},
					"message":  map[string]any{"type": "string", "description": "The task to delegate."},
				},
				"required": []string{"agent_id", "message"},
			},
		}, true
	case "issue_alpha_directive":
		return providers.ToolDef{
			Name:        name,
			Description: "Issue a directive to the Alpha coordination agent.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
				},
				"required": []string{"message"},
			},
		}, true
	case "share_finding":
		return providers.ToolDef{
			Name:        name,
			Description: "Publish a finding to the mission's shared swarm context, visible to every agent in this mission.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic":   map[string]any{"type": "string"},
					"finding": map[string]any{"type": "string"},
				},
				"required": []string{"topic", "finding"},
			},
		}, true
	case "complete_mission":
		return providers.ToolDef{
			Name:        name,
			Description: "Declare the mission complete with a final report. Requires human approval.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{"type": "string"},
				},
				"required": []string{"summary"},
			},
		}, true
	case "propose_capability":
		return providers.ToolDef{
			Name:        name,
			Description: "Propose a new skill or workflow for the operator to approve and install.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":              map[string]any{"type": "string", "enum": []string{"skill", "workflow"}},
					"name":              map[string]any{"type": "string"},
					"description":       map[string]any{"type": "string"},
					"execution_command": map[string]any{"type": "string"},
					"content":           map[string]any{"type": "string"},
				},
				"required": []string{"type", "name"},
			},
		}, true
	case "fetch_url":
		return providers.ToolDef{
			Name:        name,
			Description: "Fetch a URL over HTTPS and summarize its contents.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"url": map[string]any{"type": "string"}},
				"required":   []string{"url"},
			},
		}, true
	case "read_file":
		return providers.ToolDef{
			Name:        name,
			Description: "Read a file from the agent's sandboxed workspace.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":   map[string]any{"type": "string"},
					"offset": map[string]any{"type": "integer"},
				},
				"required": []string{"path"},
			},
		}, true
	case "write_file":
		return providers.ToolDef{
			Name:        name,
			Description: "Write or append to a file in the agent's sandboxed workspace.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
					"append":  map[string]any{"type": "boolean"},
				},
				"required": []string{"path", "content"},
			},
		}, true
	case "list_files":
		return providers.ToolDef{
			Name:        name,
			Description: "List files in a directory in the agent's sandboxed workspace.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
			},
		}, true
	case "delete_file":
		return providers.ToolDef{
			Name:        name,
			Description: "Delete a file in the agent's sandboxed workspace. Requires human approval.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
				"required":   []string{"path"},
			},
		}, true
	case "archive_to_vault":
		return providers.ToolDef{
			Name:        name,
			Description: "Append a note to the durable vault for later retrieval. Requires human approval.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filename": map[string]any{"type": "string"},
					"content":  map[string]any{"type": "string"},
				},
				"required": []string{"filename", "content"},
			},
		}, true
	case "notify_discord":
		return providers.ToolDef{
			Name:        name,
			Description: "Send a message to the configured Discord webhook. Requires human approval.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"message": map[string]any{"type": "string"}},
				"required":   []string{"message"},
			},
		}, true
	case "query_financial_logs":
		return providers.ToolDef{
			Name:        name,
			Description: "Query the mission's finance-analyst log entries.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
			},
		}, true
	default:
		return providers.ToolDef{}, false
	}
}

// dispatchTools runs every call concurrently, one goroutine per call, and
// aggregates their textual outputs and usage. If any call returns a
// non-empty early-return string (budget-stop, oversight rejection, a
// completed mission's summary), that string wins and the remaining
// outputs are discarded — matching the first-early-return-wins rule.
func (e *Engine) dispatchTools(ctx context.Context, rc RunContext, parentText string, calls []providers.FunctionCall) ([]string, providers.Usage, string, error) {
	if len(calls) == 0 {
		return nil, providers.Usage{}, "", nil
	}

	e.setAgentStatus(rc.AgentID, models.AgentStatusCoding)

	type result struct {
		output     string
		usage      providers.Usage
		earlyStop  string
		err        error
	}

	results := make([]result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call providers.FunctionCall) {
			defer wg.Done()
			out, usage, stop, err := e.dispatchOne(ctx, rc, parentText, call)
			results[i] = result{output: out, usage: usage, earlyStop: stop, err: err}
		}(i, call)
	}
	wg.Wait()

	var outputs []string
	var total providers.Usage
	for _, r := range results {
		if r.err != nil {
			return nil, total, "", r.err
		}
		total.InputTokens += r.usage.InputTokens
		total.OutputTokens += r.usage.OutputTokens
		total.TotalTokens += r.usage.TotalTokens
		if r.earlyStop != "" {
			return outputs, total, r.earlyStop, nil
		}
		if r.output != "" {
			outputs = append(outputs, r.output)
		}
	}
	return outputs, total, "", nil
}

// dispatchOne runs the pre-tool hook, invokes the named tool, and runs
// the post-tool hook. A hook failure fails the enclosing tool call,
// surfaced as a ToolError rather than propagated as a fatal engine error.
func (e *Engine) dispatchOne(ctx context.Context, rc RunContext, parentText string, call providers.FunctionCall) (output string, usage providers.Usage, earlyStop string, err error) {
	if e.Hooks != nil {
		if hookErr := e.Hooks.Run(ctx, HookPreTool, rc, call.Name, call.Args); hookErr != nil {
			toolErr := NewToolError(call.Name, hookErr)
			e.logToolFailure(ctx, rc, call, toolErr)
			return fmt.Sprintf("(%s FAILED: %s)", call.Name, toolErr.Message), providers.Usage{}, "", nil
		}
	}

	out, u, stop, invokeErr := e.invokeTool(ctx, rc, parentText, call)
	if invokeErr != nil {
		toolErr := NewToolError(call.Name, invokeErr)
		e.logToolFailure(ctx, rc, call, toolErr)
		return fmt.Sprintf("(%s FAILED: %s)", call.Name, toolErr.Message), u, "", nil
	}

	if e.Hooks != nil {
		if hookErr := e.Hooks.Run(ctx, HookPostTool, rc, call.Name, call.Args); hookErr != nil {
			toolErr := NewToolError(call.Name, hookErr)
			e.logToolFailure(ctx, rc, call, toolErr)
			return fmt.Sprintf("(%s FAILED: %s)", call.Name, toolErr.Message), u, "", nil
		}
	}

	e.logStep(ctx, rc.MissionID, rc.AgentID, models.SourceAgent, fmt.Sprintf("%s: %s", call.Name, out), models.SeverityInfo, map[string]any{"tool": call.Name})
	return out, u, stop, nil
}

func (e *Engine) logToolFailure(ctx context.Context, rc RunContext, call providers.FunctionCall, toolErr *ToolError) {
	e.logStep(ctx, rc.MissionID, rc.AgentID, models.SourceSystem, toolErr.Error(), models.SeverityError, map[string]any{"tool": call.Name})
}

// invokeTool switches on call.Name and executes the matching handler. The
// three return values mirror dispatchTools' aggregation contract: a
// textual result to fold into the final response, usage accrued by any
// provider call the handler itself made, and a non-empty earlyStop that
// short-circuits the rest of the turn.
func (e *Engine) invokeTool(ctx context.Context, rc RunContext, parentText string, call providers.FunctionCall) (string, providers.Usage, string, error) {
	args := call.Args
	switch call.Name {
	case "spawn_subagent":
		return e.toolSpawnSubagent(ctx, rc, parentText, args)
	case "issue_alpha_directive":
		return e.toolIssueAlphaDirective(ctx, rc, parentText, args)
	case "share_finding":
		return e.toolShareFinding(ctx, rc, args)
	case "complete_mission":
		return e.toolCompleteMission(ctx, rc, args)
	case "propose_capability":
		return e.toolProposeCapability(ctx, rc, args)
	case "fetch_url":
		return e.toolFetchURL(ctx, rc, args)
	case "read_file":
		return e.toolReadFile(rc, args)
	case "write_file":
		return e.toolWriteFile(rc, args)
	case "list_files":
		return e.toolListFiles(rc, args)
	case "delete_file":
		return e.toolDeleteFile(ctx, rc, args)
	case "archive_to_vault":
		return e.toolArchiveToVault(ctx, rc, args)
	case "notify_discord":
		return e.toolNotifyDiscord(ctx, rc, args)
	case "query_financial_logs":
		return e.toolQueryFinancialLogs(ctx, rc, args)
	default:
		return e.toolDynamicSkill(ctx, rc, call.Name, args)
	}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// toolSpawnSubagent recurses the runner for a child agent, validating the
// child's lineage/depth before running it, then folds the child's result
// back into the parent's voice through a synthesis call.
func (e *Engine) toolSpawnSubagent(ctx context.Context, rc RunContext, parentText string, args map[string]any) (string, providers.Usage, string, error) {
	childID := argString(args, "agent_id")
	childMessage := argString(args, "message")

	lineage := rc.ChildLineage()
	depth := rc.Depth + 1
	if err := ValidateInput(childID, lineage, depth, childMessage); err != nil {
		return "", providers.Usage{}, "", err
	}

	childAgent, err := e.Agents.Get(ctx, childID)
	if err != nil {
		return "", providers.Usage{}, "", fmt.Errorf("resolve sub-agent %q: %w", childID, err)
	}

	childRC := e.childRunContext(rc, childAgent, depth, lineage)
	e.logStep(ctx, rc.MissionID, childID, models.SourceAgent, childMessage, models.SeverityInfo, map[string]any{"spawned_by": rc.AgentID})

	start := time.Now()
	childOutput, childUsage, err := e.execute(ctx, childRC, childMessage)
	if err != nil {
		return "", providers.Usage{}, "", fmt.Errorf("sub-agent %q: %w", childID, err)
	}

	stats := subagent.Stats{
		Runtime:      time.Since(start),
		InputTokens:  childUsage.InputTokens,
		OutputTokens: childUsage.OutputTokens,
		TotalTokens:  childUsage.TotalTokens,
		Cost:         CalculateCost(childRC.Model.ModelID, childUsage.InputTokens, childUsage.OutputTokens),
		AgentID:      childID,
		MissionID:    rc.MissionID,
	}
	statsLine := subagent.BuildStatsLine(stats)

	instruction := fmt.Sprintf(
		"Your delegate %s (%s) reported back:\n\n%s\n\n%s\n\nFold this into your own response.",
		childAgent.Name, childID, childOutput, statsLine,
	)
	summary, synthUsage, err := e.synthesize(ctx, rc, instruction)
	if err != nil {
		return childOutput + "\n" + statsLine, childUsage, "", nil
	}

	combinedUsage := providers.Usage{
		InputTokens:  childUsage.InputTokens + synthUsage.InputTokens,
		OutputTokens: childUsage.OutputTokens + synthUsage.OutputTokens,
		TotalTokens:  childUsage.TotalTokens + synthUsage.TotalTokens,
	}
	return summary, combinedUsage, "", nil
}

// toolIssueAlphaDirective is a fixed-target shortcut over spawn_subagent:
// directives always route to the "alpha" coordination agent.
func (e *Engine) toolIssueAlphaDirective(ctx context.Context, rc RunContext, parentText string, args map[string]any) (string, providers.Usage, string, error) {
	directiveArgs := map[string]any{"agent_id": "alpha", "message": argString(args, "message")}
	return e.toolSpawnSubagent(ctx, rc, parentText, directiveArgs)
}

func (e *Engine) toolShareFinding(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	finding := &models.SwarmFinding{
		MissionID: rc.MissionID,
		AgentID:   rc.AgentID,
		Topic:     argString(args, "topic"),
		Finding:   argString(args, "finding"),
	}
	if err := e.Missions.ShareFinding(ctx, finding); err != nil {
		return "", providers.Usage{}, "", fmt.Errorf("share finding: %w", err)
	}
	return fmt.Sprintf("Finding shared with the mission: %s", finding.Topic), providers.Usage{}, "", nil
}

// toolCompleteMission gates through oversight before ending the turn
// early with the agent's proposed final summary.
func (e *Engine) toolCompleteMission(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	summary := argString(args, "summary")
	toolCall := models.ToolCall{
		MissionID:   rc.MissionID,
		AgentID:     rc.AgentID,
		Skill:       "complete_mission",
		Params:      args,
		Department:  rc.Department,
		Description: "Declare mission complete",
		Timestamp:   time.Now().UTC(),
	}
	if !e.awaitOversight(rc, toolCall) {
		return "(complete_mission REJECTED by oversight)", providers.Usage{}, "", nil
	}
	return "", providers.Usage{}, summary, nil
}

// toolProposeCapability gates through oversight before installing a new
// skill or workflow into the registry.
func (e *Engine) toolProposeCapability(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	proposal := parseCapabilityProposal(args)
	toolCall := models.ToolCall{
		MissionID:   rc.MissionID,
		AgentID:     rc.AgentID,
		Skill:       "propose_capability",
		Params:      args,
		Department:  rc.Department,
		Description: fmt.Sprintf("Propose %s %q", proposal.Type, proposal.Name),
		Timestamp:   time.Now().UTC(),
	}
	entry := models.OversightEntry{
		MissionID:          rc.MissionID,
		ToolCall:           &toolCall,
		CapabilityProposal: &proposal,
	}
	approved := e.Gate.Submit(modelOversightEntry(entry), false)
	if !approved {
		return fmt.Sprintf("(propose_capability REJECTED: %s)", proposal.Name), providers.Usage{}, "", nil
	}

	if e.Skills == nil {
		return "", providers.Usage{}, "", fmt.Errorf("no skill registry configured")
	}
	switch proposal.Type {
	case models.CapabilityWorkflow:
		if err := e.Skills.SaveWorkflow(models.WorkflowDefinition{Name: proposal.Name, Content: proposal.Content}); err != nil {
			return "", providers.Usage{}, "", fmt.Errorf("save workflow: %w", err)
		}
	default:
		if err := e.Skills.SaveSkill(models.SkillDefinition{
			Name:             proposal.Name,
			Description:      proposal.Description,
			ExecutionCommand: proposal.ExecutionCommand,
			Schema:           proposal.Schema,
		}); err != nil {
			return "", providers.Usage{}, "", fmt.Errorf("save skill: %w", err)
		}
	}
	return fmt.Sprintf("Capability %q installed.", proposal.Name), providers.Usage{}, "", nil
}

func parseCapabilityProposal(args map[string]any) models.CapabilityProposal {
	p := models.CapabilityProposal{
		Type:             models.CapabilitySkill,
		Name:             argString(args, "name"),
		Description:      argString(args, "description"),
		ExecutionCommand: argString(args, "execution_command"),
		Content:          argString(args, "content"),
	}
	if argString(args, "type") == string(models.CapabilityWorkflow) {
		p.Type = models.CapabilityWorkflow
	}
	if schema, ok := args["schema"].(map[string]any); ok {
		p.Schema = schema
	}
	return p
}

// modelOversightEntry stamps an id and timestamp onto an OversightEntry
// built without going through awaitOversight, so propose_capability's
// CapabilityProposal payload survives the gate round trip.
func modelOversightEntry(e models.OversightEntry) models.OversightEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = models.OversightPending
	}
	return e
}

func (e *Engine) toolFetchURL(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	url := argString(args, "url")
	if !strings.HasPrefix(url, "https://") {
		return "", providers.Usage{}, "", fmt.Errorf("fetch_url requires an https URL, got %q", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", providers.Usage{}, "", err
	}
	resp, err := providers.SharedHTTPClient().Do(req)
	if err != nil {
		return "", providers.Usage{}, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchURLBodyLimit+1))
	if err != nil {
		return "", providers.Usage{}, "", err
	}
	text := string(body)
	if len(text) > fetchURLBodyLimit {
		text = text[:fetchURLBodyLimit]
	}

	instruction := fmt.Sprintf("You fetched %s. Here is the content:\n\n%s\n\nSummarize what's relevant.", url, text)
	summary, usage, err := e.synthesize(ctx, rc, instruction)
	if err != nil {
		return text, providers.Usage{}, "", nil
	}
	return summary, usage, "", nil
}

func (e *Engine) toolReadFile(rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	path := argString(args, "path")
	var offset int64
	if v, ok := args["offset"].(float64); ok {
		offset = int64(v)
	}
	content, truncated, err := files.Read(rc.WorkspaceRoot, path, offset, 0)
	if err != nil {
		return "", providers.Usage{}, "", err
	}
	if truncated {
		content += "\n...(truncated)"
	}
	return content, providers.Usage{}, "", nil
}

func (e *Engine) toolWriteFile(rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	path := argString(args, "path")
	content := argString(args, "content")
	appendMode, _ := args["append"].(bool)
	n, err := files.Write(rc.WorkspaceRoot, path, content, appendMode)
	if err != nil {
		return "", providers.Usage{}, "", err
	}
	return fmt.Sprintf("Wrote %d bytes to %s", n, path), providers.Usage{}, "", nil
}

func (e *Engine) toolListFiles(rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	path := argString(args, "path")
	names, err := files.List(rc.WorkspaceRoot, path)
	if err != nil {
		return "", providers.Usage{}, "", err
	}
	return strings.Join(names, "\n"), providers.Usage{}, "", nil
}

// toolDeleteFile gates through oversight before removing a path from the
// agent's workspace.
func (e *Engine) toolDeleteFile(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	path := argString(args, "path")
	toolCall := models.ToolCall{
		MissionID: rc.MissionID, AgentID: rc.AgentID, Skill: "delete_file", Params: args,
		Department: rc.Department, Description: fmt.Sprintf("Delete %s", path), Timestamp: time.Now().UTC(),
	}
	if !e.awaitOversight(rc, toolCall) {
		return fmt.Sprintf("(delete_file REJECTED: %s)", path), providers.Usage{}, "", nil
	}
	if err := files.Delete(rc.WorkspaceRoot, path); err != nil {
		return "", providers.Usage{}, "", err
	}
	return fmt.Sprintf("Deleted %s", path), providers.Usage{}, "", nil
}

// toolArchiveToVault gates through oversight before appending a
// timestamped note to the durable vault.
func (e *Engine) toolArchiveToVault(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	filename := argString(args, "filename")
	content := argString(args, "content")
	toolCall := models.ToolCall{
		MissionID: rc.MissionID, AgentID: rc.AgentID, Skill: "archive_to_vault", Params: args,
		Department: rc.Department, Description: fmt.Sprintf("Archive to %s", filename), Timestamp: time.Now().UTC(),
	}
	if !e.awaitOversight(rc, toolCall) {
		return fmt.Sprintf("(archive_to_vault REJECTED: %s)", filename), providers.Usage{}, "", nil
	}
	if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}

	entry := fmt.Sprintf("\n## %s — %s\n\n%s\n", time.Now().UTC().Format(time.RFC3339), rc.AgentID, content)
	if _, err := files.Write(e.DataDir+"/vault", filename, entry, true); err != nil {
		return "", providers.Usage{}, "", err
	}
	return fmt.Sprintf("Archived to vault/%s", filename), providers.Usage{}, "", nil
}

// toolNotifyDiscord gates through oversight before posting to the
// configured webhook via discordgo's webhook executor.
func (e *Engine) toolNotifyDiscord(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	message := argString(args, "message")
	toolCall := models.ToolCall{
		MissionID: rc.MissionID, AgentID: rc.AgentID, Skill: "notify_discord", Params: args,
		Department: rc.Department, Description: "Post to Discord", Timestamp: time.Now().UTC(),
	}
	if !e.awaitOversight(rc, toolCall) {
		return "(notify_discord REJECTED by oversight)", providers.Usage{}, "", nil
	}

	if e.discordWebhook == "" {
		return "", providers.Usage{}, "", fmt.Errorf("no discord webhook configured")
	}
	id, token, err := splitWebhookURL(e.discordWebhook)
	if err != nil {
		return "", providers.Usage{}, "", err
	}

	session, err := discordgo.New("")
	if err != nil {
		return "", providers.Usage{}, "", fmt.Errorf("discord session: %w", err)
	}
	if _, err := session.WebhookExecute(id, token, false, &discordgo.WebhookParams{
		Content:  message,
		Username: rc.Name,
	}); err != nil {
		return "", providers.Usage{}, "", fmt.Errorf("discord webhook execute: %w", err)
	}
	return "Posted to Discord.", providers.Usage{}, "", nil
}

// splitWebhookURL extracts the id and token segments from a Discord
// webhook URL of the form .../webhooks/{id}/{token}.
func splitWebhookURL(webhookURL string) (id, token string, err error) {
	parts := strings.Split(strings.TrimRight(webhookURL, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("malformed discord webhook url")
	}
	token = parts[len(parts)-1]
	id = parts[len(parts)-2]
	if id == "" || token == "" {
		return "", "", fmt.Errorf("malformed discord webhook url")
	}
	return id, token, nil
}

// toolQueryFinancialLogs filters the mission's own log for entries
// attributed to the finance-analyst source and synthesizes an answer.
func (e *Engine) toolQueryFinancialLogs(ctx context.Context, rc RunContext, args map[string]any) (string, providers.Usage, string, error) {
	logs, err := e.Missions.MissionLogs(ctx, rc.MissionID)
	if err != nil {
		return "", providers.Usage{}, "", err
	}
	var b strings.Builder
	for _, l := range logs {
		if l.Source != models.SourceFinanceAnalyst {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", l.Timestamp.Format(time.RFC3339), l.Text)
	}
	if b.Len() == 0 {
		return "No finance-analyst log entries found for this mission.", providers.Usage{}, "", nil
	}

	instruction := fmt.Sprintf("Finance log entries for this mission:\n\n%s\n\nQuery: %s\n\nAnswer the query using only the entries above.", b.String(), argString(args, "query"))
	answer, usage, err := e.synthesize(ctx, rc, instruction)
	if err != nil {
		return b.String(), providers.Usage{}, "", nil
	}
	return answer, usage, "", nil
}

// toolDynamicSkill runs a registered skill's execution command as a
// subprocess, bounded by dynamicSkillTimeout, folding its truncated
// combined stdout and stderr back through a synthesis call.
func (e *Engine) toolDynamicSkill(ctx context.Context, rc RunContext, name string, args map[string]any) (string, providers.Usage, string, error) {
	if e.Skills == nil {
		return "", providers.Usage{}, "", fmt.Errorf("unknown tool %q", name)
	}
	skill, ok := e.Skills.Skill(name)
	if !ok {
		return "", providers.Usage{}, "", fmt.Errorf("unknown tool %q", name)
	}
	if skill.ExecutionCommand == "" {
		return "", providers.Usage{}, "", fmt.Errorf("skill %q has no execution command", name)
	}

	paramsJSON, err := json.Marshal(args)
	if err != nil {
		return "", providers.Usage{}, "", err
	}

	runCtx, cancel := context.WithTimeout(ctx, dynamicSkillTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", skill.ExecutionCommand)
	cmd.Dir = rc.WorkspaceRoot
	cmd.Env = append(cmd.Environ(), "TOOL_PARAMS="+string(paramsJSON))

	output, runErr := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return "(SKILL EXEC TIMEOUT)", providers.Usage{}, "", nil
	}
	if runErr != nil {
		return "", providers.Usage{}, "", fmt.Errorf("skill %q: %w: %s", name, runErr, string(output))
	}

	text := string(output)
	if len(text) > dynamicSkillOutputLimit {
		text = text[:dynamicSkillOutputLimit]
	}

	instruction := fmt.Sprintf("You ran the %s skill. Its output was:\n\n%s\n\nReport the result.", name, text)
	summary, usage, err := e.synthesize(ctx, rc, instruction)
	if err != nil {
		return text, providers.Usage{}, "", nil
	}
	return summary, usage, "", nil
}
