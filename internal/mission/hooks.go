package mission

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// HookStage identifies which lifecycle point a hook fires at.
type HookStage string

const (
	HookPreTool  HookStage = "pre-tool"
	HookPostTool HookStage = "post-tool"
)

// Hooks discovers and invokes operator-authored executable scripts around
// every tool dispatch. Discovery happens fresh on each call rather than
// once at startup, so an operator can drop a new script into the data
// directory without restarting the engine.
type Hooks struct {
	dataDir string
}

// NewHooks roots hook discovery at dataDir/hooks/{pre-tool,post-tool}.
func NewHooks(dataDir string) *Hooks {
	return &Hooks{dataDir: dataDir}
}

func (h *Hooks) stageDir(stage HookStage) string {
	return filepath.Join(h.dataDir, "hooks", string(stage))
}

// discover returns the executable files in a hook stage directory, sorted
// by name for deterministic run order. A missing directory or a
// non-executable entry is skipped silently, not an error — only a script
// that actually runs and fails is a failure.
func (h *Hooks) discover(stage HookStage) []string {
	entries, err := os.ReadDir(h.stageDir(stage))
	if err != nil {
		return nil
	}
	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&0o111 == 0 {
			continue
		}
		scripts = append(scripts, filepath.Join(h.stageDir(stage), entry.Name()))
	}
	sort.Strings(scripts)
	return scripts
}

// Run executes every discovered script for stage, in order, passing rc
// and the tool call's arguments as JSON in AGENT_CONTEXT and TOOL_PARAMS.
// The first script to fail stops the run and its error is returned —
// hook subprocesses carry no explicit timeout, matching the operator
// -authored-and-trusted assumption the dynamic-skill path does not make.
func (h *Hooks) Run(ctx context.Context, stage HookStage, rc RunContext, toolName string, params map[string]any) error {
	scripts := h.discover(stage)
	if len(scripts) == 0 {
		return nil
	}

	agentContext, err := json.Marshal(map[string]any{
		"agent_id":   rc.AgentID,
		"name":       rc.Name,
		"role":       rc.Role,
		"department": rc.Department,
		"mission_id": rc.MissionID,
		"depth":      rc.Depth,
		"lineage":    rc.Lineage,
		"safe_mode":  rc.SafeMode,
		"tool_name":  toolName,
		"stage":      string(stage),
	})
	if err != nil {
		return fmt.Errorf("encode agent context: %w", err)
	}
	toolParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode tool params: %w", err)
	}

	for _, script := range scripts {
		cmd := exec.CommandContext(ctx, script)
		cmd.Dir = rc.WorkspaceRoot
		cmd.Env = append(os.Environ(),
			"AGENT_CONTEXT="+string(agentContext),
			"TOOL_PARAMS="+string(toolParams),
		)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%s hook %s failed: %w: %s", stage, filepath.Base(script), err, string(output))
		}
	}
	return nil
}
