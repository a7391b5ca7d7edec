package mission

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// RunContext carries everything one Run invocation needs that is not
// itself mission data: the agent identity being embodied, its model
// binding and capabilities, and the recursion bookkeeping (mission ID,
// depth, lineage) that must be threaded unchanged through every
// spawn_subagent recursion.
type RunContext struct {
	AgentID     string
	Name        string
	Role        string
	Department  string
	Description string

	Model models.ModelConfig

	Skills    []string
	Workflows []string

	MissionID string
	Depth     int
	Lineage   []string

	SafeMode      bool
	WorkspaceRoot string
}

// HierarchyLabel returns the identity label injected into the system
// prompt, keyed by recursion depth: the root agent of a mission is the
// OVERLORD, its direct spawns are ALPHA NODEs, their spawns CLUSTER ALPHA
// NODEs, and everything deeper is a plain AGENT.
func (rc RunContext) HierarchyLabel() string {
	switch rc.Depth {
	case 0:
		return "OVERLORD"
	case 1:
		return "ALPHA NODE"
	case 2:
		return "CLUSTER ALPHA NODE"
	default:
		return "AGENT"
	}
}

// ChildLineage returns the lineage a sub-agent spawned from rc would
// carry: rc's own lineage plus rc's agent ID appended.
func (rc RunContext) ChildLineage() []string {
	out := make([]string, len(rc.Lineage), len(rc.Lineage)+1)
	copy(out, rc.Lineage)
	return append(out, rc.AgentID)
}

type runContextKey struct{}

// WithRunContext stores rc in ctx for handlers further down the call
// stack (tool dispatch, hooks) that need the acting agent's identity
// without it being threaded through every function signature.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext stored by WithRunContext.
func RunContextFromContext(ctx context.Context) (RunContext, bool) {
	rc, ok := ctx.Value(runContextKey{}).(RunContext)
	return rc, ok
}

type modelOverrideKey struct{}

// WithModel stores a request-scoped model ID override in the context,
// used when a tool-triggered synthesis call should use a different model
// than the agent's default binding.
func WithModel(ctx context.Context, model string) context.Context {
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelOverrideKey{}, model)
}

// modelFromContext returns the model override stored by WithModel, or
// fallback if none was set.
func modelFromContext(ctx context.Context, fallback string) string {
	if model, ok := ctx.Value(modelOverrideKey{}).(string); ok && model != "" {
		return model
	}
	return fallback
}
