package mission

import (
	"strings"
	"testing"
)

func TestBuildSystemPrompt_IncludesRoleAndDepartment(t *testing.T) {
	rc := RunContext{
		AgentID:     "1",
		Name:        "Agent of Nine",
		Role:        "CEO",
		Department:  "Executive",
		Description: "Supreme tactical orchestrator.",
		MissionID:   "test-mission",
	}

	prompt := BuildSystemPrompt(rc, "OVERLORD", "")
	for _, want := range []string{"Agent of Nine", "Executive", "OVERLORD"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestBuildSystemPrompt_IncludesLineageWhenPresent(t *testing.T) {
	rc := RunContext{
		AgentID:     "2",
		Name:        "Tadpole",
		Role:        "COO",
		Department:  "Operations",
		Description: "Operational coordination specialist.",
		MissionID:   "test-mission",
		Depth:       1,
		Lineage:     []string{"Agent of Nine"},
	}

	prompt := BuildSystemPrompt(rc, "ALPHA NODE", "")
	for _, want := range []string{"Agent of Nine", "Tadpole", "ALPHA NODE"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestBuildSystemPrompt_RootLineageFallback(t *testing.T) {
	rc := RunContext{AgentID: "1", Name: "Root", Role: "CEO"}
	prompt := BuildSystemPrompt(rc, "OVERLORD", "")
	if !strings.Contains(prompt, "None (You are the root node)") {
		t.Error("expected root-node lineage fallback text")
	}
}

func TestBuildSystemPrompt_SafeModeAppendsNotice(t *testing.T) {
	rc := RunContext{AgentID: "1", Name: "Root", SafeMode: true}
	prompt := BuildSystemPrompt(rc, "OVERLORD", "")
	if !strings.Contains(prompt, "BRAINSTORM SAFE MODE ACTIVE") {
		t.Error("expected safe mode notice in prompt")
	}
}

func TestBuildSystemPrompt_EmptySwarmContextFallback(t *testing.T) {
	rc := RunContext{AgentID: "1", Name: "Root"}
	prompt := BuildSystemPrompt(rc, "OVERLORD", "")
	if !strings.Contains(prompt, "No shared findings yet.") {
		t.Error("expected empty swarm context fallback text")
	}
}
