package mission

import (
	"fmt"
	"os"
	"strings"
)

// safeModeNotice is appended to the system prompt whenever the run context
// is in safe (brainstorm) mode, disabling every execution tool.
const safeModeNotice = "\n\n[BRAINSTORM SAFE MODE ACTIVE]\n" +
	"You are currently in Safe/Brainstorm Mode for a high-level strategic discussion with the Overlord. " +
	"ALL execution tools and workflows (such as bash, writing files, and spawning sub-agents) have been DISABLED for safety. " +
	"Discuss ideas, explore concepts, and generate plans. Do not attempt to execute actions; only strategize."

// identityFilePath and memoryFilePath point at operator-maintained global
// context injected into every prompt. Missing files are not an error —
// they simply contribute nothing.
var (
	identityFilePath = "data/context/IDENTITY.md"
	memoryFilePath   = "data/memory/LONG_TERM_MEMORY.md"
)

// BuildSystemPrompt assembles the system prompt for one generation call:
// identity, hierarchy position, shared swarm findings, recruitment
// lineage, enabled capabilities, the anti-self-recruitment protocol, and
// any global identity/memory context the operator maintains on disk.
func BuildSystemPrompt(rc RunContext, hierarchyLabel, swarmContext string) string {
	identity := readOptionalFile(identityFilePath)
	memory := readOptionalFile(memoryFilePath)

	lineageDisplay := "None (You are the root node)"
	if len(rc.Lineage) > 0 {
		lineageDisplay = strings.Join(rc.Lineage, " -> ")
	}

	forbidden := append(append([]string{}, rc.Lineage...), rc.AgentID)

	if strings.TrimSpace(swarmContext) == "" {
		swarmContext = "No shared findings yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s (ID: %s, Role: %s) at the %s level of the swarm hierarchy.\n", rc.Name, rc.AgentID, rc.Role, hierarchyLabel)
	fmt.Fprintf(&b, "Department: %s\n", rc.Department)
	fmt.Fprintf(&b, "Description: %s\n\n", rc.Description)
	fmt.Fprintf(&b, "SWARM MISSION CONTEXT (Shared Findings):\n%s\n\n", swarmContext)
	fmt.Fprintf(&b, "RECRUITMENT LINEAGE (Mission Path):\n%s\n\n", lineageDisplay)
	fmt.Fprintf(&b, "SKILLS: %v\n", rc.Skills)
	fmt.Fprintf(&b, "WORKFLOWS: %v\n\n", rc.Workflows)
	b.WriteString("SWARM PROTOCOL:\n")
	fmt.Fprintf(&b, "1. RECURSION LIMIT: You are prohibited from recruiting YOURSELF or any agent already in your LINEAGE. Do not spawn any of these IDs: %v.\n", forbidden)
	b.WriteString("2. REDUNDANCY: Always check if the mission context or lineage already contains the information you need before spawning a sub-agent. Prefer lateral collaboration over deep hierarchy.\n")
	b.WriteString("3. HIERARCHY: You report to higher nodes. Your autonomy is bound by Oversight & Compliance.\n")
	b.WriteString("4. DEEP ANALYSIS (ALETHEIA): If 'Deep Analysis' is in your workflows, you MUST follow the Generator->Verifier->Reviser loop. Identify your own flaws before final delivery.\n\n")
	b.WriteString("--- GLOBAL OS IDENTITY ---\n")
	b.WriteString(identity)
	b.WriteString("\n\n--- LONG-TERM SWARM MEMORY ---\n")
	b.WriteString(memory)

	if rc.SafeMode {
		b.WriteString(safeModeNotice)
	}

	return b.String()
}

func readOptionalFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
