package mission

import (
	"fmt"
	"slices"
)

// MaxTaskLength is the maximum message length accepted by ValidateInput.
// One byte over rejects the task outright rather than silently truncating
// it, so a caller never gets a partial instruction executed.
const MaxTaskLength = 32768

// MaxSwarmDepth bounds the recursion depth of a sub-agent spawn chain.
// Depth equals len(lineage); a spawn that would put the child at this
// depth or deeper is rejected before it ever reaches a provider, so the
// deepest accepted depth is MaxSwarmDepth-1.
const MaxSwarmDepth = 5

// ValidateInput checks a task against the runner's structural invariants
// before any provider call, mission record, or cost is incurred.
func ValidateInput(agentID string, lineage []string, depth int, message string) error {
	if len(message) > MaxTaskLength {
		return fmt.Errorf("task message exceeds maximum length of %d bytes", MaxTaskLength)
	}
	if slices.Contains(lineage, agentID) {
		return fmt.Errorf("CIRCULAR RECURSION detected: agent %q already appears in its own lineage %v", agentID, lineage)
	}
	if depth >= MaxSwarmDepth {
		return fmt.Errorf("swarm depth limit reached: depth %d is at or above the limit of %d", depth, MaxSwarmDepth)
	}
	return nil
}
