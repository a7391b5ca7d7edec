package mission

import (
	"fmt"
	"sync"

	"github.com/haasonsaas/nexus/pkg/models"
)

// ledgerCapacity bounds the decided-entry ledger so long-running
// deployments don't grow it without bound; only the most recent entries
// matter for the oversight UI.
const ledgerCapacity = 200

// Gate is the human-in-the-loop approval gate every side-effecting tool
// call and capability proposal passes through. Submit blocks the calling
// goroutine until Decide (or KillSwitch) resolves the entry — there is no
// polling involved, the resolution is delivered directly over a one-shot
// channel held per pending entry.
type Gate struct {
	mu        sync.Mutex
	pending   map[string]models.OversightEntry
	resolvers map[string]chan bool
	ledger    []models.OversightEntry // newest first, capped at ledgerCapacity

	autoApproveSafeSkills bool
}

// NewGate constructs an empty Gate.
func NewGate() *Gate {
	return &Gate{
		pending:   make(map[string]models.OversightEntry),
		resolvers: make(map[string]chan bool),
	}
}

// SetAutoApproveSafeSkills toggles the operator override that
// auto-approves any oversight entry for a tool call the caller marks as a
// safe skill invocation, bypassing the blocking wait entirely.
func (g *Gate) SetAutoApproveSafeSkills(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoApproveSafeSkills = v
}

// AutoApproveSafeSkills reports the current override state.
func (g *Gate) AutoApproveSafeSkills() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoApproveSafeSkills
}

// Submit registers entry as pending and blocks until a human decides it
// or the kill switch fires; it takes no context and has no timeout. It
// returns true if approved, false if rejected or the entry was rejected
// by the kill switch. isSafeSkill lets the caller opt a specific call
// into the auto-approve-safe-skills override.
func (g *Gate) Submit(entry models.OversightEntry, isSafeSkill bool) bool {
	g.mu.Lock()
	if isSafeSkill && g.autoApproveSafeSkills {
		g.mu.Unlock()
		return true
	}

	entry.Status = models.OversightPending
	ch := make(chan bool, 1)
	g.pending[entry.ID] = entry
	g.resolvers[entry.ID] = ch
	g.mu.Unlock()

	return <-ch
}

// Decide resolves a pending entry. It is the only way Submit's blocked
// caller is released short of the kill switch.
func (g *Gate) Decide(entryID string, approved bool) error {
	g.mu.Lock()
	resolver, ok := g.resolvers[entryID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("no pending oversight entry with id %q", entryID)
	}
	entry := g.pending[entryID]
	delete(g.pending, entryID)
	delete(g.resolvers, entryID)

	if approved {
		entry.Status = models.OversightApproved
	} else {
		entry.Status = models.OversightRejected
	}
	g.appendLedger(entry)
	g.mu.Unlock()

	resolver <- approved
	return nil
}

// KillSwitch rejects every currently pending entry, unblocking every
// Submit call in flight with false. Used when the operator halts the
// engine: nothing stays gated waiting for a human who has walked away.
func (g *Gate) KillSwitch() {
	g.mu.Lock()
	for id, resolver := range g.resolvers {
		entry := g.pending[id]
		entry.Status = models.OversightRejected
		g.appendLedger(entry)
		delete(g.pending, id)
		delete(g.resolvers, id)
		resolver <- false
	}
	g.mu.Unlock()
}

// Pending returns a snapshot of all currently pending entries.
func (g *Gate) Pending() []models.OversightEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.OversightEntry, 0, len(g.pending))
	for _, e := range g.pending {
		out = append(out, e)
	}
	return out
}

// Ledger returns a snapshot of the decided-entry ledger, newest first.
func (g *Gate) Ledger() []models.OversightEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.OversightEntry, len(g.ledger))
	copy(out, g.ledger)
	return out
}

// appendLedger prepends entry to the ledger and trims it to
// ledgerCapacity. Caller must hold g.mu.
func (g *Gate) appendLedger(entry models.OversightEntry) {
	g.ledger = append([]models.OversightEntry{entry}, g.ledger...)
	if len(g.ledger) > ledgerCapacity {
		g.ledger = g.ledger[:ledgerCapacity]
	}
}
