package mission

import (
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestGate_SubmitBlocksUntilDecide(t *testing.T) {
	g := NewGate()
	entry := models.OversightEntry{ID: "entry-1", ToolCall: &models.ToolCall{Skill: "execute_bash"}}

	result := make(chan bool, 1)
	go func() {
		result <- g.Submit(entry, false)
	}()

	// Poll until the entry is actually registered as pending before
	// deciding it, mirroring the resolver-registration race the original
	// oversight test guards against.
	deadline := time.Now().Add(time.Second)
	for {
		if len(g.Pending()) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("entry never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	if err := g.Decide("entry-1", true); err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}

	select {
	case got := <-result:
		if !got {
			t.Fatal("expected Submit to return true for an approved decision")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit did not return after Decide")
	}
}

func TestGate_SubmitRejected(t *testing.T) {
	g := NewGate()
	entry := models.OversightEntry{ID: "entry-2"}

	result := make(chan bool, 1)
	go func() { result <- g.Submit(entry, false) }()

	deadline := time.Now().Add(time.Second)
	for len(g.Pending()) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("entry never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	if err := g.Decide("entry-2", false); err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}

	if got := <-result; got {
		t.Fatal("expected Submit to return false for a rejected decision")
	}
}

func TestGate_DecideUnknownEntryErrors(t *testing.T) {
	g := NewGate()
	if err := g.Decide("nonexistent", true); err == nil {
		t.Fatal("expected error deciding an unknown entry")
	}
}

func TestGate_KillSwitchRejectsAllPending(t *testing.T) {
	g := NewGate()
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		go func(id string) {
			results <- g.Submit(models.OversightEntry{ID: id}, false)
		}(id)
	}

	deadline := time.Now().Add(time.Second)
	for len(g.Pending()) != 3 {
		if time.Now().After(deadline) {
			t.Fatal("entries never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	g.KillSwitch()

	for i := 0; i < 3; i++ {
		select {
		case got := <-results:
			if got {
				t.Fatal("expected kill switch to reject all pending entries")
			}
		case <-time.After(time.Second):
			t.Fatal("Submit did not unblock after KillSwitch")
		}
	}

	if len(g.Pending()) != 0 {
		t.Fatal("expected no pending entries after kill switch")
	}
}

func TestGate_AutoApproveSafeSkillsBypassesBlock(t *testing.T) {
	g := NewGate()
	g.SetAutoApproveSafeSkills(true)

	done := make(chan bool, 1)
	go func() {
		done <- g.Submit(models.OversightEntry{ID: "safe-1"}, true)
	}()

	select {
	case got := <-done:
		if !got {
			t.Fatal("expected auto-approved safe skill call to return true")
		}
	case <-time.After(time.Second):
		t.Fatal("auto-approve override should not block")
	}
}

func TestGate_LedgerCapsAtCapacity(t *testing.T) {
	g := NewGate()
	for i := 0; i < ledgerCapacity+10; i++ {
		id := "cap-" + string(rune(i))
		go func(id string) { g.Submit(models.OversightEntry{ID: id}, false) }(id)
		deadline := time.Now().Add(time.Second)
		for {
			g.mu.Lock()
			_, ok := g.resolvers[id]
			g.mu.Unlock()
			if ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("entry %s never became pending", id)
			}
			time.Sleep(time.Millisecond)
		}
		_ = g.Decide(id, true)
	}
	if len(g.Ledger()) != ledgerCapacity {
		t.Fatalf("expected ledger capped at %d, got %d", ledgerCapacity, len(g.Ledger()))
	}
}
