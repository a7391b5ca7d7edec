package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func newTestAgentStore(t *testing.T) *SQLiteAgentStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.db")
	store, err := OpenSQLiteAgentStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteAgentStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetAgent(t *testing.T) {
	ctx := context.Background()
	store := newTestAgentStore(t)

	agent := &models.Agent{
		ID:        "agent-1",
		Name:      "Finance Analyst",
		Role:      "analyst",
		BudgetUSD: 5.0,
		Skills:    []string{"query_financial_logs"},
		Model:     models.ModelConfig{Provider: "groq", ModelID: "llama-3.3-70b-versatile"},
	}
	if err := store.Create(ctx, agent); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Finance Analyst" || got.Model.ModelID != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected agent: %+v", got)
	}
	if len(got.Skills) != 1 || got.Skills[0] != "query_financial_logs" {
		t.Errorf("unexpected skills: %v", got.Skills)
	}
}

func TestCreateAgent_SameIDTwiceIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestAgentStore(t)

	agent := &models.Agent{ID: "agent-1", Name: "first", BudgetUSD: 1.0}
	if err := store.Create(ctx, agent); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	agent.Name = "second"
	if err := store.Create(ctx, agent); err != nil {
		t.Fatalf("create 2: %v", err)
	}

	_, total, err := store.List(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one row for repeated id, got %d", total)
	}

	got, err := store.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "second" {
		t.Errorf("expected upsert to take the latest name, got %q", got.Name)
	}
}

func TestDeleteAgent_UnknownIDReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestAgentStore(t)

	if err := store.Delete(ctx, "does-not-exist"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAgents_OrderedByNameAndPaginated(t *testing.T) {
	ctx := context.Background()
	store := newTestAgentStore(t)

	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		if err := store.Create(ctx, &models.Agent{ID: name, Name: name, BudgetUSD: 1.0}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	page, total, err := store.List(ctx, "", 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(page) != 2 || page[0].Name != "Alpha" || page[1].Name != "Bravo" {
		t.Errorf("unexpected page: %+v", page)
	}
}
