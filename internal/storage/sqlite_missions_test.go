package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func newTestMissionStore(t *testing.T) *SQLiteMissionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "missions.db")
	store, err := OpenSQLiteMissionStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteMissionStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetMission(t *testing.T) {
	ctx := context.Background()
	store := newTestMissionStore(t)

	mission := &models.Mission{AgentID: "agent-1", Title: "investigate Q1 numbers", BudgetUSD: 1.0}
	if err := store.CreateMission(ctx, mission); err != nil {
		t.Fatalf("CreateMission: %v", err)
	}
	if mission.ID == "" {
		t.Fatal("expected generated mission ID")
	}

	got, err := store.GetMission(ctx, mission.ID)
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if got.Status != models.MissionPending {
		t.Errorf("expected pending status, got %q", got.Status)
	}
	if got.Title != "investigate Q1 numbers" {
		t.Errorf("got title %q", got.Title)
	}
}

func TestUpdateMissionStatus_CostAccumulatesAdditively(t *testing.T) {
	ctx := context.Background()
	store := newTestMissionStore(t)

	mission := &models.Mission{AgentID: "agent-1", Title: "t", BudgetUSD: 1.0}
	if err := store.CreateMission(ctx, mission); err != nil {
		t.Fatalf("CreateMission: %v", err)
	}

	if err := store.UpdateMissionStatus(ctx, mission.ID, models.MissionActive, 0.01); err != nil {
		t.Fatalf("update 1: %v", err)
	}
	if err := store.UpdateMissionStatus(ctx, mission.ID, models.MissionActive, 0.02); err != nil {
		t.Fatalf("update 2: %v", err)
	}

	got, err := store.GetMission(ctx, mission.ID)
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if got.CostUSD < 0.0299 || got.CostUSD > 0.0301 {
		t.Errorf("expected accumulated cost ~0.03, got %v", got.CostUSD)
	}
	if got.Status != models.MissionActive {
		t.Errorf("expected active status, got %q", got.Status)
	}
}

func TestMissionLogs_OrderedByTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newTestMissionStore(t)

	mission := &models.Mission{AgentID: "agent-1", Title: "t"}
	if err := store.CreateMission(ctx, mission); err != nil {
		t.Fatalf("CreateMission: %v", err)
	}

	if err := store.AppendLog(ctx, &models.MissionLog{MissionID: mission.ID, AgentID: "agent-1", Source: models.SourceUser, Text: "do the thing", Severity: models.SeverityInfo}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := store.AppendLog(ctx, &models.MissionLog{MissionID: mission.ID, AgentID: "agent-1", Source: models.SourceAgent, Text: "done", Severity: models.SeveritySuccess}); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	logs, err := store.MissionLogs(ctx, mission.ID)
	if err != nil {
		t.Fatalf("MissionLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Text != "do the thing" || logs[1].Text != "done" {
		t.Errorf("unexpected log order: %q, %q", logs[0].Text, logs[1].Text)
	}
}

func TestMissionContext_ScopedToItsOwnMission(t *testing.T) {
	ctx := context.Background()
	store := newTestMissionStore(t)

	a := &models.Mission{AgentID: "agent-1", Title: "a"}
	b := &models.Mission{AgentID: "agent-1", Title: "b"}
	if err := store.CreateMission(ctx, a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := store.CreateMission(ctx, b); err != nil {
		t.Fatalf("create b: %v", err)
	}

	if err := store.ShareFinding(ctx, &models.SwarmFinding{MissionID: a.ID, AgentID: "agent-1", Topic: "pricing", Finding: "margins look thin"}); err != nil {
		t.Fatalf("share: %v", err)
	}

	findingsA, err := store.MissionContext(ctx, a.ID)
	if err != nil {
		t.Fatalf("context a: %v", err)
	}
	if len(findingsA) != 1 {
		t.Fatalf("expected 1 finding visible to mission a, got %d", len(findingsA))
	}

	findingsB, err := store.MissionContext(ctx, b.ID)
	if err != nil {
		t.Fatalf("context b: %v", err)
	}
	if len(findingsB) != 0 {
		t.Errorf("expected mission b's context to stay empty, got %d findings", len(findingsB))
	}
}

func TestGetMission_UnknownIDReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestMissionStore(t)

	if _, err := store.GetMission(ctx, "does-not-exist"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
