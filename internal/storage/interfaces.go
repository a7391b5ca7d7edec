package storage

import (
	"context"
	"errors"

	"github.com/haasonsaas/nexus/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// AgentStore persists agent configurations. List's userID parameter is
// accepted for interface parity with the rest of the store set but is
// currently unused — this engine has no multi-tenant user concept, only
// a single shared agent roster behind the NEURAL_TOKEN boundary.
type AgentStore interface {
	Create(ctx context.Context, agent *models.Agent) error
	Get(ctx context.Context, id string) (*models.Agent, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, int, error)
	Update(ctx context.Context, agent *models.Agent) error
	Delete(ctx context.Context, id string) error
}

// MissionStore persists mission lifecycle state, the append-only mission
// log, and the swarm context findings bulletin board. Mission lifecycle
// writes are expected to be awaited directly by the runner; callers that
// want fire-and-forget semantics for high-frequency writes (e.g. agent
// stat updates) arrange that at the call site, not inside the store.
type MissionStore interface {
	CreateMission(ctx context.Context, mission *models.Mission) error
	UpdateMissionStatus(ctx context.Context, missionID string, status models.MissionStatus, costDelta float64) error
	GetMission(ctx context.Context, missionID string) (*models.Mission, error)
	GetLastActiveMission(ctx context.Context, agentID string) (*models.Mission, error)
	RecentMissions(ctx context.Context, limit int) ([]*models.Mission, error)

	AppendLog(ctx context.Context, entry *models.MissionLog) error
	MissionLogs(ctx context.Context, missionID string) ([]*models.MissionLog, error)

	ShareFinding(ctx context.Context, finding *models.SwarmFinding) error
	MissionContext(ctx context.Context, missionID string) ([]*models.SwarmFinding, error)
}

// StoreSet groups storage dependencies.
type StoreSet struct {
	Agents   AgentStore
	Missions MissionStore
	closer   func() error
}

// Close closes any underlying resources.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
