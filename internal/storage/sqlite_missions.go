package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/nexus/pkg/models"
)

// SQLiteMissionStore persists missions, their append-only log, and the
// swarm context bulletin board to a SQLite database.
type SQLiteMissionStore struct {
	db *sql.DB
}

const missionSchema = `
CREATE TABLE IF NOT EXISTS mission_history (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	title      TEXT NOT NULL,
	status     TEXT NOT NULL,
	budget_usd REAL NOT NULL,
	cost_usd   REAL NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mission_history_agent ON mission_history(agent_id);

CREATE TABLE IF NOT EXISTS mission_logs (
	id         TEXT PRIMARY KEY,
	mission_id TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	source     TEXT NOT NULL,
	text       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	metadata   TEXT
);
CREATE INDEX IF NOT EXISTS idx_mission_logs_mission ON mission_logs(mission_id, timestamp);

CREATE TABLE IF NOT EXISTS swarm_context (
	id         TEXT PRIMARY KEY,
	mission_id TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	topic      TEXT NOT NULL,
	finding    TEXT NOT NULL,
	timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_swarm_context_mission ON swarm_context(mission_id, timestamp);
`

// OpenSQLiteMissionStore opens (and migrates) a SQLite database at path,
// e.g. the "tadpole.db" file named by a "sqlite:" DATABASE_URL.
func OpenSQLiteMissionStore(path string) (*SQLiteMissionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one pooled conn avoids "database is locked"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, missionSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate mission schema: %w", err)
	}

	return &SQLiteMissionStore{db: db}, nil
}

func (s *SQLiteMissionStore) Close() error { return s.db.Close() }

func (s *SQLiteMissionStore) CreateMission(ctx context.Context, mission *models.Mission) error {
	if mission.ID == "" {
		mission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	mission.CreatedAt, mission.UpdatedAt = now, now
	if mission.Status == "" {
		mission.Status = models.MissionPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mission_history (id, agent_id, title, status, budget_usd, cost_usd, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mission.ID, mission.AgentID, mission.Title, string(mission.Status),
		mission.BudgetUSD, mission.CostUSD, mission.CreatedAt, mission.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert mission: %w", err)
	}
	return nil
}

// UpdateMissionStatus sets status and adds costDelta to the running total —
// mirroring the source's additive "cost_usd = cost_usd + ?" update so
// concurrent tool-call cost postings don't clobber each other.
func (s *SQLiteMissionStore) UpdateMissionStatus(ctx context.Context, missionID string, status models.MissionStatus, costDelta float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mission_history SET status = ?, cost_usd = cost_usd + ?, updated_at = ?
		WHERE id = ?`,
		string(status), costDelta, time.Now().UTC(), missionID)
	if err != nil {
		return fmt.Errorf("update mission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteMissionStore) GetMission(ctx context.Context, missionID string) (*models.Mission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, agent_id, title, status, budget_usd, cost_usd, created_at, updated_at
		FROM mission_history WHERE id = ?`, missionID)
	return scanMission(row)
}

func (s *SQLiteMissionStore) GetLastActiveMission(ctx context.Context, agentID string) (*models.Mission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, agent_id, title, status, budget_usd, cost_usd, created_at, updated_at
		FROM mission_history WHERE agent_id = ? AND status IN ('pending', 'active')
		ORDER BY created_at DESC LIMIT 1`, agentID)
	return scanMission(row)
}

func (s *SQLiteMissionStore) RecentMissions(ctx context.Context, limit int) ([]*models.Mission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, agent_id, title, status, budget_usd, cost_usd, created_at, updated_at
		FROM mission_history ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent missions: %w", err)
	}
	defer rows.Close()

	var out []*models.Mission
	for rows.Next() {
		m, err := scanMissionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (*models.Mission, error) {
	var m models.Mission
	var status string
	if err := row.Scan(&m.ID, &m.AgentID, &m.Title, &status, &m.BudgetUSD, &m.CostUSD, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan mission: %w", err)
	}
	m.Status = models.MissionStatus(status)
	return &m, nil
}

func scanMissionRows(rows *sql.Rows) (*models.Mission, error) {
	return scanMission(rows)
}

func (s *SQLiteMissionStore) AppendLog(ctx context.Context, entry *models.MissionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var metadataJSON any
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode log metadata: %w", err)
		}
		metadataJSON = string(encoded)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mission_logs (id, mission_id, agent_id, source, text, severity, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.MissionID, entry.AgentID, string(entry.Source), entry.Text, string(entry.Severity), entry.Timestamp, metadataJSON)
	if err != nil {
		return fmt.Errorf("insert mission log: %w", err)
	}
	return nil
}

func (s *SQLiteMissionStore) MissionLogs(ctx context.Context, missionID string) ([]*models.MissionLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, mission_id, agent_id, source, text, severity, timestamp, metadata
		FROM mission_logs WHERE mission_id = ? ORDER BY timestamp ASC`, missionID)
	if err != nil {
		return nil, fmt.Errorf("query mission logs: %w", err)
	}
	defer rows.Close()

	var out []*models.MissionLog
	for rows.Next() {
		var l models.MissionLog
		var source, severity string
		var metadataJSON sql.NullString
		if err := rows.Scan(&l.ID, &l.MissionID, &l.AgentID, &source, &l.Text, &severity, &l.Timestamp, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan mission log: %w", err)
		}
		l.Source, l.Severity = models.LogSource(source), models.LogSeverity(severity)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &l.Metadata); err != nil {
				return nil, fmt.Errorf("decode log metadata: %w", err)
			}
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *SQLiteMissionStore) ShareFinding(ctx context.Context, finding *models.SwarmFinding) error {
	if finding.ID == "" {
		finding.ID = uuid.NewString()
	}
	if finding.Timestamp.IsZero() {
		finding.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO swarm_context (id, mission_id, agent_id, topic, finding, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		finding.ID, finding.MissionID, finding.AgentID, finding.Topic, finding.Finding, finding.Timestamp)
	if err != nil {
		return fmt.Errorf("insert swarm finding: %w", err)
	}
	return nil
}

// MissionContext returns every finding shared within missionID, oldest
// first — the same scoping the spec requires to keep one mission's swarm
// context invisible to another's.
func (s *SQLiteMissionStore) MissionContext(ctx context.Context, missionID string) ([]*models.SwarmFinding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, mission_id, agent_id, topic, finding, timestamp
		FROM swarm_context WHERE mission_id = ? ORDER BY timestamp ASC`, missionID)
	if err != nil {
		return nil, fmt.Errorf("query swarm context: %w", err)
	}
	defer rows.Close()

	var out []*models.SwarmFinding
	for rows.Next() {
		var f models.SwarmFinding
		if err := rows.Scan(&f.ID, &f.MissionID, &f.AgentID, &f.Topic, &f.Finding, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scan swarm finding: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
