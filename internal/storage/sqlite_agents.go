package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/nexus/pkg/models"
)

// SQLiteAgentStore persists the agent roster to a SQLite database,
// sharing the same connection-pool conventions as SQLiteMissionStore.
type SQLiteAgentStore struct {
	db *sql.DB
}

const agentSchema = `
CREATE TABLE IF NOT EXISTS agents (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	role               TEXT NOT NULL,
	department         TEXT NOT NULL,
	description        TEXT NOT NULL,
	status             TEXT NOT NULL,
	model_id           TEXT NOT NULL,
	model              TEXT NOT NULL,
	model_2            TEXT,
	model_3            TEXT,
	active_model_slot  INTEGER NOT NULL DEFAULT 0,
	skills             TEXT,
	workflows          TEXT,
	budget_usd         REAL NOT NULL,
	cost_usd           REAL NOT NULL,
	tokens_used        INTEGER NOT NULL,
	token_usage        TEXT,
	metadata           TEXT
);
`

// OpenSQLiteAgentStore opens (and migrates) a SQLite database at path.
func OpenSQLiteAgentStore(path string) (*SQLiteAgentStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), agentSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate agent schema: %w", err)
	}
	return &SQLiteAgentStore{db: db}, nil
}

func (s *SQLiteAgentStore) Close() error { return s.db.Close() }

// Create inserts agent, or replaces the existing row with the same id —
// saving an agent twice under the same id is an idempotent upsert, not a
// duplicate-key failure.
func (s *SQLiteAgentStore) Create(ctx context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	return s.upsert(ctx, agent)
}

func (s *SQLiteAgentStore) Update(ctx context.Context, agent *models.Agent) error {
	return s.upsert(ctx, agent)
}

func (s *SQLiteAgentStore) upsert(ctx context.Context, agent *models.Agent) error {
	modelJSON, err := json.Marshal(agent.Model)
	if err != nil {
		return fmt.Errorf("encode model config: %w", err)
	}
	skillsJSON, err := json.Marshal(agent.Skills)
	if err != nil {
		return fmt.Errorf("encode skills: %w", err)
	}
	workflowsJSON, err := json.Marshal(agent.Workflows)
	if err != nil {
		return fmt.Errorf("encode workflows: %w", err)
	}
	usageJSON, err := json.Marshal(agent.TokenUsage)
	if err != nil {
		return fmt.Errorf("encode token usage: %w", err)
	}
	var metadataJSON any
	if agent.Metadata != nil {
		encoded, err := json.Marshal(agent.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadataJSON = string(encoded)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, role, department, description, status, model_id, model, model_2, model_3,
			active_model_slot, skills, workflows, budget_usd, cost_usd, tokens_used, token_usage, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, role = excluded.role, department = excluded.department,
			description = excluded.description, status = excluded.status, model_id = excluded.model_id,
			model = excluded.model, model_2 = excluded.model_2, model_3 = excluded.model_3,
			active_model_slot = excluded.active_model_slot, skills = excluded.skills,
			workflows = excluded.workflows, budget_usd = excluded.budget_usd, cost_usd = excluded.cost_usd,
			tokens_used = excluded.tokens_used, token_usage = excluded.token_usage, metadata = excluded.metadata`,
		agent.ID, agent.Name, agent.Role, agent.Department, agent.Description, string(agent.Status),
		agent.ModelID, string(modelJSON), agent.ModelSlot2, agent.ModelSlot3, agent.ActiveModelSlot,
		string(skillsJSON), string(workflowsJSON), agent.BudgetUSD, agent.CostUSD, agent.TokensUsed,
		string(usageJSON), metadataJSON)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

func (s *SQLiteAgentStore) Get(ctx context.Context, id string) (*models.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, role, department, description, status, model_id, model,
		model_2, model_3, active_model_slot, skills, workflows, budget_usd, cost_usd, tokens_used, token_usage, metadata
		FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

func (s *SQLiteAgentStore) List(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count agents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, role, department, description, status, model_id, model,
		model_2, model_3, active_model_slot, skills, workflows, budget_usd, cost_usd, tokens_used, token_usage, metadata
		FROM agents ORDER BY name ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, agent)
	}
	return out, total, rows.Err()
}

func (s *SQLiteAgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
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

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	var status, modelJSON, skillsJSON, workflowsJSON, usageJSON string
	var modelSlot2, modelSlot3 sql.NullString
	var metadataJSON sql.NullString

	if err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Department, &a.Description, &status, &a.ModelID, &modelJSON,
		&modelSlot2, &modelSlot3, &a.ActiveModelSlot, &skillsJSON, &workflowsJSON, &a.BudgetUSD, &a.CostUSD,
		&a.TokensUsed, &usageJSON, &metadataJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}

	a.Status = models.AgentStatus(status)
	a.ModelSlot2 = modelSlot2.String
	a.ModelSlot3 = modelSlot3.String

	if err := json.Unmarshal([]byte(modelJSON), &a.Model); err != nil {
		return nil, fmt.Errorf("decode model config: %w", err)
	}
	if skillsJSON != "" {
		if err := json.Unmarshal([]byte(skillsJSON), &a.Skills); err != nil {
			return nil, fmt.Errorf("decode skills: %w", err)
		}
	}
	if workflowsJSON != "" {
		if err := json.Unmarshal([]byte(workflowsJSON), &a.Workflows); err != nil {
			return nil, fmt.Errorf("decode workflows: %w", err)
		}
	}
	if usageJSON != "" {
		if err := json.Unmarshal([]byte(usageJSON), &a.TokenUsage); err != nil {
			return nil, fmt.Errorf("decode token usage: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &a, nil
}
