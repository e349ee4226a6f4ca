// Package history records processed prompts and executions in Postgres.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intent-orchestrator/internal/common/database"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
)

// PromptRecord is one processed prompt.
type PromptRecord struct {
	ID        string
	SessionID string
	Prompt    string
	Outcome   string
	Agent     string
	CreatedAt time.Time
}

// ExecutionRecord is one intent execution attempt.
type ExecutionRecord struct {
	ID        string
	SessionID string
	Agent     string
	Kind      string
	Status    string
	TxRef     string
	Details   string
	CreatedAt time.Time
}

// Store writes the execution history. Writes are best-effort from the
// orchestrator's point of view; it logs and moves on when one fails.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

func NewStore(client *database.PostgresClient, log logger.Logger) *Store {
	return &Store{db: client.DB, log: log}
}

// NewStoreWithDB is the test seam.
func NewStoreWithDB(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, log: log}
}

const insertPromptSQL = `
	INSERT INTO prompt_history (id, session_id, prompt, outcome, agent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

const insertExecutionSQL = `
	INSERT INTO execution_history (id, session_id, agent, kind, status, tx_ref, details, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// SavePrompt persists one prompt record, filling in the ID and timestamp
// when absent.
func (s *Store) SavePrompt(ctx context.Context, rec PromptRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, insertPromptSQL,
		rec.ID, rec.SessionID, rec.Prompt, rec.Outcome, rec.Agent, rec.CreatedAt)
	if err != nil {
		return ierr.NewHistoryStoreError(fmt.Errorf("insert prompt record: %w", err))
	}
	return nil
}

// SaveExecution persists one execution record.
func (s *Store) SaveExecution(ctx context.Context, rec ExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, insertExecutionSQL,
		rec.ID, rec.SessionID, rec.Agent, rec.Kind, rec.Status, rec.TxRef, rec.Details, rec.CreatedAt)
	if err != nil {
		return ierr.NewHistoryStoreError(fmt.Errorf("insert execution record: %w", err))
	}
	return nil
}

// RecentExecutions returns the newest execution records for a session.
func (s *Store) RecentExecutions(ctx context.Context, sessionID string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, agent, kind, status, tx_ref, details, created_at
		FROM execution_history
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, ierr.NewHistoryStoreError(fmt.Errorf("query execution history: %w", err))
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Agent, &rec.Kind, &rec.Status, &rec.TxRef, &rec.Details, &rec.CreatedAt); err != nil {
			return nil, ierr.NewHistoryStoreError(fmt.Errorf("scan execution record: %w", err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.NewHistoryStoreError(fmt.Errorf("iterate execution history: %w", err))
	}
	return out, nil
}
