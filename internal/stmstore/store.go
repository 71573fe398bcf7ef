// Package stmstore implements the STM Store (C5) — append-only state
// entries with supersession — and the STM Intent Gate (C13), grounded on
// the original source's stm_intent_gatekeeper.py and the teacher's
// append-only-with-supersession tables pattern.
package stmstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avneeshrai07/Agent-Memory-System/internal/db"
	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/stm"
)

const schemaName = "agentic_memory_schema"
const table = schemaName + ".stm_entries"

type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			stm_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			state_type TEXT NOT NULL,
			statement TEXT NOT NULL,
			rationale TEXT,
			applies_to TEXT,
			supersedes TEXT REFERENCES `+table+` (stm_id) DEFERRABLE INITIALLY DEFERRED,
			confidence DOUBLE PRECISION NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("stmstore: ensure schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_stm_entries_active ON `+table+` (user_id, is_active, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("stmstore: ensure active index: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_stm_entries_supersedes ON `+table+` (supersedes)`)
	if err != nil {
		return fmt.Errorf("stmstore: ensure supersedes index: %w", err)
	}
	return nil
}

// Commit atomically inserts a new active STM entry, and — if Supersedes is
// set — deactivates its target within the same transaction (spec §3: "a
// supersedes pointer deactivates its target atomically").
func (s *Store) Commit(ctx context.Context, e stm.Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("stmstore: begin commit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var supersedes any
	if e.Supersedes != "" {
		supersedes = e.Supersedes
		if _, err := tx.Exec(ctx, `UPDATE `+table+` SET is_active = false WHERE stm_id = $1`, e.Supersedes); err != nil {
			return "", fmt.Errorf("stmstore: deactivate superseded entry: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO `+table+`
			(stm_id, user_id, state_type, statement, rationale, applies_to, supersedes, confidence, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true,$9)`,
		e.ID, e.UserID, string(e.StateType), e.Statement, e.Rationale, e.AppliesTo, supersedes, e.Confidence, e.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("stmstore: insert entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("stmstore: commit: %w", err)
	}
	return e.ID, nil
}

// ActiveForUser loads every active STM entry for a user, newest first —
// used to assemble the STM snapshot for route=current_context retrieval.
func (s *Store) ActiveForUser(ctx context.Context, userID string) ([]stm.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stm_id, user_id, state_type, statement, COALESCE(rationale,''), COALESCE(applies_to,''),
		       COALESCE(supersedes,''), confidence, is_active, created_at
		FROM `+table+`
		WHERE user_id = $1 AND is_active = true
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("stmstore: active for user: %w", err)
	}
	defer rows.Close()

	var out []stm.Entry
	for rows.Next() {
		var e stm.Entry
		var stateType string
		if err := rows.Scan(&e.ID, &e.UserID, &stateType, &e.Statement, &e.Rationale, &e.AppliesTo,
			&e.Supersedes, &e.Confidence, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("stmstore: scan: %w", err)
		}
		e.StateType = stm.StateType(stateType)
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindActiveByType returns currently-active entries of the same state_type
// for a user — the candidate set a caller may choose to supersede.
func (s *Store) FindActiveByType(ctx context.Context, userID string, stateType stm.StateType) ([]stm.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stm_id, user_id, state_type, statement, COALESCE(rationale,''), COALESCE(applies_to,''),
		       COALESCE(supersedes,''), confidence, is_active, created_at
		FROM `+table+`
		WHERE user_id = $1 AND state_type = $2 AND is_active = true
		ORDER BY created_at DESC`, userID, string(stateType))
	if err != nil {
		return nil, fmt.Errorf("stmstore: find active by type: %w", err)
	}
	defer rows.Close()

	var out []stm.Entry
	for rows.Next() {
		var e stm.Entry
		var st string
		if err := rows.Scan(&e.ID, &e.UserID, &st, &e.Statement, &e.Rationale, &e.AppliesTo,
			&e.Supersedes, &e.Confidence, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("stmstore: scan: %w", err)
		}
		e.StateType = stm.StateType(st)
		out = append(out, e)
	}
	return out, rows.Err()
}
