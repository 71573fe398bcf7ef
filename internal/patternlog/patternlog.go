// Package patternlog implements the Pattern Log (C6): an append-only record
// of every cognition signal+decision, partitioned by
// (user_id, signal_category, signal_field, signal_value), and the frequency
// lookup the Cognition Engine (C7) consults. Grounded on the teacher's
// append-only event-log tables (internal/infra/kernel/postgres_store.go).
package patternlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avneeshrai07/Agent-Memory-System/internal/db"
	domaincognition "github.com/avneeshrai07/Agent-Memory-System/internal/domain/cognition"
)

const schemaName = "agentic_memory_schema"
const table = schemaName + ".pattern_logs"

// Entry is one append-only pattern_logs row.
type Entry struct {
	ID             string
	UserID         string
	SignalCategory string
	SignalField    string
	SignalValue    any
	Action         domaincognition.Action
	Target         domaincognition.Target
	Confidence     float64
	Reason         string
	CreatedAt      time.Time
}

// Store appends signal+decision pairs and answers the frequency lookup C7
// needs.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			signal_category TEXT NOT NULL,
			signal_field TEXT NOT NULL,
			signal_value JSONB NOT NULL,
			action TEXT NOT NULL,
			target TEXT,
			confidence DOUBLE PRECISION,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("patternlog: ensure schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_pattern_logs_partition
		ON `+table+` (user_id, signal_category, signal_field, signal_value)`)
	if err != nil {
		return fmt.Errorf("patternlog: ensure index: %w", err)
	}
	return nil
}

// Append writes one signal+decision pair. Persona short-circuited signals
// are never appended (the orchestrator's learnPersona skips persona-role
// signals before calling Append; see spec §4.1 step 1).
func (s *Store) Append(ctx context.Context, userID string, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	valueJSON, err := json.Marshal(e.SignalValue)
	if err != nil {
		return fmt.Errorf("patternlog: marshal signal value: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+table+`
			(id, user_id, signal_category, signal_field, signal_value, action, target, confidence, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())`,
		e.ID, userID, e.SignalCategory, e.SignalField, valueJSON, string(e.Action), string(e.Target), e.Confidence, e.Reason)
	if err != nil {
		return fmt.Errorf("patternlog: append: %w", err)
	}
	return nil
}

// CountPriorOccurrences implements cognition.FrequencyLookup: counts prior
// rows matching (category, field, value) for frequency enrichment.
func (s *Store) CountPriorOccurrences(category, field string, value any) (int, error) {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("patternlog: marshal value: %w", err)
	}
	row := s.pool.QueryRow(context.Background(), `
		SELECT count(*) FROM `+table+`
		WHERE signal_category = $1 AND signal_field = $2 AND signal_value = $3::jsonb`,
		category, field, valueJSON)

	var n int
	if err := row.Scan(&n); err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("patternlog: count prior occurrences: %w", err)
	}
	return n, nil
}
