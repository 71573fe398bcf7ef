package memorystore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/avneeshrai07/Agent-Memory-System/internal/db"
	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
)

// schemaName resolves the spec §9 Open Question ("two differently named
// schemas for equivalent tables; pick one") in favor of
// agentic_memory_schema, the name the newer original_source files use.
const schemaName = "agentic_memory_schema"

const memoriesTable = schemaName + ".memories"
const eventsTable = schemaName + ".memory_events"

// PostgresStore is the pgx/pgvector-backed implementation of Store.
type PostgresStore struct {
	pool   *db.Pool
	logger logging.Logger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *db.Pool, logger logging.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logging.OrNop(logger)}
}

// EnsureSchema creates the memories/memory_events tables and their indices
// if absent (spec §6 logical schema).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + schemaName,
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + memoriesTable + ` (
			memory_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			memory_kind TEXT NOT NULL,
			category TEXT NOT NULL,
			topic TEXT NOT NULL,
			fact TEXT NOT NULL,
			importance DOUBLE PRECISION NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			confidence_source TEXT NOT NULL,
			frequency INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'active',
			embedding vector(1024),
			metadata JSONB,
			evidence_count INTEGER NOT NULL DEFAULT 1,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_accessed TIMESTAMPTZ,
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_user_kind ON ` + memoriesTable + ` (user_id, memory_kind)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_episodic_expiry ON ` + memoriesTable + ` (expires_at) WHERE memory_kind = 'episodic'`,
		`CREATE INDEX IF NOT EXISTS idx_memories_factual_confidence ON ` + memoriesTable + ` (confidence_score DESC) WHERE memory_kind = 'factual'`,
		`CREATE INDEX IF NOT EXISTS idx_memories_embedding ON ` + memoriesTable + ` USING hnsw (embedding vector_cosine_ops)`,
		`CREATE TABLE IF NOT EXISTS ` + eventsTable + ` (
			event_id TEXT PRIMARY KEY,
			memory_id TEXT NOT NULL REFERENCES ` + memoriesTable + ` (memory_id) ON DELETE CASCADE,
			event_type TEXT NOT NULL,
			source TEXT,
			signal_strength DOUBLE PRECISION,
			raw_context TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_events_memory ON ` + eventsTable + ` (memory_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_events_type ON ` + eventsTable + ` (event_type)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("memorystore: ensure schema: %w", err)
		}
	}
	return nil
}

func toVector(e memory.Embedding) pgvector.Vector {
	return pgvector.NewVector([]float32(e))
}

func fromVector(v pgvector.Vector) memory.Embedding {
	return memory.Embedding(v.Slice())
}

func (s *PostgresStore) InsertMemory(ctx context.Context, m memory.Memory) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return "", fmt.Errorf("memorystore: marshal metadata: %w", err)
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.LastUpdated.IsZero() {
		m.LastUpdated = now
	}

	var embeddingArg any
	if len(m.Embedding) > 0 {
		embeddingArg = toVector(m.Embedding)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+memoriesTable+`
			(memory_id, user_id, memory_kind, category, topic, fact, importance,
			 confidence_score, confidence_source, frequency, status, embedding,
			 metadata, evidence_count, expires_at, created_at, last_updated, last_seen_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1,$14,$15,$16,$16)`,
		m.ID, m.UserID, string(m.Kind), m.Category, m.Topic, m.Fact, m.Importance,
		m.Confidence, string(m.ConfSource), m.Frequency, string(m.Status), embeddingArg,
		metaJSON, m.ExpiresAt, m.CreatedAt, m.LastUpdated,
	)
	if err != nil {
		return "", fmt.Errorf("memorystore: insert memory: %w", err)
	}
	return m.ID, nil
}

func (s *PostgresStore) ReinforceMemory(ctx context.Context, id string, importanceDelta float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+memoriesTable+`
		SET frequency = frequency + 1,
		    importance = LEAST(importance + $2, 10),
		    last_updated = now()
		WHERE memory_id = $1`, id, importanceDelta)
	if err != nil {
		return fmt.Errorf("memorystore: reinforce memory %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) NearestActiveFactual(ctx context.Context, userID, category, topic string, embedding memory.Embedding) (*ScoredMemory, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT memory_id, user_id, memory_kind, category, topic, fact, importance,
		       confidence_score, confidence_source, frequency, status, embedding,
		       metadata, expires_at, created_at, last_updated,
		       embedding <=> $4 AS distance
		FROM `+memoriesTable+`
		WHERE user_id = $1 AND memory_kind = 'factual' AND status = 'active'
		  AND category = $2 AND topic = $3
		ORDER BY embedding <=> $4
		LIMIT 1`, userID, category, topic, toVector(embedding))

	m, distance, err := scanScoredMemory(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memorystore: nearest active factual: %w", err)
	}
	return &ScoredMemory{Memory: m, Distance: distance}, nil
}

func (s *PostgresStore) SearchFactual(ctx context.Context, q NearestFactualQuery) ([]ScoredMemory, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	statusClause := "status = 'active'"
	if q.IncludeSupport {
		statusClause = "status IN ('active', 'supporting')"
	}

	rows, err := s.pool.Query(ctx, `
		SELECT memory_id, user_id, memory_kind, category, topic, fact, importance,
		       confidence_score, confidence_source, frequency, status, embedding,
		       metadata, expires_at, created_at, last_updated,
		       embedding <=> $3 AS distance
		FROM `+memoriesTable+`
		WHERE user_id = $1 AND memory_kind = 'factual' AND `+statusClause+` AND confidence_score >= $2
		ORDER BY embedding <=> $3
		LIMIT $4`, q.UserID, q.MinConfidence, toVector(q.Embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("memorystore: search factual: %w", err)
	}
	defer rows.Close()

	var out []ScoredMemory
	for rows.Next() {
		m, distance, err := scanScoredMemoryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("memorystore: scan factual row: %w", err)
		}
		out = append(out, ScoredMemory{Memory: m, Distance: distance})
	}
	return out, rows.Err()
}

func (s *PostgresStore) ActiveEpisodic(ctx context.Context, userID string) ([]memory.Memory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT memory_id, user_id, memory_kind, category, topic, fact, importance,
		       confidence_score, confidence_source, frequency, status, embedding,
		       metadata, expires_at, created_at, last_updated
		FROM `+memoriesTable+`
		WHERE user_id = $1 AND memory_kind = 'episodic' AND status = 'active' AND expires_at > now()
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("memorystore: active episodic: %w", err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("memorystore: scan episodic row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e memory.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+eventsTable+` (event_id, memory_id, event_type, source, signal_strength, raw_context, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.MemoryID, string(e.EventType), e.Source, e.SignalStrength, e.RawContext, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("memorystore: append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredEpisodic(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+memoriesTable+` WHERE memory_kind = 'episodic' AND expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("memorystore: delete expired episodic: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ActiveByUserAndKind(ctx context.Context, userID string, kind memory.Kind, limit int) ([]memory.Memory, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT memory_id, user_id, memory_kind, category, topic, fact, importance,
		       confidence_score, confidence_source, frequency, status, embedding,
		       metadata, expires_at, created_at, last_updated
		FROM `+memoriesTable+`
		WHERE user_id = $1 AND memory_kind = $2 AND status = 'active'
		ORDER BY confidence_score DESC, evidence_count DESC, last_seen_at DESC
		LIMIT $3`, userID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("memorystore: active by user/kind: %w", err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("memorystore: scan row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkMerged(ctx context.Context, canonicalID string, mergedIDs []string, evidenceDelta int) error {
	if len(mergedIDs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("memorystore: begin mark-merged tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE `+memoriesTable+`
		SET evidence_count = evidence_count + $2, last_seen_at = now()
		WHERE memory_id = $1`, canonicalID, evidenceDelta); err != nil {
		return fmt.Errorf("memorystore: bump canonical evidence_count: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE `+memoriesTable+`
		SET status = 'merged'
		WHERE memory_id = ANY($1)`, mergedIDs); err != nil {
		return fmt.Errorf("memorystore: mark merged rows: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) MarkSupporting(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE `+memoriesTable+` SET status = 'supporting' WHERE memory_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("memorystore: mark supporting: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveGroupedByTopic(ctx context.Context, userID string) (map[TopicKey][]memory.Memory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT memory_id, user_id, memory_kind, category, topic, fact, importance,
		       confidence_score, confidence_source, frequency, status, embedding,
		       metadata, expires_at, created_at, last_updated
		FROM `+memoriesTable+`
		WHERE user_id = $1 AND status = 'active'`, userID)
	if err != nil {
		return nil, fmt.Errorf("memorystore: active grouped by topic: %w", err)
	}
	defer rows.Close()

	groups := map[TopicKey][]memory.Memory{}
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("memorystore: scan row: %w", err)
		}
		key := TopicKey{Kind: m.Kind, Category: m.Category, Topic: m.Topic}
		groups[key] = append(groups[key], m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for key, members := range groups {
		if len(members) <= 1 {
			delete(groups, key)
		}
	}
	return groups, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMemoryRows(rows pgx.Rows) (memory.Memory, error) {
	return scanMemory(rows)
}

func scanScoredMemoryRows(rows pgx.Rows) (memory.Memory, float64, error) {
	return scanScoredMemory(rows)
}

func scanMemory(s scannable) (memory.Memory, error) {
	var m memory.Memory
	var kind, confSource, status string
	var embedding *pgvector.Vector
	var metaJSON []byte

	if err := s.Scan(
		&m.ID, &m.UserID, &kind, &m.Category, &m.Topic, &m.Fact, &m.Importance,
		&m.Confidence, &confSource, &m.Frequency, &status, &embedding,
		&metaJSON, &m.ExpiresAt, &m.CreatedAt, &m.LastUpdated,
	); err != nil {
		return memory.Memory{}, err
	}

	m.Kind = memory.Kind(kind)
	m.ConfSource = memory.ConfidenceSource(confSource)
	m.Status = memory.Status(status)
	if embedding != nil {
		m.Embedding = fromVector(*embedding)
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &m.Metadata)
	}
	return m, nil
}

func scanScoredMemory(s scannable) (memory.Memory, float64, error) {
	var m memory.Memory
	var kind, confSource, status string
	var embedding *pgvector.Vector
	var metaJSON []byte
	var distance float64

	if err := s.Scan(
		&m.ID, &m.UserID, &kind, &m.Category, &m.Topic, &m.Fact, &m.Importance,
		&m.Confidence, &confSource, &m.Frequency, &status, &embedding,
		&metaJSON, &m.ExpiresAt, &m.CreatedAt, &m.LastUpdated, &distance,
	); err != nil {
		return memory.Memory{}, 0, err
	}

	m.Kind = memory.Kind(kind)
	m.ConfSource = memory.ConfidenceSource(confSource)
	m.Status = memory.Status(status)
	if embedding != nil {
		m.Embedding = fromVector(*embedding)
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &m.Metadata)
	}
	return m, distance, nil
}
