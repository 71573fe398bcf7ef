// Package memorystore implements the Memory Store (C3), the LTM Writer
// (C9), the Consolidator (C10), and Episodic Decay (C11) over a
// pgx/pgvector-backed Postgres table, grounded on the teacher's
// internal/infra/kernel/postgres_store.go (pool-backed store, transactional
// batch writes, FOR UPDATE SKIP LOCKED-style careful SQL) and the original
// source's store_ltm.py / consolidate_memories.py.
package memorystore

import (
	"context"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
)

// NearestFactualQuery is the input to an ANN lookup over active factual
// memories for one user.
type NearestFactualQuery struct {
	UserID          string
	Embedding       memory.Embedding
	MinConfidence   float64
	IncludeSupport  bool
	Limit           int
}

// ScoredMemory pairs a memory row with the cosine distance to a query
// embedding (smaller is closer).
type ScoredMemory struct {
	Memory   memory.Memory
	Distance float64
}

// Store is the storage contract for the memory table (C3).
type Store interface {
	// InsertMemory creates a new row and returns its assigned ID.
	InsertMemory(ctx context.Context, m memory.Memory) (string, error)
	// ReinforceMemory increments frequency and bumps importance in place.
	ReinforceMemory(ctx context.Context, id string, importanceDelta float64) error
	// NearestActiveFactual finds the single nearest active factual row for
	// the same user, category and topic (used by the LTM writer's dedup
	// check); rows of another category or topic are not compared.
	NearestActiveFactual(ctx context.Context, userID string, category, topic string, embedding memory.Embedding) (*ScoredMemory, error)
	// SearchFactual runs an ANN query per spec §4.6.
	SearchFactual(ctx context.Context, q NearestFactualQuery) ([]ScoredMemory, error)
	// ActiveEpisodic loads all active, non-expired episodic rows for a user,
	// newest first.
	ActiveEpisodic(ctx context.Context, userID string) ([]memory.Memory, error)
	// AppendEvent writes one append-only memory_events row.
	AppendEvent(ctx context.Context, e memory.Event) error
	// DeleteExpiredEpisodic removes episodic rows whose expires_at has
	// passed (C11). Returns the number of rows removed.
	DeleteExpiredEpisodic(ctx context.Context) (int64, error)

	// ActiveByUserAndKind loads active rows for consolidation, ordered by
	// (confidence DESC, evidence_count DESC, last_seen_at DESC).
	ActiveByUserAndKind(ctx context.Context, userID string, kind memory.Kind, limit int) ([]memory.Memory, error)
	// MarkMerged transitions rows to status=merged and bumps the
	// canonical's evidence_count/last_seen_at within a single transaction.
	MarkMerged(ctx context.Context, canonicalID string, mergedIDs []string, evidenceDelta int) error
	// MarkSupporting demotes rows to status=supporting (non-destructive).
	MarkSupporting(ctx context.Context, ids []string) error
	// ActiveGroupedByTopic loads active rows grouped by (kind, category,
	// topic) having more than one member, for L2 canonicalization.
	ActiveGroupedByTopic(ctx context.Context, userID string) (map[TopicKey][]memory.Memory, error)
}

// TopicKey groups memories for L2 canonicalization.
type TopicKey struct {
	Kind     memory.Kind
	Category string
	Topic    string
}
