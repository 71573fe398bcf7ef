// Package artifact implements the artifact lifecycle referenced in spec
// §4.7/§6: writing a materialized response body to the object store and
// persisting its metadata row, grounded on the teacher's
// internal/infra/kernel/postgres_store.go table-plus-pool style.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avneeshrai07/Agent-Memory-System/internal/db"
	"github.com/avneeshrai07/Agent-Memory-System/internal/objectstore"
)

const schemaName = "agentic_memory_schema"
const table = schemaName + ".artifacts"

// MaterializationThreshold is the fixed predicate length the orchestrator
// applies (spec §4.7: "route == current_context AND length(trim(response))
// > 200"), surfaced here as a tunable per spec §9 design note.
const MaterializationThreshold = 200

// DefaultType is applied when a caller does not specify an artifact type
// (spec §6: "persist metadata row... under type=email by default").
const DefaultType = "email"

// Metadata is the persisted artifacts row.
type Metadata struct {
	ID            string
	ArtifactType  string
	Summary       string
	Metadata      map[string]any
	ContentRef    string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// ShouldMaterialize applies the fixed artifact creation predicate.
func ShouldMaterialize(route string, response string) bool {
	return route == "current_context" && len(strings.TrimSpace(response)) > MaterializationThreshold
}

// Store persists artifact metadata rows.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			artifact_id TEXT PRIMARY KEY,
			artifact_type TEXT NOT NULL,
			summary TEXT,
			metadata JSONB,
			content_ref TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("artifact: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, m Metadata) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ArtifactType == "" {
		m.ArtifactType = DefaultType
	}
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return "", fmt.Errorf("artifact: marshal metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+table+` (artifact_id, artifact_type, summary, metadata, content_ref, created_at, last_updated_at)
		VALUES ($1,$2,$3,$4,$5, now(), now())`,
		m.ID, m.ArtifactType, m.Summary, metaJSON, m.ContentRef)
	if err != nil {
		return "", fmt.Errorf("artifact: insert: %w", err)
	}
	return m.ID, nil
}

// Materializer writes a response body to the object store and persists its
// metadata row — the spec §4.7 "artifact materialization" background job.
type Materializer struct {
	objectStore objectstore.Client
	metaStore   *Store
}

func NewMaterializer(objectStore objectstore.Client, metaStore *Store) *Materializer {
	return &Materializer{objectStore: objectStore, metaStore: metaStore}
}

func (m *Materializer) Materialize(ctx context.Context, artifactType, summary, body string, metadata map[string]any) (string, error) {
	id := uuid.NewString()
	if artifactType == "" {
		artifactType = DefaultType
	}
	contentRef, err := m.objectStore.Write(ctx, artifactType, id, []byte(body))
	if err != nil {
		return "", fmt.Errorf("artifact: write body: %w", err)
	}
	if _, err := m.metaStore.Insert(ctx, Metadata{
		ID: id, ArtifactType: artifactType, Summary: summary, Metadata: metadata, ContentRef: contentRef,
	}); err != nil {
		return "", fmt.Errorf("artifact: persist metadata: %w", err)
	}
	return id, nil
}
