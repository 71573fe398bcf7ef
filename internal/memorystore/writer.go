package memorystore

import (
	"context"
	"fmt"
	"time"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/errors"
	"github.com/avneeshrai07/Agent-Memory-System/internal/extractor"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
	"github.com/avneeshrai07/Agent-Memory-System/internal/metrics"
)

// SemanticDupDistance is the cosine-distance threshold below which a new
// fact is considered a duplicate of an existing active factual row and is
// reinforced in place instead of inserted (spec §4.3).
const SemanticDupDistance = 0.12

// EmbedFunc embeds a single piece of text; the LTM writer only ever embeds
// the literal fact text, never a query.
type EmbedFunc func(ctx context.Context, text string) (memory.Embedding, error)

// Writer implements the LTM Writer (C9): per-fact dedup/reinforce/insert for
// factual extractions, TTL'd insert for episodic extractions, with
// per-fact error isolation so one bad fact never aborts the batch.
type Writer struct {
	store   Store
	embed   EmbedFunc
	logger  logging.Logger
	metrics *metrics.Memory
}

func NewWriter(store Store, embed EmbedFunc, logger logging.Logger) *Writer {
	return &Writer{store: store, embed: embed, logger: logging.OrNop(logger)}
}

// WithMetrics attaches a metrics sink; nil is safe (no-op).
func (w *Writer) WithMetrics(m *metrics.Memory) *Writer {
	w.metrics = m
	return w
}

// WriteResult reports per-fact outcomes for one batch, following the
// spec §9 "exceptions for control flow -> explicit result tagging" design.
type WriteResult struct {
	Inserted   int
	Reinforced int
	Failed     int
	Errors     []error
}

// WriteFactual processes each extracted factual fact independently: a
// failure on one fact is recorded and the batch continues (spec §4.3
// failure semantics).
func (w *Writer) WriteFactual(ctx context.Context, userID string, facts []extractor.FactualFact, rawContext string) WriteResult {
	var result WriteResult
	truncated := memory.TruncateRawContext(rawContext)

	for _, f := range facts {
		if err := w.writeOneFactual(ctx, userID, f, truncated, &result); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("fact %q: %w", f.Fact, err))
			w.logger.Warn("ltm writer: fact %q failed: %v", f.Fact, err)
		}
	}
	return result
}

func (w *Writer) writeOneFactual(ctx context.Context, userID string, f extractor.FactualFact, rawContext string, result *WriteResult) error {
	embedding, err := w.embed(ctx, f.Fact)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	nearest, err := w.store.NearestActiveFactual(ctx, userID, f.Category, f.Topic, embedding)
	if err != nil {
		return errors.MarkTransient(fmt.Errorf("nearest lookup: %w", err))
	}

	if nearest != nil && nearest.Distance < SemanticDupDistance {
		if err := w.store.ReinforceMemory(ctx, nearest.Memory.ID, 0.5); err != nil {
			return errors.MarkTransient(fmt.Errorf("reinforce: %w", err))
		}
		if err := w.store.AppendEvent(ctx, memory.Event{
			MemoryID:       nearest.Memory.ID,
			EventType:      memory.EventExtracted,
			Source:         "llm",
			SignalStrength: f.Confidence,
			RawContext:     rawContext,
		}); err != nil {
			return errors.MarkTransient(fmt.Errorf("append event: %w", err))
		}
		result.Reinforced++
		if w.metrics != nil {
			w.metrics.RecordReinforcement()
			w.metrics.RecordWrite("factual", "reinforced")
		}
		return nil
	}

	now := time.Now().UTC()
	m := memory.Memory{
		UserID:      userID,
		Kind:        memory.KindFactual,
		Category:    f.Category,
		Topic:       f.Topic,
		Fact:        f.Fact,
		Importance:  f.Importance,
		Confidence:  f.Confidence,
		ConfSource:  memory.ConfidenceSource(f.Source),
		Frequency:   1,
		Status:      memory.StatusActive,
		Embedding:   embedding,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	id, err := w.store.InsertMemory(ctx, m)
	if err != nil {
		return errors.MarkTransient(fmt.Errorf("insert: %w", err))
	}
	if err := w.store.AppendEvent(ctx, memory.Event{
		MemoryID:       id,
		EventType:      memory.EventExtracted,
		Source:         "llm",
		SignalStrength: f.Confidence,
		RawContext:     rawContext,
	}); err != nil {
		return errors.MarkTransient(fmt.Errorf("append event: %w", err))
	}
	result.Inserted++
	if w.metrics != nil {
		w.metrics.RecordWrite("factual", "inserted")
	}
	return nil
}

// WriteEpisodic inserts each extracted episodic binding with its scope's
// TTL (spec §4.3). Episodic rows never deduplicate against factual rows or
// against each other.
func (w *Writer) WriteEpisodic(ctx context.Context, userID string, facts []extractor.EpisodicFact) WriteResult {
	var result WriteResult
	now := time.Now().UTC()

	for _, f := range facts {
		scope := memory.EpisodicScope(f.Scope)
		expiresAt := memory.ExpiryFor(scope, now)
		m := memory.Memory{
			UserID:      userID,
			Kind:        memory.KindEpisodic,
			Category:    "context_type",
			Topic:       f.Key,
			Fact:        fmt.Sprintf("%s: %s", f.Key, f.Value),
			Importance:  1.0,
			Confidence:  1.0,
			ConfSource:  memory.SourceDerived,
			Frequency:   1,
			Status:      memory.StatusActive,
			Metadata:    map[string]any{"scope": string(scope), "source": "episodic_extraction"},
			ExpiresAt:   &expiresAt,
			CreatedAt:   now,
			LastUpdated: now,
		}
		if err := m.Validate(); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("episodic %q: %w", f.Key, err))
			continue
		}
		if _, err := w.store.InsertMemory(ctx, m); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("episodic %q: insert: %w", f.Key, err))
			w.logger.Warn("ltm writer: episodic %q failed: %v", f.Key, err)
			continue
		}
		result.Inserted++
		if w.metrics != nil {
			w.metrics.RecordWrite("episodic", "inserted")
		}
	}
	return result
}
