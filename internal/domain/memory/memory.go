// Package memory defines the factual/episodic memory entity, its event log,
// and the closed enums that gate transitions, grounded on spec section 3 and
// the teacher's kerneldomain record-plus-enum style (internal/domain/kernel).
package memory

import (
	"fmt"
	"time"
)

// Kind distinguishes durable facts from short-lived referential context.
type Kind string

const (
	KindFactual  Kind = "factual"
	KindEpisodic Kind = "episodic"
)

// Status tracks a memory row's lifecycle. Transitions only ever move
// forward: active -> {merged, supporting, historical}; merged rows never
// resurrect.
type Status string

const (
	StatusActive      Status = "active"
	StatusHistorical  Status = "historical"
	StatusConflicting Status = "conflicting"
	StatusMerged      Status = "merged"
	StatusSupporting  Status = "supporting"
)

// ConfidenceSource fixes the union documented in spec §9 (varies between
// source files; this is the union this implementation commits to).
type ConfidenceSource string

const (
	SourceExplicit  ConfidenceSource = "explicit"
	SourceImplicit  ConfidenceSource = "implicit"
	SourceDerived   ConfidenceSource = "derived"
	SourceValidated ConfidenceSource = "validated"
	SourceInferred  ConfidenceSource = "inferred"
)

// EmbeddingDimension is the single fixed vector width every memory and
// query embedding must satisfy (spec §9 Open Question: 1024 is chosen;
// mismatches are rejected at the boundary, never silently resized).
const EmbeddingDimension = 1024

// Embedding is a unit-normalized fixed-width vector.
type Embedding []float32

// Validate rejects any embedding whose dimensionality does not match
// EmbeddingDimension.
func (e Embedding) Validate() error {
	if len(e) != EmbeddingDimension {
		return fmt.Errorf("memory: embedding has dimension %d, want %d", len(e), EmbeddingDimension)
	}
	return nil
}

// Memory is the factual or episodic row described in spec §3.
type Memory struct {
	ID     string
	UserID string
	Kind   Kind

	Category string
	Topic    string
	Fact     string

	Importance float64
	Confidence float64
	ConfSource ConfidenceSource

	Frequency int
	Status    Status

	Embedding Embedding
	Metadata  map[string]any

	ExpiresAt *time.Time

	CreatedAt    time.Time
	LastUpdated  time.Time
	LastAccessed *time.Time
}

// Validate enforces the invariants from spec §3 and §8: episodic rows carry
// an expiry, factual rows carry an embedding, confidence/importance stay in
// range, frequency is positive once a row exists.
func (m Memory) Validate() error {
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("memory: confidence %v out of [0,1]", m.Confidence)
	}
	if m.Importance < 0 || m.Importance > 10 {
		return fmt.Errorf("memory: importance %v out of [0,10]", m.Importance)
	}
	if m.Frequency < 1 {
		return fmt.Errorf("memory: frequency must be >= 1")
	}
	switch m.Kind {
	case KindFactual:
		if err := m.Embedding.Validate(); err != nil {
			return fmt.Errorf("memory: factual row: %w", err)
		}
	case KindEpisodic:
		if m.ExpiresAt == nil {
			return fmt.Errorf("memory: episodic row requires expires_at")
		}
		if m.CreatedAt.After(*m.ExpiresAt) {
			return fmt.Errorf("memory: episodic row created_at after expires_at")
		}
	default:
		return fmt.Errorf("memory: unknown kind %q", m.Kind)
	}
	return nil
}

// EventType enumerates the append-only memory_events log per spec §3.
type EventType string

const (
	EventExtracted  EventType = "extracted"
	EventReinforced EventType = "reinforced"
	EventRetrieved  EventType = "retrieved"
	EventMerged     EventType = "merged"
	EventConflicted EventType = "conflicted"
	EventDeprecated EventType = "deprecated"
)

// RawContextMaxLen is the truncation length applied to raw_context before
// it is persisted (spec §4.3).
const RawContextMaxLen = 500

// Event is an append-only record; events are never updated after insert.
type Event struct {
	ID             string
	MemoryID       string
	EventType      EventType
	Source         string
	SignalStrength float64
	RawContext     string
	CreatedAt      time.Time
}

// TruncateRawContext enforces the 500-char cap spec §4.3 requires on
// every extracted event.
func TruncateRawContext(s string) string {
	if len(s) <= RawContextMaxLen {
		return s
	}
	return s[:RawContextMaxLen]
}
