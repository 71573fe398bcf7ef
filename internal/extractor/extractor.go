// Package extractor wraps the structured-output LLM (C2): schema-constrained
// extraction of persona blocks, factual/episodic facts, and combined STM +
// route intent, grounded on the teacher's llm.Factory/retryClient contracts
// (internal/infra/llm) adapted to this domain's fixed output shapes.
package extractor

import (
	"context"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/cognition"
	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/stm"
)

// Route classifies how a turn should be answered (spec §4.7).
type Route string

const (
	RouteCurrentContext Route = "current_context"
	RouteEdit           Route = "edit"
	RouteReference      Route = "reference"
	RouteSemanticLookup Route = "semantic_lookup"
)

// FactualFact is one extracted durable fact, pre-embedding.
type FactualFact struct {
	Category   string
	Topic      string
	Fact       string
	Importance float64
	Confidence float64
	Source     string // memory.ConfidenceSource value
}

// EpisodicFact is one extracted short-lived binding.
type EpisodicFact struct {
	Scope string // memory.EpisodicScope value
	Key   string
	Value string
}

// PersonaSignals bundles the cognition signals an extraction turn proposes
// for persona/learnable fields (spec §4.1 input shape).
type PersonaSignals struct {
	Signals []cognition.Signal
}

// TurnExtraction is everything the structured extractor produces for one
// turn: the combined STM+route intent (spec §4.7 step 1), and the raw
// material for persona learning / LTM writing, enqueued as background work.
type TurnExtraction struct {
	Route         Route
	STMIntent     stm.Intent
	PersonaSignal PersonaSignals
	Factual       []FactualFact
	Episodic      []EpisodicFact
}

// Extractor is the schema-constrained structured-output contract (C2).
// Nil or schema-mismatched output is never an error to the caller — per
// spec §7 it is treated as "nothing extracted" and the pipeline continues.
type Extractor interface {
	ExtractTurn(ctx context.Context, userID, systemPrompt, userPrompt string) (TurnExtraction, error)
}
