// Package epistemic supplies the default rule set the orchestrator renders
// into the system prompt and checks pre-action (spec §4.8). Each rule is
// grounded on an invariant stated elsewhere in the spec for a specific
// component; this package is the one place they are collected and given
// priority/overrideable metadata.
package epistemic

import (
	domain "github.com/avneeshrai07/Agent-Memory-System/internal/domain/epistemic"
)

// RuleSet adapts a domain.Set to the orchestrator's Rules dependency so the
// system prompt assembler doesn't need to know about versioning or scopes.
type RuleSet struct{ set domain.Set }

// NewRuleSet wraps a rule set for use as an orchestrator.Rules.
func NewRuleSet(set domain.Set) RuleSet { return RuleSet{set: set} }

// Active returns every rule in the set; the caller is responsible for
// filtering by category when rendering (spec §4.8: invariants are enforced,
// not rendered).
func (r RuleSet) Active() []domain.Rule {
	return r.set.Rules
}

// DefaultRules returns the fixed rule set shipped with the process. A
// deployment can layer additional rules on top via a higher version number;
// this module does not support hot-reloading rule content.
func DefaultRules() domain.Set {
	return domain.Set{
		Version: 1,
		Rules: []domain.Rule{
			{
				ID:           "persona-never-overwritten-below-threshold",
				Category:     domain.CategoryInvariant,
				Scope:        domain.ScopeMemoryWrite,
				Priority:     10,
				Overrideable: false,
				Statement:    "A stored persona block is never overwritten by a projected block below the confidence override threshold.",
			},
			{
				ID:           "persona-never-partially-applied",
				Category:     domain.CategoryInvariant,
				Scope:        domain.ScopeMemoryWrite,
				Priority:     11,
				Overrideable: false,
				Statement:    "Persona merges are block-atomic; no partial persona update is ever persisted.",
			},
			{
				ID:           "factual-memory-requires-embedding",
				Category:     domain.CategoryInvariant,
				Scope:        domain.ScopeMemoryWrite,
				Priority:     20,
				Overrideable: false,
				Statement:    "A factual memory row is never persisted without a validated embedding vector.",
			},
			{
				ID:           "episodic-memory-requires-expiry",
				Category:     domain.CategoryInvariant,
				Scope:        domain.ScopeMemoryWrite,
				Priority:     21,
				Overrideable: false,
				Statement:    "An episodic memory row is never persisted without an expires_at at or after its created_at.",
			},
			{
				ID:           "stm-entry-requires-minimum-confidence",
				Category:     domain.CategoryInvariant,
				Scope:        domain.ScopeMemoryWrite,
				Priority:     22,
				Overrideable: false,
				Statement:    "An STM entry is never committed below the intent gate's minimum confidence.",
			},
			{
				ID:           "consolidation-never-deletes",
				Category:     domain.CategoryPrinciple,
				Scope:        domain.ScopeMemoryWrite,
				Priority:     30,
				Overrideable: true,
				Statement:    "Consolidation demotes or marks rows merged; it never deletes a row outright.",
				Rationale:    "Keeps every consolidation action reversible.",
			},
			{
				ID:           "episodic-never-competes-with-factual",
				Category:     domain.CategoryPrinciple,
				Scope:        domain.ScopeMemoryRetrieval,
				Priority:     40,
				Overrideable: true,
				Statement:    "Episodic rows always prime the prompt ahead of factual rows; factual retrieval never displaces them.",
			},
			{
				ID:           "retrieval-caps-are-per-category",
				Category:     domain.CategoryHeuristic,
				Scope:        domain.ScopeMemoryRetrieval,
				Priority:     41,
				Overrideable: true,
				Statement:    "Retrieval applies per-category caps rather than one flat result limit, so no single category crowds out the rest.",
			},
			{
				ID:           "prefer-provisional-over-silent-reject",
				Category:     domain.CategoryHeuristic,
				Scope:        domain.ScopeReasoning,
				Priority:     50,
				Overrideable: true,
				Statement:    "When evidence is inconclusive, prefer a provisional commit that a human can still correct over a silent rejection.",
			},
			{
				ID:           "reasoning-failure-defaults-to-reject",
				Category:     domain.CategoryInvariant,
				Scope:        domain.ScopeReasoning,
				Priority:     51,
				Overrideable: false,
				Statement:    "Any internal reasoning failure resolves to REJECT with reason=reasoning_error, never a silent commit.",
			},
		},
	}
}
