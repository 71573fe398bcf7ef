package memorystore

import (
	"context"
	"fmt"
	"math"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/errors"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
	"github.com/avneeshrai07/Agent-Memory-System/internal/metrics"
)

// DuplicateThreshold is the default L1 cosine-similarity floor (spec §4.4:
// "1 - cosine(embedding) >= threshold, default 0.85").
const DuplicateThreshold = 0.85

// Consolidator implements C10: Level-1 duplicate merging by cosine
// similarity, and Level-2 topic canonicalization. Level-1 marks each
// cluster through its own Store.MarkMerged call and Level-2 demotes each
// group through its own Store.MarkSupporting call; a run for a user is not
// wrapped in one transaction, so clusters or groups handled before a
// failure stay in their new state.
type Consolidator struct {
	store     Store
	threshold float64
	logger    logging.Logger
	metrics   *metrics.Memory
}

func NewConsolidator(store Store, logger logging.Logger) *Consolidator {
	return &Consolidator{store: store, threshold: DuplicateThreshold, logger: logging.OrNop(logger)}
}

// WithMetrics attaches a metrics sink; nil is safe (no-op).
func (c *Consolidator) WithMetrics(m *metrics.Memory) *Consolidator {
	c.metrics = m
	return c
}

func (c *Consolidator) recordConsolidation(level, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordConsolidation(level, outcome)
	}
}

// ConsolidationResult follows the spec §9 explicit-result-tagging design
// instead of raising on partial failure.
type ConsolidationResult struct {
	Merged     int
	Demoted    int
	ErrorType  errors.ErrorType
	Err        error
}

// RunLevel1 loads the top-K active memories of one kind for a user (ordered
// confidence DESC, evidence_count DESC, last_seen_at DESC per spec §4.4),
// clusters near-duplicates by cosine similarity within the same kind, and
// merges each cluster down to one canonical row.
func (c *Consolidator) RunLevel1(ctx context.Context, userID string, kind memory.Kind, topK int) ConsolidationResult {
	candidates, err := c.store.ActiveByUserAndKind(ctx, userID, kind, topK)
	if err != nil {
		return ConsolidationResult{ErrorType: errors.ErrorTypeTransient, Err: err}
	}

	visited := make(map[string]bool, len(candidates))
	merged := 0

	for i, base := range candidates {
		if visited[base.ID] {
			continue
		}
		var peers []memory.Memory
		for j, other := range candidates {
			if i == j || visited[other.ID] {
				continue
			}
			// spec §4.4's "1 - cosine(embedding) >= threshold" reads cosine()
			// as the distance a pgvector <=> query returns; here that is
			// 1 - cosineSimilarity, so the duplicate test is directly on
			// similarity >= threshold (confirmed by spec §8 scenario 5: two
			// rows at cosine similarity 0.95 merge under the 0.85 default).
			if cosineSimilarity(base.Embedding, other.Embedding) >= c.threshold {
				peers = append(peers, other)
			}
		}
		if len(peers) == 0 {
			visited[base.ID] = true
			continue
		}

		cluster := append([]memory.Memory{base}, peers...)
		canonical, rest := pickCanonical(cluster)

		mergedIDs := make([]string, 0, len(rest))
		for _, r := range rest {
			mergedIDs = append(mergedIDs, r.ID)
			visited[r.ID] = true
		}
		visited[canonical.ID] = true

		if err := c.store.MarkMerged(ctx, canonical.ID, mergedIDs, len(mergedIDs)); err != nil {
			c.recordConsolidation("level1", "error")
			return ConsolidationResult{Merged: merged, ErrorType: errors.ErrorTypeTransient, Err: fmt.Errorf("mark merged: %w", err)}
		}
		merged += len(mergedIDs)
		c.recordConsolidation("level1", "merged")
	}

	return ConsolidationResult{Merged: merged}
}

// RunLevel2 groups active memories by (kind, category, topic), and
// within any group with more than one member, demotes every non-canonical
// row to status=supporting (non-destructive, reversible per spec §4.4).
func (c *Consolidator) RunLevel2(ctx context.Context, userID string) ConsolidationResult {
	groups, err := c.store.ActiveGroupedByTopic(ctx, userID)
	if err != nil {
		return ConsolidationResult{ErrorType: errors.ErrorTypeTransient, Err: err}
	}

	demoted := 0
	for _, members := range groups {
		if len(members) <= 1 {
			continue
		}
		canonical, rest := pickCanonical(members)
		ids := make([]string, 0, len(rest))
		for _, r := range rest {
			ids = append(ids, r.ID)
		}
		_ = canonical
		if err := c.store.MarkSupporting(ctx, ids); err != nil {
			c.recordConsolidation("level2", "error")
			return ConsolidationResult{Demoted: demoted, ErrorType: errors.ErrorTypeTransient, Err: fmt.Errorf("mark supporting: %w", err)}
		}
		demoted += len(ids)
		c.recordConsolidation("level2", "demoted")
	}

	return ConsolidationResult{Demoted: demoted}
}

// pickCanonical selects the canonical row from a cluster by
// (confidence DESC, evidence_count DESC, last_seen_at DESC) — approximated
// here by (confidence DESC, frequency DESC, last_updated DESC) since
// evidence_count/last_seen_at live only in storage, not the domain type.
func pickCanonical(cluster []memory.Memory) (memory.Memory, []memory.Memory) {
	best := 0
	for i := 1; i < len(cluster); i++ {
		if better(cluster[i], cluster[best]) {
			best = i
		}
	}
	canonical := cluster[best]
	rest := make([]memory.Memory, 0, len(cluster)-1)
	for i, m := range cluster {
		if i != best {
			rest = append(rest, m)
		}
	}
	return canonical, rest
}

func better(a, b memory.Memory) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	return a.LastUpdated.After(b.LastUpdated)
}

// cosineSimilarity computes the cosine similarity of two equal-length
// vectors. Mismatched lengths return 0 (treated as maximally dissimilar).
func cosineSimilarity(a, b memory.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance is 1 - cosineSimilarity, used wherever the spec speaks of
// "distance" directly (e.g. the LTM writer's dedup check).
func cosineDistance(a, b memory.Embedding) float64 {
	return 1 - cosineSimilarity(a, b)
}
