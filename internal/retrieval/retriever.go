// Package retrieval implements the Intent-Aware Retriever (C12): query
// chunking, embedding-based intent classification, hybrid factual scoring,
// episodic priming, and per-category/per-intent capping. Grounded on the
// original source's retrieval/router.py and the teacher's small
// scoring-table style.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/logging"
	"github.com/avneeshrai07/Agent-Memory-System/internal/memorystore"
)

// Intent is the fixed classification set controlling retrieval caps.
type Intent string

const (
	IntentExploratory Intent = "exploratory"
	IntentFocused     Intent = "focused"
	IntentMinimal     Intent = "minimal"
)

// minChunkLength is the floor a query chunk must clear to be kept (spec §4.6).
const minChunkLength = 8

// intentFallbackThreshold is the cosine-similarity floor below which intent
// classification falls back to minimal (spec §4.6).
const intentFallbackThreshold = 0.25

// minFactualConfidence is the floor applied to factual ANN candidates
// (spec §4.6): "confidence >= 0.65".
const minFactualConfidence = 0.65

// qualifyingDistance is the distance ceiling a candidate qualifies under
// even without a topic-token match (spec §4.6: "distance <= 1.05").
const qualifyingDistance = 1.05

// episodicBoost is added to a factual row's score when a high-confidence
// episodic row's fact is textually contained in it (spec §4.6).
const episodicBoost = 1.5

// EmbedFunc embeds arbitrary text (queries and intent prototype templates).
type EmbedFunc func(ctx context.Context, text string) (memory.Embedding, error)

// Result is what a retrieval call returns: episodic rows prime the prompt,
// factual rows never compete with them (spec §4.6/§8 invariant 6).
type Result struct {
	Episodic []memory.Memory
	Factual  []memory.Memory
	Intent   Intent
}

// Retriever implements C12.
type Retriever struct {
	store      memorystore.Store
	embed      EmbedFunc
	logger     logging.Logger
	prototypes map[Intent]memory.Embedding
}

// intentTemplates are the fixed strings mean-pooled into each intent's
// prototype embedding at startup (spec §4.6).
var intentTemplates = map[Intent][]string{
	IntentExploratory: {
		"tell me everything you know about this topic",
		"give me a broad overview and background",
		"what are all the relevant details and context",
	},
	IntentFocused: {
		"answer this specific question directly",
		"what is the exact value or fact",
		"give me a precise targeted answer",
	},
	IntentMinimal: {
		"quick reminder",
		"short answer please",
		"just confirm one detail",
	},
}

// NewRetriever computes the three intent prototypes via mean-pooling (spec
// §4.6: "compute mean-pool prototypes... from fixed template strings").
func NewRetriever(ctx context.Context, store memorystore.Store, embed EmbedFunc, logger logging.Logger) (*Retriever, error) {
	r := &Retriever{store: store, embed: embed, logger: logging.OrNop(logger), prototypes: map[Intent]memory.Embedding{}}

	for intent, templates := range intentTemplates {
		vecs := make([]memory.Embedding, 0, len(templates))
		for _, t := range templates {
			v, err := embed(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("retrieval: embed prototype template for %s: %w", intent, err)
			}
			vecs = append(vecs, v)
		}
		r.prototypes[intent] = meanPool(vecs)
	}
	return r, nil
}

func meanPool(vecs []memory.Embedding) memory.Embedding {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	out := make(memory.Embedding, dim)
	for _, v := range vecs {
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float32(len(vecs))
	}
	return out
}

// Chunk splits a user query on newline, period, and the word "and", keeping
// chunks whose length exceeds minChunkLength (spec §4.6).
func Chunk(query string) []string {
	replacer := strings.NewReplacer("\n", "\x00", ".", "\x00")
	normalized := replacer.Replace(query)
	normalized = strings.ReplaceAll(normalized, " and ", "\x00")

	var chunks []string
	for _, part := range strings.Split(normalized, "\x00") {
		trimmed := strings.TrimSpace(part)
		if len(trimmed) > minChunkLength {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

// ClassifyIntent embeds the full query and picks the intent whose prototype
// has the highest cosine similarity; falls back to minimal below the
// threshold (spec §4.6).
func (r *Retriever) ClassifyIntent(ctx context.Context, query string) (Intent, error) {
	queryVec, err := r.embed(ctx, query)
	if err != nil {
		return IntentMinimal, fmt.Errorf("retrieval: embed query: %w", err)
	}

	best := IntentMinimal
	bestScore := -1.0
	for intent, proto := range r.prototypes {
		score := cosineSimilarity(queryVec, proto)
		if score > bestScore {
			bestScore = score
			best = intent
		}
	}
	if bestScore < intentFallbackThreshold {
		return IntentMinimal, nil
	}
	return best, nil
}

// categoryCaps is the per-category cap table indexed by intent (spec
// §4.6). Unlisted categories default to 1.
var categoryCaps = map[Intent]map[string]int{
	IntentExploratory: {"technical_context": 3, "problem_domain": 3, "constraint": 2, "preference": 1},
	IntentFocused:     {"technical_context": 2, "problem_domain": 1, "constraint": 1},
	IntentMinimal:     {"technical_context": 1, "constraint": 1},
}

func capFor(intent Intent, category string) int {
	if caps, ok := categoryCaps[intent]; ok {
		if n, ok := caps[category]; ok {
			return n
		}
	}
	return 1
}

// Retrieve runs the full C12 pipeline for one turn: chunk, classify intent,
// retrieve episodic (always) and factual (per chunk, capped).
func (r *Retriever) Retrieve(ctx context.Context, userID, query string) (Result, error) {
	chunks := Chunk(query)

	episodic, err := r.retrieveEpisodic(ctx, userID, chunks)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: episodic: %w", err)
	}

	if len(chunks) == 0 {
		return Result{Episodic: episodic, Factual: nil, Intent: IntentMinimal}, nil
	}

	intent, err := r.ClassifyIntent(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: classify intent: %w", err)
	}

	factual, err := r.retrieveFactual(ctx, userID, chunks, episodic, intent)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: factual: %w", err)
	}

	return Result{Episodic: episodic, Factual: factual, Intent: intent}, nil
}

const defaultEpisodicLimit = 10

func (r *Retriever) retrieveEpisodic(ctx context.Context, userID string, chunks []string) ([]memory.Memory, error) {
	rows, err := r.store.ActiveEpisodic(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return cap0(rows, defaultEpisodicLimit), nil
	}

	type scored struct {
		m     memory.Memory
		score int
	}
	scoredRows := make([]scored, 0, len(rows))
	for _, m := range rows {
		overlap := 0
		lowerFact := strings.ToLower(m.Fact)
		for _, c := range chunks {
			if strings.Contains(lowerFact, strings.ToLower(c)) {
				overlap++
			}
		}
		scoredRows = append(scoredRows, scored{m: m, score: overlap})
	}
	sort.SliceStable(scoredRows, func(i, j int) bool {
		if scoredRows[i].score != scoredRows[j].score {
			return scoredRows[i].score > scoredRows[j].score
		}
		if scoredRows[i].m.Confidence != scoredRows[j].m.Confidence {
			return scoredRows[i].m.Confidence > scoredRows[j].m.Confidence
		}
		return scoredRows[i].m.CreatedAt.After(scoredRows[j].m.CreatedAt)
	})

	out := make([]memory.Memory, 0, len(scoredRows))
	for _, s := range scoredRows {
		out = append(out, s.m)
	}
	return cap0(out, defaultEpisodicLimit), nil
}

func cap0(rows []memory.Memory, limit int) []memory.Memory {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func (r *Retriever) retrieveFactual(ctx context.Context, userID string, chunks []string, episodic []memory.Memory, intent Intent) ([]memory.Memory, error) {
	seen := map[string]bool{} // key: category|topic
	type candidate struct {
		m        memory.Memory
		distance float64
	}
	var candidates []candidate

	for _, chunk := range chunks {
		vec, err := r.embed(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %q: %w", chunk, err)
		}
		results, err := r.store.SearchFactual(ctx, memorystore.NearestFactualQuery{
			UserID: userID, Embedding: vec, MinConfidence: minFactualConfidence, IncludeSupport: false, Limit: 20,
		})
		if err != nil {
			return nil, err
		}

		tokens := tokenize(chunk)
		for _, sm := range results {
			key := sm.Memory.Category + "|" + sm.Memory.Topic
			if seen[key] {
				continue
			}
			topicMatch := tokens[strings.ToLower(sm.Memory.Topic)]
			if !topicMatch && sm.Distance > qualifyingDistance {
				continue
			}
			seen[key] = true
			candidates = append(candidates, candidate{m: sm.Memory, distance: sm.Distance})
		}
	}

	type scored struct {
		m     memory.Memory
		score float64
	}
	scoredRows := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		topicMatch := 0.0
		for _, chunk := range chunks {
			if tokenize(chunk)[strings.ToLower(c.m.Topic)] {
				topicMatch = 1.0
				break
			}
		}
		boost := 0.0
		for _, ep := range episodic {
			if ep.Confidence >= 0.8 && strings.Contains(strings.ToLower(c.m.Fact), strings.ToLower(ep.Fact)) {
				boost = episodicBoost
				break
			}
		}
		distanceComponent := 1 - min(c.distance, 1)
		score := 2*topicMatch + distanceComponent + c.m.Importance/10 + c.m.Confidence + boost
		scoredRows = append(scoredRows, scored{m: c.m, score: score})
	}

	sort.SliceStable(scoredRows, func(i, j int) bool { return scoredRows[i].score > scoredRows[j].score })

	counts := map[string]int{}
	var out []memory.Memory
	for _, s := range scoredRows {
		limit := capFor(intent, s.m.Category)
		if counts[s.m.Category] >= limit {
			continue
		}
		counts[s.m.Category]++
		out = append(out, s.m)
	}
	return out, nil
}

func tokenize(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}

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
