package retrieval

import (
	"context"
	"reflect"
	"testing"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/memorystore"
)

func TestChunkSplitsAndFiltersShortPieces(t *testing.T) {
	got := Chunk("Fix the login bug. Also deploy and rollback if needed.\nShip it")
	want := []string{"Fix the login bug", "Also deploy", "rollback if needed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestChunkEmptyForTinyQuery(t *testing.T) {
	got := Chunk("hi.")
	if len(got) != 0 {
		t.Fatalf("expected no chunks for a short query, got %v", got)
	}
}

func TestCapForUnlistedCategoryDefaultsToOne(t *testing.T) {
	if capFor(IntentExploratory, "unlisted_category") != 1 {
		t.Fatalf("expected default cap of 1")
	}
	if capFor(IntentExploratory, "technical_context") != 3 {
		t.Fatalf("expected exploratory technical_context cap of 3")
	}
}

type fakeRetrievalStore struct {
	memorystore.Store
	episodic []memory.Memory
	factual  []memorystore.ScoredMemory
}

func (f *fakeRetrievalStore) ActiveEpisodic(ctx context.Context, userID string) ([]memory.Memory, error) {
	return f.episodic, nil
}

func (f *fakeRetrievalStore) SearchFactual(ctx context.Context, q memorystore.NearestFactualQuery) ([]memorystore.ScoredMemory, error) {
	return f.factual, nil
}

func TestRetrieveCapsPerCategoryByIntent(t *testing.T) {
	store := &fakeRetrievalStore{
		factual: []memorystore.ScoredMemory{
			{Memory: memory.Memory{Category: "technical_context", Topic: "auth", Fact: "uses jwt auth", Confidence: 0.9, Importance: 5}, Distance: 0.1},
			{Memory: memory.Memory{Category: "technical_context", Topic: "db", Fact: "uses postgres", Confidence: 0.9, Importance: 5}, Distance: 0.2},
			{Memory: memory.Memory{Category: "constraint", Topic: "budget", Fact: "budget capped at 10k", Confidence: 0.9, Importance: 5}, Distance: 0.1},
		},
	}
	embed := func(ctx context.Context, text string) (memory.Embedding, error) {
		return make(memory.Embedding, memory.EmbeddingDimension), nil
	}

	r := &Retriever{store: store, embed: embed, prototypes: map[Intent]memory.Embedding{
		IntentMinimal: make(memory.Embedding, memory.EmbeddingDimension),
	}}

	result, err := r.Retrieve(context.Background(), "u1", "What auth and database setup do we use, given the budget constraint")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != IntentMinimal {
		t.Fatalf("expected minimal intent fallback, got %s", result.Intent)
	}
	techCount := 0
	for _, m := range result.Factual {
		if m.Category == "technical_context" {
			techCount++
		}
	}
	if techCount > 1 {
		t.Fatalf("expected minimal intent to cap technical_context at 1, got %d", techCount)
	}
}
