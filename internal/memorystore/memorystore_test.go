package memorystore

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
	"github.com/avneeshrai07/Agent-Memory-System/internal/extractor"
)

// fakeStore is an in-memory Store used to exercise the writer/consolidator
// logic without a real Postgres instance.
type fakeStore struct {
	rows   map[string]memory.Memory
	events []memory.Event
	nextID int
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]memory.Memory{}} }

func (f *fakeStore) newID() string {
	f.nextID++
	return "id-" + strconv.Itoa(f.nextID)
}

func (f *fakeStore) InsertMemory(ctx context.Context, m memory.Memory) (string, error) {
	if m.ID == "" {
		m.ID = f.newID()
	}
	f.rows[m.ID] = m
	return m.ID, nil
}

func (f *fakeStore) ReinforceMemory(ctx context.Context, id string, importanceDelta float64) error {
	m := f.rows[id]
	m.Frequency++
	m.Importance += importanceDelta
	if m.Importance > 10 {
		m.Importance = 10
	}
	f.rows[id] = m
	return nil
}

func (f *fakeStore) NearestActiveFactual(ctx context.Context, userID, category, topic string, embedding memory.Embedding) (*ScoredMemory, error) {
	var best *ScoredMemory
	for _, m := range f.rows {
		if m.UserID != userID || m.Kind != memory.KindFactual || m.Status != memory.StatusActive {
			continue
		}
		if m.Category != category || m.Topic != topic {
			continue
		}
		d := cosineDistance(embedding, m.Embedding)
		if best == nil || d < best.Distance {
			best = &ScoredMemory{Memory: m, Distance: d}
		}
	}
	return best, nil
}

func (f *fakeStore) SearchFactual(ctx context.Context, q NearestFactualQuery) ([]ScoredMemory, error) {
	return nil, nil
}

func (f *fakeStore) ActiveEpisodic(ctx context.Context, userID string) ([]memory.Memory, error) {
	return nil, nil
}

func (f *fakeStore) AppendEvent(ctx context.Context, e memory.Event) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeStore) DeleteExpiredEpisodic(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeStore) ActiveByUserAndKind(ctx context.Context, userID string, kind memory.Kind, limit int) ([]memory.Memory, error) {
	var out []memory.Memory
	for _, m := range f.rows {
		if m.UserID == userID && m.Kind == kind && m.Status == memory.StatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkMerged(ctx context.Context, canonicalID string, mergedIDs []string, evidenceDelta int) error {
	for _, id := range mergedIDs {
		m := f.rows[id]
		m.Status = memory.StatusMerged
		f.rows[id] = m
	}
	return nil
}

func (f *fakeStore) MarkSupporting(ctx context.Context, ids []string) error {
	for _, id := range ids {
		m := f.rows[id]
		m.Status = memory.StatusSupporting
		f.rows[id] = m
	}
	return nil
}

func (f *fakeStore) ActiveGroupedByTopic(ctx context.Context, userID string) (map[TopicKey][]memory.Memory, error) {
	groups := map[TopicKey][]memory.Memory{}
	for _, m := range f.rows {
		if m.UserID != userID || m.Status != memory.StatusActive {
			continue
		}
		key := TopicKey{Kind: m.Kind, Category: m.Category, Topic: m.Topic}
		groups[key] = append(groups[key], m)
	}
	for k, v := range groups {
		if len(v) <= 1 {
			delete(groups, k)
		}
	}
	return groups, nil
}

func unitEmbedding(lead float32) memory.Embedding {
	v := make(memory.Embedding, memory.EmbeddingDimension)
	v[0] = lead
	v[1] = 1 - lead
	return v
}

func TestWriterReinforcesNearDuplicate(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	embed := func(ctx context.Context, text string) (memory.Embedding, error) {
		return unitEmbedding(0.99), nil
	}
	w := NewWriter(store, embed, nil)

	existing := memory.Memory{
		UserID: "u1", Kind: memory.KindFactual, Category: "preference", Topic: "tone",
		Fact: "likes formal tone", Importance: 5, Confidence: 0.8, ConfSource: memory.SourceExplicit,
		Frequency: 1, Status: memory.StatusActive, Embedding: unitEmbedding(0.991),
		CreatedAt: time.Now(), LastUpdated: time.Now(),
	}
	id, _ := store.InsertMemory(ctx, existing)

	result := w.WriteFactual(ctx, "u1", []extractor.FactualFact{{
		Category: "preference", Topic: "tone", Fact: "likes formal tone", Importance: 5, Confidence: 0.8, Source: "explicit",
	}}, "raw")

	if result.Reinforced != 1 || result.Inserted != 0 {
		t.Fatalf("expected reinforcement, got %+v", result)
	}
	if store.rows[id].Frequency != 2 {
		t.Fatalf("expected frequency bumped to 2, got %d", store.rows[id].Frequency)
	}
}

func TestWriterInsertsWhenNoDuplicate(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	embed := func(ctx context.Context, text string) (memory.Embedding, error) {
		return unitEmbedding(0.1), nil
	}
	w := NewWriter(store, embed, nil)

	result := w.WriteFactual(ctx, "u1", []extractor.FactualFact{{
		Category: "preference", Topic: "tone", Fact: "likes formal tone", Importance: 5, Confidence: 0.8, Source: "explicit",
	}}, "raw")

	if result.Inserted != 1 {
		t.Fatalf("expected insert, got %+v", result)
	}
}

func TestWriterEpisodicSetsTTL(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	w := NewWriter(store, nil, nil)

	result := w.WriteEpisodic(ctx, "u1", []extractor.EpisodicFact{{Scope: "session", Key: "active_file", Value: "main.go"}})
	if result.Inserted != 1 {
		t.Fatalf("expected episodic insert, got %+v", result)
	}
	for _, m := range store.rows {
		if m.ExpiresAt == nil {
			t.Fatalf("expected expires_at set on episodic row")
		}
		if m.ExpiresAt.Sub(m.CreatedAt) != memory.EpisodicTTL[memory.ScopeSession] {
			t.Fatalf("expected session TTL, got %v", m.ExpiresAt.Sub(m.CreatedAt))
		}
	}
}

func TestConsolidatorLevel1MergesDuplicates(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	a := memory.Memory{ID: "a", UserID: "u1", Kind: memory.KindFactual, Category: "c", Topic: "t",
		Fact: "x", Confidence: 0.9, Frequency: 2, Status: memory.StatusActive, Embedding: unitEmbedding(0.9), LastUpdated: time.Now()}
	b := memory.Memory{ID: "b", UserID: "u1", Kind: memory.KindFactual, Category: "c", Topic: "t",
		Fact: "x", Confidence: 0.7, Frequency: 1, Status: memory.StatusActive, Embedding: unitEmbedding(0.901), LastUpdated: time.Now()}
	store.rows["a"] = a
	store.rows["b"] = b

	c := NewConsolidator(store, nil)
	result := c.RunLevel1(ctx, "u1", memory.KindFactual, 10)

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Merged != 1 {
		t.Fatalf("expected 1 merged row, got %d", result.Merged)
	}
	if store.rows["a"].Status != memory.StatusActive {
		t.Fatalf("expected higher-confidence row to remain active")
	}
	if store.rows["b"].Status != memory.StatusMerged {
		t.Fatalf("expected lower-confidence row to be merged")
	}
}

func TestConsolidatorLevel2DemotesTopicDuplicates(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	a := memory.Memory{ID: "a", UserID: "u1", Kind: memory.KindFactual, Category: "c", Topic: "t",
		Confidence: 0.9, Frequency: 1, Status: memory.StatusActive, LastUpdated: time.Now()}
	b := memory.Memory{ID: "b", UserID: "u1", Kind: memory.KindFactual, Category: "c", Topic: "t",
		Confidence: 0.4, Frequency: 1, Status: memory.StatusActive, LastUpdated: time.Now()}
	store.rows["a"] = a
	store.rows["b"] = b

	c := NewConsolidator(store, nil)
	result := c.RunLevel2(ctx, "u1")

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Demoted != 1 {
		t.Fatalf("expected 1 demoted row, got %d", result.Demoted)
	}
	if store.rows["b"].Status != memory.StatusSupporting {
		t.Fatalf("expected lower-confidence row demoted to supporting")
	}
	if store.rows["a"].Status != memory.StatusActive {
		t.Fatalf("expected canonical row to remain active")
	}
}
