// Package embedding wraps the external embedding model (C1) behind a small
// interface, with an LRU cache in front of it the way the teacher caches
// repeated lookups (internal/channels/lark/gateway.go's dedupCache), and
// enforces the fixed 1024-dim contract at the boundary.
package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/avneeshrai07/Agent-Memory-System/internal/domain/memory"
)

// Provider maps text to a unit-normalized embedding vector. Implementations
// are external (HTTP calls to a hosted embedding model); this package only
// defines the contract and the caching/validation wrapper around it.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([]memory.Embedding, error)
}

const defaultCacheSize = 4096

// CachingProvider wraps a Provider with an LRU cache keyed on the exact
// input text, and rejects any upstream embedding whose width does not match
// memory.EmbeddingDimension (spec §9 Open Question: reject, never resize).
type CachingProvider struct {
	inner Provider
	cache *lru.Cache[string, memory.Embedding]
}

// NewCachingProvider wraps inner with an LRU cache of the given size (0
// selects defaultCacheSize).
func NewCachingProvider(inner Provider, size int) (*CachingProvider, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, memory.Embedding](size)
	if err != nil {
		return nil, fmt.Errorf("embedding: new cache: %w", err)
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

// Embed resolves each text against the cache, only calling the wrapped
// provider for cache misses, and validates every resulting vector's width.
func (p *CachingProvider) Embed(ctx context.Context, texts []string) ([]memory.Embedding, error) {
	out := make([]memory.Embedding, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v, ok := p.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) > 0 {
		fetched, err := p.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, fmt.Errorf("embedding: provider: %w", err)
		}
		if len(fetched) != len(missTexts) {
			return nil, fmt.Errorf("embedding: provider returned %d vectors for %d inputs", len(fetched), len(missTexts))
		}
		for j, vec := range fetched {
			if err := vec.Validate(); err != nil {
				return nil, err
			}
			idx := missIdx[j]
			out[idx] = vec
			p.cache.Add(missTexts[j], vec)
		}
	}

	return out, nil
}

// EmbedOne is a convenience wrapper for the common single-text case.
func (p *CachingProvider) EmbedOne(ctx context.Context, text string) (memory.Embedding, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
