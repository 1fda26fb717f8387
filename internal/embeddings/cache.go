package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider memoizes embeddings by content hash in front of another Provider.
//
// Embedding is deterministic per provider instance, so a cached vector is
// indistinguishable from a fresh one. Cached vectors are copied on the way
// in and out so callers cannot mutate them.
type CachedProvider struct {
	Provider
	cache *lru.Cache[string, []float32]
}

// NewCachedProvider wraps p with an LRU cache holding up to size vectors.
// A size <= 0 defaults to 10000.
func NewCachedProvider(p Provider, size int) (*CachedProvider, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidConfig)
	}
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &CachedProvider{Provider: p, cache: cache}, nil
}

// EmbedDocuments serves cached texts and embeds only the misses, in one call.
func (c *CachedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, text := range texts {
		if v, ok := c.cache.Get(cacheKey("d", text)); ok {
			out[i] = slices.Clone(v)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 && len(texts) > 0 {
		return out, nil
	}

	vectors, err := c.Provider.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, v := range vectors {
		if j >= len(missIdx) {
			break
		}
		c.cache.Add(cacheKey("d", missTexts[j]), slices.Clone(v))
		out[missIdx[j]] = v
	}
	return out, nil
}

// EmbedQuery serves a cached query vector or embeds and caches it.
func (c *CachedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey("q", text)
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v), nil
	}
	v, err := c.Provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, slices.Clone(v))
	return v, nil
}

// Len returns the number of cached vectors.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}

// Documents and queries are cached separately since some models embed them differently.
func cacheKey(kind, text string) string {
	h := sha256.Sum256([]byte(text))
	return kind + ":" + hex.EncodeToString(h[:])
}
