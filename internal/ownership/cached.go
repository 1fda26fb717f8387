package ownership

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedGuard remembers granted (projectID, userID) pairs for a TTL in front
// of a slower Guard. Denials are never cached, so revoking access takes
// effect after at most one TTL and granting access takes effect immediately.
type CachedGuard struct {
	next  Guard
	cache *expirable.LRU[string, struct{}]
}

// NewCachedGuard wraps next. size <= 0 defaults to 4096, ttl <= 0 to one minute.
func NewCachedGuard(next Guard, size int, ttl time.Duration) *CachedGuard {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedGuard{
		next:  next,
		cache: expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

// CheckOwnership implements Guard.
func (g *CachedGuard) CheckOwnership(ctx context.Context, projectID, userID string) error {
	key := projectID + "\x00" + userID
	if _, ok := g.cache.Get(key); ok {
		return nil
	}
	if err := g.next.CheckOwnership(ctx, projectID, userID); err != nil {
		return err
	}
	g.cache.Add(key, struct{}{})
	return nil
}

// ClaimProject forwards to the wrapped guard when it tracks claims.
func (g *CachedGuard) ClaimProject(ctx context.Context, projectID, userID string) error {
	c, ok := g.next.(Claimer)
	if !ok {
		return nil
	}
	return c.ClaimProject(ctx, projectID, userID)
}
