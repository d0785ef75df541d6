package storage

import (
	"context"
	"sync"
	"time"
)

type Presigner interface {
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type presigned struct {
	url     string
	expires time.Time
}

// reuses presigned URLs until they come within Margin of expiring
type PresignCache struct {
	Presigner Presigner
	TTL       time.Duration
	Margin    time.Duration

	mu      sync.Mutex
	entries map[string]presigned
	now     func() time.Time
}

func NewPresignCache(p Presigner, ttl time.Duration) *PresignCache {
	return &PresignCache{
		Presigner: p,
		TTL:       ttl,
		Margin:    ttl / 10,
		entries:   make(map[string]presigned),
		now:       time.Now,
	}
}

func (c *PresignCache) URL(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	now := c.now()
	if e, ok := c.entries[key]; ok && now.Add(c.Margin).Before(e.expires) {
		c.mu.Unlock()
		return e.url, nil
	}
	c.mu.Unlock()

	u, err := c.Presigner.PresignURL(ctx, key, c.TTL)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = presigned{url: u, expires: now.Add(c.TTL)}
	c.mu.Unlock()
	return u, nil
}

// drops the cached URL for key
func (c *PresignCache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
