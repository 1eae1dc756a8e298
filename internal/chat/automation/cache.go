package automation

import (
	"context"
	"sync"
	"time"

	"github.com/kothaapp/kotha/internal/chat/storage"
)

// factCacheTTL bounds how stale cached knowledge facts may be.
const factCacheTTL = 60 * time.Second

type factEntry struct {
	facts     map[string]string
	fetchedAt time.Time
}

// factCache memoizes per-admin knowledge facts with a wall-clock TTL.
// Entries refresh lazily on the next access after expiry.
type factCache struct {
	store storage.KnowledgeStore
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]factEntry
}

func newFactCache(store storage.KnowledgeStore, now func() time.Time) *factCache {
	return &factCache{
		store:   store,
		now:     now,
		entries: make(map[string]factEntry),
	}
}

func (c *factCache) facts(ctx context.Context, adminID string) (map[string]string, error) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[adminID]
	c.mu.Unlock()
	if ok && now.Sub(entry.fetchedAt) <= factCacheTTL {
		return entry.facts, nil
	}

	facts, err := c.store.FactsByAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[adminID] = factEntry{facts: facts, fetchedAt: now}
	c.mu.Unlock()
	return facts, nil
}
