package intent

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TopicCache is a short-TTL read cache for per-user active-topic lists.
// It only absorbs repeated reads: every successful mutation invalidates
// the owning user's entry and the store stays the source of truth. A
// load that overlaps an invalidation is served to its caller but never
// cached. A nil cache or a non-positive TTL disables caching entirely.
type TopicCache struct {
	ttl    time.Duration
	now    func() time.Time
	flight singleflight.Group

	mu      sync.RWMutex
	entries map[string]topicCacheEntry
	// gens counts invalidations per user so a load that started before
	// an Invalidate cannot install its result afterwards.
	gens map[string]uint64
}

type topicCacheEntry struct {
	topics    []TopicIntent
	fetchedAt time.Time
}

func NewTopicCache(ttl time.Duration) *TopicCache {
	return &TopicCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]topicCacheEntry),
		gens:    make(map[string]uint64),
	}
}

// GetOrLoad returns the cached list for userID, loading through load on
// a miss or expiry. Concurrent loads for the same user collapse into a
// single store query. The returned bool reports whether the fast path
// served the read.
func (c *TopicCache) GetOrLoad(ctx context.Context, userID string, load func(ctx context.Context) ([]TopicIntent, error)) ([]TopicIntent, bool, error) {
	if c == nil || c.ttl <= 0 {
		topics, err := load(ctx)
		return topics, false, err
	}

	if topics, ok := c.lookup(userID); ok {
		return topics, true, nil
	}

	v, err, _ := c.flight.Do(userID, func() (any, error) {
		if topics, ok := c.lookup(userID); ok {
			return topics, nil
		}
		gen := c.generation(userID)
		topics, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.put(userID, gen, topics)
		return topics, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]TopicIntent), false, nil
}

func (c *TopicCache) Invalidate(userID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.gens[userID]++
}

func (c *TopicCache) lookup(userID string) ([]TopicIntent, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) > c.ttl {
		c.evictExpired(userID)
		return nil, false
	}
	return cloneTopics(entry.topics), true
}

// evictExpired drops the entry once it is past the TTL. Expiry is not
// an invalidation, so the generation stays untouched and an in-flight
// load can still cache its result.
func (c *TopicCache) evictExpired(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if ok && c.now().Sub(entry.fetchedAt) > c.ttl {
		delete(c.entries, userID)
	}
}

func (c *TopicCache) generation(userID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[userID]
}

// put installs a loaded list unless the user was invalidated after the
// load began, in which case the list may predate the mutation and is
// discarded.
func (c *TopicCache) put(userID string, gen uint64, topics []TopicIntent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[userID] != gen {
		return
	}
	c.entries[userID] = topicCacheEntry{
		topics:    cloneTopics(topics),
		fetchedAt: c.now(),
	}
}

func cloneTopics(topics []TopicIntent) []TopicIntent {
	out := make([]TopicIntent, len(topics))
	for i, t := range topics {
		out[i] = t.Clone()
	}
	return out
}
