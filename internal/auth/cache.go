package auth

import (
	"sync"
	"time"

	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/pkg/metrics"
)

const cacheName = "identity"

// identityEntry wraps a cached identity snapshot with its expiry instant
type identityEntry struct {
	user      *entities.User
	expiresAt time.Time
}

// IdentityCache is a TTL, size-bounded cache of resolved identities. Entries
// are looked up by external subject or by internal id; both keyspaces stay
// consistent because the internal-id side is an index into the subject side.
// When full, the earliest-inserted entry is evicted first (insertion order,
// not LRU). Expired entries are treated as absent and removed on read.
type IdentityCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int

	bySubject map[string]*identityEntry
	idIndex   map[string]string // internal id -> external subject
	order     []string          // subjects in insertion order

	hits   uint64
	misses uint64
}

// CacheStats is a diagnostic snapshot of cache effectiveness
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// NewIdentityCache creates an identity cache with the given TTL and capacity
func NewIdentityCache(ttl time.Duration, capacity int) *IdentityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &IdentityCache{
		ttl:       ttl,
		capacity:  capacity,
		bySubject: make(map[string]*identityEntry),
		idIndex:   make(map[string]string),
	}
}

// GetBySubject returns the cached identity for an external subject, or nil
func (c *IdentityCache) GetBySubject(subject string) *entities.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(subject)
}

// GetByID returns the cached identity for an internal id, or nil
func (c *IdentityCache) GetByID(id string) *entities.User {
	c.mu.Lock()
	defer c.mu.Unlock()

	subject, ok := c.idIndex[id]
	if !ok {
		c.miss()
		return nil
	}
	return c.get(subject)
}

// get looks up and lazily expires an entry. Caller holds c.mu.
func (c *IdentityCache) get(subject string) *entities.User {
	entry, found := c.bySubject[subject]
	if !found {
		c.miss()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		c.remove(subject)
		c.miss()
		return nil
	}
	c.hits++
	metrics.CacheHits.WithLabelValues(cacheName).Inc()
	return entry.user
}

// Set stores an identity snapshot under both keyspaces, evicting the
// earliest-inserted entry when at capacity
func (c *IdentityCache) Set(user *entities.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.bySubject[user.ExternalSubject]; !exists {
		for len(c.bySubject) >= c.capacity {
			c.evictOldest()
		}
		c.order = append(c.order, user.ExternalSubject)
	}

	c.bySubject[user.ExternalSubject] = &identityEntry{
		user:      user,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.idIndex[user.ID] = user.ExternalSubject
	metrics.CacheSize.WithLabelValues(cacheName).Set(float64(len(c.bySubject)))
}

// InvalidateSubject removes the entry for an external subject
func (c *IdentityCache) InvalidateSubject(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(subject)
}

// InvalidateID removes the entry for an internal id
func (c *IdentityCache) InvalidateID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if subject, ok := c.idIndex[id]; ok {
		c.remove(subject)
	}
}

// Clear drops all entries; counters are preserved
func (c *IdentityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bySubject = make(map[string]*identityEntry)
	c.idIndex = make(map[string]string)
	c.order = nil
	metrics.CacheSize.WithLabelValues(cacheName).Set(0)
}

// Stats returns a snapshot of hit/miss counters and current size
func (c *IdentityCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.bySubject),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// evictOldest removes the earliest-inserted live entry. Caller holds c.mu.
func (c *IdentityCache) evictOldest() {
	for len(c.order) > 0 {
		subject := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.bySubject[subject]; ok {
			c.remove(subject)
			metrics.CacheEvictions.WithLabelValues(cacheName).Inc()
			return
		}
	}
}

// remove deletes an entry from both keyspaces. Caller holds c.mu.
func (c *IdentityCache) remove(subject string) {
	entry, ok := c.bySubject[subject]
	if !ok {
		return
	}
	delete(c.bySubject, subject)
	delete(c.idIndex, entry.user.ID)
	metrics.CacheSize.WithLabelValues(cacheName).Set(float64(len(c.bySubject)))
}

func (c *IdentityCache) miss() {
	c.misses++
	metrics.CacheMisses.WithLabelValues(cacheName).Inc()
}
