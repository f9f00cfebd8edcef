package cache

import (
	"sync"
	"time"

	"github.com/catkeep/authcore/internal/models"
)

// UserCache is a TTL-bounded read cache for user rows, keyed by user ID.
// Entries are invalidated explicitly on any user mutation and lazily on
// expiry, so a stale entry can never outlive its TTL.
type UserCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	user      *models.User
	expiresAt time.Time
}

func NewUserCache(ttl time.Duration) *UserCache {
	return &UserCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *UserCache) Get(userID string) (*models.User, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.user, true
}

func (c *UserCache) Set(user *models.User) {
	if user == nil {
		return
	}
	c.mu.Lock()
	c.entries[user.ID] = cacheEntry{
		user:      user,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *UserCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func (c *UserCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Sweep drops expired entries. Called periodically from the background worker
// so the map does not grow unbounded between hits.
func (c *UserCache) Sweep() int {
	now := time.Now()
	removed := 0

	c.mu.Lock()
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	c.mu.Unlock()

	return removed
}
