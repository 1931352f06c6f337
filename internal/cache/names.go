package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NameCache keeps recently used display names in process so notification
// text can be rendered without a user lookup on every event.
type NameCache struct {
	lru *expirable.LRU[uint, string]
}

// NewNameCache returns a cache holding up to size names for ttl each.
func NewNameCache(size int, ttl time.Duration) *NameCache {
	return &NameCache{lru: expirable.NewLRU[uint, string](size, nil, ttl)}
}

// Get returns the cached name for userID.
func (c *NameCache) Get(userID uint) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.lru.Get(userID)
}

// Set stores name for userID.
func (c *NameCache) Set(userID uint, name string) {
	if c == nil {
		return
	}
	c.lru.Add(userID, name)
}

// Forget drops userID, e.g. after a rename.
func (c *NameCache) Forget(userID uint) {
	if c == nil {
		return
	}
	c.lru.Remove(userID)
}
