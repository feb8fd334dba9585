// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/oidcrp/jwt"
)

var _ jwt.ReplayCache = (*MemoryCache)(nil)

// MemoryCache is a process local jwt.ReplayCache. Entries are held until
// they expire. It is safe for concurrent use.
type MemoryCache struct {
	mu            sync.Mutex
	entries       map[string]time.Time
	now           func() time.Time
	pruneInterval time.Duration
	lastPrune     time.Time
}

// NewMemoryCache creates an empty MemoryCache.
//
// Supported options:
//   - WithNow
//   - WithPruneInterval
func NewMemoryCache(opt ...Option) *MemoryCache {
	opts := getCacheOpts(opt...)
	return &MemoryCache{
		entries:       map[string]time.Time{},
		now:           opts.withNow,
		pruneInterval: opts.withPruneInterval,
	}
}

// TryFind reports whether id is present and not yet expired.
func (c *MemoryCache) TryFind(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.entries[id]
	return ok && c.now().Before(exp), nil
}

// TryAdd records id until expiry, unless it is already present and not yet
// expired.
func (c *MemoryCache) TryAdd(_ context.Context, id string, expiry time.Time) (bool, error) {
	const op = "MemoryCache.TryAdd"
	if id == "" {
		return false, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.pruneLocked(now)
	if exp, ok := c.entries[id]; ok && now.Before(exp) {
		return false, nil
	}
	c.entries[id] = expiry
	return true, nil
}

// Len returns the number of entries, including expired ones which haven't
// been pruned yet.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) pruneLocked(now time.Time) {
	if c.pruneInterval > 0 && now.Sub(c.lastPrune) < c.pruneInterval {
		return
	}
	for id, exp := range c.entries {
		if !now.Before(exp) {
			delete(c.entries, id)
		}
	}
	c.lastPrune = now
}
