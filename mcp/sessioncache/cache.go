// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sessioncache implements the distributed session-owner cache
// contract: which node in a multi-node deployment currently owns a given
// session ID, so a load balancer or gateway in front of several MCP
// servers can route a resumed Streamable-HTTP connection back to the
// node holding its in-memory state.
//
// This package is the seam a real distributed backend (Redis, Memcached,
// an internal KV store) would implement; [NewMemoryCache] is an
// in-process reference implementation good for a single-node deployment
// or for tests.
package sessioncache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

// Cache is the distributed session-owner contract. Implementations must
// be safe for concurrent use.
type Cache interface {
	// Get returns the owner currently claiming sessionID, and whether a
	// live (unexpired) claim exists.
	Get(ctx context.Context, sessionID string) (owner string, ok bool, err error)

	// Claim attempts to record owner as the claimant of sessionID for
	// ttl, succeeding if the session is unclaimed, expired, or already
	// claimed by owner. It reports false, without error, if another
	// owner holds a live claim.
	Claim(ctx context.Context, sessionID, owner string, ttl time.Duration) (bool, error)

	// Remove releases any claim on sessionID, regardless of owner.
	Remove(ctx context.Context, sessionID string) error
}

const shardCount = 32

type entry struct {
	owner     string
	expiresAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// MemoryCache is an in-process [Cache] implementation: a fixed number of
// lock-striped shards, selected by hashing the session ID with
// [xxhash.Sum64String], each holding a TTL-stamped owner map. A
// background sweeper removes expired entries so the maps don't grow
// unboundedly with churned-through sessions.
type MemoryCache struct {
	shards [shardCount]*shard

	sweepLimiter *rate.Limiter
	stop         chan struct{}
	stopped      chan struct{}
}

// NewMemoryCache returns a MemoryCache with its sweep loop started.
// sweepLimiter paces how fast the sweeper walks shards looking for
// expired entries; a nil limiter defaults to one shard-sweep per
// second, enough to reclaim churned sessions without the sweeper itself
// becoming a source of lock contention. Call Close to stop the sweeper.
func NewMemoryCache(sweepLimiter *rate.Limiter) *MemoryCache {
	if sweepLimiter == nil {
		sweepLimiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	c := &MemoryCache{
		sweepLimiter: sweepLimiter,
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]entry)}
	}
	go c.sweepLoop()
	return c
}

func (c *MemoryCache) shardFor(sessionID string) *shard {
	return c.shards[xxhash.Sum64String(sessionID)%shardCount]
}

// Get implements [Cache].
func (c *MemoryCache) Get(ctx context.Context, sessionID string) (string, bool, error) {
	s := c.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok || !time.Now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.owner, true, nil
}

// Claim implements [Cache].
func (c *MemoryCache) Claim(ctx context.Context, sessionID, owner string, ttl time.Duration) (bool, error) {
	s := c.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if e, ok := s.entries[sessionID]; ok && now.Before(e.expiresAt) && e.owner != owner {
		return false, nil
	}
	s.entries[sessionID] = entry{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

// Remove implements [Cache].
func (c *MemoryCache) Remove(ctx context.Context, sessionID string) error {
	s := c.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// Close stops the background sweeper. Safe to call once.
func (c *MemoryCache) Close() error {
	close(c.stop)
	<-c.stopped
	return nil
}

// sweepLoop rate-limits itself to one shard visit per sweepLimiter
// token, cycling through shards and evicting expired entries, until
// Close is called.
func (c *MemoryCache) sweepLoop() {
	defer close(c.stopped)
	ctx := context.Background()
	i := 0
	for {
		if err := c.sweepLimiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-c.stop:
			return
		default:
		}
		c.sweepShard(c.shards[i%shardCount])
		i++
	}
}

func (c *MemoryCache) sweepShard(s *shard) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
