// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sessioncache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

func TestMemoryCache_ClaimGetRemove(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(rate.NewLimiter(rate.Inf, 1))
	defer c.Close()
	ctx := context.Background()

	ok, err := c.Claim(ctx, "sess-1", "node-a", time.Minute)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if !ok {
		t.Fatal("Claim() on unclaimed session should succeed")
	}

	owner, ok, err := c.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok || owner != "node-a" {
		t.Fatalf("Get() = %q, %v, want %q, true", owner, ok, "node-a")
	}

	if err := c.Remove(ctx, "sess-1"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "sess-1"); ok {
		t.Fatal("Get() after Remove() should report no claim")
	}
}

func TestMemoryCache_ClaimRejectsOtherOwner(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(rate.NewLimiter(rate.Inf, 1))
	defer c.Close()
	ctx := context.Background()

	if ok, err := c.Claim(ctx, "sess-1", "node-a", time.Minute); err != nil || !ok {
		t.Fatalf("initial Claim() = %v, %v, want true, nil", ok, err)
	}

	ok, err := c.Claim(ctx, "sess-1", "node-b", time.Minute)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if ok {
		t.Fatal("Claim() by a different owner should fail while the first claim is live")
	}

	// The original owner may always re-claim (e.g. to extend its TTL).
	if ok, err := c.Claim(ctx, "sess-1", "node-a", time.Minute); err != nil || !ok {
		t.Fatalf("re-Claim() by original owner = %v, %v, want true, nil", ok, err)
	}
}

func TestMemoryCache_ExpiredClaimIsReclaimable(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(rate.NewLimiter(rate.Inf, 1))
	defer c.Close()
	ctx := context.Background()

	if ok, err := c.Claim(ctx, "sess-1", "node-a", time.Nanosecond); err != nil || !ok {
		t.Fatalf("initial Claim() = %v, %v, want true, nil", ok, err)
	}
	time.Sleep(time.Millisecond)

	ok, err := c.Claim(ctx, "sess-1", "node-b", time.Minute)
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if !ok {
		t.Fatal("Claim() should succeed once the prior claim has expired")
	}
	if owner, _, _ := c.Get(ctx, "sess-1"); owner != "node-b" {
		t.Fatalf("Get() owner = %q, want %q", owner, "node-b")
	}
}

func TestMemoryCache_SweepRemovesExpiredEntries(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache(rate.NewLimiter(rate.Limit(1000), 1))
	defer c.Close()
	ctx := context.Background()

	if ok, err := c.Claim(ctx, "sess-1", "node-a", time.Nanosecond); err != nil || !ok {
		t.Fatalf("Claim() = %v, %v, want true, nil", ok, err)
	}

	s := c.shardFor("sess-1")
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		_, present := s.entries["sess-1"]
		s.mu.Unlock()
		if !present {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not evict expired entry in time")
		}
		time.Sleep(time.Millisecond)
	}
}
