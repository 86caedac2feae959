package orchestrator

import (
	"sync"
	"time"

	"github.com/whennemuth/deltasync/pkg/clock"
)

// keyedMutex hands out one advisory, per-key lock, the per-clientId
// mutual-exclusion hook spec.md §5 requires. Each lock is a buffered
// channel rather than a sync.Mutex so a stale holder (one that outlived
// ttl, e.g. a crashed process) can be bypassed: a waiter that has waited
// ttl proceeds without taking the token, instead of unlocking a mutex
// this goroutine never acquired.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	ttl     time.Duration
	clock   clock.Clock
	onStale func(key string, heldFor time.Duration)
}

type lockEntry struct {
	tokens   chan struct{}
	lockedAt time.Time
}

func newKeyedMutex(ttl time.Duration, clk clock.Clock, onStale func(key string, heldFor time.Duration)) *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry), ttl: ttl, clock: clk, onStale: onStale}
}

func (k *keyedMutex) entry(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{tokens: make(chan struct{}, 1)}
		e.tokens <- struct{}{}
		k.entries[key] = e
	}
	return e
}

// Lock blocks until key's lock is available (or is force-released after
// ttl) and returns a function that releases it.
func (k *keyedMutex) Lock(key string) func() {
	e := k.entry(key)

	if k.ttl <= 0 {
		<-e.tokens
		k.mu.Lock()
		e.lockedAt = k.clock.Now()
		k.mu.Unlock()
		return release(e)
	}

	timer := time.NewTimer(k.ttl)
	defer timer.Stop()

	select {
	case <-e.tokens:
	case <-timer.C:
		k.mu.Lock()
		held := clock.Elapsed(k.clock, e.lockedAt)
		k.mu.Unlock()
		if k.onStale != nil {
			k.onStale(key, held)
		}
	}

	k.mu.Lock()
	e.lockedAt = k.clock.Now()
	k.mu.Unlock()
	return release(e)
}

// release returns an idempotent-enough unlock closure: the non-blocking
// send drops a token rather than blocking if the buffer already holds
// one, as happens when both a stale holder and the waiter that bypassed
// it release.
func release(e *lockEntry) func() {
	return func() {
		select {
		case e.tokens <- struct{}{}:
		default:
		}
	}
}
