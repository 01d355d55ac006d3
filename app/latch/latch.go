// Package latch provides one-shot guards keyed by an arbitrary string. A key
// can be acquired once per TTL window; later attempts report false until the
// window passes.
package latch

import (
	"context"
	"sync"
	"time"
)

type Latch interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.prune(now)
	if _, held := m.entries[key]; held {
		return false, nil
	}
	m.entries[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) prune(now time.Time) {
	for key, expiresAt := range m.entries {
		if !now.Before(expiresAt) {
			delete(m.entries, key)
		}
	}
}
