package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker guards keys within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
	now  func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.held[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryLocker) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; !ok {
		return ErrNotHeld
	}
	delete(m.held, key)
	return nil
}

func (m *MemoryLocker) Close() error { return nil }
