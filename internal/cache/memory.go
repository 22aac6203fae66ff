package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is an in-process KV with the same hash/list semantics as the
// Redis backend. It backs hermetic tests and single-node deployments that
// run without Redis.
type MemoryKV struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	lists  map[string][]string
	expiry map[string]time.Time
	now    func() time.Time
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// expired reports whether key has a TTL in the past. Caller holds the lock.
func (m *MemoryKV) expired(key string) bool {
	deadline, ok := m.expiry[key]
	return ok && m.now().After(deadline)
}

// purge drops an expired key. Caller holds the write lock.
func (m *MemoryKV) purge(key string) {
	delete(m.hashes, key)
	delete(m.lists, key)
	delete(m.expiry, key)
}

func (m *MemoryKV) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *MemoryKV) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
	}
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryKV) LPushTrim(ctx context.Context, key, value string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
	}
	list := append([]string{value}, m.lists[key]...)
	if keep > 0 && len(list) > keep {
		list = list[:keep]
	}
	m.lists[key] = list
	return nil
}

func (m *MemoryKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		m.purge(key)
	}
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *MemoryKV) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		m.purge(key)
	}
	return nil
}

func (m *MemoryKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = m.now().Add(ttl)
	return nil
}

func (m *MemoryKV) Ping(ctx context.Context) error {
	return nil
}
