// Package dlock provides TTL-based distributed mutual exclusion over string
// keys. A lock held by a crashed worker self-expires, so no holder failure
// requires manual recovery.
package dlock

import (
	"sync"
	"time"
)

// Manager is the distributed lock contract. Contention is a normal false
// return, never an error.
type Manager interface {
	// Acquire grants the lock when no record exists, the existing record has
	// expired, or the caller already holds it (reentrant refresh). The
	// check, eviction and insert are one atomic step.
	Acquire(key, holderID string, ttl time.Duration) bool
	// Release removes the record only when a non-expired record for key is
	// held by holderID. A late release after expiry must not disturb a new
	// holder.
	Release(key, holderID string) bool
	// Extend refreshes the expiry under the same ownership condition as
	// Release. Long-running stages call it to keep the lock mid-operation.
	Extend(key, holderID string, additional time.Duration) bool
	// IsLocked reports whether a non-expired record exists for key.
	IsLocked(key string) bool
	// CleanupExpired evicts expired records and returns how many it removed.
	CleanupExpired() int
}

// record is one held lock.
type record struct {
	key        string
	holderID   string
	acquiredAt time.Time
	ttl        time.Duration
}

func (r record) expired(now time.Time) bool {
	return now.After(r.acquiredAt.Add(r.ttl))
}

// MemoryManager keeps the lock table in process memory behind one short-held
// mutex. The mutex protects only the table itself and is never held across a
// chain call or any other blocking operation.
type MemoryManager struct {
	mu    sync.Mutex
	locks map[string]record
	now   func() time.Time
}

var _ Manager = (*MemoryManager)(nil)

// NewMemoryManager creates an empty lock manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		locks: make(map[string]record),
		now:   time.Now,
	}
}

// WithClock overrides the time source. Tests use it to exercise expiry
// without sleeping.
func (m *MemoryManager) WithClock(now func() time.Time) *MemoryManager {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

func (m *MemoryManager) Acquire(key, holderID string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.locks[key]; ok {
		switch {
		case existing.expired(now):
			delete(m.locks, key)
		case existing.holderID == holderID:
			existing.acquiredAt = now
			existing.ttl = ttl
			m.locks[key] = existing
			return true
		default:
			return false
		}
	}

	m.locks[key] = record{key: key, holderID: holderID, acquiredAt: now, ttl: ttl}
	return true
}

func (m *MemoryManager) Release(key, holderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[key]
	if !ok || existing.holderID != holderID || existing.expired(m.now()) {
		return false
	}
	delete(m.locks, key)
	return true
}

func (m *MemoryManager) Extend(key, holderID string, additional time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[key]
	if !ok || existing.holderID != holderID || existing.expired(m.now()) {
		return false
	}
	existing.acquiredAt = m.now()
	existing.ttl = existing.ttl + additional
	m.locks[key] = existing
	return true
}

func (m *MemoryManager) IsLocked(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[key]
	if !ok {
		return false
	}
	if existing.expired(m.now()) {
		delete(m.locks, key)
		return false
	}
	return true
}

func (m *MemoryManager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, existing := range m.locks {
		if existing.expired(now) {
			delete(m.locks, key)
			removed++
		}
	}
	return removed
}
