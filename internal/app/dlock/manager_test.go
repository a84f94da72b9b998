package dlock

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryManager_AcquireContention(t *testing.T) {
	mgr := NewMemoryManager()

	if !mgr.Acquire("settlement:1", "worker-a", 30*time.Second) {
		t.Fatalf("first acquire should succeed")
	}
	if mgr.Acquire("settlement:1", "worker-b", 30*time.Second) {
		t.Fatalf("second holder must not acquire a held lock")
	}
	if !mgr.Acquire("settlement:1", "worker-a", 30*time.Second) {
		t.Fatalf("reentrant acquire by the holder should succeed")
	}
	if !mgr.IsLocked("settlement:1") {
		t.Fatalf("lock should be held")
	}
	if !mgr.Acquire("settlement:2", "worker-b", 30*time.Second) {
		t.Fatalf("distinct keys must not contend")
	}
}

func TestMemoryManager_ExpiryMakesLockAcquirable(t *testing.T) {
	now := time.Now()
	current := now
	mgr := NewMemoryManager().WithClock(func() time.Time { return current })

	if !mgr.Acquire("key", "worker-a", 10*time.Second) {
		t.Fatalf("acquire: should succeed")
	}

	current = now.Add(9 * time.Second)
	if mgr.Acquire("key", "worker-b", 10*time.Second) {
		t.Fatalf("lock must not be acquirable before the TTL elapses")
	}

	current = now.Add(11 * time.Second)
	if !mgr.Acquire("key", "worker-b", 10*time.Second) {
		t.Fatalf("lock must be acquirable after expiry")
	}
	if mgr.Acquire("key", "worker-a", 10*time.Second) {
		t.Fatalf("old holder must not re-acquire after losing the lock")
	}
}

func TestMemoryManager_ReleaseOwnership(t *testing.T) {
	now := time.Now()
	current := now
	mgr := NewMemoryManager().WithClock(func() time.Time { return current })

	if !mgr.Acquire("key", "worker-a", 10*time.Second) {
		t.Fatalf("acquire: should succeed")
	}
	if mgr.Release("key", "worker-b") {
		t.Fatalf("non-holder must not release")
	}
	if !mgr.Release("key", "worker-a") {
		t.Fatalf("holder release should succeed")
	}
	if mgr.Release("key", "worker-a") {
		t.Fatalf("double release should report false")
	}

	// A late release after expiry must not disturb the new holder.
	if !mgr.Acquire("key", "worker-a", 10*time.Second) {
		t.Fatalf("re-acquire: should succeed")
	}
	current = now.Add(11 * time.Second)
	if !mgr.Acquire("key", "worker-b", 10*time.Second) {
		t.Fatalf("acquire after expiry: should succeed")
	}
	if mgr.Release("key", "worker-a") {
		t.Fatalf("expired holder must not release the new holder's lock")
	}
	if !mgr.IsLocked("key") {
		t.Fatalf("new holder's lock must survive the late release")
	}
}

func TestMemoryManager_Extend(t *testing.T) {
	now := time.Now()
	current := now
	mgr := NewMemoryManager().WithClock(func() time.Time { return current })

	if !mgr.Acquire("key", "worker-a", 10*time.Second) {
		t.Fatalf("acquire: should succeed")
	}
	if mgr.Extend("key", "worker-b", 10*time.Second) {
		t.Fatalf("non-holder must not extend")
	}
	if !mgr.Extend("key", "worker-a", 10*time.Second) {
		t.Fatalf("holder extend should succeed")
	}

	// The extension restarts the window, so 15s in the lock is still held.
	current = now.Add(15 * time.Second)
	if mgr.Acquire("key", "worker-b", 10*time.Second) {
		t.Fatalf("extended lock must not be stolen before the new expiry")
	}

	current = now.Add(40 * time.Second)
	if mgr.Extend("key", "worker-a", 10*time.Second) {
		t.Fatalf("extend after expiry should report false")
	}
}

func TestMemoryManager_CleanupExpired(t *testing.T) {
	now := time.Now()
	current := now
	mgr := NewMemoryManager().WithClock(func() time.Time { return current })

	mgr.Acquire("a", "w", 5*time.Second)
	mgr.Acquire("b", "w", 5*time.Second)
	mgr.Acquire("c", "w", time.Hour)

	current = now.Add(6 * time.Second)
	if removed := mgr.CleanupExpired(); removed != 2 {
		t.Fatalf("expected 2 evictions, got %d", removed)
	}
	if !mgr.IsLocked("c") {
		t.Fatalf("unexpired lock must survive cleanup")
	}
}

func TestMemoryManager_ConcurrentAcquireSingleWinner(t *testing.T) {
	mgr := NewMemoryManager()

	const contenders = 32
	var wg sync.WaitGroup
	winners := make(chan string, contenders)

	for i := 0; i < contenders; i++ {
		holder := string(rune('a' + i%26))
		wg.Add(1)
		go func(holder string, n int) {
			defer wg.Done()
			if mgr.Acquire("key", holderID(holder, n), time.Minute) {
				winners <- holderID(holder, n)
			}
		}(holder, i)
	}
	wg.Wait()
	close(winners)

	var count int
	for range winners {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func holderID(prefix string, n int) string {
	return prefix + "-" + string(rune('0'+n/10)) + string(rune('0'+n%10))
}
