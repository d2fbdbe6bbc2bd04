package cache

import (
	"testing"
	"time"
)

func TestManager_CleanupRemovesExpired(t *testing.T) {
	c := NewLRUCache[int](4, 10*time.Millisecond)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(20 * time.Millisecond)
	defer m.Stop()

	c.Set("a", 1)
	c.Set("b", 2)

	deadline := time.Now().Add(500 * time.Millisecond)
	for c.Size() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("size = %d, want 0 after periodic cleanup", c.Size())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](4, time.Minute))
	m.StartCleanup(time.Minute)

	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
