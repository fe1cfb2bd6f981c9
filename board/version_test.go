package board

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNextVersionStrictlyIncreasing(t *testing.T) {
	prev := nextVersion()
	for i := 0; i < 1000; i++ {
		v := nextVersion()
		if v <= prev {
			t.Fatalf("version %d not greater than previous %d", v, prev)
		}
		prev = v
	}
}

func TestNextVersionAdvancesPastLast(t *testing.T) {
	t.Cleanup(func() {
		atomic.StoreInt64(&lastVersion, 0)
	})

	base := time.Now().Add(time.Second).UnixNano()
	atomic.StoreInt64(&lastVersion, base)

	if v := nextVersion(); v != base+1 {
		t.Fatalf("expected version %d, got %d", base+1, v)
	}
}

func TestNextVersionConcurrentUnique(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				v := nextVersion()
				mu.Lock()
				if _, dup := seen[v]; dup {
					mu.Unlock()
					t.Errorf("duplicate version %d", v)
					return
				}
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
