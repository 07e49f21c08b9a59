package ids

import (
	"sync"
	"testing"
)

func TestGenerateMonotonicAndUnique(t *testing.T) {
	seen := make(map[int64]struct{}, 1000)
	last := int64(0)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if id <= 0 {
			t.Fatalf("id = %d, want positive", id)
		}
		if id < last {
			t.Fatalf("ids went backwards: %d after %d", id, last)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
		last = id
	}
}

func TestGenerateConcurrentUnique(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := Generate()
				mu.Lock()
				if _, dup := seen[id]; dup {
					mu.Unlock()
					t.Errorf("duplicate id %d", id)
					return
				}
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestSetNodeIDClampsRange(t *testing.T) {
	SetNodeID(5000) // out of range, falls back to 1
	if defaultGen.nodeID != 1 {
		t.Fatalf("nodeID = %d, want 1", defaultGen.nodeID)
	}
	SetNodeID(42)
	if defaultGen.nodeID != 42 {
		t.Fatalf("nodeID = %d, want 42", defaultGen.nodeID)
	}
	SetNodeID(1)
}

func TestGenerateStringIsDecimal(t *testing.T) {
	s := GenerateString()
	if s == "" {
		t.Fatalf("empty id string")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			t.Fatalf("id %q not decimal", s)
		}
	}
}
