package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateIsMonotonic(t *testing.T) {
	s := &Snowflake{workerID: 3}
	prev := s.Generate()
	for i := 0; i < 10000; i++ {
		next := s.Generate()
		if next <= prev {
			t.Fatalf("id went backwards: %d after %d", next, prev)
		}
		prev = next
	}
}

func TestGeneratedNumbersAreUnique(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				no := GenerateTransactionNo()
				mu.Lock()
				if _, dup := seen[no]; dup {
					mu.Unlock()
					t.Errorf("duplicate transaction no %s", no)
					return
				}
				seen[no] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if !strings.HasPrefix(GenerateTransferNo(), "TRF") || !strings.HasPrefix(GenerateRequestID(), "REQ") {
		t.Fatal("unexpected prefix")
	}
}
