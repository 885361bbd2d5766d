package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewRejectsOutOfRangeWorker(t *testing.T) {
	for _, id := range []int64{-1, maxWorkerID + 1} {
		if _, err := New(id); err == nil {
			t.Errorf("New(%d) expected error", id)
		}
	}
}

func TestGenerateUniqueAcrossGoroutines(t *testing.T) {
	s, err := New(7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const workers, perWorker = 8, 2000
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, s.Generate())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}

func TestGenerateEncodesWorker(t *testing.T) {
	s, _ := New(513)
	id := s.Generate()
	if got := (id >> workerIDShift) & maxWorkerID; got != 513 {
		t.Fatalf("worker bits = %d, want 513", got)
	}
}

func TestFormattedNumbers(t *testing.T) {
	s, _ := New(1)
	if no := s.TransactionNo(); !strings.HasPrefix(no, "TXN") {
		t.Errorf("TransactionNo = %q", no)
	}
	r := s.ReceiptNo(42)
	if !strings.HasPrefix(r, "rcpt_42_") || len(r) > 40 {
		t.Errorf("ReceiptNo = %q", r)
	}
	if k := s.EventKey("credit"); !strings.HasPrefix(k, "credit-") {
		t.Errorf("EventKey = %q", k)
	}
}
