package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestRegistrySharesOneEnginePerAttempt(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	r := NewRegistry()

	got, created := r.GetOrPut(e.AttemptID(), e)
	if !created || got != e {
		t.Fatalf("first GetOrPut did not register the candidate")
	}

	other, _, _, _ := testEngine(t, &fakeStore{}, nil)
	got, created = r.GetOrPut(e.AttemptID(), other)
	if created || got != e {
		t.Fatalf("second GetOrPut replaced the live engine")
	}

	if _, ok := r.Get(e.AttemptID()); !ok {
		t.Fatalf("Get missed a registered engine")
	}
	r.Evict(e.AttemptID())
	if _, ok := r.Get(e.AttemptID()); ok {
		t.Fatalf("engine still registered after eviction")
	}
	if r.Len() != 0 {
		t.Fatalf("registry not empty after eviction")
	}
}

func TestRegistryGetOrPutConcurrent(t *testing.T) {
	r := NewRegistry()
	attemptID := uuid.New()

	winners := make([]*Engine, 10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, _, _ := testEngine(t, &fakeStore{}, nil)
			got, _ := r.GetOrPut(attemptID, e)
			winners[i] = got
		}(i)
	}
	wg.Wait()

	for i := 1; i < 10; i++ {
		if winners[i] != winners[0] {
			t.Fatalf("concurrent GetOrPut handed out different engines")
		}
	}
}
