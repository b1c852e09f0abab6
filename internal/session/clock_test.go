package session

import (
	"errors"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestClockCountsDownAndSubmitsOnExpiry(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	e.remaining = 3
	e.clock = newClock(e, time.Millisecond, time.Millisecond)
	e.clock.start()

	waitFor(t, 2*time.Second, e.Done)

	res := e.Result()
	if res == nil || res.Trigger != TriggerTimeout {
		t.Fatalf("result = %+v, want timeout trigger", res)
	}
	if e.Remaining() != 0 {
		t.Fatalf("remaining = %d after expiry, want 0", e.Remaining())
	}
	if got := store.completionCount(); got != 1 {
		t.Fatalf("terminal writes = %d, want 1", got)
	}
}

func TestClockStopsAfterManualSubmit(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	e.remaining = 1000
	e.clock = newClock(e, time.Millisecond, time.Millisecond)
	e.clock.start()

	if _, err := e.Submit(t.Context(), TriggerManual); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-e.clock.done:
	case <-time.After(time.Second):
		t.Fatalf("clock not stopped after manual submit")
	}
	if got := store.completionCount(); got != 1 {
		t.Fatalf("terminal writes = %d, want 1", got)
	}
}

func TestClockRetriesFailedTimeoutSubmission(t *testing.T) {
	store := &fakeStore{finalizeErr: errors.New("pg down"), failOnce: true}
	e, _, _, _ := testEngine(t, store, nil)
	e.remaining = 1
	e.clock = newClock(e, time.Millisecond, time.Millisecond)
	e.clock.start()

	waitFor(t, 2*time.Second, e.Done)

	if got := store.completionCount(); got != 1 {
		t.Fatalf("terminal writes = %d, want 1 after retry", got)
	}
	if res := e.Result(); res == nil || res.Trigger != TriggerTimeout {
		t.Fatalf("retry did not finish the timeout submission: %+v", res)
	}
}

func TestClockStopIdempotent(t *testing.T) {
	store := &fakeStore{}
	e, _, _, _ := testEngine(t, store, nil)
	c := newClock(e, time.Hour, time.Millisecond)
	c.start()
	c.stop()
	c.stop()
}
