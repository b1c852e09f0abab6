package session

import (
	"context"
	"sync"
	"time"
)

// timeoutRetries bounds how often the clock retries a failed terminal write
// before giving up and leaving the attempt for the next trigger.
const timeoutRetries = 3

// clock drives the authoritative countdown for one engine. It ticks the
// remaining-seconds cell under the engine's lock and fires submission
// exactly once when the cell hits zero. stop is idempotent and safe from
// any goroutine, including the engine's own submission path.
type clock struct {
	engine  *Engine
	tick    time.Duration
	backoff time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

func newClock(e *Engine, tick, backoff time.Duration) *clock {
	return &clock{
		engine:  e,
		tick:    tick,
		backoff: backoff,
		done:    make(chan struct{}),
	}
}

func (c *clock) start() {
	go c.run()
}

func (c *clock) run() {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.step() {
				return
			}
		}
	}
}

// step decrements the countdown and reports whether the clock is finished.
func (c *clock) step() bool {
	e := c.engine

	e.mu.Lock()
	if e.st == stateDone {
		e.mu.Unlock()
		return true
	}
	if e.remaining > 0 {
		e.remaining--
	}
	expired := e.remaining == 0 && e.st == stateIdle
	e.mu.Unlock()

	if !expired {
		return false
	}
	c.expire()
	return true
}

// expire fires the timeout submission against the live engine so it
// contends with manual and violation triggers through the same guard.
// A durable-write failure is retried a bounded number of times; on
// exhaustion the attempt stays open for a manual retry.
func (c *clock) expire() {
	e := c.engine
	ctx := context.Background()

	for attempt := 1; attempt <= timeoutRetries; attempt++ {
		_, err := e.Submit(ctx, TriggerTimeout)
		if err == nil {
			return
		}
		e.log.Error().Err(err).Int("attempt", attempt).Msg("Timeout submission failed")
		if attempt < timeoutRetries {
			select {
			case <-c.done:
				return
			case <-time.After(c.backoff):
			}
		}
	}
	e.log.Error().Msg("Timeout submission abandoned after retries")
}

func (c *clock) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}
