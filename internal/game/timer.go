package game

import (
	"sync"
	"time"
)

// TimerManager is a single-slot countdown clock: Start cancels any prior
// timer, then ticks once per second, invoking onTick(remaining) after each
// decrement and onExpired exactly once when the countdown reaches zero.
//
// Callbacks run on the timer goroutine without the TimerManager's own lock
// held; they are expected to take the room lock and re-check game state, so a
// tick that raced a Stop is a harmless no-op.
type TimerManager struct {
	mu        sync.Mutex
	interval  time.Duration
	gen       int
	remaining int
	paused    bool
	running   bool
	onTick    func(remaining int)
	onExpired func()
}

func NewTimerManager() *TimerManager {
	return &TimerManager{interval: time.Second}
}

// NewTimerManagerWithInterval shortens the tick for tests.
func NewTimerManagerWithInterval(interval time.Duration) *TimerManager {
	return &TimerManager{interval: interval}
}

func (t *TimerManager) Start(durationSeconds int, onTick func(remaining int), onExpired func()) {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.remaining = durationSeconds
	t.paused = false
	t.running = true
	t.onTick = onTick
	t.onExpired = onExpired
	interval := t.interval
	t.mu.Unlock()

	go t.run(gen, interval)
}

func (t *TimerManager) run(gen int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		if gen != t.gen || !t.running {
			t.mu.Unlock()
			return
		}
		if t.paused {
			t.mu.Unlock()
			continue
		}
		t.remaining--
		remaining := t.remaining
		onTick := t.onTick
		onExpired := t.onExpired
		expired := remaining <= 0
		if expired {
			t.running = false
			t.onTick = nil
			t.onExpired = nil
		}
		t.mu.Unlock()

		if onTick != nil {
			onTick(remaining)
		}
		if expired {
			if onExpired != nil {
				onExpired()
			}
			return
		}
	}
}

// Stop cancels the countdown. Idempotent.
func (t *TimerManager) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.running = false
	t.paused = false
	t.onTick = nil
	t.onExpired = nil
}

// Pause suspends decrementing without losing the remaining value or the
// callbacks.
func (t *TimerManager) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
}

func (t *TimerManager) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
}

func (t *TimerManager) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *TimerManager) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}
