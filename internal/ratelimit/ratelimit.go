// Package ratelimit implements the per-connection token bucket that guards
// the message ingestion path.
package ratelimit

import (
	"sync"
	"time"
)

type Config struct {
	MaxTokens          float64       // burst capacity
	RefillRate         float64       // tokens per second
	ViolationThreshold int           // violations before disconnect
	ViolationWindow    time.Duration // window to count violations
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:          20,
		RefillRate:         5,
		ViolationThreshold: 3,
		ViolationWindow:    time.Minute,
	}
}

// Limiter is a continuously refilled token bucket. Starved consume calls are
// recorded as violations; once enough violations land inside the window the
// caller is expected to drop the connection.
type Limiter struct {
	mu         sync.Mutex
	cfg        Config
	tokens     float64
	lastRefill time.Time
	violations []time.Time
	now        func() time.Time
}

func New() *Limiter {
	return NewWithConfig(DefaultConfig())
}

func NewWithConfig(cfg Config) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	return &Limiter{
		cfg:        cfg,
		tokens:     cfg.MaxTokens,
		lastRefill: now(),
		now:        now,
	}
}

// Consume refills based on elapsed wall-clock time, then takes one token.
// On starvation it records a timestamped violation and returns false.
func (l *Limiter) Consume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	l.violations = append(l.violations, l.now())
	return false
}

// ShouldDisconnect prunes violations older than the window and reports
// whether the remaining count has reached the threshold.
func (l *Limiter) ShouldDisconnect() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.violations[:0]
	for _, t := range l.violations {
		if now.Sub(t) < l.cfg.ViolationWindow {
			kept = append(kept, t)
		}
	}
	l.violations = kept
	return len(l.violations) >= l.cfg.ViolationThreshold
}

func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.cfg.RefillRate
	if l.tokens > l.cfg.MaxTokens {
		l.tokens = l.cfg.MaxTokens
	}
	l.lastRefill = now
}
