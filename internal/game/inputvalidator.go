package game

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tankarena/internal/config"
)

// PlayerInput is one decoded player_input event.
type PlayerInput struct {
	Direction    Direction
	HasDirection bool
	Moving       bool
	Firing       bool
	Timestamp    int64
}

// ValidateInputShape checks the declared shape constraints for a
// player_input event: type must be "state", direction must be one of
// the four cardinal directions or absent. It does not rate-limit;
// callers combine this with InputValidator.Allow.
func ValidateInputShape(msgType string, direction string, hasDirection bool, timestamp int64) (Direction, bool) {
	if msgType != "state" {
		return "", false
	}
	if !hasDirection {
		return "", true
	}
	switch Direction(direction) {
	case DirUp, DirDown, DirLeft, DirRight:
		return Direction(direction), true
	default:
		return "", false
	}
}

// socketLimiterEntry tracks one socket's token bucket: same lazy
// create-on-first-use plus periodic-cleanup shape as the IP rate limiter
// in internal/api/ratelimit.go, keyed by socket id instead of client IP.
type socketLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// InputValidator enforces shape checks plus a token-bucket rate limit
// per connection. Excess input triggers invalid_input without
// disconnecting the socket.
type InputValidator struct {
	mu       sync.Mutex
	limiters map[string]*socketLimiterEntry
	cfg      config.LimitsConfig

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewInputValidator constructs a validator and starts its stale-limiter
// cleanup loop.
func NewInputValidator(cfg config.LimitsConfig) *InputValidator {
	v := &InputValidator{
		limiters: make(map[string]*socketLimiterEntry),
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
	go v.cleanupLoop()
	return v
}

// Stop halts the cleanup loop.
func (v *InputValidator) Stop() {
	v.stopOnce.Do(func() {
		close(v.stopChan)
	})
}

// Allow reports whether socketID may emit another input event right now.
func (v *InputValidator) Allow(socketID string) bool {
	return v.limiterFor(socketID).Allow()
}

func (v *InputValidator) limiterFor(socketID string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	if entry, ok := v.limiters[socketID]; ok {
		entry.lastUsed = time.Now()
		return entry.limiter
	}

	entry := &socketLimiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(v.cfg.MaxInputEventsPerSec), v.cfg.MaxInputBurst),
		lastUsed: time.Now(),
	}
	v.limiters[socketID] = entry
	return entry.limiter
}

// Forget removes a socket's limiter, called on disconnect/leave so the
// map doesn't grow unboundedly across a long-lived server process.
func (v *InputValidator) Forget(socketID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.limiters, socketID)
}

func (v *InputValidator) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-v.stopChan:
			return
		case <-ticker.C:
			v.cleanup()
		}
	}
}

func (v *InputValidator) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, entry := range v.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(v.limiters, id)
		}
	}
}
