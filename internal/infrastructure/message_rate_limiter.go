package infrastructure

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageRateLimiter keeps one token bucket per contact key. Buckets idle for
// longer than idleTTL are evicted by a background sweep.
type MessageRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*contactLimiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
}

type contactLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter allows rps messages per second per key with the
// given burst.
func NewMessageRateLimiter(rps float64, burst int) *MessageRateLimiter {
	rl := &MessageRateLimiter{
		limiters: make(map[string]*contactLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go rl.cleanupLoop(5 * time.Minute)

	return rl
}

func (rl *MessageRateLimiter) get(key string, now time.Time) *rate.Limiter {
	cl, exists := rl.limiters[key]
	if !exists {
		cl = &contactLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Allow reports whether key may send a message now and consumes a token.
func (rl *MessageRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	return rl.get(key, now).AllowN(now, 1)
}

// WaitTime returns how long key has to wait for its next message.
func (rl *MessageRateLimiter) WaitTime(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[key]
	if !exists {
		return 0
	}
	now := rl.now()
	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// Reset drops the bucket for key.
func (rl *MessageRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, key)
}

func (rl *MessageRateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep drops buckets idle for longer than idleTTL.
func (rl *MessageRateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine.
func (rl *MessageRateLimiter) Close() {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
}

func (rl *MessageRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"active_contacts": len(rl.limiters),
		"rate":            float64(rl.rate),
		"burst":           rl.burst,
	}
}
