package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle client buckets are forgotten after clientIdleTTL; the map is swept at
// most once per sweepInterval.
const (
	clientIdleTTL = 10 * time.Minute
	sweepInterval = time.Minute
)

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client.
type RateLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter allows rps requests per second per client with the given
// burst. A burst below one is raised to one.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// Allow consumes one token for clientID or reports how long to wait.
func (rl *RateLimiter) Allow(clientID string) error {
	now := rl.now()
	lim := rl.limiter(clientID, now)
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return &RateLimitError{Client: clientID, Limit: float64(rl.rps)}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &RateLimitError{Client: clientID, Limit: float64(rl.rps), RetryAfter: delay}
	}
	return nil
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) limiter(clientID string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweepLocked(now)
	}
	cl, ok := rl.clients[clientID]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[clientID] = cl
	}
	cl.lastSeen = now
	return cl.lim
}

// sweepLocked drops clients idle for longer than clientIdleTTL. By then their
// bucket has refilled, so a fresh one behaves the same.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	rl.lastSweep = now
	for id, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > clientIdleTTL {
			delete(rl.clients, id)
		}
	}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Client     string
	Limit      float64       // requests per second
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %g/s, retry after: %v)", e.Client, e.Limit, e.RetryAfter)
}
