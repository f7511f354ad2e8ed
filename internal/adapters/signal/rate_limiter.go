package signal

import (
	"sync"

	"github.com/dkeye/Conference/internal/domain"
	"golang.org/x/time/rate"
)

// UserRateLimiter keeps one token bucket per user, shared by all of the
// user's connections.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter allows perSecond requests with bursts of burst.
// A non-positive rate disables limiting.
func NewUserRateLimiter(perSecond float64, burst int) *UserRateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		limiters: make(map[domain.UserID]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (rl *UserRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[uid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[uid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

func (rl *UserRateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, uid)
}
