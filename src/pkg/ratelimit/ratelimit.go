// Package ratelimit enforces a minimum access interval per streaming
// platform so a single tick cannot hammer one upstream.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/streamalert-go/streamalert-go/src/types"
)

type Limiter struct {
	mu       sync.RWMutex
	limiters map[types.Platform]*platformLimiter
}

type platformLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastAccess  time.Time
}

func New() *Limiter {
	return &Limiter{limiters: make(map[types.Platform]*platformLimiter)}
}

// SetPlatformLimit sets or updates the minimum interval between
// requests to a platform. A non-positive interval removes the limit.
func (l *Limiter) SetPlatformLimit(platform types.Platform, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if interval <= 0 {
		delete(l.limiters, platform)
		return
	}
	if pl, ok := l.limiters[platform]; ok {
		pl.mu.Lock()
		pl.minInterval = interval
		pl.mu.Unlock()
		return
	}
	l.limiters[platform] = &platformLimiter{minInterval: interval}
}

// Wait blocks until the platform may be accessed again or ctx is
// cancelled. Returns false on cancellation. Platforms without a limit
// pass immediately.
func (l *Limiter) Wait(ctx context.Context, platform types.Platform) bool {
	l.mu.RLock()
	pl, ok := l.limiters[platform]
	l.mu.RUnlock()
	if !ok {
		return true
	}

	for {
		pl.mu.Lock()
		now := time.Now()
		wait := pl.minInterval - now.Sub(pl.lastAccess)
		if wait <= 0 {
			pl.lastAccess = now
			pl.mu.Unlock()
			return true
		}
		pl.mu.Unlock()

		// The lock is not held while sleeping so other goroutines can
		// observe or update the limiter.
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
