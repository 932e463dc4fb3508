// Package ratelimit bounds how many messages a chat may have processed
// within a rolling window. Enforced at the dispatch boundary before any
// other work.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerChat hands out one token bucket per chat: burst N with refill spread
// over the window, so a chat gets at most N messages per rolling window.
// N <= 0 disables limiting.
type PerChat struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	n        int
	window   time.Duration
}

func NewPerChat(n int, window time.Duration) *PerChat {
	if window <= 0 {
		window = time.Minute
	}
	return &PerChat{
		limiters: make(map[int64]*rate.Limiter),
		n:        n,
		window:   window,
	}
}

// Allow reports whether the chat may process one more message now.
func (p *PerChat) Allow(chatID int64) bool {
	if p.n <= 0 {
		return true
	}
	p.mu.Lock()
	lim := p.limiters[chatID]
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(p.window/time.Duration(p.n)), p.n)
		p.limiters[chatID] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
