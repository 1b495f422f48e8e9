package apify

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that paces actor runs. Runs are billed and
// throttled per account, so the client spaces them out on its own.
// A nil *RateLimiter never blocks.
type RateLimiter struct {
	tokens    chan struct{}
	interval  time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter creates a limiter allowing rps calls per second with a burst
// of rps. Returns nil when rps <= 0.
func NewRateLimiter(rps int) *RateLimiter {
	if rps <= 0 {
		return nil
	}

	rl := &RateLimiter{
		tokens:   make(chan struct{}, rps),
		interval: time.Second / time.Duration(rps),
		done:     make(chan struct{}),
	}
	for i := 0; i < rps; i++ {
		rl.tokens <- struct{}{}
	}

	go rl.refill()

	return rl
}

func (rl *RateLimiter) refill() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.done:
		return ErrClosed
	case <-rl.tokens:
		return nil
	}
}

// Close stops the refill goroutine. Safe to call more than once.
func (rl *RateLimiter) Close() {
	if rl == nil {
		return
	}
	rl.closeOnce.Do(func() { close(rl.done) })
}
