package llm

import (
	"context"
	"math"
	"sync"
	"time"
)

// ImageCallWeight is what one image generation costs against the shared
// budget. A text call costs 1.
const ImageCallWeight = 2

// bucket is a token bucket refilled from the time elapsed since the last
// reservation. Reservations may drive it negative; later callers then wait
// behind them in arrival order. A nil bucket never blocks.
type bucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

// newBucket returns nil when rps <= 0.
func newBucket(rps float64, burst int) *bucket {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	b := &bucket{rate: rps, burst: float64(burst), tokens: float64(burst), now: time.Now}
	b.last = b.now()
	return b
}

// reserve takes weight tokens and returns how long the caller has to wait
// before using them.
func (b *bucket) reserve(weight float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.burst, b.tokens+elapsed*b.rate)
	}
	b.last = now
	b.tokens -= weight
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens / b.rate * float64(time.Second))
}

// release hands back a reservation the caller gave up on.
func (b *bucket) release(weight float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = math.Min(b.burst, b.tokens+weight)
}

func (b *bucket) wait(ctx context.Context, weight float64) error {
	if b == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d := b.reserve(weight)
	if d == 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		b.release(weight)
		return ctx.Err()
	}
}
