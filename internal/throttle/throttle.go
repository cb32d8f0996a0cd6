// Package throttle provides request rate limiting and batched writes.
package throttle

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	rate       float64 // tokens per second
	burst      int     // max tokens
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter that starts with a full bucket.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return newRateLimiter(rate, burst, time.Now)
}

func newRateLimiter(rate float64, burst int, now func() time.Time) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: now(),
		now:        now,
	}
}

// Allow checks if a request is allowed under the rate limit.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill adds tokens for the time elapsed since the last call. Caller holds mu.
func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.rate
	if r.tokens > float64(r.burst) {
		r.tokens = float64(r.burst)
	}
}

// full reports whether the bucket has refilled completely.
func (r *RateLimiter) full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return r.tokens >= float64(r.burst)
}

// Wait waits until a request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if r.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// KeyedLimiter keeps one token bucket per key, typically a user id.
type KeyedLimiter struct {
	rate     float64
	burst    int
	now      func() time.Time
	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

// NewKeyedLimiter creates a per-key limiter. Every key gets rate tokens per
// second with the given burst.
func NewKeyedLimiter(rate float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		rate:     rate,
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*RateLimiter),
	}
}

// Allow consumes a token from key's bucket.
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = newRateLimiter(k.rate, k.burst, k.now)
		k.limiters[key] = l
	}
	k.mu.Unlock()

	return l.Allow()
}

// Prune drops buckets that have refilled completely and returns how many were
// removed. A dropped bucket is indistinguishable from a fresh one.
func (k *KeyedLimiter) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, l := range k.limiters {
		if l.full() {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// BatchProcessor processes items in batches for improved efficiency.
type BatchProcessor[T any] struct {
	batchSize int
	processor func(context.Context, []T) error
	items     []T
	processed int
	mu        sync.Mutex
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor[T any](batchSize int, processor func(context.Context, []T) error) *BatchProcessor[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchProcessor[T]{
		batchSize: batchSize,
		processor: processor,
		items:     make([]T, 0, batchSize),
	}
}

// Add adds an item to the batch. If the batch is full, it's processed.
func (b *BatchProcessor[T]) Add(ctx context.Context, item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)
	if len(b.items) >= b.batchSize {
		return b.flush(ctx)
	}
	return nil
}

// Flush processes any remaining items in the batch.
func (b *BatchProcessor[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush(ctx)
}

// Processed returns how many items have been handed to the processor.
func (b *BatchProcessor[T]) Processed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed
}

func (b *BatchProcessor[T]) flush(ctx context.Context) error {
	if len(b.items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The processor may retain the slice, so hand it a copy.
	batch := make([]T, len(b.items))
	copy(batch, b.items)
	b.items = b.items[:0]

	if err := b.processor(ctx, batch); err != nil {
		return err
	}
	b.processed += len(batch)
	return nil
}
