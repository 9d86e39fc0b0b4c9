package tulip

// limiter.go bounds the number of requests a Client has in flight.
//
// The limiter uses a semaphore pattern: every request takes a slot before it
// is sent and gives it back when the request returns, failed or not. When
// all slots are occupied, callers wait until one frees up, their context
// ends, or the optional maxWait expires (ErrPoolExhausted).
//
// WaitForDrain blocks until all active requests complete and backs
// Client.Drain.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPoolExhausted is returned when all request slots stay occupied for
// longer than the limiter's maxWait.
var ErrPoolExhausted = errors.New("all request slots busy")

// DefaultConcurrency is the default number of simultaneous requests.
const DefaultConcurrency = 40

// SlotLimiter controls concurrent requests using a semaphore.
type SlotLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration // zero waits until ctx is done

	mu     sync.RWMutex
	active int
}

// NewSlotLimiter creates a limiter that allows at most maxConcurrent
// simultaneous requests.
func NewSlotLimiter(maxConcurrent int, maxWait time.Duration) *SlotLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultConcurrency
	}
	if maxWait < 0 {
		maxWait = 0
	}

	return &SlotLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a request slot.
// The caller MUST call Release() once the request completes (use defer).
func (l *SlotLimiter) Acquire(ctx context.Context) error {
	waitCtx := ctx
	if l.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Distinguish caller cancellation from our own wait timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPoolExhausted
	}
}

// TryAcquire takes a slot without blocking.
func (l *SlotLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a previously acquired slot.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *SlotLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of requests in flight.
func (l *SlotLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot capacity.
func (l *SlotLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *SlotLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no requests are in flight or ctx is cancelled.
func (l *SlotLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}

	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// SlotStatus is a snapshot of a limiter's state.
type SlotStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring/debugging.
func (l *SlotLimiter) Status() SlotStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return SlotStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
