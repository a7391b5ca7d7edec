// Package ratelimit provides the cooperative rate limiter the runner
// acquires before every provider call: a requests-per-minute (RPM) limit
// and a tokens-per-minute (TPM) limit, each enforced on an independent
// sliding 60-second window.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter enforces RPM via a counting semaphore with delayed permit
// release, and TPM via an estimate-then-correct atomic counter. Either or
// both limits may be zero, in which case the corresponding check is a
// no-op.
//
// The semaphore + delayed-release pattern gives a sliding window at O(1)
// entry cost: a permit taken at time t becomes available again ~60s later
// via a detached timer, rather than requiring a sweep over a queue of
// timestamps.
type Limiter struct {
	rpmLimit int
	rpmSem   chan struct{} // nil if RPM is unset

	tpmLimit int32 // 0 if TPM is unset
	tokens   int32 // atomic; tokens consumed in the current window

	mu          sync.Mutex
	windowStart time.Time
}

// New creates a Limiter. rpm and tpm of 0 disable the corresponding check.
func New(rpm, tpm int) *Limiter {
	l := &Limiter{
		rpmLimit:    rpm,
		tpmLimit:    int32(tpm),
		windowStart: time.Now(),
	}
	if rpm > 0 {
		l.rpmSem = make(chan struct{}, rpm)
		for i := 0; i < rpm; i++ {
			l.rpmSem <- struct{}{}
		}
	}
	return l
}

// IsActive reports whether either limit is configured.
func (l *Limiter) IsActive() bool {
	return l.rpmLimit > 0 || l.tpmLimit > 0
}

// Acquire blocks the caller until it is safe to proceed, given an estimate
// of how many tokens the upcoming call will consume. If neither limit is
// set, Acquire returns immediately with zero suspension.
//
// TPM is checked first: if the window's consumed tokens plus the estimate
// would exceed the limit, the caller sleeps out the remainder of the
// window and re-checks (the window may have rolled over by the time it
// wakes, so the loop re-reads rather than assuming success). RPM is then
// enforced by acquiring one semaphore permit; a detached goroutine
// releases it again after 60s, sliding the window forward one permit at a
// time.
func (l *Limiter) Acquire(ctx context.Context, estimatedTokens int) error {
	if l.tpmLimit > 0 {
		for {
			l.mu.Lock()
			elapsed := time.Since(l.windowStart)
			if elapsed >= time.Minute {
				l.windowStart = time.Now()
				atomic.StoreInt32(&l.tokens, 0)
				elapsed = 0
			}
			used := atomic.LoadInt32(&l.tokens)
			if used+int32(estimatedTokens) <= l.tpmLimit {
				l.mu.Unlock()
				break
			}
			remaining := time.Minute - elapsed
			l.mu.Unlock()

			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	if l.rpmSem != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.rpmSem:
		}
		go func() {
			time.Sleep(time.Minute)
			l.rpmSem <- struct{}{}
		}()
	}

	return nil
}

// RecordUsage adds the actual token count consumed by a completed call to
// the current window, correcting the estimate used at Acquire time.
func (l *Limiter) RecordUsage(actualTokens int) {
	if l.tpmLimit > 0 {
		atomic.AddInt32(&l.tokens, int32(actualTokens))
	}
}

// Suspended reports whether a caller acquiring now would have to wait:
// every RPM permit is currently checked out, or the TPM window has no
// headroom left. Used only for the engine's suspension gauge, not on any
// Acquire path.
func (l *Limiter) Suspended() bool {
	if l.rpmSem != nil && len(l.rpmSem) == 0 {
		return true
	}
	if l.tpmLimit > 0 && atomic.LoadInt32(&l.tokens) >= l.tpmLimit {
		return true
	}
	return false
}
