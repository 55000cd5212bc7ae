// Package waitress keeps an index of pending waits for asynchronous
// messages.
//
// A wait is registered synchronously with WaitFor and later resolved by the
// first payload offered to Resolve that the validator accepts. Waits are
// bucketed by a caller-supplied key so dispatch only scans waits that can
// possibly match. Every wait settles exactly once: by resolution, timeout,
// cancellation or RejectAll, whichever comes first.
package waitress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCanceled is returned by Wait after Cancel.
var ErrCanceled = errors.New("wait canceled")

// TimeoutError is the default error of an expired wait.
type TimeoutError struct {
	Description string
	Timeout     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %dms waiting for %s", e.Timeout.Milliseconds(), e.Description)
}

// Config describes how payloads of type P are matched against matchers of
// type M.
type Config[P, M any] struct {
	// MatcherKey and PayloadKey return the bucket of a matcher and a payload.
	MatcherKey func(M) string
	PayloadKey func(P) string

	// Validate reports whether payload satisfies matcher.
	Validate func(P, M) bool

	// TimeoutError builds the error for an expired wait. Optional.
	TimeoutError func(M, time.Duration) error
}

// Waitress is a concurrent-safe set of pending waits.
type Waitress[P, M any] struct {
	cfg Config[P, M]

	mu      sync.Mutex
	nextID  uint64
	buckets map[string][]*Waiter[P, M]
}

// New creates a Waitress.
func New[P, M any](cfg Config[P, M]) *Waitress[P, M] {
	return &Waitress[P, M]{
		cfg:     cfg,
		buckets: make(map[string][]*Waiter[P, M]),
	}
}

type result[P any] struct {
	payload P
	err     error
}

// Waiter is the handle of one pending wait.
type Waiter[P, M any] struct {
	ID      uint64
	Matcher M
	Timeout time.Duration

	w     *Waitress[P, M]
	key   string
	once  sync.Once
	done  chan result[P]
	timer *time.Timer
}

// WaitFor registers a wait. A zero timeout never expires.
func (w *Waitress[P, M]) WaitFor(matcher M, timeout time.Duration) *Waiter[P, M] {
	key := w.cfg.MatcherKey(matcher)

	w.mu.Lock()
	w.nextID++
	waiter := &Waiter[P, M]{
		ID:      w.nextID,
		Matcher: matcher,
		Timeout: timeout,
		w:       w,
		key:     key,
		done:    make(chan result[P], 1),
	}
	w.buckets[key] = append(w.buckets[key], waiter)
	if timeout > 0 {
		waiter.timer = time.AfterFunc(timeout, waiter.expire)
	}
	w.mu.Unlock()

	return waiter
}

// Resolve settles the oldest pending wait that accepts payload.
// It reports whether a wait was resolved.
func (w *Waitress[P, M]) Resolve(payload P) bool {
	key := w.cfg.PayloadKey(payload)

	w.mu.Lock()
	var match *Waiter[P, M]
	for _, waiter := range w.buckets[key] {
		if w.cfg.Validate(payload, waiter.Matcher) {
			match = waiter
			break
		}
	}
	if match != nil {
		w.removeLocked(match)
	}
	w.mu.Unlock()

	if match == nil {
		return false
	}
	return match.settle(result[P]{payload: payload})
}

// RejectAll fails every pending wait with err.
func (w *Waitress[P, M]) RejectAll(err error) {
	w.mu.Lock()
	var all []*Waiter[P, M]
	for _, bucket := range w.buckets {
		all = append(all, bucket...)
	}
	w.buckets = make(map[string][]*Waiter[P, M])
	w.mu.Unlock()

	for _, waiter := range all {
		waiter.settle(result[P]{err: err})
	}
}

// Len returns the number of pending waits.
func (w *Waitress[P, M]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, bucket := range w.buckets {
		n += len(bucket)
	}
	return n
}

func (w *Waitress[P, M]) remove(waiter *Waiter[P, M]) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(waiter)
}

func (w *Waitress[P, M]) removeLocked(waiter *Waiter[P, M]) bool {
	bucket := w.buckets[waiter.key]
	for i, candidate := range bucket {
		if candidate == waiter {
			bucket = append(bucket[:i:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(w.buckets, waiter.key)
			} else {
				w.buckets[waiter.key] = bucket
			}
			return true
		}
	}
	return false
}

func (waiter *Waiter[P, M]) settle(r result[P]) bool {
	settled := false
	waiter.once.Do(func() {
		if waiter.timer != nil {
			waiter.timer.Stop()
		}
		waiter.done <- r
		settled = true
	})
	return settled
}

func (waiter *Waiter[P, M]) expire() {
	if !waiter.w.remove(waiter) {
		return
	}
	var err error
	if waiter.w.cfg.TimeoutError != nil {
		err = waiter.w.cfg.TimeoutError(waiter.Matcher, waiter.Timeout)
	} else {
		err = &TimeoutError{Description: fmt.Sprintf("%v", waiter.Matcher), Timeout: waiter.Timeout}
	}
	waiter.settle(result[P]{err: err})
}

// Cancel removes the wait. A later Wait returns ErrCanceled unless the wait
// had already settled.
func (waiter *Waiter[P, M]) Cancel() {
	waiter.w.remove(waiter)
	waiter.settle(result[P]{err: ErrCanceled})
}

// Wait blocks until the wait settles or ctx is done. Cancelling ctx
// cancels the wait.
func (waiter *Waiter[P, M]) Wait(ctx context.Context) (P, error) {
	select {
	case r := <-waiter.done:
		// Keep the result readable for repeated Wait calls.
		waiter.done <- r
		return r.payload, r.err
	case <-ctx.Done():
		waiter.Cancel()
		r := <-waiter.done
		waiter.done <- r
		if errors.Is(r.err, ErrCanceled) {
			var zero P
			return zero, ctx.Err()
		}
		return r.payload, r.err
	}
}
