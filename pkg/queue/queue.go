package queue

import (
	"context"
	"strconv"
	"sync"
)

// Key identifies the destination an operation is serialized on.
type Key struct {
	addr  uint16
	valid bool
}

// NoKey is the key of operations without an addressable destination, such
// as group and broadcast sends.
var NoKey = Key{}

// KeyOf returns the key of a network address.
func KeyOf(addr uint16) Key {
	return Key{addr: addr, valid: true}
}

// Addr returns the network address and whether the key has one.
func (k Key) Addr() (uint16, bool) {
	return k.addr, k.valid
}

// String returns the decimal address, or "undefined" for NoKey.
func (k Key) String() string {
	if !k.valid {
		return "undefined"
	}
	return strconv.Itoa(int(k.addr))
}

// Executor runs operations under a key.
type Executor interface {
	Execute(ctx context.Context, key Key, fn func(ctx context.Context) error) error
}

// Queue is an Executor with one FIFO lane per key.
type Queue struct {
	mu    sync.Mutex
	tails map[uint16]*lane
}

// lane is the most recently submitted operation of a key. done closes when
// that operation has finished.
type lane struct {
	done chan struct{}
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{tails: make(map[uint16]*lane)}
}

// Execute runs fn once every earlier operation under key has finished. If
// ctx is done before fn starts, fn is skipped and ctx's error returned;
// later operations under key still wait for the earlier ones.
func (q *Queue) Execute(ctx context.Context, key Key, fn func(ctx context.Context) error) error {
	addr, ok := key.Addr()
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx)
	}

	q.mu.Lock()
	prev := q.tails[addr]
	mine := &lane{done: make(chan struct{})}
	q.tails[addr] = mine
	q.mu.Unlock()

	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			go func() {
				<-prev.done
				q.release(addr, mine)
			}()
			return ctx.Err()
		}
	}
	defer q.release(addr, mine)
	return fn(ctx)
}

func (q *Queue) release(addr uint16, l *lane) {
	q.mu.Lock()
	if q.tails[addr] == l {
		delete(q.tails, addr)
	}
	q.mu.Unlock()
	close(l.done)
}

// Len returns the number of keys with an operation queued or running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}

// Do runs fn through e and returns its value.
func Do[T any](ctx context.Context, e Executor, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, key, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
