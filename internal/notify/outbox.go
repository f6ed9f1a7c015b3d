// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrOutboxClosed is returned by Next once the outbox is closed and drained.
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox is an unbounded FIFO queue with a single consumer. Push never
// blocks, so a producer holding a lock can hand work to a slow consumer
// (typically a network writer) without waiting on it.
type Outbox[T any] struct {
	mu     sync.Mutex
	items  []T
	ready  chan struct{}
	closed bool
}

// NewOutbox creates an empty outbox.
func NewOutbox[T any]() *Outbox[T] {
	return &Outbox[T]{ready: make(chan struct{}, 1)}
}

// Push appends item. It reports false if the outbox is closed.
func (o *Outbox[T]) Push(item T) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.items = append(o.items, item)
	o.mu.Unlock()

	o.signal()
	return true
}

// Next blocks until an item is available, the outbox is closed and empty,
// or ctx is done.
func (o *Outbox[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			item := o.items[0]
			o.items[0] = zero
			o.items = o.items[1:]
			o.mu.Unlock()
			return item, nil
		}
		closed := o.closed
		o.mu.Unlock()

		if closed {
			return zero, ErrOutboxClosed
		}

		select {
		case <-o.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close stops accepting new items. Items already queued are still
// returned by Next.
func (o *Outbox[T]) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.signal()
}

// Len returns the number of queued items.
func (o *Outbox[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

func (o *Outbox[T]) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
