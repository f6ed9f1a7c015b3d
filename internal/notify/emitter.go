// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package notify fans out events to observers and queues notifications for
// delivery without blocking the producer.
package notify

import "sync"

// Emitter keeps an ordered set of observers for one emitting entity. There
// is no global registry: every entity owns its own Emitter.
type Emitter[O comparable] struct {
	mu        sync.RWMutex
	observers []O
}

// AddObserver registers o. Registering the same observer twice is a no-op.
func (e *Emitter[O]) AddObserver(o O) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, existing := range e.observers {
		if existing == o {
			return
		}
	}
	e.observers = append(e.observers, o)
}

// RemoveObserver unregisters o.
func (e *Emitter[O]) RemoveObserver(o O) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.observers {
		if existing == o {
			e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
			return
		}
	}
}

// Notify calls fn for every observer, synchronously and in registration
// order. Observers may add or remove observers from inside fn; the change
// applies to the next Notify.
func (e *Emitter[O]) Notify(fn func(O)) {
	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()

	for _, o := range observers {
		fn(o)
	}
}

// Len returns the number of registered observers.
func (e *Emitter[O]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.observers)
}
