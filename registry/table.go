package registry

import (
	"iter"
	"math"
	"sync"

	"github.com/wippyai/framehost/errors"
)

// Table maps handles to host-side records.
//
// Entries live in an append-only slice indexed by handle, so Insert and Get
// are O(1) and iteration follows insertion order. Removed slots are kept as
// tombstones and their handles are never issued again.
type Table[T any] struct {
	entries   []entry[T]
	limit     uint64 // number of handles that can ever be issued
	live      int
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

type entry[T any] struct {
	value T
	valid bool
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries: make([]entry[T], 0, 16),
		limit:   math.MaxUint32 + 1,
	}
}

// Insert adds a value and returns its handle. It panics once every uint32
// handle has been issued; use TryInsert to get an error instead.
func (t *Table[T]) Insert(value T) Handle {
	h, err := t.TryInsert(value)
	if err != nil {
		panic(err)
	}
	return h
}

// TryInsert adds a value and returns its handle, or ErrExhausted when the
// handle space is used up. Handles are never wrapped around.
func (t *Table[T]) TryInsert(value T) (Handle, error) {
	t.mu.Lock()
	if uint64(len(t.entries)) >= t.limit {
		t.mu.Unlock()
		return 0, ErrExhausted
	}
	h := Handle(len(t.entries))
	t.entries = append(t.entries, entry[T]{value: value, valid: true})
	t.live++
	t.mu.Unlock()

	t.notify(Event{Type: EventInserted, Handle: h, Value: value})
	return h, nil
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(h) >= len(t.entries) || !t.entries[h].valid {
		var zero T
		return zero, errors.InvalidHandle(errors.PhaseRegistry, uint32(h))
	}
	return t.entries[h].value, nil
}

// Contains reports whether h refers to a live entry.
func (t *Table[T]) Contains(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(h) < len(t.entries) && t.entries[h].valid
}

// Remove unregisters a handle and returns its value.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	if int(h) >= len(t.entries) || !t.entries[h].valid {
		t.mu.Unlock()
		var zero T
		return zero, errors.InvalidHandle(errors.PhaseRegistry, uint32(h))
	}

	e := &t.entries[h]
	value := e.value
	var zero T
	e.value = zero
	e.valid = false
	t.live--
	t.mu.Unlock()

	t.notify(Event{Type: EventRemoved, Handle: h, Value: value})
	return value, nil
}

// Handles returns the live handles in insertion order.
// The result is a snapshot: the table may be mutated while it is walked.
func (t *Table[T]) Handles() []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()

	handles := make([]Handle, 0, t.live)
	for i := range t.entries {
		if t.entries[i].valid {
			handles = append(handles, Handle(i))
		}
	}
	return handles
}

// All iterates live entries in insertion order over a snapshot of handles.
// Entries removed during iteration are skipped.
func (t *Table[T]) All() iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		for _, h := range t.Handles() {
			v, err := t.Get(h)
			if err != nil {
				continue
			}
			if !yield(h, v) {
				return
			}
		}
	}
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Clear removes every live entry in insertion order and returns the removed values.
func (t *Table[T]) Clear() []T {
	handles := t.Handles()
	values := make([]T, 0, len(handles))
	for _, h := range handles {
		if v, err := t.Remove(h); err == nil {
			values = append(values, v)
		}
	}
	return values
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table[T]) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table[T]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnRegistryEvent(e)
	}
}
