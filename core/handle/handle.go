// Package handle implements the process-wide handle table: a bijective
// mapping between small integer handles and entity pointers, with
// pin/unpin reference counting so a handle can be resolved to its entity
// without racing the entity's own deletion.
package handle

import (
	"sync"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
)

// Handle is the public, stable identifier for an entity. Zero is never
// issued and so doubles as an invalid-handle sentinel.
type Handle int32

const Nil Handle = 0

type slot struct {
	value    any
	pins     int
	deleting bool
	valid    bool
}

// Table is the handle table. One Table exists per process (DOMAIN root
// singleton); it is safe for concurrent use.
type Table struct {
	mu     sync.Mutex
	slots  map[Handle]*slot
	next   Handle
}

// New returns an empty handle table.
func New() *Table {
	return &Table{slots: make(map[Handle]*slot), next: 1}
}

// Create allocates a fresh handle bound to value. The handle is never
// reused: once issued it is tombstoned, not recycled, when closed.
func (t *Table) Create(value any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.slots[h] = &slot{value: value, valid: true}
	return h
}

// Pin resolves h to its bound value and increments its pin count,
// preventing Close from removing it until a matching Unpin. Pin
// fails once the slot has entered its deleting state.
func (t *Table) Pin(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[h]
	if !ok || !s.valid || s.deleting {
		return nil, ddserrors.New("handle.Pin", ddserrors.BadParameter, "unknown or deleted handle")
	}
	s.pins++
	return s.value, nil
}

// Unpin releases a reference acquired by Pin.
func (t *Table) Unpin(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[h]
	if !ok {
		return
	}
	if s.pins > 0 {
		s.pins--
	}
}

// Close marks h for deletion. It returns PreconditionNotMet while pins
// remain outstanding; the caller must call Close again after the
// outstanding pinners call Unpin. Close does not wait for them.
func (t *Table) Close(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[h]
	if !ok || !s.valid {
		return ddserrors.New("handle.Close", ddserrors.BadParameter, "unknown handle")
	}
	if s.pins > 0 {
		s.deleting = true
		return ddserrors.New("handle.Close", ddserrors.PreconditionNotMet, "handle has outstanding pins")
	}
	delete(t.slots, h)
	return nil
}

// IsClosed reports whether h no longer resolves to a live value: either
// it was never issued, has already been removed by Close, or is
// currently draining (Close was called but pins are still outstanding).
func (t *Table) IsClosed(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[h]
	if !ok {
		return true
	}
	return !s.valid || s.deleting
}

// PinCount reports the outstanding pin count for h, for tests and
// diagnostics.
func (t *Table) PinCount(h Handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[h]; ok {
		return s.pins
	}
	return 0
}

// Len reports the number of live handles, for tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
