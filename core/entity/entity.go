// Package entity implements the common entity graph shared by every DDS
// object kind: domain, participant, topic, publisher/subscriber, writer,
// reader. Every entity embeds a *Common header carrying the parent link,
// an ordered child set, status flags, and the locking discipline the
// rest of the core depends on.
package entity

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/handle"
)

// Kind tags the concrete entity type for dispatch without a type switch
// on every call site.
type Kind int

const (
	KindDomain Kind = iota
	KindParticipant
	KindTopic
	KindPublisher
	KindSubscriber
	KindWriter
	KindReader
)

// StatusMask is a bitset of pending status changes, cleared by
// read_status-style operations and tested by validate_status.
type StatusMask uint32

// Vtable is the per-kind dispatch table. Every hook is optional; nil
// hooks are no-ops. Deriving kinds supply only what they need, the way
// the corpus's kernel dispatches through ServiceInfo rather than a
// type switch.
type Vtable struct {
	Interrupt     func(e *Common)
	Close         func(e *Common) error
	Delete        func(e *Common) error
	SetQoS        func(e *Common, qos any) error
	ValidateStatus func(e *Common, mask StatusMask) error
}

// Listener receives a status-mask notification. Listener callbacks run
// with the observers lock dropped and must not panic across the call
// boundary; a panicking listener is recovered inside Notify and
// discarded without logging, never propagated.
type Listener func(e *Common, changed StatusMask)

// Common is the header embedded by every concrete entity kind.
type Common struct {
	Handle     handle.Handle
	InstanceID uint64
	Kind       Kind
	Parent     *Common
	Vtbl       Vtable

	m  sync.Mutex
	c  *sync.Cond

	obsMu     sync.Mutex
	obsCond   *sync.Cond
	listeners []Listener
	inflight  int

	children map[uint64]*Common // keyed by InstanceID, ordered via sorted scan

	status StatusMask
	closed bool

	batch bool

	deafMuteFlags    uint32
	deafMuteDuration time.Duration
}

var instanceSeq uint64
var instanceSeqMu sync.Mutex

// nextInstanceID returns a process-local, monotonically increasing id.
// Seeded from a uuid so restarts do not collide with a prior process's
// ids when ids are persisted externally (e.g. in discovery caches).
func nextInstanceID() uint64 {
	instanceSeqMu.Lock()
	defer instanceSeqMu.Unlock()
	if instanceSeq == 0 {
		u := uuid.New()
		var seed uint64
		for _, b := range u[:8] {
			seed = seed<<8 | uint64(b)
		}
		instanceSeq = seed | 1
	}
	instanceSeq++
	return instanceSeq
}

// New constructs a Common header, linking it under parent (nil for a
// domain, the process root).
func New(kind Kind, parent *Common, vt Vtable) *Common {
	e := &Common{
		InstanceID: nextInstanceID(),
		Kind:       kind,
		Parent:     parent,
		Vtbl:       vt,
		children:   make(map[uint64]*Common),
	}
	e.c = sync.NewCond(&e.m)
	e.obsCond = sync.NewCond(&e.obsMu)
	if parent != nil {
		parent.addChild(e)
	}
	return e
}

func (e *Common) addChild(child *Common) {
	e.m.Lock()
	defer e.m.Unlock()
	e.children[child.InstanceID] = child
}

func (e *Common) removeChild(child *Common) {
	e.m.Lock()
	defer e.m.Unlock()
	delete(e.children, child.InstanceID)
}

// ChildCursor walks children in increasing instance-id order without
// holding the parent lock across the callout, so concurrent insertion
// or removal during the walk is safe. Next returns (nil, false) once
// exhausted.
type ChildCursor struct {
	parent  *Common
	lastSeen uint64
	started bool
}

// Cursor returns a fresh ChildCursor over e's children.
func (e *Common) Cursor() *ChildCursor {
	return &ChildCursor{parent: e}
}

// Next returns the next child with InstanceID strictly greater than the
// last one returned, re-scanning the live child set each call so
// concurrent deletions never return a stale pointer.
func (c *ChildCursor) Next() (*Common, bool) {
	c.parent.m.Lock()
	defer c.parent.m.Unlock()

	var best *Common
	for _, child := range c.parent.children {
		if child.InstanceID <= c.lastSeen {
			continue
		}
		if best == nil || child.InstanceID < best.InstanceID {
			best = child
		}
	}
	if best == nil {
		return nil, false
	}
	c.lastSeen = best.InstanceID
	return best, true
}

// Children returns a point-in-time snapshot, for callers that don't need
// the resumable-cursor contract (e.g. tests, invariant checks).
func (e *Common) Children() []*Common {
	e.m.Lock()
	defer e.m.Unlock()
	out := make([]*Common, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	return out
}

// Notify fires every registered listener with the observers lock
// dropped, tracking in-flight callbacks so Close can wait for them to
// drain before calling Delete.
func (e *Common) Notify(changed StatusMask) {
	e.obsMu.Lock()
	e.status |= changed
	listeners := append([]Listener(nil), e.listeners...)
	e.inflight += len(listeners)
	e.obsMu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				recover() // listener panics are swallowed, never propagated
				e.obsMu.Lock()
				e.inflight--
				if e.inflight == 0 {
					e.obsCond.Broadcast()
				}
				e.obsMu.Unlock()
			}()
			l(e, changed)
		}()
	}
}

// AddListener registers l for future Notify calls.
func (e *Common) AddListener(l Listener) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.listeners = append(e.listeners, l)
}

// ReadStatus returns and clears the pending status mask.
func (e *Common) ReadStatus() StatusMask {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	s := e.status
	e.status = 0
	return s
}

// Close runs the close protocol: interrupt any blocked operation on this
// entity's own condition variable, wait for in-flight listener callbacks
// to drain, then invoke Delete. Safe to call more than once; subsequent
// calls are no-ops.
func (e *Common) Close() error {
	e.m.Lock()
	if e.closed {
		e.m.Unlock()
		return nil
	}
	e.closed = true
	e.m.Unlock()

	if e.Vtbl.Interrupt != nil {
		e.Vtbl.Interrupt(e)
	}
	e.c.Broadcast()

	if e.Vtbl.Close != nil {
		if err := e.Vtbl.Close(e); err != nil {
			return err
		}
	}

	e.obsMu.Lock()
	for e.inflight > 0 {
		e.obsCond.Wait()
	}
	e.obsMu.Unlock()

	if e.Parent != nil {
		e.Parent.removeChild(e)
	}

	if e.Vtbl.Delete != nil {
		return e.Vtbl.Delete(e)
	}
	return nil
}

// IsClosed reports whether Close has been invoked, the check every
// pinned operation performs immediately after waking from a wait.
func (e *Common) IsClosed() bool {
	e.m.Lock()
	defer e.m.Unlock()
	return e.closed
}

// Lock/Unlock expose the entity mutex m to deriving kinds that need to
// extend the critical section (e.g. writer history-cache mutation).
func (e *Common) Lock()   { e.m.Lock() }
func (e *Common) Unlock() { e.m.Unlock() }

// Wait blocks on the entity's own condition variable; the caller must
// hold the entity lock. Returns immediately if already closed.
func (e *Common) Wait() {
	if e.closed {
		return
	}
	e.c.Wait()
}

// SetBatchFlag sets the batch-write flag applied in bulk by set_batch.
// Only meaningful on KindWriter entities; stored generically here since
// Common carries no per-kind fields.
func (e *Common) SetBatchFlag(b bool) {
	e.m.Lock()
	defer e.m.Unlock()
	e.batch = b
}

// BatchFlag reports the flag last set by SetBatchFlag.
func (e *Common) BatchFlag() bool {
	e.m.Lock()
	defer e.m.Unlock()
	return e.batch
}

// SetDeafMute applies the advisory flags+duration pair set_deaf_mute
// installs on any entity kind.
func (e *Common) SetDeafMute(flags uint32, duration time.Duration) {
	e.m.Lock()
	defer e.m.Unlock()
	e.deafMuteFlags = flags
	e.deafMuteDuration = duration
}

// DeafMute returns the flags and duration last set by SetDeafMute.
func (e *Common) DeafMute() (uint32, time.Duration) {
	e.m.Lock()
	defer e.m.Unlock()
	return e.deafMuteFlags, e.deafMuteDuration
}

// ValidateKind returns ILLEGAL_OPERATION if e is not one of the allowed
// kinds, the guard used by operations like find_topic that are only
// meaningful on certain entity kinds.
func ValidateKind(e *Common, op string, allowed ...Kind) error {
	for _, k := range allowed {
		if e.Kind == k {
			return nil
		}
	}
	return ddserrors.New(op, ddserrors.IllegalOperation, "operation not valid for this entity kind")
}
