// Package typelookup implements the type-lookup admin (a dual-indexed,
// in-memory registry of type-resolution records) and the request/reply
// wire protocol that resolves a remote type identifier into a local
// sertype.
package typelookup

import (
	"context"
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
)

// State is the tlm record's resolution state machine.
type State int

const (
	StateNew State = iota
	StateRequested
	StateResolved
)

// TypeID is a fixed-size structural type identifier. Both the complete
// and minimal identifiers use this shape; they are distinguished only by
// which index they are stored under.
type TypeID [16]byte

// Record is one type-lookup admin record ("tlm" in the originating
// implementation): the resolution state for a given type identifier,
// the sertype once resolved, and the set of proxy endpoints waiting on
// it.
type Record struct {
	CompleteID TypeID
	MinimalID  TypeID
	Sertype    *sertype.Type
	State      State

	mu         sync.Mutex
	cond       *sync.Cond
	refcount   int
	dependents map[string]bool // proxy endpoint guids, set semantics
}

func newRecord(complete, minimal TypeID) *Record {
	r := &Record{CompleteID: complete, MinimalID: minimal, State: StateNew, dependents: map[string]bool{}}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Admin is the per-domain type-lookup admin registry: two indices
// (complete, disallowing duplicates; minimal, allowing them, since two
// distinct complete types may share a minimal id under hash collision)
// over one set of heap-owned Record values.
type Admin struct {
	mu        sync.Mutex
	byComplete map[TypeID]*Record
	byMinimal  map[TypeID][]*Record

	sertypes *sertype.Registry
}

// New returns an empty per-domain admin registry backed by reg for
// sertype dedup on resolution.
func New(reg *sertype.Registry) *Admin {
	return &Admin{
		byComplete: map[TypeID]*Record{},
		byMinimal:  map[TypeID][]*Record{},
		sertypes:   reg,
	}
}

func (a *Admin) findLocked(complete, minimal TypeID) *Record {
	if r, ok := a.byComplete[complete]; ok {
		return r
	}
	for _, r := range a.byMinimal[minimal] {
		if r.MinimalID == minimal {
			return r
		}
	}
	return nil
}

func (a *Admin) insertLocked(r *Record) {
	a.byComplete[r.CompleteID] = r
	a.byMinimal[r.MinimalID] = append(a.byMinimal[r.MinimalID], r)
}

func (a *Admin) removeLocked(r *Record) {
	delete(a.byComplete, r.CompleteID)
	bucket := a.byMinimal[r.MinimalID]
	for i, c := range bucket {
		if c == r {
			a.byMinimal[r.MinimalID] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
}

// Ref implements tlm_ref: locate-or-create the record for the given
// identifiers, optionally binding st (transitioning to RESOLVED and
// waking resolve waiters) and/or registering proxyGUID as a dependent,
// then bump the refcount.
func (a *Admin) Ref(complete, minimal TypeID, st *sertype.Type, proxyGUID string) *Record {
	a.mu.Lock()
	r := a.findLocked(complete, minimal)
	if r == nil {
		r = newRecord(complete, minimal)
		a.insertLocked(r)
	}
	a.mu.Unlock()

	r.mu.Lock()
	if st != nil && r.Sertype == nil {
		r.Sertype = st
		r.State = StateResolved
		r.cond.Broadcast()
	}
	if proxyGUID != "" {
		r.dependents[proxyGUID] = true
	}
	r.refcount++
	r.mu.Unlock()
	return r
}

// Unref implements tlm_unref: drop proxyGUID from the dependent set and,
// once the refcount reaches zero, remove the record from both indices.
func (a *Admin) Unref(r *Record, proxyGUID string) {
	r.mu.Lock()
	if proxyGUID != "" {
		delete(r.dependents, proxyGUID)
	}
	r.refcount--
	dead := r.refcount <= 0
	r.mu.Unlock()

	if dead {
		a.mu.Lock()
		a.removeLocked(r)
		a.mu.Unlock()
	}
}

// Dependents returns a snapshot of r's dependent proxy endpoint guids.
func (r *Record) Dependents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.dependents))
	for g := range r.dependents {
		out = append(out, g)
	}
	return out
}

// RequestFunc issues a type-lookup request for a NEW record, returning
// once the request has been published (not once it resolves). Supplied
// by the protocol layer (core/typelookup.Protocol.Request).
type RequestFunc func(complete TypeID) error

// Resolve implements resolve(type_id, timeout): if already RESOLVED,
// ref and return the sertype immediately. Otherwise, if timeout != 0,
// issue a request (unless already REQUESTED) and wait on the
// resolved-condition up to timeout; TIMEOUT is returned if it never
// resolves in time.
func (a *Admin) Resolve(ctx context.Context, complete, minimal TypeID, timeout time.Duration, issueRequest RequestFunc) (*sertype.Type, error) {
	a.mu.Lock()
	r := a.findLocked(complete, minimal)
	if r == nil {
		r = newRecord(complete, minimal)
		a.insertLocked(r)
	}
	a.mu.Unlock()

	r.mu.Lock()
	if r.State == StateResolved {
		st := r.Sertype
		r.refcount++
		r.mu.Unlock()
		return st, nil
	}
	if timeout == 0 {
		r.mu.Unlock()
		return nil, ddserrors.New("typelookup.Resolve", ddserrors.Timeout, "poll timeout elapsed with no resolution")
	}
	needRequest := r.State == StateNew
	if needRequest {
		r.State = StateRequested
	}
	r.mu.Unlock()

	if needRequest && issueRequest != nil {
		if err := issueRequest(complete); err != nil {
			return nil, err
		}
	}

	resolved := make(chan *sertype.Type, 1)
	go func() {
		r.mu.Lock()
		for r.State != StateResolved {
			r.cond.Wait()
		}
		st := r.Sertype
		r.mu.Unlock()
		resolved <- st
	}()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case st := <-resolved:
		r.mu.Lock()
		r.refcount++
		r.mu.Unlock()
		return st, nil
	case <-waitCtx.Done():
		return nil, ddserrors.New("typelookup.Resolve", ddserrors.Timeout, "type resolution did not complete before the deadline")
	}
}

// RegisterWithProxyEndpoints binds r's sertype to each of r's dependent
// proxy endpoints whose entry lacks one yet, under that endpoint's own lock
// (modeled here as the caller-supplied setIfAbsent callback).
func RegisterWithProxyEndpoints(r *Record, setIfAbsent func(proxyGUID string, st *sertype.Type) bool) {
	r.mu.Lock()
	st := r.Sertype
	guids := make([]string, 0, len(r.dependents))
	for g := range r.dependents {
		guids = append(guids, g)
	}
	r.mu.Unlock()

	if st == nil {
		return
	}
	for _, g := range guids {
		setIfAbsent(g, st)
	}
}
