// Package domain implements the domain root: the process-wide domain
// tree, a handle table shared across every domain, and the lifecycle
// that composes the sertype registry, type-lookup admin, serdata pool
// and topic table into one created domain.
package domain

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/ddscore/core/config"
	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/entity"
	"github.com/jeeves-cluster-organization/ddscore/core/handle"
	"github.com/jeeves-cluster-organization/ddscore/core/log"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
	"github.com/jeeves-cluster-organization/ddscore/core/serdata"
	"github.com/jeeves-cluster-organization/ddscore/core/topic"
	"github.com/jeeves-cluster-organization/ddscore/core/typelookup"
	"github.com/jeeves-cluster-organization/ddscore/transport"
)

// DefaultDomainID is the sentinel passed to CreateDomain to mean
// "whichever domain already exists with the smallest id", the implicit
// lookup path.
const DefaultDomainID int32 = -1

// RTPSHook is the external collaborator boundary for the out-of-scope
// RTPS layer: validate-and-prepare config, init, start, stop, finish.
// The default implementation treats every stage as a no-op; the
// domain's Loopback bus is created by CreateDomain, not by the hook.
type RTPSHook interface {
	Init(cfg *config.DomainConfig) error
	Start() error
	Stop() error
	Finish() error
}

type noopRTPS struct{}

func (noopRTPS) Init(*config.DomainConfig) error { return nil }
func (noopRTPS) Start() error                    { return nil }
func (noopRTPS) Stop() error                      { return nil }
func (noopRTPS) Finish() error                    { return nil }

// Domain is a created domain: its own sertype registry, type-lookup
// admin, serdata pool and in-process transport, all scoped to this
// domain id.
type Domain struct {
	*entity.Common
	ID       int32
	Config   *config.DomainConfig
	TStart   time.Time

	Sertypes  *sertype.Registry
	TypeAdmin *typelookup.Admin
	Pool      *serdata.Pool
	Bus       *transport.Loopback

	participants map[handle.Handle]*topic.Table
	rtps         RTPSHook
	logger       log.Logger
}

// Registry is the process-wide domain root: the domain tree, the
// shared handle table, and the thread-monitor reference count. Only the
// count is kept; no monitor thread is started.
type Registry struct {
	mu          sync.Mutex
	cond        *sync.Cond
	domains     map[int32]*Domain
	handles     *handle.Table
	monitorRefs int
	rtpsFactory func() RTPSHook
	logger      log.Logger
}

// NewRegistry returns an empty process-wide registry. rtpsFactory builds
// the RTPS collaborator for each new domain; pass nil to use the no-op
// default (sufficient for the in-process transport this repo ships).
func NewRegistry(rtpsFactory func() RTPSHook, logger log.Logger) *Registry {
	if rtpsFactory == nil {
		rtpsFactory = func() RTPSHook { return noopRTPS{} }
	}
	if logger == nil {
		logger = log.Noop()
	}
	r := &Registry{domains: map[int32]*Domain{}, handles: handle.New(), rtpsFactory: rtpsFactory, logger: logger}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func minDomainID(domains map[int32]*Domain) (int32, bool) {
	var min int32
	first := true
	for id := range domains {
		if first || id < min {
			min, first = id, false
		}
	}
	return min, !first
}

// CreateDomain implements domain_create's full unwind-on-failure
// sequence.
func (r *Registry) CreateDomain(id int32, cfg *config.DomainConfig) (handle.Handle, error) {
	r.mu.Lock()
	for {
		lookupID := id
		implicit := id == DefaultDomainID
		if implicit {
			if min, ok := minDomainID(r.domains); ok {
				lookupID = min
			}
		}

		if existing, ok := r.domains[lookupID]; ok {
			if !implicit {
				r.mu.Unlock()
				return handle.Nil, ddserrors.New("domain.CreateDomain", ddserrors.PreconditionNotMet, "domain already exists")
			}
			if existing.IsClosed() {
				r.cond.Wait()
				continue
			}
			r.mu.Unlock()
			return existing.Handle, nil
		}
		break
	}
	r.mu.Unlock()

	if id == DefaultDomainID {
		return handle.Nil, ddserrors.New("domain.CreateDomain", ddserrors.BadParameter, "explicit id required when no domain exists yet")
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	d := &Domain{
		Common:       entity.New(entity.KindDomain, nil, entity.Vtable{}),
		ID:           id,
		Config:       cfg,
		TStart:       time.Now(),
		Sertypes:     sertype.New(),
		Pool:         serdata.New(),
		Bus:          transport.NewLoopback(nil),
		participants: map[handle.Handle]*topic.Table{},
		rtps:         r.rtpsFactory(),
		logger:       r.logger,
	}
	d.TypeAdmin = typelookup.New(d.Sertypes)

	// Unwind stack: each successfully completed stage pushes an undo.
	var undo []func()
	fail := func(err error) (handle.Handle, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return handle.Nil, err
	}

	if err := d.rtps.Init(cfg); err != nil {
		return fail(ddserrors.Wrap("domain.CreateDomain", ddserrors.ErrorKind, "RTPS init failed", err))
	}
	undo = append(undo, func() { _ = d.rtps.Finish() })

	if cfg.StartThreadMonitor {
		r.mu.Lock()
		r.monitorRefs++
		r.mu.Unlock()
		undo = append(undo, func() {
			r.mu.Lock()
			r.monitorRefs--
			r.mu.Unlock()
		})
	}

	if err := d.rtps.Start(); err != nil {
		return fail(ddserrors.Wrap("domain.CreateDomain", ddserrors.ErrorKind, "RTPS start failed", err))
	}
	undo = append(undo, func() { _ = d.rtps.Stop() })

	h := r.handles.Create(d)
	d.Handle = h

	r.mu.Lock()
	r.domains[id] = d
	r.mu.Unlock()

	return h, nil
}

// DomainFree implements domain_free: stop RTPS, deregister from the
// thread monitor, remove from the tree, broadcast the global condition.
func (r *Registry) DomainFree(h handle.Handle) error {
	v, err := r.handles.Pin(h)
	if err != nil {
		return err
	}
	d := v.(*Domain)
	r.handles.Unpin(h)

	d.Lock()
	live := len(d.participants)
	d.Unlock()
	if live > 0 {
		return ddserrors.New("domain.DomainFree", ddserrors.PreconditionNotMet, "domain still has live participants")
	}

	if err := d.rtps.Stop(); err != nil {
		return ddserrors.Wrap("domain.DomainFree", ddserrors.ErrorKind, "RTPS stop failed", err)
	}

	r.mu.Lock()
	if d.Config.StartThreadMonitor {
		r.monitorRefs--
	}
	delete(r.domains, d.ID)
	r.mu.Unlock()

	if err := d.rtps.Finish(); err != nil {
		return ddserrors.Wrap("domain.DomainFree", ddserrors.ErrorKind, "RTPS finish failed", err)
	}

	if err := r.handles.Close(h); err != nil {
		return err
	}

	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
	return nil
}

// CreateParticipant creates a participant under domain handle dh.
func (r *Registry) CreateParticipant(dh handle.Handle) (handle.Handle, error) {
	v, err := r.handles.Pin(dh)
	if err != nil {
		return handle.Nil, err
	}
	defer r.handles.Unpin(dh)
	d := v.(*Domain)

	p := entity.New(entity.KindParticipant, d.Common, entity.Vtable{})
	ph := r.handles.Create(p)
	p.Handle = ph

	d.Lock()
	d.participants[ph] = topic.NewTable(&topic.Participant{Common: p}, d.Sertypes, mintGUID)
	d.Unlock()
	return ph, nil
}

// DeleteParticipant implements the participant lifecycle row from the
// data model ("User delete; drains children"): it closes the
// participant's own entity header (interrupting anything blocked on it)
// and deregisters it from its domain, so a subsequent DomainFree no
// longer sees it as a live child. Topics created under the participant
// are not force-closed here; callers are expected to have deleted them
// first, the same way create_topic callers are expected to pair it with
// their own delete_topic.
func (r *Registry) DeleteParticipant(ph handle.Handle) error {
	v, err := r.handles.Pin(ph)
	if err != nil {
		return err
	}
	p := v.(*entity.Common)
	r.handles.Unpin(ph)

	d, _, err := r.lookupParticipantTable(p)
	if err != nil {
		return err
	}

	if err := p.Close(); err != nil {
		return err
	}

	d.Lock()
	delete(d.participants, ph)
	d.Unlock()

	return r.handles.Close(ph)
}

var guidCounter uint64
var guidMu sync.Mutex

func mintGUID() string {
	guidMu.Lock()
	defer guidMu.Unlock()
	guidCounter++
	return "guid-" + strconv.FormatUint(guidCounter, 10)
}

// CreateTopic implements create_topic against the participant's topic
// table, using candidateGoType to compile the caller's sertype
// descriptor (component C) when no equal one is already registered.
func (r *Registry) CreateTopic(ph handle.Handle, name, typeName string, candidateGoType reflect.Type, qos topic.QoS) (handle.Handle, error) {
	candidate, err := sertype.Compile(typeName, candidateGoType, sertype.KindDefault)
	if err != nil {
		return handle.Nil, ddserrors.Wrap("domain.CreateTopic", ddserrors.BadParameter, "failed to compile type descriptor", err)
	}
	return r.createTopicFromSertype(ph, candidate, name, qos)
}

// CreateTopicArbitrary implements create_topic_arbitrary: the same
// sequence as CreateTopic except the caller supplies an already-built
// sertype directly, skipping the compile-from-Go-type step — the path
// builtin topics and generic/dynamic-data producers use when there is
// no static Go type to reflect over.
func (r *Registry) CreateTopicArbitrary(ph handle.Handle, candidate *sertype.Type, name string, qos topic.QoS) (handle.Handle, error) {
	return r.createTopicFromSertype(ph, candidate, name, qos)
}

func (r *Registry) createTopicFromSertype(ph handle.Handle, candidate *sertype.Type, name string, qos topic.QoS) (handle.Handle, error) {
	v, err := r.handles.Pin(ph)
	if err != nil {
		return handle.Nil, err
	}
	defer r.handles.Unpin(ph)
	p := v.(*entity.Common)

	d, tbl, err := r.lookupParticipantTable(p)
	if err != nil {
		return handle.Nil, err
	}

	top, err := tbl.CreateTopic(name, candidate, qos)
	if err != nil {
		return handle.Nil, err
	}

	// Step 8: acquire a type-lookup reference for the sertype.
	complete := typeIDOf(top.Sertype)
	d.TypeAdmin.Ref(complete, complete, top.Sertype, "")

	th := r.handles.Create(top)
	top.Handle = th
	return th, nil
}

// FindTopicLocally implements find_topic_locally. scope may be a
// participant handle (search only that participant's own table) or a
// domain handle (search every participant registered in the domain),
// matching the public interface's "scope handle (participant or
// domain)".
func (r *Registry) FindTopicLocally(scope handle.Handle, name string) (handle.Handle, error) {
	v, err := r.handles.Pin(scope)
	if err != nil {
		return handle.Nil, err
	}
	defer r.handles.Unpin(scope)

	switch s := v.(type) {
	case *entity.Common:
		if s.Kind != entity.KindParticipant {
			return handle.Nil, ddserrors.New("domain.FindTopicLocally", ddserrors.IllegalOperation, "scope handle is not a participant")
		}
		_, tbl, err := r.lookupParticipantTable(s)
		if err != nil {
			return handle.Nil, err
		}
		return r.registerFoundTopic(tbl, name)
	case *Domain:
		return r.findTopicLocallyInDomain(s, name)
	default:
		return handle.Nil, ddserrors.New("domain.FindTopicLocally", ddserrors.IllegalOperation, "scope handle is not a participant or domain")
	}
}

func (r *Registry) registerFoundTopic(tbl *topic.Table, name string) (handle.Handle, error) {
	top, err := tbl.FindLocally(name)
	if err != nil {
		return handle.Nil, err
	}
	th := r.handles.Create(top)
	top.Handle = th
	return th, nil
}

func (r *Registry) findTopicLocallyInDomain(d *Domain, name string) (handle.Handle, error) {
	d.Lock()
	tables := make([]*topic.Table, 0, len(d.participants))
	for _, tbl := range d.participants {
		tables = append(tables, tbl)
	}
	d.Unlock()

	for _, tbl := range tables {
		if th, err := r.registerFoundTopic(tbl, name); err == nil {
			return th, nil
		}
	}
	return handle.Nil, ddserrors.New("domain.FindTopicLocally", ddserrors.PreconditionNotMet, "no topic with that name in this domain")
}

// findTopicGloballyPollInterval bounds how often FindTopicGlobally
// re-scans the domain while waiting for the name to appear.
const findTopicGloballyPollInterval = 5 * time.Millisecond

// FindTopicGlobally implements find_topic_globally. Real RTPS topic
// discovery is out of scope (see RTPSHook); in its absence "globally"
// means every participant within the caller's own domain rather than
// only its own table, polled until the name appears or timeout elapses
// — the closest in-process analogue to the discovery wait the real
// protocol performs.
func (r *Registry) FindTopicGlobally(ctx context.Context, ph handle.Handle, name string, timeout time.Duration) (handle.Handle, error) {
	v, err := r.handles.Pin(ph)
	if err != nil {
		return handle.Nil, err
	}
	p, ok := v.(*entity.Common)
	if !ok || p.Kind != entity.KindParticipant {
		r.handles.Unpin(ph)
		return handle.Nil, ddserrors.New("domain.FindTopicGlobally", ddserrors.IllegalOperation, "scope handle is not a participant")
	}
	d, _, err := r.lookupParticipantTable(p)
	r.handles.Unpin(ph)
	if err != nil {
		return handle.Nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		if th, err := r.findTopicLocallyInDomain(d, name); err == nil {
			return th, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return handle.Nil, ddserrors.New("domain.FindTopicGlobally", ddserrors.Timeout, "topic not discovered before timeout")
		}
		select {
		case <-ctx.Done():
			return handle.Nil, ddserrors.Wrap("domain.FindTopicGlobally", ddserrors.Timeout, "context cancelled while waiting for topic discovery", ctx.Err())
		case <-time.After(findTopicGloballyPollInterval):
		}
	}
}

// GetTopicName implements get_name for a topic handle.
func (r *Registry) GetTopicName(th handle.Handle) (string, error) {
	top, err := r.pinTopic("domain.GetTopicName", th)
	if err != nil {
		return "", err
	}
	defer r.handles.Unpin(th)
	return top.Ktopic.Name, nil
}

// GetTopicTypeName implements get_type_name for a topic handle.
func (r *Registry) GetTopicTypeName(th handle.Handle) (string, error) {
	top, err := r.pinTopic("domain.GetTopicTypeName", th)
	if err != nil {
		return "", err
	}
	defer r.handles.Unpin(th)
	return top.Ktopic.TypeName, nil
}

// SetTopicFilter implements set_filter.
func (r *Registry) SetTopicFilter(th handle.Handle, fn topic.Filter) error {
	top, err := r.pinTopic("domain.SetTopicFilter", th)
	if err != nil {
		return err
	}
	defer r.handles.Unpin(th)
	top.SetFilter(fn)
	return nil
}

// GetTopicFilter implements get_filter.
func (r *Registry) GetTopicFilter(th handle.Handle) (topic.Filter, error) {
	top, err := r.pinTopic("domain.GetTopicFilter", th)
	if err != nil {
		return nil, err
	}
	defer r.handles.Unpin(th)
	return top.GetFilter(), nil
}

func (r *Registry) pinTopic(op string, th handle.Handle) (*topic.Topic, error) {
	v, err := r.handles.Pin(th)
	if err != nil {
		return nil, err
	}
	top, ok := v.(*topic.Topic)
	if !ok {
		r.handles.Unpin(th)
		return nil, ddserrors.New(op, ddserrors.IllegalOperation, "handle is not a topic")
	}
	return top, nil
}

// commonOf extracts the entity.Common header shared by every pinned
// handle value, regardless of which concrete kind (*Domain,
// *entity.Common for a participant, *topic.Topic) the handle resolves to.
func commonOf(v any) (*entity.Common, bool) {
	switch t := v.(type) {
	case *entity.Common:
		return t, true
	case *Domain:
		return t.Common, true
	case *topic.Topic:
		return t.Common, true
	default:
		return nil, false
	}
}

// SetDeafMute implements set_deaf_mute: apply an advisory flags+duration
// pair to any entity kind reachable through the handle table.
func (r *Registry) SetDeafMute(eh handle.Handle, flags uint32, duration time.Duration) error {
	v, err := r.handles.Pin(eh)
	if err != nil {
		return err
	}
	defer r.handles.Unpin(eh)
	e, ok := commonOf(v)
	if !ok {
		return ddserrors.New("domain.SetDeafMute", ddserrors.IllegalOperation, "handle does not resolve to an entity")
	}
	e.SetDeafMute(flags, duration)
	return nil
}

// SetBatch implements set_batch: applied to all writers in all domains.
// Per the iteration contract, each domain is re-located by id on every
// step rather than held from an earlier snapshot, since CreateDomain
// and DomainFree may run concurrently and remove a domain mid-walk.
func (r *Registry) SetBatch(batch bool) {
	r.mu.Lock()
	ids := make([]int32, 0, len(r.domains))
	for id := range r.domains {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.mu.Lock()
		d, ok := r.domains[id]
		r.mu.Unlock()
		if !ok {
			continue
		}

		d.Lock()
		participants := make([]*entity.Common, 0, len(d.participants))
		for ph := range d.participants {
			v, err := r.handles.Pin(ph)
			if err != nil {
				continue
			}
			participants = append(participants, v.(*entity.Common))
			r.handles.Unpin(ph)
		}
		d.Unlock()

		var walk func(e *entity.Common)
		walk = func(e *entity.Common) {
			cursor := e.Cursor()
			for {
				child, ok := cursor.Next()
				if !ok {
					break
				}
				if child.Kind == entity.KindWriter {
					child.SetBatchFlag(batch)
				}
				walk(child)
			}
		}
		for _, p := range participants {
			walk(p)
		}
	}
}

func (r *Registry) lookupParticipantTable(p *entity.Common) (*Domain, *topic.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.domains {
		d.Lock()
		for ph, tbl := range d.participants {
			v, _ := r.handles.Pin(ph)
			if v == p {
				r.handles.Unpin(ph)
				d.Unlock()
				return d, tbl, nil
			}
			r.handles.Unpin(ph)
		}
		d.Unlock()
	}
	return nil, nil, ddserrors.New("domain.lookupParticipantTable", ddserrors.BadParameter, "unknown participant")
}

// typeIDOf derives a stable type-lookup identifier from a sertype.
// A real implementation hashes the type's structural descriptor; this
// repurposes the same structural key sertype registration already uses.
func typeIDOf(st *sertype.Type) typelookup.TypeID {
	var id typelookup.TypeID
	key := st.TypeName + "|" + st.GoType.String()
	for i := 0; i < len(id) && i < len(key); i++ {
		id[i] = key[i]
	}
	return id
}

// ResolveType implements resolve_type.
func (r *Registry) ResolveType(ctx context.Context, dh handle.Handle, typeID typelookup.TypeID, timeout time.Duration) (*sertype.Type, error) {
	v, err := r.handles.Pin(dh)
	if err != nil {
		return nil, err
	}
	defer r.handles.Unpin(dh)
	d := v.(*Domain)

	proto := typelookup.NewProtocol(d.TypeAdmin, d.Bus, "local")
	return d.TypeAdmin.Resolve(ctx, typeID, typeID, timeout, proto.Request)
}
