package typelookup

import (
	"reflect"
	"sync/atomic"

	"github.com/jeeves-cluster-organization/ddscore/core/cdr"
	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
)

// TypeObject is the supplemented serialized-type-object payload: the
// original implementation stubs this path out entirely (an explicit
// open question); here it is a small, concrete struct describing enough
// of a sertype to rebuild one on the receiving side, serialized through
// the same CDR engine used for user samples rather than through a
// separate ad-hoc format.
type TypeObject struct {
	TypeName string
	KeyKind  int32
}

var typeObjectProgram *cdr.Program

func init() {
	var err error
	typeObjectProgram, err = cdr.Compile(reflect.TypeOf(TypeObject{}))
	if err != nil {
		panic(err) // TypeObject is a fixed, internal type; a compile failure is a programming error
	}
}

// Request is the wire request message: a writer guid, sequence number,
// and the list of type identifiers being asked about.
type Request struct {
	WriterGUID     string
	SequenceNumber uint64
	TypeIDs        []TypeID
}

// ReplyEntry pairs a requested type id with its serialized TypeObject,
// present only when the replier holds a resolved sertype for it.
type ReplyEntry struct {
	TypeID           TypeID
	SerializedObject []byte // empty when the replier has no sertype for this id
}

// Reply is the wire reply message, preserving the requester's sequence
// number.
type Reply struct {
	WriterGUID     string
	SequenceNumber uint64
	Entries        []ReplyEntry
}

// Publisher is the narrow surface the protocol needs from the transport
// layer: publish a typed message to a well-known built-in endpoint.
// transport.Loopback satisfies this without either package importing
// the other.
type Publisher interface {
	Publish(topic string, msg any)
}

const (
	topicTypeLookupRequest = "DCPSTypeLookupRequest"
	topicTypeLookupReply   = "DCPSTypeLookupReply"
)

// Protocol wires an Admin to a Publisher, implementing request,
// handle_request and handle_reply.
type Protocol struct {
	admin     *Admin
	pub       Publisher
	writerGUID string
	seq       uint64
}

// NewProtocol returns a Protocol bound to admin, publishing under
// writerGUID as its own built-in request-writer identity.
func NewProtocol(admin *Admin, pub Publisher, writerGUID string) *Protocol {
	return &Protocol{admin: admin, pub: pub, writerGUID: writerGUID}
}

// Request implements request(type_id): allocate a sequence number,
// build a single-element Request value and publish it as is (the request
// itself is not CDR-serialized). No retry at this
// layer; a caller with a timeout simply re-enters Admin.Resolve.
//
// Registering this protocol's own writer guid as a dependent before
// publishing is what makes the round trip resolvable at all: HandleReply
// only ever completes a record that already has at least one dependent
// (a proxy endpoint it can notify), and the local caller waiting inside
// Admin.Resolve is exactly that dependent.
func (p *Protocol) Request(complete TypeID) error {
	seq := atomic.AddUint64(&p.seq, 1)
	req := Request{WriterGUID: p.writerGUID, SequenceNumber: seq, TypeIDs: []TypeID{complete}}
	p.admin.Ref(complete, complete, nil, p.writerGUID)
	p.pub.Publish(topicTypeLookupRequest, req)
	return nil
}

// HandleRequest implements handle_request: for each requested id, if
// the local admin holds a RESOLVED record with a sertype, serialize the
// type object and accumulate it in the reply. Replies even when no
// entry could be resolved, and is tolerant of ids this admin knows
// nothing about.
func (p *Protocol) HandleRequest(req Request) Reply {
	reply := Reply{WriterGUID: p.writerGUID, SequenceNumber: req.SequenceNumber}
	for _, id := range req.TypeIDs {
		entry := ReplyEntry{TypeID: id}
		p.admin.mu.Lock()
		r := p.admin.byComplete[id]
		p.admin.mu.Unlock()
		if r != nil {
			r.mu.Lock()
			resolved := r.State == StateResolved && r.Sertype != nil
			st := r.Sertype
			r.mu.Unlock()
			if resolved {
				obj := TypeObject{TypeName: st.TypeName, KeyKind: int32(st.Key)}
				buf, err := cdr.Serialize(typeObjectProgram, reflect.ValueOf(obj), cdr.CDR2Le)
				if err == nil {
					entry.SerializedObject = buf
				}
			}
		}
		reply.Entries = append(reply.Entries, entry)
	}
	return reply
}

// BuildSertype is called by HandleReply to turn a resolved TypeObject
// back into a registered sertype. It is a variable so callers outside
// this package (which knows nothing about Go types behind a type name)
// can supply the real construction strategy; the zero-value default
// refuses every id, matching "nothing can be resolved this way yet"
// until a caller wires one in.
var BuildSertype = func(obj TypeObject) (*sertype.Type, error) {
	return nil, ddserrors.New("typelookup.BuildSertype", ddserrors.ErrorKind, "no sertype builder registered for resolved type objects")
}

// HandleReply implements handle_reply: for each (type_id, type_object)
// pair, locate the tlm by either identifier; if it is REQUESTED and has
// at least one dependent, deserialize into a new sertype, register it
// (dedup), transition to RESOLVED, collect dependents, broadcast the
// resolved-condition, and return the collected dependent guids so the
// caller can re-evaluate their matchability after releasing the admin
// lock.
func (p *Protocol) HandleReply(reply Reply, registry *sertype.Registry) map[TypeID][]string {
	toNotify := map[TypeID][]string{}
	for _, entry := range reply.Entries {
		if len(entry.SerializedObject) == 0 {
			continue
		}
		p.admin.mu.Lock()
		r := p.admin.findLocked(entry.TypeID, entry.TypeID)
		p.admin.mu.Unlock()
		if r == nil {
			continue // tolerant of replies naming unknown ids
		}

		r.mu.Lock()
		if r.State != StateRequested || len(r.dependents) == 0 {
			r.mu.Unlock()
			continue
		}
		r.mu.Unlock()

		objVal, err := cdr.Deserialize(typeObjectProgram, entry.SerializedObject)
		if err != nil {
			continue
		}
		obj := objVal.Interface().(TypeObject)
		st, err := BuildSertype(obj)
		if err != nil || st == nil {
			continue
		}
		st = registry.RegisterOrReuse(st)

		r.mu.Lock()
		r.Sertype = st
		r.State = StateResolved
		deps := make([]string, 0, len(r.dependents))
		for g := range r.dependents {
			deps = append(deps, g)
		}
		r.cond.Broadcast()
		r.mu.Unlock()

		toNotify[entry.TypeID] = deps
	}
	return toNotify
}
