// Package topic implements the topic/ktopic layer: per-participant
// name-deduplicated ktopic records that reconcile QoS and type-name
// across repeated create_topic calls, and the topic entities that
// share a ktopic's identity.
package topic

import (
	"regexp"
	"strings"
	"sync"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/entity"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
)

// nameGrammar is the topic naming grammar from the public interface:
// first char alphabetic or '_'/'/', subsequent chars alphanumeric or
// '_'/'/'.
var nameGrammar = regexp.MustCompile(`^[A-Za-z_/][A-Za-z0-9_/]*$`)

// ValidateName enforces the naming grammar and the reserved DCPS prefix.
func ValidateName(name string) error {
	if !nameGrammar.MatchString(name) {
		return ddserrors.New("topic.ValidateName", ddserrors.BadParameter, "topic name does not match the naming grammar")
	}
	if strings.HasPrefix(name, "DCPS") {
		return ddserrors.New("topic.ValidateName", ddserrors.BadParameter, "topic names may not start with the reserved DCPS prefix")
	}
	return nil
}

// QoS is a minimal, comparable policy bundle. Real QoS has many more
// policies; only the ones ktopic reconciliation needs to compare are
// modeled here.
type QoS struct {
	Reliability string
	Durability  string
	History     int
}

// Equal reports structural QoS equality, used to decide reuse vs.
// INCONSISTENT_POLICY on ktopic collision.
func (q QoS) Equal(o QoS) bool { return q == o }

// Filter is the advisory, side-effect-free predicate installed by
// set_filter. Replacing the original (fn, untyped context) pair, the
// closure itself carries whatever context it needs — the type-safe
// adapter the design notes call for.
type Filter func(sample any) bool

// Ktopic is the per-participant, name-deduplicated record reconciling
// QoS and type-name across every create_topic call sharing a name.
type Ktopic struct {
	Name     string
	TypeName string
	QoS      QoS
	Sertype  *sertype.Type // canonical sertype, bound on first create_topic

	mu       sync.Mutex
	refcount int
	typeIDs  map[string]*rtpsTopicBinding // type-id -> (guid, refcount)
}

type rtpsTopicBinding struct {
	guid     string
	refcount int
}

func newKtopic(name, typeName string, qos QoS) *Ktopic {
	return &Ktopic{Name: name, TypeName: typeName, QoS: qos, refcount: 1, typeIDs: map[string]*rtpsTopicBinding{}}
}

// ref increments the ktopic's user refcount; called on every matching
// create_topic.
func (k *Ktopic) ref() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.refcount++
}

// unref decrements; returns true once it has reached zero and the
// participant should drop the ktopic.
func (k *Ktopic) unref() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.refcount--
	return k.refcount <= 0
}

// bindRTPSTopic implements step 7 of create_topic: insert or refcount
// an entry in the type-id -> (rtps topic guid, refcount) map, minting a
// guid on first occurrence.
func (k *Ktopic) bindRTPSTopic(typeID string, mintGUID func() string) string {
	k.mu.Lock()
	defer k.mu.Unlock()
	if b, ok := k.typeIDs[typeID]; ok {
		b.refcount++
		return b.guid
	}
	guid := mintGUID()
	k.typeIDs[typeID] = &rtpsTopicBinding{guid: guid, refcount: 1}
	return guid
}

// Topic is a topic entity: a handle sharing a ktopic and sertype with
// every other topic entity created against the same name.
type Topic struct {
	*entity.Common
	Ktopic  *Ktopic
	Sertype *sertype.Type

	mu     sync.Mutex
	filter Filter
}

// SetFilter installs fn as the advisory sample filter.
func (t *Topic) SetFilter(fn Filter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = fn
}

// GetFilter returns the installed filter, or nil if none is set.
func (t *Topic) GetFilter() Filter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

// Participant is the minimal surface Table needs from the owning
// participant entity: its Common header for child registration.
type Participant struct {
	*entity.Common
}

// Table owns the per-participant ktopic map and drives create_topic's
// sequence: name validation, ktopic dedup, sertype registration, topic
// entity creation, RTPS topic binding. No QoS merge is performed.
type Table struct {
	participant *Participant
	sertypes    *sertype.Registry
	mintGUID    func() string

	mu      sync.Mutex
	ktopics map[string]*Ktopic
}

// NewTable returns a Table bound to participant, using reg for sertype
// dedup and mintGUID to fabricate RTPS topic guids on first binding.
func NewTable(participant *Participant, reg *sertype.Registry, mintGUID func() string) *Table {
	return &Table{participant: participant, sertypes: reg, mintGUID: mintGUID, ktopics: map[string]*Ktopic{}}
}

// CreateTopic performs steps 1 and 4–7 of create_topic's sequence;
// steps 2–3 (QoS merge, security check) are not performed, and step 8
// is done by the caller (core/domain). candidate is the caller's sertype
// descriptor; the returned
// sertype.Type is canonical and may differ from candidate if an equal
// type was already registered.
func (tb *Table) CreateTopic(name string, candidate *sertype.Type, qos QoS) (*Topic, error) {
	// 1. validate name
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	// 2+3. QoS merge/security are external-collaborator concerns in
	// this repo's scope; qos arrives pre-merged and pre-validated.

	// 4. find or create ktopic
	tb.mu.Lock()
	kt, existed := tb.ktopics[name]
	if existed {
		if kt.TypeName != candidate.TypeName {
			tb.mu.Unlock()
			return nil, ddserrors.New("topic.CreateTopic", ddserrors.PreconditionNotMet, "topic exists with a different type name")
		}
		if !kt.QoS.Equal(qos) {
			tb.mu.Unlock()
			return nil, ddserrors.New("topic.CreateTopic", ddserrors.InconsistentPolicy, "topic exists with incompatible QoS")
		}
		kt.ref()
	} else {
		kt = newKtopic(name, candidate.TypeName, qos)
		tb.ktopics[name] = kt
	}
	tb.mu.Unlock()

	// 5. register sertype or reuse the canonical one.
	canonical := tb.sertypes.RegisterOrReuse(candidate)
	if kt.Sertype == nil {
		kt.Sertype = canonical
	}

	// 6. create the topic entity under the participant.
	top := &Topic{
		Common:  entity.New(entity.KindTopic, tb.participant.Common, entity.Vtable{}),
		Ktopic:  kt,
		Sertype: canonical,
	}

	// 7. bind (or refcount) the RTPS topic for this type id.
	kt.bindRTPSTopic(canonical.TypeName, tb.mintGUID)

	// 8. acquire a type-lookup reference for the sertype is performed
	// by the caller (core/domain), which owns the typelookup admin.

	return top, nil
}

// DeleteTopic unrefs top's ktopic, removing it from the table once the
// last topic sharing the name is gone.
func (tb *Table) DeleteTopic(top *Topic) error {
	if err := top.Close(); err != nil {
		return err
	}
	if top.Ktopic.unref() {
		tb.mu.Lock()
		if tb.ktopics[top.Ktopic.Name] == top.Ktopic {
			delete(tb.ktopics, top.Ktopic.Name)
		}
		tb.mu.Unlock()
	}
	tb.sertypes.Unref(top.Sertype)
	return nil
}

// FindLocally implements find_topic_locally: search the participant's
// children for a matching topic name and, on hit, create a new topic
// handle sharing the same ktopic/sertype identity so deleting the
// original does not tear down the shared state.
func (tb *Table) FindLocally(name string) (*Topic, error) {
	tb.mu.Lock()
	kt, ok := tb.ktopics[name]
	tb.mu.Unlock()
	if !ok {
		return nil, ddserrors.New("topic.FindLocally", ddserrors.PreconditionNotMet, "no topic with that name")
	}

	kt.ref()
	tb.sertypes.Ref(kt.Sertype)
	found := &Topic{
		Common:  entity.New(entity.KindTopic, tb.participant.Common, entity.Vtable{}),
		Ktopic:  kt,
		Sertype: kt.Sertype,
	}
	return found, nil
}
