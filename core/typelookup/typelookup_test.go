package typelookup

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/jeeves-cluster-organization/ddscore/core/cdr"
	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBus struct {
	published []struct {
		topic string
		msg   any
	}
	onPublish func(topic string, msg any)
}

func (b *stubBus) Publish(topic string, msg any) {
	b.published = append(b.published, struct {
		topic string
		msg   any
	}{topic, msg})
	if b.onPublish != nil {
		b.onPublish(topic, msg)
	}
}

func TestScenarioS6ResolveTimeoutThenSuccess(t *testing.T) {
	reg := sertype.New()
	admin := New(reg)
	complete := TypeID{1}
	minimal := TypeID{2}

	// First attempt: timeout 0 means poll, nothing resolved yet.
	_, err := admin.Resolve(context.Background(), complete, minimal, 0, nil)
	require.Error(t, err)
	assert.Equal(t, ddserrors.Timeout, ddserrors.KindOf(err))

	bus := &stubBus{}
	proto := NewProtocol(admin, bus, "B")

	st, err := sertype.Compile("T", reflect.TypeOf(struct{ X int32 }{}), sertype.KindDefault)
	require.NoError(t, err)
	origBuild := BuildSertype
	BuildSertype = func(obj TypeObject) (*sertype.Type, error) { return st, nil }
	defer func() { BuildSertype = origBuild }()

	serialized, err := cdr.Serialize(typeObjectProgram, reflect.ValueOf(TypeObject{TypeName: "T", KeyKind: 0}), cdr.CDR2Le)
	require.NoError(t, err)

	bus.onPublish = func(topic string, msg any) {
		if topic != topicTypeLookupRequest {
			return
		}
		req := msg.(Request)
		reply := Reply{WriterGUID: "A", SequenceNumber: req.SequenceNumber, Entries: []ReplyEntry{
			{TypeID: complete, SerializedObject: serialized},
		}}
		go proto.HandleReply(reply, reg)
	}

	got, err := admin.Resolve(context.Background(), complete, minimal, time.Second, proto.Request)
	require.NoError(t, err)
	assert.Equal(t, st.TypeName, got.TypeName)
}

func TestRefUnrefLifecycle(t *testing.T) {
	reg := sertype.New()
	admin := New(reg)
	complete := TypeID{3}
	minimal := TypeID{4}

	r := admin.Ref(complete, minimal, nil, "proxy-1")
	assert.Equal(t, StateNew, r.State)
	assert.Contains(t, r.Dependents(), "proxy-1")

	admin.Unref(r, "proxy-1")
	admin.mu.Lock()
	_, stillThere := admin.byComplete[complete]
	admin.mu.Unlock()
	assert.False(t, stillThere)
}

func TestHandleRequestRepliesEvenWhenUnknown(t *testing.T) {
	reg := sertype.New()
	admin := New(reg)
	proto := NewProtocol(admin, &stubBus{}, "A")

	reply := proto.HandleRequest(Request{WriterGUID: "B", SequenceNumber: 7, TypeIDs: []TypeID{{9}}})
	require.Len(t, reply.Entries, 1)
	assert.Equal(t, uint64(7), reply.SequenceNumber)
	assert.Empty(t, reply.Entries[0].SerializedObject)
}
