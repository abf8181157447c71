package domain

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/entity"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
	"github.com/jeeves-cluster-organization/ddscore/core/topic"
	"github.com/jeeves-cluster-organization/ddscore/core/typelookup"
)

type widget struct {
	ID    int32 `dds:"key"`
	Value string
}

func TestCreateDomainThenFree(t *testing.T) {
	r := NewRegistry(nil, nil)
	h, err := r.CreateDomain(7, nil)
	require.NoError(t, err)
	require.NotZero(t, h)

	require.NoError(t, r.DomainFree(h))
}

func TestCreateDomainExplicitDuplicateIsPreconditionNotMet(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, err := r.CreateDomain(1, nil)
	require.NoError(t, err)

	_, err = r.CreateDomain(1, nil)
	require.Error(t, err)
	assert.Equal(t, ddserrors.PreconditionNotMet, ddserrors.KindOf(err))
}

func TestCreateDomainImplicitReturnsExistingSmallestID(t *testing.T) {
	r := NewRegistry(nil, nil)
	h1, err := r.CreateDomain(3, nil)
	require.NoError(t, err)
	_, err = r.CreateDomain(9, nil)
	require.NoError(t, err)

	h2, err := r.CreateDomain(DefaultDomainID, nil)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestCreateParticipantAndTopic(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, err := r.CreateDomain(1, nil)
	require.NoError(t, err)

	ph, err := r.CreateParticipant(dh)
	require.NoError(t, err)

	th, err := r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), topic.QoS{Reliability: "reliable"})
	require.NoError(t, err)
	require.NotZero(t, th)
}

func TestCreateTopicTwiceWithSameQoSReusesKtopic(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(1, nil)
	ph, _ := r.CreateParticipant(dh)

	qos := topic.QoS{Reliability: "reliable"}
	th1, err := r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), qos)
	require.NoError(t, err)
	th2, err := r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), qos)
	require.NoError(t, err)
	assert.NotEqual(t, th1, th2) // distinct topic entities...

	v1, _ := r.handles.Pin(th1)
	v2, _ := r.handles.Pin(th2)
	t1 := v1.(*topic.Topic)
	t2 := v2.(*topic.Topic)
	assert.Same(t, t1.Ktopic, t2.Ktopic) // ...sharing one ktopic
	assert.Same(t, t1.Sertype, t2.Sertype)
}

func TestCreateTopicQoSConflictIsInconsistentPolicy(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(1, nil)
	ph, _ := r.CreateParticipant(dh)

	_, err := r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), topic.QoS{Reliability: "reliable"})
	require.NoError(t, err)

	_, err = r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), topic.QoS{Reliability: "best_effort"})
	require.Error(t, err)
	assert.Equal(t, ddserrors.InconsistentPolicy, ddserrors.KindOf(err))
}

// TestResolveTypeTimeoutThenSuccess exercises the domain-level wiring of
// resolve_type against the type-lookup admin: a first resolve with a
// short timeout and no replier times out, a second resolve after the
// sertype is Ref'd into the same domain's admin succeeds without a
// further request.
func TestResolveTypeTimeoutThenSuccess(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(1, nil)
	v, err := r.handles.Pin(dh)
	require.NoError(t, err)
	d := v.(*Domain)
	r.handles.Unpin(dh)

	var id typelookup.TypeID
	copy(id[:], "widget-type-id")

	ctx := context.Background()
	_, err = r.ResolveType(ctx, dh, id, 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, ddserrors.Timeout, ddserrors.KindOf(err))

	st, err := sertype.Compile("Widget", reflect.TypeOf(widget{}), sertype.KindDefault)
	require.NoError(t, err)
	d.TypeAdmin.Ref(id, id, st, "")

	got, err := r.ResolveType(ctx, dh, id, time.Second)
	require.NoError(t, err)
	assert.Same(t, st, got)
}

func TestDomainFreeRefusesWhileParticipantsLive(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, err := r.CreateDomain(20, nil)
	require.NoError(t, err)
	ph, err := r.CreateParticipant(dh)
	require.NoError(t, err)

	err = r.DomainFree(dh)
	require.Error(t, err)
	assert.Equal(t, ddserrors.PreconditionNotMet, ddserrors.KindOf(err))

	require.NoError(t, r.DeleteParticipant(ph))
	require.NoError(t, r.DomainFree(dh))
}

func TestCreateTopicArbitraryUsesSuppliedSertype(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(21, nil)
	ph, _ := r.CreateParticipant(dh)

	candidate, err := sertype.Compile("Widget", reflect.TypeOf(widget{}), sertype.KindDefault)
	require.NoError(t, err)

	th, err := r.CreateTopicArbitrary(ph, candidate, "Widgets", topic.QoS{Reliability: "reliable"})
	require.NoError(t, err)
	require.NotZero(t, th)

	name, err := r.GetTopicName(th)
	require.NoError(t, err)
	assert.Equal(t, "Widgets", name)

	typeName, err := r.GetTopicTypeName(th)
	require.NoError(t, err)
	assert.Equal(t, "Widget", typeName)
}

func TestFindTopicLocallyByParticipantScope(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(22, nil)
	ph, _ := r.CreateParticipant(dh)
	_, err := r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), topic.QoS{Reliability: "reliable"})
	require.NoError(t, err)

	th, err := r.FindTopicLocally(ph, "Widgets")
	require.NoError(t, err)
	assert.NotZero(t, th)

	_, err = r.FindTopicLocally(ph, "NoSuchTopic")
	require.Error(t, err)
}

func TestFindTopicLocallyByDomainScopeSearchesEveryParticipant(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(23, nil)
	_, err := r.CreateParticipant(dh)
	require.NoError(t, err)
	ph2, _ := r.CreateParticipant(dh)
	_, err = r.CreateTopic(ph2, "Widgets", "Widget", reflect.TypeOf(widget{}), topic.QoS{Reliability: "reliable"})
	require.NoError(t, err)

	th, err := r.FindTopicLocally(dh, "Widgets")
	require.NoError(t, err)
	assert.NotZero(t, th)
}

func TestFindTopicGloballySucceedsOncePresent(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(24, nil)
	ph, _ := r.CreateParticipant(dh)
	_, err := r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), topic.QoS{Reliability: "reliable"})
	require.NoError(t, err)

	th, err := r.FindTopicGlobally(context.Background(), ph, "Widgets", time.Second)
	require.NoError(t, err)
	assert.NotZero(t, th)
}

func TestFindTopicGloballyTimesOutWhenNeverCreated(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(25, nil)
	ph, _ := r.CreateParticipant(dh)

	_, err := r.FindTopicGlobally(context.Background(), ph, "NeverCreated", 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, ddserrors.Timeout, ddserrors.KindOf(err))
}

func TestSetAndGetTopicFilter(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(26, nil)
	ph, _ := r.CreateParticipant(dh)
	th, err := r.CreateTopic(ph, "Widgets", "Widget", reflect.TypeOf(widget{}), topic.QoS{Reliability: "reliable"})
	require.NoError(t, err)

	before, err := r.GetTopicFilter(th)
	require.NoError(t, err)
	assert.Nil(t, before)

	fn := func(sample any) bool { return true }
	require.NoError(t, r.SetTopicFilter(th, fn))

	after, err := r.GetTopicFilter(th)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.True(t, after(widget{ID: 1}))
}

func TestSetDeafMuteAppliesToParticipant(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(27, nil)
	ph, _ := r.CreateParticipant(dh)

	require.NoError(t, r.SetDeafMute(ph, 3, 500*time.Millisecond))

	v, err := r.handles.Pin(ph)
	require.NoError(t, err)
	defer r.handles.Unpin(ph)
	p := v.(*entity.Common)
	flags, dur := p.DeafMute()
	assert.Equal(t, uint32(3), flags)
	assert.Equal(t, 500*time.Millisecond, dur)
}

func TestSetBatchAppliesToWriters(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(28, nil)
	ph, _ := r.CreateParticipant(dh)

	v, err := r.handles.Pin(ph)
	require.NoError(t, err)
	p := v.(*entity.Common)
	r.handles.Unpin(ph)

	writer := entity.New(entity.KindWriter, p, entity.Vtable{})
	r.SetBatch(true)
	assert.True(t, writer.BatchFlag())

	r.SetBatch(false)
	assert.False(t, writer.BatchFlag())
}

func TestDeleteParticipantRemovesItFromDomain(t *testing.T) {
	r := NewRegistry(nil, nil)
	dh, _ := r.CreateDomain(29, nil)
	ph, err := r.CreateParticipant(dh)
	require.NoError(t, err)

	require.NoError(t, r.DeleteParticipant(ph))
	require.True(t, r.handles.IsClosed(ph))
	require.NoError(t, r.DomainFree(dh))
}
