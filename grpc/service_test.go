package grpc

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jeeves-cluster-organization/ddscore/core/domain"
)

type widget struct {
	ID int32 `dds:"key"`
}

type mapTypeRegistry map[string]reflect.Type

func (m mapTypeRegistry) Lookup(name string) (reflect.Type, bool) {
	t, ok := m[name]
	return t, ok
}

func newTestAdmin() *AdminServer {
	registry := domain.NewRegistry(nil, nil)
	types := mapTypeRegistry{"Widget": reflect.TypeOf(widget{})}
	return NewAdminServer(registry, types, nil)
}

func TestCreateDomainParticipantTopicRoundTrip(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	domainID := wrapperspb.Int32(1)
	dResp, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: domainID})
	require.NoError(t, err)
	require.NotZero(t, dResp.Handle)
	require.NotNil(t, dResp.Started)

	pResp, err := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})
	require.NoError(t, err)
	require.NotZero(t, pResp.Handle)

	tResp, err := admin.CreateTopic(ctx, &CreateTopicRequest{
		ParticipantHandle: pResp.Handle,
		Name:              "Widgets",
		TypeDescriptor:    "Widget",
		Reliability:       "reliable",
	})
	require.NoError(t, err)
	require.NotZero(t, tResp.Handle)
}

func TestCreateTopicUnknownDescriptorIsNotFound(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	dResp, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(2)})
	require.NoError(t, err)
	pResp, err := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})
	require.NoError(t, err)

	_, err = admin.CreateTopic(ctx, &CreateTopicRequest{
		ParticipantHandle: pResp.Handle,
		Name:              "Mystery",
		TypeDescriptor:    "Unregistered",
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}

func TestCreateDomainDuplicateMapsToFailedPrecondition(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	_, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(5)})
	require.NoError(t, err)

	_, err = admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(5)})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
}

func TestQoSConflictMapsToFailedPrecondition(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	dResp, _ := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(6)})
	pResp, _ := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})

	_, err := admin.CreateTopic(ctx, &CreateTopicRequest{
		ParticipantHandle: pResp.Handle, Name: "Widgets", TypeDescriptor: "Widget", Reliability: "reliable",
	})
	require.NoError(t, err)

	_, err = admin.CreateTopic(ctx, &CreateTopicRequest{
		ParticipantHandle: pResp.Handle, Name: "Widgets", TypeDescriptor: "Widget", Reliability: "best_effort",
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
}

func TestCreateTopicArbitraryAndFindLocallyByParticipant(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	dResp, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(10)})
	require.NoError(t, err)
	pResp, err := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})
	require.NoError(t, err)

	tResp, err := admin.CreateTopicArbitrary(ctx, &CreateTopicArbitraryRequest{
		ParticipantHandle: pResp.Handle, Name: "Widgets", TypeDescriptor: "Widget", Reliability: "reliable",
	})
	require.NoError(t, err)
	require.NotZero(t, tResp.Handle)

	fResp, err := admin.FindTopicLocally(ctx, &FindTopicLocallyRequest{ScopeHandle: pResp.Handle, Name: "Widgets"})
	require.NoError(t, err)
	assert.NotZero(t, fResp.Handle)

	nameResp, err := admin.GetTopicName(ctx, &GetTopicNameRequest{TopicHandle: fResp.Handle})
	require.NoError(t, err)
	assert.Equal(t, "Widgets", nameResp.Name)

	typeResp, err := admin.GetTopicTypeName(ctx, &GetTopicTypeNameRequest{TopicHandle: fResp.Handle})
	require.NoError(t, err)
	assert.Equal(t, "Widget", typeResp.TypeName)
}

func TestFindTopicLocallyByDomainScansAllParticipants(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	dResp, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(11)})
	require.NoError(t, err)
	pResp, err := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, &CreateTopicRequest{
		ParticipantHandle: pResp.Handle, Name: "Widgets", TypeDescriptor: "Widget", Reliability: "reliable",
	})
	require.NoError(t, err)

	fResp, err := admin.FindTopicLocally(ctx, &FindTopicLocallyRequest{ScopeHandle: dResp.Handle, Name: "Widgets"})
	require.NoError(t, err)
	assert.NotZero(t, fResp.Handle)
}

func TestFindTopicGloballyTimesOutWhenAbsent(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	dResp, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(12)})
	require.NoError(t, err)
	pResp, err := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})
	require.NoError(t, err)

	_, err = admin.FindTopicGlobally(ctx, &FindTopicGloballyRequest{
		ParticipantHandle: pResp.Handle, Name: "NeverCreated", TimeoutMs: 10,
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.DeadlineExceeded, st.Code())
}

func TestSetBatchWithNoWritersSucceeds(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	_, err := admin.SetBatch(ctx, &SetBatchRequest{Batch: true})
	require.NoError(t, err)
}

func TestSetDeafMuteOnParticipant(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	dResp, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(13)})
	require.NoError(t, err)
	pResp, err := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})
	require.NoError(t, err)

	_, err = admin.SetDeafMute(ctx, &SetDeafMuteRequest{EntityHandle: pResp.Handle, Flags: 1, DurationMs: 500})
	require.NoError(t, err)
}

func TestDeleteParticipantThenFreeDomainSucceeds(t *testing.T) {
	admin := newTestAdmin()
	ctx := context.Background()

	dResp, err := admin.CreateDomain(ctx, &CreateDomainRequest{DomainID: wrapperspb.Int32(14)})
	require.NoError(t, err)
	pResp, err := admin.CreateParticipant(ctx, &CreateParticipantRequest{DomainHandle: dResp.Handle})
	require.NoError(t, err)

	_, err = admin.FreeDomain(ctx, &FreeDomainRequest{Handle: dResp.Handle})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())

	_, err = admin.DeleteParticipant(ctx, &DeleteParticipantRequest{ParticipantHandle: pResp.Handle})
	require.NoError(t, err)

	_, err = admin.FreeDomain(ctx, &FreeDomainRequest{Handle: dResp.Handle})
	require.NoError(t, err)
}
