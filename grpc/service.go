// Package grpc exposes the domain root over an administrative gRPC
// surface: create/free domains and participants, create topics, and
// drive resolve_type remotely. There is no protoc-generated service
// here (this repo ships no .proto sources or generated stubs); instead
// the service is described by a hand-written grpc.ServiceDesc carrying
// plain Go request/response structs through the JSON codec registered
// in codec.go, the same pattern the originating implementation uses at
// its own JSON-boundary RPCs (pipeline config, envelope state).
package grpc

import (
	"context"
	"reflect"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jeeves-cluster-organization/ddscore/core/config"
	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/domain"
	"github.com/jeeves-cluster-organization/ddscore/core/handle"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
	"github.com/jeeves-cluster-organization/ddscore/core/topic"
	"github.com/jeeves-cluster-organization/ddscore/core/typelookup"
)

// ServiceName is the fully-qualified service name this ServiceDesc
// registers under.
const ServiceName = "ddscore.admin.v1.DomainAdmin"

// CreateDomainRequest asks for a domain to be created (or, for the
// implicit id, reused).
type CreateDomainRequest struct {
	DomainID *wrapperspb.Int32Value `json:"domain_id"` // nil means DefaultDomainID
	Config   *config.DomainConfig   `json:"config,omitempty"`
}

// CreateDomainResponse carries the allocated handle and the time the
// CreateDomain call completed (not the domain's own TStart, which differs
// when an existing domain is reused), expressed as a protobuf well-known
// Timestamp rather than a bare RFC3339 string.
type CreateDomainResponse struct {
	Handle  int32                  `json:"handle"`
	Started *timestamppb.Timestamp `json:"started"`
}

// FreeDomainRequest names the domain handle to tear down.
type FreeDomainRequest struct {
	Handle int32 `json:"handle"`
}

// FreeDomainResponse is empty on success; errors surface as gRPC status.
type FreeDomainResponse struct{}

// CreateParticipantRequest names the owning domain handle.
type CreateParticipantRequest struct {
	DomainHandle int32 `json:"domain_handle"`
}

// CreateParticipantResponse carries the allocated participant handle.
type CreateParticipantResponse struct {
	Handle int32 `json:"handle"`
}

// CreateTopicRequest describes create_topic's arguments. TypeDescriptor
// names a type that the AdminServer's TypeRegistry resolves (the admin surface has no
// way to ship a reflect.Type over the wire, so callers register their Go
// types under a name ahead of time, mirroring how the originating
// implementation's arbitrary-type path accepts a pre-registered sertype).
type CreateTopicRequest struct {
	ParticipantHandle int32             `json:"participant_handle"`
	Name              string            `json:"name"`
	TypeDescriptor    string            `json:"type_descriptor"`
	Reliability       string            `json:"reliability"`
	Durability        string            `json:"durability"`
	History           int32             `json:"history"`
	Note              *wrapperspb.StringValue `json:"note,omitempty"`
}

// CreateTopicResponse carries the allocated topic handle.
type CreateTopicResponse struct {
	Handle int32 `json:"handle"`
}

// ResolveTypeRequest asks the domain to resolve a type identifier,
// waiting up to TimeoutMs milliseconds.
type ResolveTypeRequest struct {
	DomainHandle int32  `json:"domain_handle"`
	TypeID       []byte `json:"type_id"`
	TimeoutMs    int32  `json:"timeout_ms"`
}

// ResolveTypeResponse carries the resolved type's name once found.
type ResolveTypeResponse struct {
	TypeName string `json:"type_name"`
}

// CreateTopicArbitraryRequest mirrors CreateTopicRequest but skips the
// reflect.Type compile step: TypeDescriptor still names a type pre-registered
// in the AdminServer's TypeRegistry, matching create_topic_arbitrary's "caller supplies the
// type descriptor directly" contract at the one boundary this admin surface
// can actually ship one across (a name, not a live Go type).
type CreateTopicArbitraryRequest struct {
	ParticipantHandle int32  `json:"participant_handle"`
	Name              string `json:"name"`
	TypeDescriptor    string `json:"type_descriptor"`
	Reliability       string `json:"reliability"`
	Durability        string `json:"durability"`
	History           int32  `json:"history"`
}

// CreateTopicArbitraryResponse carries the allocated topic handle.
type CreateTopicArbitraryResponse struct {
	Handle int32 `json:"handle"`
}

// FindTopicLocallyRequest names a scope handle (participant or domain) and
// the topic name to search for.
type FindTopicLocallyRequest struct {
	ScopeHandle int32  `json:"scope_handle"`
	Name        string `json:"name"`
}

// FindTopicLocallyResponse carries the found topic's handle.
type FindTopicLocallyResponse struct {
	Handle int32 `json:"handle"`
}

// FindTopicGloballyRequest names the calling participant and the topic name,
// bounding the wait by TimeoutMs.
type FindTopicGloballyRequest struct {
	ParticipantHandle int32  `json:"participant_handle"`
	Name              string `json:"name"`
	TimeoutMs         int32  `json:"timeout_ms"`
}

// FindTopicGloballyResponse carries the found topic's handle.
type FindTopicGloballyResponse struct {
	Handle int32 `json:"handle"`
}

// GetTopicNameRequest/GetTopicTypeNameRequest name the topic handle to
// inspect.
type GetTopicNameRequest struct {
	TopicHandle int32 `json:"topic_handle"`
}

// GetTopicNameResponse carries the topic's name.
type GetTopicNameResponse struct {
	Name string `json:"name"`
}

// GetTopicTypeNameRequest names the topic handle to inspect.
type GetTopicTypeNameRequest struct {
	TopicHandle int32 `json:"topic_handle"`
}

// GetTopicTypeNameResponse carries the topic's registered type name.
type GetTopicTypeNameResponse struct {
	TypeName string `json:"type_name"`
}

// SetDeafMuteRequest applies an advisory flags+duration pair to any entity
// handle (domain, participant, or topic).
type SetDeafMuteRequest struct {
	EntityHandle int32 `json:"entity_handle"`
	Flags        int32 `json:"flags"`
	DurationMs   int32 `json:"duration_ms"`
}

// SetDeafMuteResponse is empty on success.
type SetDeafMuteResponse struct{}

// SetBatchRequest toggles the batch-write flag process-wide, across every
// writer in every domain.
type SetBatchRequest struct {
	Batch bool `json:"batch"`
}

// SetBatchResponse is empty on success.
type SetBatchResponse struct{}

// DeleteParticipantRequest names the participant handle to tear down.
type DeleteParticipantRequest struct {
	ParticipantHandle int32 `json:"participant_handle"`
}

// DeleteParticipantResponse is empty on success.
type DeleteParticipantResponse struct{}

// TypeRegistry is the narrow surface AdminServer needs to turn a
// TypeDescriptor name back into a reflect.Type for create_topic. Callers
// populate it ahead of time (e.g. from an init() in the binary that
// knows its own sample types); the admin RPC surface never constructs
// Go types out of thin air.
type TypeRegistry interface {
	Lookup(descriptor string) (reflect.Type, bool)
}

// AdminServer implements the DomainAdmin RPCs against a *domain.Registry.
type AdminServer struct {
	registry *domain.Registry
	types    TypeRegistry
	logger   Logger
}

// NewAdminServer returns an AdminServer driving registry, resolving
// create_topic's Go type through types.
func NewAdminServer(registry *domain.Registry, types TypeRegistry, logger Logger) *AdminServer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &AdminServer{registry: registry, types: types, logger: logger}
}

func (s *AdminServer) CreateDomain(ctx context.Context, req *CreateDomainRequest) (*CreateDomainResponse, error) {
	id := domain.DefaultDomainID
	if req.DomainID != nil {
		id = req.DomainID.Value
	}
	h, err := s.registry.CreateDomain(id, req.Config)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateDomainResponse{Handle: int32(h), Started: timestamppb.New(time.Now())}, nil
}

func (s *AdminServer) FreeDomain(ctx context.Context, req *FreeDomainRequest) (*FreeDomainResponse, error) {
	if err := s.registry.DomainFree(handle.Handle(req.Handle)); err != nil {
		return nil, toStatus(err)
	}
	return &FreeDomainResponse{}, nil
}

func (s *AdminServer) CreateParticipant(ctx context.Context, req *CreateParticipantRequest) (*CreateParticipantResponse, error) {
	h, err := s.registry.CreateParticipant(handle.Handle(req.DomainHandle))
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateParticipantResponse{Handle: int32(h)}, nil
}

func (s *AdminServer) CreateTopic(ctx context.Context, req *CreateTopicRequest) (*CreateTopicResponse, error) {
	goType, ok := s.types.Lookup(req.TypeDescriptor)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unregistered type descriptor %q", req.TypeDescriptor)
	}
	if req.Note != nil {
		s.logger.Debug("create_topic_note", "topic", req.Name, "note", req.Note.Value)
	}
	qos := topic.QoS{Reliability: req.Reliability, Durability: req.Durability, History: int(req.History)}
	h, err := s.registry.CreateTopic(handle.Handle(req.ParticipantHandle), req.Name, req.TypeDescriptor, goType, qos)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateTopicResponse{Handle: int32(h)}, nil
}

func (s *AdminServer) ResolveType(ctx context.Context, req *ResolveTypeRequest) (*ResolveTypeResponse, error) {
	var id typelookup.TypeID
	copy(id[:], req.TypeID)
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	st, err := s.registry.ResolveType(ctx, handle.Handle(req.DomainHandle), id, timeout)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ResolveTypeResponse{TypeName: st.TypeName}, nil
}

func (s *AdminServer) CreateTopicArbitrary(ctx context.Context, req *CreateTopicArbitraryRequest) (*CreateTopicArbitraryResponse, error) {
	goType, ok := s.types.Lookup(req.TypeDescriptor)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unregistered type descriptor %q", req.TypeDescriptor)
	}
	candidate, err := sertype.Compile(req.TypeDescriptor, goType, sertype.KindDefault)
	if err != nil {
		return nil, toStatus(err)
	}
	qos := topic.QoS{Reliability: req.Reliability, Durability: req.Durability, History: int(req.History)}
	h, err := s.registry.CreateTopicArbitrary(handle.Handle(req.ParticipantHandle), candidate, req.Name, qos)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateTopicArbitraryResponse{Handle: int32(h)}, nil
}

func (s *AdminServer) FindTopicLocally(ctx context.Context, req *FindTopicLocallyRequest) (*FindTopicLocallyResponse, error) {
	h, err := s.registry.FindTopicLocally(handle.Handle(req.ScopeHandle), req.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &FindTopicLocallyResponse{Handle: int32(h)}, nil
}

func (s *AdminServer) FindTopicGlobally(ctx context.Context, req *FindTopicGloballyRequest) (*FindTopicGloballyResponse, error) {
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	h, err := s.registry.FindTopicGlobally(ctx, handle.Handle(req.ParticipantHandle), req.Name, timeout)
	if err != nil {
		return nil, toStatus(err)
	}
	return &FindTopicGloballyResponse{Handle: int32(h)}, nil
}

func (s *AdminServer) GetTopicName(ctx context.Context, req *GetTopicNameRequest) (*GetTopicNameResponse, error) {
	name, err := s.registry.GetTopicName(handle.Handle(req.TopicHandle))
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetTopicNameResponse{Name: name}, nil
}

func (s *AdminServer) GetTopicTypeName(ctx context.Context, req *GetTopicTypeNameRequest) (*GetTopicTypeNameResponse, error) {
	typeName, err := s.registry.GetTopicTypeName(handle.Handle(req.TopicHandle))
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetTopicTypeNameResponse{TypeName: typeName}, nil
}

func (s *AdminServer) SetDeafMute(ctx context.Context, req *SetDeafMuteRequest) (*SetDeafMuteResponse, error) {
	if err := s.registry.SetDeafMute(handle.Handle(req.EntityHandle), uint32(req.Flags), time.Duration(req.DurationMs)*time.Millisecond); err != nil {
		return nil, toStatus(err)
	}
	return &SetDeafMuteResponse{}, nil
}

func (s *AdminServer) SetBatch(ctx context.Context, req *SetBatchRequest) (*SetBatchResponse, error) {
	s.registry.SetBatch(req.Batch)
	return &SetBatchResponse{}, nil
}

func (s *AdminServer) DeleteParticipant(ctx context.Context, req *DeleteParticipantRequest) (*DeleteParticipantResponse, error) {
	if err := s.registry.DeleteParticipant(handle.Handle(req.ParticipantHandle)); err != nil {
		return nil, toStatus(err)
	}
	return &DeleteParticipantResponse{}, nil
}

// toStatus maps the core error taxonomy onto gRPC status codes.
func toStatus(err error) error {
	switch ddserrors.KindOf(err) {
	case ddserrors.BadParameter:
		return status.Error(codes.InvalidArgument, err.Error())
	case ddserrors.PreconditionNotMet:
		return status.Error(codes.FailedPrecondition, err.Error())
	case ddserrors.InconsistentPolicy:
		return status.Error(codes.FailedPrecondition, err.Error())
	case ddserrors.IllegalOperation:
		return status.Error(codes.PermissionDenied, err.Error())
	case ddserrors.OutOfResources:
		return status.Error(codes.ResourceExhausted, err.Error())
	case ddserrors.Timeout:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case ddserrors.NotAllowedBySecurity:
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func decodeRequest(dec func(any) error, v any) error {
	if err := dec(v); err != nil {
		return status.Errorf(codes.Internal, "decode request: %v", err)
	}
	return nil
}

// domainAdminServer is the interface grpc.Server.RegisterService checks
// the registered implementation against; ServiceDesc.HandlerType must
// name an interface, not the concrete *AdminServer type.
type domainAdminServer interface {
	CreateDomain(context.Context, *CreateDomainRequest) (*CreateDomainResponse, error)
	FreeDomain(context.Context, *FreeDomainRequest) (*FreeDomainResponse, error)
	CreateParticipant(context.Context, *CreateParticipantRequest) (*CreateParticipantResponse, error)
	CreateTopic(context.Context, *CreateTopicRequest) (*CreateTopicResponse, error)
	ResolveType(context.Context, *ResolveTypeRequest) (*ResolveTypeResponse, error)
	CreateTopicArbitrary(context.Context, *CreateTopicArbitraryRequest) (*CreateTopicArbitraryResponse, error)
	FindTopicLocally(context.Context, *FindTopicLocallyRequest) (*FindTopicLocallyResponse, error)
	FindTopicGlobally(context.Context, *FindTopicGloballyRequest) (*FindTopicGloballyResponse, error)
	GetTopicName(context.Context, *GetTopicNameRequest) (*GetTopicNameResponse, error)
	GetTopicTypeName(context.Context, *GetTopicTypeNameRequest) (*GetTopicTypeNameResponse, error)
	SetDeafMute(context.Context, *SetDeafMuteRequest) (*SetDeafMuteResponse, error)
	SetBatch(context.Context, *SetBatchRequest) (*SetBatchResponse, error)
	DeleteParticipant(context.Context, *DeleteParticipantRequest) (*DeleteParticipantResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*domainAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateDomain", Handler: createDomainHandler},
		{MethodName: "FreeDomain", Handler: freeDomainHandler},
		{MethodName: "CreateParticipant", Handler: createParticipantHandler},
		{MethodName: "CreateTopic", Handler: createTopicHandler},
		{MethodName: "ResolveType", Handler: resolveTypeHandler},
		{MethodName: "CreateTopicArbitrary", Handler: createTopicArbitraryHandler},
		{MethodName: "FindTopicLocally", Handler: findTopicLocallyHandler},
		{MethodName: "FindTopicGlobally", Handler: findTopicGloballyHandler},
		{MethodName: "GetTopicName", Handler: getTopicNameHandler},
		{MethodName: "GetTopicTypeName", Handler: getTopicTypeNameHandler},
		{MethodName: "SetDeafMute", Handler: setDeafMuteHandler},
		{MethodName: "SetBatch", Handler: setBatchHandler},
		{MethodName: "DeleteParticipant", Handler: deleteParticipantHandler},
	},
	Metadata: "ddscore/admin.proto", // no literal .proto file backs this; see package doc
}

func createDomainHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CreateDomainRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).CreateDomain(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateDomain"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).CreateDomain(ctx, req.(*CreateDomainRequest))
	})
}

func freeDomainHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(FreeDomainRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).FreeDomain(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/FreeDomain"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).FreeDomain(ctx, req.(*FreeDomainRequest))
	})
}

func createParticipantHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CreateParticipantRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).CreateParticipant(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateParticipant"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).CreateParticipant(ctx, req.(*CreateParticipantRequest))
	})
}

func createTopicHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CreateTopicRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).CreateTopic(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateTopic"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).CreateTopic(ctx, req.(*CreateTopicRequest))
	})
}

func resolveTypeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ResolveTypeRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).ResolveType(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ResolveType"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).ResolveType(ctx, req.(*ResolveTypeRequest))
	})
}

func createTopicArbitraryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CreateTopicArbitraryRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).CreateTopicArbitrary(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateTopicArbitrary"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).CreateTopicArbitrary(ctx, req.(*CreateTopicArbitraryRequest))
	})
}

func findTopicLocallyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(FindTopicLocallyRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).FindTopicLocally(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/FindTopicLocally"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).FindTopicLocally(ctx, req.(*FindTopicLocallyRequest))
	})
}

func findTopicGloballyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(FindTopicGloballyRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).FindTopicGlobally(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/FindTopicGlobally"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).FindTopicGlobally(ctx, req.(*FindTopicGloballyRequest))
	})
}

func getTopicNameHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetTopicNameRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).GetTopicName(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetTopicName"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).GetTopicName(ctx, req.(*GetTopicNameRequest))
	})
}

func getTopicTypeNameHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetTopicTypeNameRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).GetTopicTypeName(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetTopicTypeName"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).GetTopicTypeName(ctx, req.(*GetTopicTypeNameRequest))
	})
}

func setDeafMuteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(SetDeafMuteRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).SetDeafMute(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/SetDeafMute"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).SetDeafMute(ctx, req.(*SetDeafMuteRequest))
	})
}

func setBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(SetBatchRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).SetBatch(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/SetBatch"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).SetBatch(ctx, req.(*SetBatchRequest))
	})
}

func deleteParticipantHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(DeleteParticipantRequest)
	if err := decodeRequest(dec, req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*AdminServer).DeleteParticipant(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/DeleteParticipant"}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(*AdminServer).DeleteParticipant(ctx, req.(*DeleteParticipantRequest))
	})
}
