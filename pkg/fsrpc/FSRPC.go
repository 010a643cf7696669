package fsrpc

import "context"

import "google.golang.org/grpc"
import "google.golang.org/grpc/codes"
import "google.golang.org/grpc/status"
import "google.golang.org/protobuf/types/known/emptypb"
import "google.golang.org/protobuf/types/known/wrapperspb"


//=========================================== Peer Service Descriptor


/*
	every method carries a json document inside a BytesValue, the calls without arguments take Empty
	the descriptor is registered against the default proto codec like any protoc generated service
*/

type Method string

const (
	Dispatch Method = "Dispatch"
	NodeRegister Method = "NodeRegister"
	NodeUnregister Method = "NodeUnregister"
	Ping Method = "Ping"
	GetGroup Method = "GetGroup"
	GetIdentification Method = "GetIdentification"
	GetJournal Method = "GetJournal"
	ElectionFinished Method = "ElectionFinished"
)

const ServiceName = "grsfs.PeerService"


type PeerServiceServer interface {
	Dispatch(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	NodeRegister(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	NodeUnregister(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Ping(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	GetGroup(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	GetIdentification(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	GetJournal(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	ElectionFinished(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

type UnimplementedPeerServiceServer struct{}

func (UnimplementedPeerServiceServer) Dispatch(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Dispatch not implemented")
}

func (UnimplementedPeerServiceServer) NodeRegister(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method NodeRegister not implemented")
}

func (UnimplementedPeerServiceServer) NodeUnregister(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method NodeUnregister not implemented")
}

func (UnimplementedPeerServiceServer) Ping(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Ping not implemented")
}

func (UnimplementedPeerServiceServer) GetGroup(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetGroup not implemented")
}

func (UnimplementedPeerServiceServer) GetIdentification(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetIdentification not implemented")
}

func (UnimplementedPeerServiceServer) GetJournal(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetJournal not implemented")
}

func (UnimplementedPeerServiceServer) ElectionFinished(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ElectionFinished not implemented")
}

func RegisterPeerServiceServer(registrar grpc.ServiceRegistrar, srv PeerServiceServer) {
	registrar.RegisterService(&PeerService_ServiceDesc, srv)
}

func FullMethodName(method Method) string {
	return "/" + ServiceName + "/" + string(method)
}

/*
	Request For
		the empty request message each method decodes into
*/

func RequestFor(method Method) interface{} {
	switch method {
		case GetGroup, GetIdentification:
			return new(emptypb.Empty)
		default:
			return new(wrapperspb.BytesValue)
	}
}

//=========================================== Handlers


func unaryHandler[Req any](method Method, call func(PeerServiceServer, context.Context, *Req) (*wrapperspb.BytesValue, error)) grpc.MethodDesc {
	handler := func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil { return nil, err }
		if interceptor == nil { return call(srv.(PeerServiceServer), ctx, in) }

		info := &grpc.UnaryServerInfo{ Server: srv, FullMethod: FullMethodName(method) }
		wrapped := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PeerServiceServer), ctx, req.(*Req))
		}

		return interceptor(ctx, in, info, wrapped)
	}

	return grpc.MethodDesc{ MethodName: string(method), Handler: handler }
}

var PeerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PeerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(Dispatch, PeerServiceServer.Dispatch),
		unaryHandler(NodeRegister, PeerServiceServer.NodeRegister),
		unaryHandler(NodeUnregister, PeerServiceServer.NodeUnregister),
		unaryHandler(Ping, PeerServiceServer.Ping),
		unaryHandler(GetGroup, PeerServiceServer.GetGroup),
		unaryHandler(GetIdentification, PeerServiceServer.GetIdentification),
		unaryHandler(GetJournal, PeerServiceServer.GetJournal),
		unaryHandler(ElectionFinished, PeerServiceServer.ElectionFinished),
	},
	Streams: []grpc.StreamDesc{},
	Metadata: "grsfs/peer.proto",
}
