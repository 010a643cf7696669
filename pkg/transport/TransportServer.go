package transport

import "context"
import "fmt"
import "net"
import "time"

import "google.golang.org/grpc"
import "google.golang.org/grpc/codes"
import "google.golang.org/grpc/credentials"
import "google.golang.org/grpc/keepalive"
import "google.golang.org/grpc/status"
import "google.golang.org/protobuf/types/known/emptypb"
import "google.golang.org/protobuf/types/known/wrapperspb"

import "github.com/sirgallo/grsfs/pkg/fsrpc"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== Transport Server


const keepaliveMinTime = 10 * time.Second


func NewServer(handler Handler) *Server {
	return &Server{ Handler: handler, Log: Log }
}

/*
	Serve:
		1.) build a grpc server with the node credentials and a lenient keepalive policy for pooled client conns
		2.) register the peer service against it
		3.) block serving the listener until Stop
*/

func (s *Server) Serve(listener net.Listener, creds credentials.TransportCredentials) error {
	opts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{ MinTime: keepaliveMinTime, PermitWithoutStream: true }),
	}

	if creds != nil { opts = append(opts, grpc.Creds(creds)) }

	s.mutex.Lock()
	s.grpcServer = grpc.NewServer(opts...)
	fsrpc.RegisterPeerServiceServer(s.grpcServer, s)
	grpcServer := s.grpcServer
	s.mutex.Unlock()

	s.Log.Info("peer service listening on", listener.Addr().String())
	return grpcServer.Serve(listener)
}

func (s *Server) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.grpcServer != nil { s.grpcServer.Stop() }
}

//=========================================== Peer Service


func (s *Server) Dispatch(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	env, decErr := operation.DecodeEnvelope(in.Value)
	if decErr != nil { return respond(&DispatchReply{ ReplyHeader: header(badPayload(decErr)) }) }

	result, err := s.Handler.HandleDispatch(ctx, env)
	if err != nil { return respond(&DispatchReply{ ReplyHeader: header(err) }) }

	return respond(&DispatchReply{ Result: result })
}

func (s *Server) NodeRegister(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	id, decErr := utils.DecodeBytesToStruct[group.Identification](in.Value)
	if decErr != nil { return respond(&RegisterReply{ ReplyHeader: header(badPayload(decErr)) }) }

	reply, err := s.Handler.HandleRegister(ctx, *id)
	if err != nil { return respond(&RegisterReply{ ReplyHeader: header(err) }) }

	return respond(reply)
}

func (s *Server) NodeUnregister(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	req, decErr := utils.DecodeBytesToStruct[UnregisterRequest](in.Value)
	if decErr != nil { return respond(&AckReply{ ReplyHeader: header(badPayload(decErr)) }) }

	return respond(&AckReply{ ReplyHeader: header(s.Handler.HandleUnregister(ctx, req.Peer)) })
}

func (s *Server) Ping(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	req, decErr := utils.DecodeBytesToStruct[PingRequest](in.Value)
	if decErr != nil { return respond(&PingReply{ ReplyHeader: header(badPayload(decErr)) }) }

	pingStatus, err := s.Handler.HandlePing(ctx, req.From)
	return respond(&PingReply{ ReplyHeader: header(err), Status: pingStatus })
}

func (s *Server) GetGroup(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	peers, err := s.Handler.HandleGetGroup(ctx)
	return respond(&GroupReply{ ReplyHeader: header(err), Peers: peers })
}

func (s *Server) GetIdentification(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	id, err := s.Handler.HandleGetIdentification(ctx)
	return respond(&IdentificationReply{ ReplyHeader: header(err), Identification: id })
}

func (s *Server) GetJournal(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	req, decErr := utils.DecodeBytesToStruct[JournalRequest](in.Value)
	if decErr != nil { return respond(&JournalReply{ ReplyHeader: header(badPayload(decErr)) }) }

	reply, err := s.Handler.HandleGetJournal(ctx, req.From, req.To)
	if err != nil { return respond(&JournalReply{ ReplyHeader: header(err) }) }

	return respond(reply)
}

func (s *Server) ElectionFinished(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	result, decErr := utils.DecodeBytesToStruct[group.ElectionResult](in.Value)
	if decErr != nil { return respond(&AckReply{ ReplyHeader: header(badPayload(decErr)) }) }

	return respond(&AckReply{ ReplyHeader: header(s.Handler.HandleElectionFinished(ctx, *result)) })
}

func respond(reply interface{}) (*wrapperspb.BytesValue, error) {
	encoded, encErr := utils.EncodeStructToBytes(reply)
	if encErr != nil { return nil, status.Error(codes.Internal, encErr.Error()) }

	return wrapperspb.Bytes(encoded), nil
}

func header(err error) ReplyHeader {
	return ReplyHeader{ Fault: FaultFromError(err) }
}

func badPayload(err error) error {
	return fmt.Errorf("%w: %v", ErrBadPayload, err)
}
