package transport

import "context"
import "errors"
import "sync"
import "time"

import "golang.org/x/sys/unix"
import "google.golang.org/grpc"
import "google.golang.org/protobuf/proto"

import "github.com/sirgallo/grsfs/pkg/fsrpc"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/operation"


type FaultKind string

const (
	ValueError FaultKind = "ValueError"
	TypeError FaultKind = "TypeError"
	IOError FaultKind = "IOError"
	OSError FaultKind = "OSError"
	GenericFault FaultKind = "Fault"
)

/*
	Fault
		the only error shapes that cross the wire
*/

type Fault struct {
	Kind FaultKind `json:"kind"`
	Errno int `json:"errno,omitempty"`
	Message string `json:"message"`
}

type RemoteError struct {
	Peer group.Conn
	Kind FaultKind
	Errno unix.Errno
	Message string
}

type ReplyHeader struct {
	Fault *Fault `json:"fault,omitempty"`
}

type DispatchReply struct {
	ReplyHeader
	Result *operation.Result `json:"result,omitempty"`
}

type RegisterReply struct {
	ReplyHeader
	Added bool `json:"added"`
	AssignedRole group.Role `json:"assignedRole"`
	Authoritative bool `json:"authoritative"`
	Responder group.Identification `json:"responder"`
	Master *group.Conn `json:"master,omitempty"`
	Group []group.PeerView `json:"group"`
}

type UnregisterRequest struct {
	Peer group.Conn `json:"peer"`
}

type PingRequest struct {
	From group.Conn `json:"from"`
}

type PingReply struct {
	ReplyHeader
	Status string `json:"status"`
}

type GroupReply struct {
	ReplyHeader
	Peers []group.PeerView `json:"peers"`
}

type IdentificationReply struct {
	ReplyHeader
	Identification group.Identification `json:"identification"`
}

type JournalRequest struct {
	From uint64 `json:"from"`
	To uint64 `json:"to"`
}

type JournalReply struct {
	ReplyHeader
	Entries []*operation.Envelope `json:"entries"`
	Through uint64 `json:"through"`
	Complete bool `json:"complete"`
}

type AckReply struct {
	ReplyHeader
}

/*
	Handler
		what a node serves to its peers, the Server adapts it onto the grpc service
*/

type Handler interface {
	HandleDispatch(ctx context.Context, env *operation.Envelope) (*operation.Result, error)
	HandleRegister(ctx context.Context, id group.Identification) (*RegisterReply, error)
	HandleUnregister(ctx context.Context, peer group.Conn) error
	HandlePing(ctx context.Context, from group.Conn) (string, error)
	HandleGetGroup(ctx context.Context) ([]group.PeerView, error)
	HandleGetIdentification(ctx context.Context) (group.Identification, error)
	HandleGetJournal(ctx context.Context, from uint64, to uint64) (*JournalReply, error)
	HandleElectionFinished(ctx context.Context, result group.ElectionResult) error
}

/*
	Invoker
		moves one request message to a peer and fills in the reply, over grpc or in process
*/

type Invoker interface {
	Invoke(ctx context.Context, conn group.Conn, method fsrpc.Method, in proto.Message, out proto.Message) error
	Close(conn group.Conn) error
}

type Client struct {
	Invoker Invoker
	Timeout time.Duration
	Log *clog.CustomLog
}

type Server struct {
	fsrpc.UnimplementedPeerServiceServer
	Handler Handler
	Log *clog.CustomLog

	mutex sync.Mutex
	grpcServer *grpc.Server
}

type LocalNetwork struct {
	mutex sync.RWMutex
	servers map[group.Conn]fsrpc.PeerServiceServer
	down map[group.Conn]bool
	inflight sync.WaitGroup
}


const NAME = "Transport"

const (
	PingOK = "OK"
	PingLost = "LOST"
)

var ErrPeerUnreachable = errors.New("peer unreachable")
var ErrBadPayload = errors.New("malformed rpc payload")
