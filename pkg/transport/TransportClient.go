package transport

import "context"
import "time"

import "google.golang.org/protobuf/proto"
import "google.golang.org/protobuf/types/known/emptypb"
import "google.golang.org/protobuf/types/known/wrapperspb"

import "github.com/sirgallo/grsfs/pkg/connpool"
import "github.com/sirgallo/grsfs/pkg/fsrpc"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== Transport Client


type faulted interface {
	GetFault() *Fault
}

type GRPCInvoker struct {
	Pool *connpool.ConnectionPool
}


var Log = clog.NewCustomLog(NAME)

const registerRetries = 3


func NewClient(invoker Invoker, timeout time.Duration) *Client {
	return &Client{ Invoker: invoker, Timeout: timeout, Log: Log }
}

/*
	Invoke:
		1.) pull a pooled connection for the peer, a dial failure is reported as unavailable
		2.) invoke the method directly on the client conn, the payload is already a proto message
*/

func (inv *GRPCInvoker) Invoke(ctx context.Context, conn group.Conn, method fsrpc.Method, in proto.Message, out proto.Message) error {
	clientConn, connErr := inv.Pool.GetConnection(conn.String())
	if connErr != nil { return connErr }

	return clientConn.Invoke(ctx, fsrpc.FullMethodName(method), in, out)
}

func (inv *GRPCInvoker) Close(conn group.Conn) error {
	return inv.Pool.CloseConnections(conn.String())
}

/*
	Dispatch
		deliver one envelope to a peer, a fault in the reply comes back as a RemoteError
*/

func (c *Client) Dispatch(ctx context.Context, conn group.Conn, env *operation.Envelope) (*operation.Result, error) {
	reply, err := invoke[DispatchReply](c, ctx, conn, fsrpc.Dispatch, env)
	if err != nil { return nil, err }

	if reply.Result == nil { return &operation.Result{}, nil }
	return reply.Result, nil
}

/*
	Node Register
		announce ourselves to a peer, retried with backoff since a joining node usually races the seed starting up
*/

func (c *Client) NodeRegister(ctx context.Context, conn group.Conn, id group.Identification) (*RegisterReply, error) {
	maxRetries := registerRetries
	expOpts := utils.ExpBackoffOpts{ MaxRetries: &maxRetries, TimeoutInMilliseconds: 10, ShouldRetry: IsUnreachable }
	expStrat := utils.NewExponentialBackoffStrat[*RegisterReply](expOpts)

	return expStrat.PerformBackoff(func() (*RegisterReply, error) {
		return invoke[RegisterReply](c, ctx, conn, fsrpc.NodeRegister, id)
	})
}

func (c *Client) NodeUnregister(ctx context.Context, conn group.Conn, peer group.Conn) error {
	_, err := invoke[AckReply](c, ctx, conn, fsrpc.NodeUnregister, UnregisterRequest{ Peer: peer })
	return err
}

func (c *Client) Ping(ctx context.Context, conn group.Conn, from group.Conn) (string, error) {
	reply, err := invoke[PingReply](c, ctx, conn, fsrpc.Ping, PingRequest{ From: from })
	if err != nil { return "", err }

	return reply.Status, nil
}

func (c *Client) GetGroup(ctx context.Context, conn group.Conn) ([]group.PeerView, error) {
	reply, err := invoke[GroupReply](c, ctx, conn, fsrpc.GetGroup, nil)
	if err != nil { return nil, err }

	return reply.Peers, nil
}

func (c *Client) GetIdentification(ctx context.Context, conn group.Conn) (*group.Identification, error) {
	reply, err := invoke[IdentificationReply](c, ctx, conn, fsrpc.GetIdentification, nil)
	if err != nil { return nil, err }

	return &reply.Identification, nil
}

func (c *Client) GetJournal(ctx context.Context, conn group.Conn, from uint64, to uint64) (*JournalReply, error) {
	return invoke[JournalReply](c, ctx, conn, fsrpc.GetJournal, JournalRequest{ From: from, To: to })
}

func (c *Client) ElectionFinished(ctx context.Context, conn group.Conn, result group.ElectionResult) error {
	_, err := invoke[AckReply](c, ctx, conn, fsrpc.ElectionFinished, result)
	return err
}

// Close Link drops any pooled connection to the peer.
func (c *Client) CloseLink(conn group.Conn) error {
	return c.Invoker.Close(conn)
}

/*
	invoke:
		1.) encode the payload as json inside a BytesValue, or send Empty when there is none
		2.) bound the call by the network timeout
		3.) transport failures are classified, a decoded reply with a fault becomes a RemoteError
*/

func invoke[Reply any](c *Client, ctx context.Context, conn group.Conn, method fsrpc.Method, payload interface{}) (*Reply, error) {
	var in proto.Message = &emptypb.Empty{}
	if payload != nil {
		encoded, encErr := utils.EncodeStructToBytes(payload)
		if encErr != nil { return nil, encErr }

		in = wrapperspb.Bytes(encoded)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	out := &wrapperspb.BytesValue{}
	invokeErr := c.Invoker.Invoke(callCtx, conn, method, in, out)
	if invokeErr != nil {
		c.Log.Debug("rpc", string(method), "to", conn.String(), "failed:", invokeErr.Error())
		return nil, classify(conn, invokeErr)
	}

	reply, decErr := utils.DecodeBytesToStruct[Reply](out.Value)
	if decErr != nil { return nil, &RemoteError{ Peer: conn, Kind: TypeError, Message: decErr.Error() } }

	if withFault, ok := any(reply).(faulted); ok && withFault.GetFault() != nil {
		return nil, withFault.GetFault().Err(conn)
	}

	return reply, nil
}
