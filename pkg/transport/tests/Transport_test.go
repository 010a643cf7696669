package transporttests

import "context"
import "errors"
import "fmt"
import "net"
import "testing"
import "time"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/connpool"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"
import "github.com/sirgallo/grsfs/pkg/transport"


type mockHandler struct {
	block chan struct{}
}

func (h *mockHandler) HandleDispatch(ctx context.Context, env *operation.Envelope) (*operation.Result, error) {
	switch env.Path {
		case "/missing":
			return nil, storage.NewErrno(string(env.Op), env.Path, unix.ENOENT)
		case "/slow":
			<- h.block
			return &operation.Result{}, nil
		default:
			return &operation.Result{ N: int64(len(env.Data)), Data: env.Data }, nil
	}
}

func (h *mockHandler) HandleRegister(ctx context.Context, id group.Identification) (*transport.RegisterReply, error) {
	return &transport.RegisterReply{ Added: true, AssignedRole: group.Replica, Authoritative: true }, nil
}

func (h *mockHandler) HandleUnregister(ctx context.Context, peer group.Conn) error {
	return fmt.Errorf("no such peer: %s", peer)
}

func (h *mockHandler) HandlePing(ctx context.Context, from group.Conn) (string, error) {
	return transport.PingOK, nil
}

func (h *mockHandler) HandleGetGroup(ctx context.Context) ([]group.PeerView, error) {
	return []group.PeerView{ { Conn: group.Conn{ Host: "a", Port: 1 }, Role: group.Master } }, nil
}

func (h *mockHandler) HandleGetIdentification(ctx context.Context) (group.Identification, error) {
	return group.Identification{ Conn: group.Conn{ Host: "a", Port: 1 }, CurrentStep: 7, Score: 42 }, nil
}

func (h *mockHandler) HandleGetJournal(ctx context.Context, from uint64, to uint64) (*transport.JournalReply, error) {
	return &transport.JournalReply{ Through: to, Complete: true }, nil
}

func (h *mockHandler) HandleElectionFinished(ctx context.Context, result group.ElectionResult) error {
	return nil
}


var peerA = group.Conn{ Host: "a", Port: 1 }

func setupLocal(t *testing.T) (*transport.LocalNetwork, *transport.Client, *mockHandler) {
	handler := &mockHandler{ block: make(chan struct{}) }
	t.Cleanup(func() { close(handler.block) })

	network := transport.NewLocalNetwork()
	network.Register(peerA, transport.NewServer(handler))

	return network, transport.NewClient(network, 200 * time.Millisecond), handler
}

func TestLocalDispatchRoundTrip(t *testing.T) {
	_, client, _ := setupLocal(t)

	payload := []byte{ 0x00, 0xff, 0x10, 0x80 }
	res, dispatchErr := client.Dispatch(context.Background(), peerA, &operation.Envelope{ Op: operation.Write, Path: "/f", Data: payload })
	if dispatchErr != nil { t.Fatalf("unexpected dispatch error: %s", dispatchErr.Error()) }

	t.Logf("actual n: %d, expected n: %d\n", res.N, len(payload))
	if res.N != int64(len(payload)) { t.Errorf("actual n not equal to expected: actual(%d), expected(%d)\n", res.N, len(payload)) }
	if string(res.Data) != string(payload) { t.Errorf("binary payload did not survive the round trip: %v", res.Data) }
}

func TestRemoteErrnoSurvives(t *testing.T) {
	_, client, _ := setupLocal(t)

	_, dispatchErr := client.Dispatch(context.Background(), peerA, &operation.Envelope{ Op: operation.Unlink, Path: "/missing" })

	var remoteErr *transport.RemoteError
	if ! errors.As(dispatchErr, &remoteErr) { t.Fatalf("expected remote error, got: %v", dispatchErr) }

	t.Logf("actual kind: %s, expected kind: %s\n", remoteErr.Kind, transport.OSError)
	if remoteErr.Kind != transport.OSError { t.Errorf("actual kind not equal to expected: actual(%s), expected(%s)\n", remoteErr.Kind, transport.OSError) }
	if remoteErr.ErrnoValue() != unix.ENOENT { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", remoteErr.ErrnoValue(), unix.ENOENT) }
	if storage.ToErrno(dispatchErr) != unix.ENOENT { t.Errorf("expected ToErrno to see the remote errno") }
	if transport.IsUnreachable(dispatchErr) { t.Errorf("a remote fault is not an unreachable peer") }

	unregisterErr := client.NodeUnregister(context.Background(), peerA, group.Conn{ Host: "z", Port: 9 })
	if ! errors.As(unregisterErr, &remoteErr) || remoteErr.Kind != transport.GenericFault {
		t.Errorf("expected generic fault, got: %v", unregisterErr)
	}
}

func TestDisconnectedPeerIsUnreachable(t *testing.T) {
	network, client, _ := setupLocal(t)

	network.Disconnect(peerA)
	_, pingErr := client.Ping(context.Background(), peerA, group.Conn{ Host: "b", Port: 2 })
	if ! transport.IsUnreachable(pingErr) { t.Errorf("expected unreachable, got: %v", pingErr) }

	network.Reconnect(peerA)
	pingStatus, pingErr := client.Ping(context.Background(), peerA, group.Conn{ Host: "b", Port: 2 })
	if pingErr != nil { t.Fatalf("unexpected ping error: %s", pingErr.Error()) }
	if pingStatus != transport.PingOK { t.Errorf("actual status not equal to expected: actual(%s), expected(%s)\n", pingStatus, transport.PingOK) }

	_, unknownErr := client.GetGroup(context.Background(), group.Conn{ Host: "nobody", Port: 3 })
	if ! transport.IsUnreachable(unknownErr) { t.Errorf("expected unknown peer to be unreachable, got: %v", unknownErr) }
}

func TestSlowPeerTimesOut(t *testing.T) {
	_, client, _ := setupLocal(t)

	start := time.Now()
	_, dispatchErr := client.Dispatch(context.Background(), peerA, &operation.Envelope{ Op: operation.Write, Path: "/slow" })
	elapsed := time.Since(start)

	if ! transport.IsUnreachable(dispatchErr) { t.Errorf("expected a timed out call to be unreachable, got: %v", dispatchErr) }
	if elapsed > 2 * time.Second { t.Errorf("call was not bounded by the timeout: %s", elapsed) }
}

func TestTimedOutHandlerIsTracked(t *testing.T) {
	handler := &mockHandler{ block: make(chan struct{}) }
	network := transport.NewLocalNetwork()
	network.Register(peerA, transport.NewServer(handler))
	client := transport.NewClient(network, 50 * time.Millisecond)

	_, dispatchErr := client.Dispatch(context.Background(), peerA, &operation.Envelope{ Op: operation.Write, Path: "/slow" })
	if ! transport.IsUnreachable(dispatchErr) { t.Fatalf("expected a timed out call to be unreachable, got: %v", dispatchErr) }

	drained := make(chan struct{})
	go func() {
		network.Wait()
		close(drained)
	}()

	select {
		case <- drained:
			t.Fatalf("wait returned while the timed out handler was still running")
		case <- time.After(50 * time.Millisecond):
	}

	close(handler.block)

	select {
		case <- drained:
		case <- time.After(2 * time.Second):
			t.Fatalf("wait never returned after the handler finished")
	}
}

func TestFaultFromError(t *testing.T) {
	cases := []struct {
		err error
		kind transport.FaultKind
		errno int
	}{
		{ storage.NewErrno("open", "/x", unix.EACCES), transport.OSError, int(unix.EACCES) },
		{ unix.EEXIST, transport.OSError, int(unix.EEXIST) },
		{ fmt.Errorf("wrapped: %w", operation.ErrUnknownOp), transport.ValueError, 0 },
		{ transport.ErrBadPayload, transport.TypeError, 0 },
		{ errors.New("boom"), transport.GenericFault, 0 },
	}

	for _, c := range cases {
		fault := transport.FaultFromError(c.err)
		t.Logf("actual kind: %s, expected kind: %s\n", fault.Kind, c.kind)
		if fault.Kind != c.kind || fault.Errno != c.errno {
			t.Errorf("actual fault not equal to expected: actual(%s, %d), expected(%s, %d)\n", fault.Kind, fault.Errno, c.kind, c.errno)
		}
	}

	if transport.FaultFromError(nil) != nil { t.Errorf("expected no fault for a nil error") }
}

func TestGRPCRoundTrip(t *testing.T) {
	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil { t.Fatalf("unable to listen: %s", listenErr.Error()) }

	handler := &mockHandler{ block: make(chan struct{}) }
	defer close(handler.block)

	server := transport.NewServer(handler)
	go server.Serve(listener, nil)
	defer server.Stop()

	addr := listener.Addr().(*net.TCPAddr)
	peer := group.Conn{ Host: "127.0.0.1", Port: addr.Port }

	pool := connpool.NewConnectionPool(connpool.ConnectionPoolOpts{ MaxConn: 2, DialTimeout: time.Second })
	defer pool.CloseAll()

	client := transport.NewClient(&transport.GRPCInvoker{ Pool: pool }, 5 * time.Second)

	id, idErr := client.GetIdentification(context.Background(), peer)
	if idErr != nil { t.Fatalf("unexpected identification error: %s", idErr.Error()) }
	if id.CurrentStep != 7 || id.Score != 42 { t.Errorf("actual identification not equal to expected: %+v", id) }

	reply, registerErr := client.NodeRegister(context.Background(), peer, group.Identification{ Conn: group.Conn{ Host: "b", Port: 2 } })
	if registerErr != nil { t.Fatalf("unexpected register error: %s", registerErr.Error()) }
	if ! reply.Added || reply.AssignedRole != group.Replica { t.Errorf("actual register reply not equal to expected: %+v", reply) }

	_, dispatchErr := client.Dispatch(context.Background(), peer, &operation.Envelope{ Op: operation.Rmdir, Path: "/missing" })
	if storage.ToErrno(dispatchErr) != unix.ENOENT { t.Errorf("expected ENOENT over grpc, got: %v", dispatchErr) }
}
