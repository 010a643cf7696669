package dispatchertests

import "context"
import "errors"
import "fmt"
import "os"
import "path/filepath"
import "sync"
import "testing"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/dispatcher"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/state"
import "github.com/sirgallo/grsfs/pkg/storage"
import "github.com/sirgallo/grsfs/pkg/transport"


type mockCaller struct {
	mutex sync.Mutex
	dispatched map[group.Conn][]*operation.Envelope
	unregistered []group.Conn
	respond func(conn group.Conn, env *operation.Envelope) (*operation.Result, error)
}

func (c *mockCaller) Dispatch(ctx context.Context, conn group.Conn, env *operation.Envelope) (*operation.Result, error) {
	c.mutex.Lock()
	if c.dispatched == nil { c.dispatched = make(map[group.Conn][]*operation.Envelope) }
	c.dispatched[conn] = append(c.dispatched[conn], env)
	c.mutex.Unlock()

	if c.respond == nil { return &operation.Result{}, nil }
	return c.respond(conn, env)
}

func (c *mockCaller) NodeUnregister(ctx context.Context, conn group.Conn, peer group.Conn) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.unregistered = append(c.unregistered, conn)
	return nil
}

type mockEvents struct {
	mutex sync.Mutex
	dead []group.Conn
	critical []error
}

func (e *mockEvents) HandleDeadPeer(conn group.Conn, forceElection bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.dead = append(e.dead, conn)
}

func (e *mockEvents) OnCritical(err error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.critical = append(e.critical, err)
}


var self = group.Conn{ Host: "a", Port: 9090 }
var replicaB = group.Conn{ Host: "b", Port: 9090 }
var replicaC = group.Conn{ Host: "c", Port: 9090 }

type fixture struct {
	dispatcher *dispatcher.Dispatcher
	storage *storage.Passthrough
	clock *state.Clock
	group *group.Group
	caller *mockCaller
	events *mockEvents
}

type failingClock struct {
	*state.Clock
	err error
}

func (c *failingClock) CheckpointID() error {
	return c.err
}

func setupDispatcher(t *testing.T, role group.Role, minCopies int, maxCopies int, peers ...group.Peer) *fixture {
	return setupDispatcherWithClock(t, role, minCopies, maxCopies, nil, peers...)
}

func setupDispatcherWithClock(t *testing.T, role group.Role, minCopies int, maxCopies int, wrap func(*state.Clock) dispatcher.Clock, peers ...group.Peer) *fixture {
	dir := t.TempDir()
	root := filepath.Join(dir, "storage")
	if mkErr := os.Mkdir(root, 0755); mkErr != nil { t.Fatalf("unable to create root: %s", mkErr.Error()) }

	pt, ptErr := storage.NewPassthrough(root)
	if ptErr != nil { t.Fatalf("unable to create passthrough: %s", ptErr.Error()) }

	clock, clockErr := state.NewClock(filepath.Join(dir, "storage.state"))
	if clockErr != nil { t.Fatalf("unable to create clock: %s", clockErr.Error()) }

	g := group.NewGroup(group.Peer{ Conn: self, Role: role, Score: 100 })
	for _, peer := range peers {
		g.Add(peer)
	}

	caller := &mockCaller{}
	events := &mockEvents{}

	var dclock dispatcher.Clock = clock
	if wrap != nil { dclock = wrap(clock) }

	d := dispatcher.NewDispatcher(dispatcher.DispatcherOpts{
		MinCopies: minCopies,
		MaxCopies: maxCopies,
		Storage: pt,
		Clock: dclock,
		Group: g,
		Caller: caller,
		Events: events,
	})

	return &fixture{ dispatcher: d, storage: pt, clock: clock, group: g, caller: caller, events: events }
}

func writeEnv(path string, offset int64, data string) *operation.Envelope {
	return &operation.Envelope{ Op: operation.Write, Path: path, Offset: offset, Data: operation.Binary(data) }
}

func readFile(t *testing.T, pt *storage.Passthrough, path string) string {
	resolved, _ := pt.Resolve(path)
	contents, readErr := os.ReadFile(resolved)
	if errors.Is(readErr, os.ErrNotExist) { return "" }
	if readErr != nil { t.Fatalf("unable to read %s: %s", path, readErr.Error()) }

	return string(contents)
}

func TestSingularWritesLocally(t *testing.T) {
	f := setupDispatcher(t, group.Singular, 0, 0)

	res, writeErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/f", 0, "hello") })
	if writeErr != nil { t.Fatalf("unexpected write error: %s", writeErr.Error()) }
	if res.N != 5 { t.Errorf("actual written not equal to expected: actual(%d), expected(%d)\n", res.N, 5) }

	read, readErr := f.dispatcher.DoReadOp(context.Background(), &dispatcher.Request{ Envelope: &operation.Envelope{ Op: operation.Read, Path: "/f", Length: 5 } })
	if readErr != nil { t.Fatalf("unexpected read error: %s", readErr.Error()) }

	t.Logf("actual read: %s, expected read: %s\n", string(read.Data), "hello")
	if string(read.Data) != "hello" { t.Errorf("actual read not equal to expected: actual(%s), expected(%s)\n", string(read.Data), "hello") }
	if f.clock.Current() != 1 || f.clock.Checkpointed() != 1 { t.Errorf("expected step 1 checkpointed, got %d/%d", f.clock.Current(), f.clock.Checkpointed()) }
	if len(f.caller.dispatched) != 0 { t.Errorf("singular mode must never replicate") }
}

func TestMasterRefusesWithoutQuorum(t *testing.T) {
	f := setupDispatcher(t, group.Master, 1, 2)

	_, writeErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/f", 5, "!!") })
	errno := storage.ToErrno(writeErr)

	t.Logf("actual errno: %d, expected errno: %d\n", errno, unix.EROFS)
	if errno != unix.EROFS { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", errno, unix.EROFS) }
	if f.clock.Current() != 0 { t.Errorf("a refused write must not allocate a step, current is %d", f.clock.Current()) }
	if readFile(t, f.storage, "/f") != "" { t.Errorf("a refused write must not touch storage") }
}

func TestMasterReplicatesBeforeApplying(t *testing.T) {
	f := setupDispatcher(t, group.Master, 1, 2, group.Peer{ Conn: replicaB, Role: group.Replica, Linked: true })

	_, writeErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/f", 0, "hello") })
	if writeErr != nil { t.Fatalf("unexpected write error: %s", writeErr.Error()) }

	sent := f.caller.dispatched[replicaB]
	if len(sent) != 1 { t.Fatalf("actual envelopes sent not equal to expected: actual(%d), expected(%d)\n", len(sent), 1) }

	step, hasStep := sent[0].Step()
	t.Logf("actual step: %d, expected step: %d\n", step, 1)
	if ! hasStep || step != 1 { t.Errorf("actual step not equal to expected: actual(%d), expected(%d)\n", step, 1) }
	if string(sent[0].Data) != "hello" { t.Errorf("replicated payload altered: %q", string(sent[0].Data)) }

	if readFile(t, f.storage, "/f") != "hello" { t.Errorf("expected local apply after replication") }
	if f.dispatcher.LastOperation() == nil { t.Errorf("expected last operation to be recorded") }

	_, secondErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/f", 5, "!!") })
	if secondErr != nil { t.Fatalf("unexpected write error: %s", secondErr.Error()) }

	second, _ := f.caller.dispatched[replicaB][1].Step()
	if second != 2 { t.Errorf("actual second step not equal to expected: actual(%d), expected(%d)\n", second, 2) }
	if f.clock.Checkpointed() != 2 { t.Errorf("actual checkpoint not equal to expected: actual(%d), expected(%d)\n", f.clock.Checkpointed(), 2) }
}

func TestMasterFailsWhenDeliveriesFallShort(t *testing.T) {
	f := setupDispatcher(t, group.Master, 1, 2, group.Peer{ Conn: replicaB, Role: group.Replica, Linked: true })
	f.caller.respond = func(conn group.Conn, env *operation.Envelope) (*operation.Result, error) {
		return nil, fmt.Errorf("%w: %s", transport.ErrPeerUnreachable, conn)
	}

	_, writeErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/f", 0, "hello") })
	errno := storage.ToErrno(writeErr)

	t.Logf("actual errno: %d, expected errno: %d\n", errno, unix.EIO)
	if errno != unix.EIO { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", errno, unix.EIO) }
	if readFile(t, f.storage, "/f") != "" { t.Errorf("a failed replication must not be applied locally") }
	if len(f.events.dead) != 1 || f.events.dead[0] != replicaB { t.Errorf("expected unreachable replica to be reported dead, got %v", f.events.dead) }
}

func TestMasterCountsBenignReplicaErrors(t *testing.T) {
	f := setupDispatcher(t, group.Master, 1, 2, group.Peer{ Conn: replicaB, Role: group.Replica, Linked: true })
	f.caller.respond = func(conn group.Conn, env *operation.Envelope) (*operation.Result, error) {
		return nil, &transport.RemoteError{ Peer: conn, Kind: transport.OSError, Errno: unix.ENOENT, Message: "missing" }
	}

	_, unlinkErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: &operation.Envelope{ Op: operation.Unlink, Path: "/missing" } })
	errno := storage.ToErrno(unlinkErr)

	t.Logf("actual errno: %d, expected errno: %d\n", errno, unix.ENOENT)
	if errno != unix.ENOENT { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", errno, unix.ENOENT) }
	if f.clock.Checkpointed() != 1 { t.Errorf("a benign failure still consumes its step, checkpoint is %d", f.clock.Checkpointed()) }
	if f.dispatcher.Role() != group.Master { t.Errorf("a benign failure must not eject the master") }
}

func TestReplicaAppliesInStep(t *testing.T) {
	f := setupDispatcher(t, group.Replica, 1, 2, group.Peer{ Conn: replicaB, Role: group.Master, Linked: true })

	env := writeEnv("/f", 0, "\x00\xff\x01\x7f")
	env.SetStep(1)

	res, applyErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: env, Origin: dispatcher.Remote })
	if applyErr != nil { t.Fatalf("unexpected apply error: %s", applyErr.Error()) }
	if res.N != 4 { t.Errorf("actual written not equal to expected: actual(%d), expected(%d)\n", res.N, 4) }
	if readFile(t, f.storage, "/f") != "\x00\xff\x01\x7f" { t.Errorf("binary payload not applied byte for byte") }
	if f.clock.Current() != 1 || f.clock.Checkpointed() != 1 { t.Errorf("expected step 1 checkpointed, got %d/%d", f.clock.Current(), f.clock.Checkpointed()) }

	_, localWriteErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/f", 0, "x") })
	if storage.ToErrno(localWriteErr) != unix.EROFS { t.Errorf("expected local write on a replica to be EROFS, got %v", localWriteErr) }

	_, localReadErr := f.dispatcher.DoReadOp(context.Background(), &dispatcher.Request{ Envelope: &operation.Envelope{ Op: operation.Read, Path: "/f", Length: 4 } })
	if storage.ToErrno(localReadErr) != unix.EROFS { t.Errorf("expected local read on a replica to be EROFS, got %v", localReadErr) }

	remoteRead, remoteReadErr := f.dispatcher.DoReadOp(context.Background(), &dispatcher.Request{ Envelope: &operation.Envelope{ Op: operation.Read, Path: "/f", Length: 4 }, Origin: dispatcher.Remote })
	if remoteReadErr != nil { t.Fatalf("unexpected remote read error: %s", remoteReadErr.Error()) }
	if string(remoteRead.Data) != "\x00\xff\x01\x7f" { t.Errorf("actual remote read not equal to expected: %v", remoteRead.Data) }

	unstepped := writeEnv("/f", 0, "x")
	_, unsteppedErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: unstepped, Origin: dispatcher.Remote })
	if storage.ToErrno(unsteppedErr) != unix.EROFS { t.Errorf("expected an unstepped write to be EROFS, got %v", unsteppedErr) }
}

func TestReplicaPassesBenignErrno(t *testing.T) {
	f := setupDispatcher(t, group.Replica, 1, 2)

	env := &operation.Envelope{ Op: operation.Rmdir, Path: "/missing" }
	env.SetStep(1)

	_, applyErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: env, Origin: dispatcher.Remote })
	errno := storage.ToErrno(applyErr)

	t.Logf("actual errno: %d, expected errno: %d\n", errno, unix.ENOENT)
	if errno != unix.ENOENT { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", errno, unix.ENOENT) }
	if f.clock.Checkpointed() != 1 { t.Errorf("expected the step to be consumed, checkpoint is %d", f.clock.Checkpointed()) }
	if f.dispatcher.Role() != group.Replica { t.Errorf("a benign errno must not eject the replica") }
}

func TestReplicaOutOfStepLeavesGroup(t *testing.T) {
	f := setupDispatcher(t, group.Replica, 1, 2,
		group.Peer{ Conn: replicaB, Role: group.Master, Linked: true },
		group.Peer{ Conn: replicaC, Role: group.Replica, Linked: true },
	)

	if setErr := f.clock.SetStep(4); setErr != nil { t.Fatalf("unable to set step: %s", setErr.Error()) }

	env := writeEnv("/f", 0, "late")
	env.SetStep(6)

	_, applyErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: env, Origin: dispatcher.Remote })
	if ! errors.Is(applyErr, dispatcher.ErrReplicaOutOfStep) { t.Errorf("expected out of step error, got: %v", applyErr) }
	if storage.ToErrno(applyErr) != unix.EIO { t.Errorf("expected EIO for the op in progress, got %d", storage.ToErrno(applyErr)) }

	t.Logf("actual role: %s, expected role: %s\n", f.dispatcher.Role(), group.Left)
	if f.dispatcher.Role() != group.Left { t.Errorf("actual role not equal to expected: actual(%s), expected(%s)\n", f.dispatcher.Role(), group.Left) }
	if len(f.caller.unregistered) != 2 { t.Errorf("expected unregister broadcast to both peers, got %v", f.caller.unregistered) }
	if len(f.events.critical) != 1 { t.Errorf("expected the node to be told about the critical error") }
	if readFile(t, f.storage, "/f") != "" { t.Errorf("an out of step envelope must not be applied") }
	if f.clock.Current() != 4 { t.Errorf("actual step not equal to expected: actual(%d), expected(%d)\n", f.clock.Current(), 4) }
	if f.storage.Locks.Held() != 0 { t.Errorf("locks must be released after a critical signal") }

	next := writeEnv("/f", 0, "x")
	next.SetStep(5)
	_, leftErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: next, Origin: dispatcher.Remote })
	if storage.ToErrno(leftErr) != unix.EROFS { t.Errorf("a node that left must refuse further ops, got %v", leftErr) }
}

func TestReadCacheForwards(t *testing.T) {
	f := setupDispatcher(t, group.ReadCache, 1, 2,
		group.Peer{ Conn: replicaB, Role: group.Master, Linked: true, Score: 10 },
		group.Peer{ Conn: replicaC, Role: group.Replica, Linked: true, Score: 50 },
	)

	down := map[group.Conn]bool{}
	f.caller.respond = func(conn group.Conn, env *operation.Envelope) (*operation.Result, error) {
		if down[conn] { return nil, fmt.Errorf("%w: %s", transport.ErrPeerUnreachable, conn) }
		return &operation.Result{ N: 2, Data: operation.Binary("v1") }, nil
	}

	readReq := func() *dispatcher.Request {
		return &dispatcher.Request{ Envelope: &operation.Envelope{ Op: operation.Read, Path: "/g", Length: 2 } }
	}

	res, readErr := f.dispatcher.DoReadOp(context.Background(), readReq())
	if readErr != nil { t.Fatalf("unexpected read error: %s", readErr.Error()) }
	if string(res.Data) != "v1" { t.Errorf("actual read not equal to expected: actual(%s), expected(%s)\n", string(res.Data), "v1") }
	if len(f.caller.dispatched[replicaB]) != 1 { t.Errorf("expected the master to be asked first") }

	_, writeErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/g", 0, "v2") })
	if storage.ToErrno(writeErr) != unix.EROFS { t.Errorf("expected read cache writes to be EROFS, got %v", writeErr) }

	down[replicaB] = true
	res, readErr = f.dispatcher.DoReadOp(context.Background(), readReq())
	if readErr != nil { t.Fatalf("unexpected read error after master loss: %s", readErr.Error()) }
	if len(f.caller.dispatched[replicaC]) != 1 { t.Errorf("expected the next active member to serve the read") }
	if len(f.events.dead) != 1 || f.events.dead[0] != replicaB { t.Errorf("expected the unreachable master to be reported dead") }

	down[replicaC] = true
	_, readErr = f.dispatcher.DoReadOp(context.Background(), readReq())
	errno := storage.ToErrno(readErr)
	t.Logf("actual errno: %d, expected errno: %d\n", errno, unix.EIO)
	if errno != unix.EIO { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", errno, unix.EIO) }
}

func TestCheckpointFailureLeavesGroup(t *testing.T) {
	checkpointErr := errors.New("disk full")
	wrap := func(clock *state.Clock) dispatcher.Clock { return &failingClock{ Clock: clock, err: checkpointErr } }

	f := setupDispatcherWithClock(t, group.Master, 1, 2, wrap, group.Peer{ Conn: replicaB, Role: group.Replica, Linked: true })

	_, writeErr := f.dispatcher.DoWriteOp(context.Background(), &dispatcher.Request{ Envelope: writeEnv("/f", 0, "hello") })
	errno := storage.ToErrno(writeErr)

	t.Logf("actual errno: %d, expected errno: %d\n", errno, unix.EIO)
	if errno != unix.EIO { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", errno, unix.EIO) }

	t.Logf("actual role: %s, expected role: %s\n", f.dispatcher.Role(), group.Left)
	if f.dispatcher.Role() != group.Left {
		t.Errorf("actual role not equal to expected: actual(%s), expected(%s)\n", f.dispatcher.Role(), group.Left)
	}

	if ! errors.Is(writeErr, dispatcher.ErrCheckpointFailed) || ! errors.Is(writeErr, checkpointErr) {
		t.Errorf("expected the checkpoint cause to be wrapped, got %v", writeErr)
	}

	f.events.mutex.Lock()
	critical := len(f.events.critical)
	f.events.mutex.Unlock()
	if critical != 1 { t.Errorf("actual critical signals not equal to expected: actual(%d), expected(%d)\n", critical, 1) }

	f.caller.mutex.Lock()
	unregistered := len(f.caller.unregistered)
	f.caller.mutex.Unlock()
	if unregistered != 1 { t.Errorf("expected the leaving node to unregister from its peer, got %d calls", unregistered) }
}
