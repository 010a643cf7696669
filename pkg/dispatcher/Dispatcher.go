package dispatcher

import "context"
import "fmt"
import "sync"
import "time"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/operation"


//=========================================== Dispatcher


const DefaultTimeout = 5 * time.Second


/*
	one dispatcher per node, the role held by the self peer selects the path for every op:
		singular		--> local reads and writes, no replication
		master		--> local reads, writes replicated to the active members before the local apply
		replica		--> applies ordered writes from the master, local reads refused
		read cache	--> reads forwarded to the master or an active member, writes refused
	upgrading, spare and left nodes refuse everything except catch up replay
*/

func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	timeout := opts.Timeout
	if timeout <= 0 { timeout = DefaultTimeout }

	return &Dispatcher{
		minCopies: opts.MinCopies,
		maxCopies: opts.MaxCopies,
		forceFsync: opts.ForceFsync,
		timeout: timeout,
		storage: opts.Storage,
		clock: opts.Clock,
		group: opts.Group,
		caller: opts.Caller,
		journal: opts.Journal,
		events: opts.Events,
		Log: clog.NewCustomLog(NAME),
	}
}

func (d *Dispatcher) Role() group.Role {
	return d.group.Self().Role
}

func (d *Dispatcher) SetRole(role group.Role) {
	previous := d.Role()
	if previous == role { return }

	d.group.SetRole(d.group.SelfConn(), role)
	d.Log.Info("role transition:", previous.String(), "-->", role.String())
}

/*
	Do Read Op
		close is local bookkeeping and always allowed, every other read is routed by role
*/

func (d *Dispatcher) DoReadOp(ctx context.Context, req *Request) (*operation.Result, error) {
	env := req.Envelope
	if env.Op == operation.Close { return d.apply(req, false) }

	switch d.Role() {
		case group.Singular, group.Master:
			return d.readLocal(req)
		case group.Replica:
			if req.Origin == Local { return nil, readOnly(env.Op) }
			return d.readLocal(req)
		case group.ReadCache:
			return d.forwardRead(ctx, req)
		default:
			return nil, readOnly(env.Op)
	}
}

/*
	Do Write Op
		writes only enter through the master or singular locally, and through a replica remotely
*/

func (d *Dispatcher) DoWriteOp(ctx context.Context, req *Request) (*operation.Result, error) {
	role := d.Role()
	switch {
		case role == group.Singular && req.Origin == Local:
			return d.singularWrite(req)
		case role == group.Master && req.Origin == Local:
			return d.masterWrite(req)
		case role == group.Replica && req.Origin == Remote:
			return d.replicaWrite(req)
		default:
			return nil, readOnly(req.Envelope.Op)
	}
}

/*
	Apply Catch Up
		replay a journal entry fetched from the master through the replica path, only while upgrading
*/

func (d *Dispatcher) ApplyCatchUp(env *operation.Envelope) error {
	if d.Role() != group.Upgrading { return readOnly(env.Op) }

	_, applyErr := d.replicaWrite(&Request{ Envelope: env, Origin: Remote })
	return applyErr
}

/*
	With Write Barrier
		run fn with no write in flight, membership decisions that compare steps use this
*/

func (d *Dispatcher) WithWriteBarrier(fn func()) {
	d.seqMutex.Lock()
	defer d.seqMutex.Unlock()

	fn()
}

func (d *Dispatcher) LastOperation() *operation.Envelope {
	d.lastMutex.Lock()
	defer d.lastMutex.Unlock()

	if d.lastOperation == nil { return nil }
	return d.lastOperation.Clone()
}

func (d *Dispatcher) CanReplicate() bool {
	return d.group.CanReplicate(d.minCopies, d.maxCopies)
}

/*
	Signal Critical:
		the node can no longer be trusted to hold a consistent copy
			1.) leave the group locally, every op is refused from here on
			2.) broadcast node_unregister(self) to every known peer in parallel
			3.) hand the cause to the owning node and return an EIO error for the op in progress
		callers hold their locks through defer, so returning releases them
*/

func (d *Dispatcher) SignalCritical(cause error, msg string) error {
	d.Log.Error("critical:", msg, cause.Error())
	d.SetRole(group.Left)

	self := d.group.SelfConn()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var unregisterWG sync.WaitGroup
	for _, peer := range d.group.EveryoneButMe() {
		if peer.Dead { continue }

		unregisterWG.Add(1)
		go func(conn group.Conn) {
			defer unregisterWG.Done()

			unregisterErr := d.caller.NodeUnregister(ctx, conn, self)
			if unregisterErr != nil { d.Log.Warn("unable to unregister from", conn.String(), unregisterErr.Error()) }
		}(peer.Conn)
	}

	unregisterWG.Wait()

	ejected := fmt.Errorf("%w: %s: %w", ErrNodeEjected, msg, cause)
	if d.events != nil { d.events.OnCritical(ejected) }

	return opError("", unix.EIO, ejected)
}

func (d *Dispatcher) readLocal(req *Request) (*operation.Result, error) {
	unlock := d.storage.Locks.RLockAll(req.Envelope.Paths())
	defer unlock()

	return d.apply(req, false)
}
