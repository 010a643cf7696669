package dispatcher

import "context"
import "fmt"
import "sync"
import "sync/atomic"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"
import "github.com/sirgallo/grsfs/pkg/transport"


//=========================================== Singular + Master Writes


/*
	Singular Write
		no peers to wait for, the step is still assigned and checkpointed so the clock stays meaningful
*/

func (d *Dispatcher) singularWrite(req *Request) (*operation.Result, error) {
	d.seqMutex.Lock()
	defer d.seqMutex.Unlock()

	unlock := d.storage.Locks.LockAll(req.Envelope.Paths())
	defer unlock()

	step := d.clock.AdvanceID()
	req.Envelope.SetStep(step)

	return d.commitLocal(req)
}

/*
	Master Write:
		1.) take the sequence lock and the write locks for every path the op touches
		2.) refuse with EROFS when the replication gate is closed or fewer than mincopies replicas are active
		3.) allocate the next step and attach it to the envelope
		4.) send the envelope to every active member in parallel, an unreachable member is handed to dead peer handling
		5.) with fewer than mincopies + 1 deliveries counting self, fail with EIO and leave storage untouched
		6.) apply locally, checkpoint, journal and optionally sync
	locks are released on every return path, including a critical signal
*/

func (d *Dispatcher) masterWrite(req *Request) (*operation.Result, error) {
	env := req.Envelope

	d.seqMutex.Lock()
	defer d.seqMutex.Unlock()

	unlock := d.storage.Locks.LockAll(env.Paths())
	defer unlock()

	members := d.group.ActiveMembers()
	if ! d.CanReplicate() || len(members) < d.minCopies {
		d.Log.Warn("refusing", string(env.Op), "with", len(members), "active replicas, mincopies is", d.minCopies)
		return nil, readOnly(env.Op)
	}

	step := d.clock.AdvanceID()
	env.SetStep(step)

	delivered := 1 + d.replicate(env, members)
	if delivered < d.minCopies + 1 {
		d.Log.Error("step", step, "reached", delivered, "copies, need", d.minCopies + 1)
		return nil, opError(env.Op, unix.EIO, fmt.Errorf("%w: step %d", ErrReplicationFailed, step))
	}

	return d.commitLocal(req)
}

/*
	commit local
		apply the stepped envelope, a storage fault that is not a benign errno takes the node out of the group
*/

func (d *Dispatcher) commitLocal(req *Request) (*operation.Result, error) {
	env := req.Envelope

	result, applyErr := d.apply(req, d.forceFsync)
	if applyErr != nil {
		errno := storage.ToErrno(applyErr)
		if ! IsBenign(errno) { return nil, d.SignalCritical(applyErr, fmt.Sprintf("local apply of %s failed", env.Op)) }

		d.Log.Debug(string(env.Op), env.Path, "returned", errno.Error())
	}

	checkpointErr := d.clock.CheckpointID()
	if checkpointErr != nil {
		return nil, d.SignalCritical(fmt.Errorf("%w: %w", ErrCheckpointFailed, checkpointErr), "checkpoint failed")
	}

	d.record(env)
	if applyErr != nil { return result, applyErr }

	return result, nil
}

/*
	replicate:
		deliveries are counted per member:
			a reply, or a benign errno fault, means the member applied the step the same way we will
			an unreachable member is marked dead
			any other fault is a failed delivery, the member decides for itself whether to leave
*/

func (d *Dispatcher) replicate(env *operation.Envelope, members []group.Peer) int {
	var delivered int64
	var replicateWG sync.WaitGroup

	for _, member := range members {
		replicateWG.Add(1)
		go func(conn group.Conn) {
			defer replicateWG.Done()

			_, sendErr := d.caller.Dispatch(context.Background(), conn, env.Clone())
			switch {
				case sendErr == nil:
					atomic.AddInt64(&delivered, 1)
				case transport.IsUnreachable(sendErr):
					d.Log.Warn("replica", conn.String(), "unreachable:", sendErr.Error())
					if d.events != nil { d.events.HandleDeadPeer(conn, false) }
				case IsBenign(storage.ToErrno(sendErr)):
					atomic.AddInt64(&delivered, 1)
				default:
					d.Log.Error("replica", conn.String(), "failed step", env.Internal[operation.InternalStep], sendErr.Error())
			}
		}(member.Conn)
	}

	replicateWG.Wait()
	return int(delivered)
}
