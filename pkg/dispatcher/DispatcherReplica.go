package dispatcher

import "fmt"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"


//=========================================== Replica Writes


/*
	Replica Write:
		1.) an envelope without a step is refused with EROFS
		2.) take the sequence lock and the write locks
		3.) the step must be exactly current + 1, anything else means a missed or duplicated op and the node leaves
		4.) advance the clock and apply, binary payloads were unwrapped when the envelope was decoded
		5.) benign errnos are passed back as is, any other storage error is logged and reported as EIO
		6.) record the last operation, optionally sync, then checkpoint
*/

func (d *Dispatcher) replicaWrite(req *Request) (*operation.Result, error) {
	env := req.Envelope

	step, hasStep := env.Step()
	if ! hasStep { return nil, readOnly(env.Op) }

	d.seqMutex.Lock()
	defer d.seqMutex.Unlock()

	unlock := d.storage.Locks.LockAll(env.Paths())
	defer unlock()

	current := d.clock.Current()
	if step != current + 1 {
		outOfStep := fmt.Errorf("%w: expected step %d, received %d", ErrReplicaOutOfStep, current + 1, step)
		return nil, d.SignalCritical(outOfStep, fmt.Sprintf("replica received %s out of order", env.Op))
	}

	d.clock.AdvanceID()

	result, applyErr := d.apply(req, d.forceFsync)
	d.setLastOperation(env)

	var replyErr error
	if applyErr != nil {
		errno := storage.ToErrno(applyErr)
		if IsBenign(errno) {
			d.Log.Debug("step", step, string(env.Op), env.Path, "returned", errno.Error())
			replyErr = applyErr
		} else {
			d.Log.Error("step", step, string(env.Op), env.Path, "failed:", applyErr.Error())
			replyErr = opError(env.Op, unix.EIO, applyErr)
		}
	}

	checkpointErr := d.clock.CheckpointID()
	if checkpointErr != nil {
		return nil, d.SignalCritical(fmt.Errorf("%w: %w", ErrCheckpointFailed, checkpointErr), "checkpoint failed")
	}

	d.record(env)
	if replyErr != nil { return nil, replyErr }

	return result, nil
}
