package dispatcher

import "fmt"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/operation"


func (e *OpError) Error() string {
	if e.Err == nil { return fmt.Sprintf("%s: %s", e.Op, e.Errno.Error()) }
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Errno.Error(), e.Err.Error())
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) ErrnoValue() unix.Errno {
	return e.Errno
}

func opError(op operation.Op, errno unix.Errno, err error) *OpError {
	return &OpError{ Op: op, Errno: errno, Err: err }
}

func readOnly(op operation.Op) *OpError {
	return opError(op, unix.EROFS, ErrReadOnly)
}

// IsBenign reports whether an errno is an ordinary outcome rather than a storage fault.
func IsBenign(errno unix.Errno) bool {
	return benignErrnos[errno]
}

func (d *Dispatcher) setLastOperation(env *operation.Envelope) {
	d.lastMutex.Lock()
	defer d.lastMutex.Unlock()

	d.lastOperation = env.Clone()
}

/*
	record
		journal a checkpointed step, a journal failure is logged but the step already happened
*/

func (d *Dispatcher) record(env *operation.Envelope) {
	d.setLastOperation(env)
	if d.journal == nil { return }

	appendErr := d.journal.Append(env)
	if appendErr != nil { d.Log.Warn("unable to journal step", env.Internal[operation.InternalStep], appendErr.Error()) }
}
