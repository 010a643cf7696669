package dispatcher

import "context"
import "errors"
import "sync"
import "time"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/storage"


type Origin int

const (
	Local Origin = iota
	Remote
)

type Clock interface {
	AdvanceID() uint64
	CheckpointID() error
	Current() uint64
	Checkpointed() uint64
}

// Caller is the slice of the peer client the dispatcher needs.
type Caller interface {
	Dispatch(ctx context.Context, conn group.Conn, env *operation.Envelope) (*operation.Result, error)
	NodeUnregister(ctx context.Context, conn group.Conn, peer group.Conn) error
}

type Journal interface {
	Append(env *operation.Envelope) error
}

/*
	Events
		callbacks into the owning node, HandleDeadPeer must not block on the dispatcher
*/

type Events interface {
	HandleDeadPeer(conn group.Conn, forceElection bool)
	OnCritical(err error)
}

type DispatcherOpts struct {
	MinCopies int
	MaxCopies int
	ForceFsync bool
	Timeout time.Duration

	Storage *storage.Passthrough
	Clock Clock
	Group *group.Group
	Caller Caller
	Journal Journal
	Events Events
}

/*
	Request
		one filesystem operation entering the dispatcher
		Handle is only set for operations on a file opened on this node
*/

type Request struct {
	Envelope *operation.Envelope
	Handle *storage.Handle
	Origin Origin
}

type Dispatcher struct {
	minCopies int
	maxCopies int
	forceFsync bool
	timeout time.Duration

	storage *storage.Passthrough
	clock Clock
	group *group.Group
	caller Caller
	journal Journal
	events Events

	seqMutex sync.Mutex
	lastMutex sync.Mutex
	lastOperation *operation.Envelope

	Log *clog.CustomLog
}

type OpError struct {
	Op operation.Op
	Errno unix.Errno
	Err error
}


const NAME = "Dispatcher"

var ErrReplicaOutOfStep = errors.New("replica out of step")
var ErrCheckpointFailed = errors.New("unable to checkpoint clock")
var ErrNodeEjected = errors.New("node ejected from group")
var ErrReadOnly = errors.New("read only in current role")
var ErrReplicationFailed = errors.New("replication did not reach enough peers")
var ErrNoReadPeer = errors.New("no live peer to serve read")

/*
	benign errnos
		expected outcomes of a well formed op against a namespace, identical on every node
*/

var benignErrnos = map[unix.Errno]bool{
	unix.ENOENT: true,
	unix.EPERM: true,
	unix.EEXIST: true,
	unix.ENOTEMPTY: true,
	unix.ENOTDIR: true,
	unix.EISDIR: true,
	unix.EACCES: true,
	unix.EINVAL: true,
	unix.EBADF: true,
	unix.ENAMETOOLONG: true,
	unix.ELOOP: true,
	unix.EXDEV: true,
}
