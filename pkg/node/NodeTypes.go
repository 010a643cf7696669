package node

import "context"
import "errors"
import "sync"
import "sync/atomic"

import "google.golang.org/grpc/credentials"

import "github.com/sirgallo/grsfs/pkg/config"
import "github.com/sirgallo/grsfs/pkg/connpool"
import "github.com/sirgallo/grsfs/pkg/dispatcher"
import "github.com/sirgallo/grsfs/pkg/election"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/kernel"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/state"
import "github.com/sirgallo/grsfs/pkg/storage"
import "github.com/sirgallo/grsfs/pkg/transport"
import "github.com/sirgallo/grsfs/pkg/wal"
import "github.com/sirgallo/grsfs/pkg/watchdog"


/*
	Node Opts
		Network runs the node on an in process network instead of a grpc listener
		Score overrides the disk derived election score
*/

type NodeOpts struct {
	Config *config.Config
	Network *transport.LocalNetwork
	Score *int64
}

type Node struct {
	cfg *config.Config
	self group.Conn
	instanceID string
	score int64

	clock *state.Clock
	wal *wal.WAL
	storage *storage.Passthrough
	group *group.Group

	client *transport.Client
	pool *connpool.ConnectionPool
	server *transport.Server
	network *transport.LocalNetwork
	serverCreds credentials.TransportCredentials

	dispatcher *dispatcher.Dispatcher
	kernel *kernel.Kernel
	election *election.ElectionService
	watchdog *watchdog.Watchdog

	electionPending atomic.Bool
	started atomic.Bool

	criticalMutex sync.Mutex
	criticalErr error
	left chan struct{}

	cancel context.CancelFunc

	Log *clog.CustomLog
}

type Status struct {
	Conn group.Conn `json:"conn"`
	InstanceID string `json:"instanceId"`
	Role string `json:"role"`
	Step uint64 `json:"step"`
	Checkpoint uint64 `json:"checkpoint"`
	Score int64 `json:"score"`
	CanReplicate bool `json:"canReplicate"`
	ActiveGroupSize int `json:"activeGroupSize"`
	Spares int `json:"spares"`
	JournalEntries int `json:"journalEntries"`
	Master *group.Conn `json:"master,omitempty"`
	Group []group.PeerView `json:"group"`
	LastOperation *operation.Envelope `json:"lastOperation,omitempty"`
	Critical string `json:"critical,omitempty"`
}


const NAME = "Node"

var ErrNoMaster = errors.New("no master known")
var ErrSnapshotRequired = errors.New("journal does not cover the gap, snapshot required")
var ErrNotSpare = errors.New("node is not a spare")
var ErrSelfRegister = errors.New("peer registered with our own connection")
var ErrLeft = errors.New("node has left the group")
