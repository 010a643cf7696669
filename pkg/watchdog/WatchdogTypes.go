package watchdog

import "context"
import "sync"
import "time"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"


/*
	Node
		what the watchdog drives on its owner each tick
*/

type Node interface {
	Group() *group.Group
	Role() group.Role
	Connect(ctx context.Context, conn group.Conn) error
	Ping(ctx context.Context, conn group.Conn) (string, error)
	HandleDeadPeer(conn group.Conn, forceElection bool)
	Reconcile(ctx context.Context) error
	ElectionPending() bool
	RunElection(ctx context.Context) error
	CatchUp(ctx context.Context) error
}

type WatchdogOpts struct {
	Node Node
	Interval time.Duration
	MaxMissed int
}

type Watchdog struct {
	node Node
	interval time.Duration
	maxMissed int

	mutex sync.Mutex
	missed map[group.Conn]int
	cancel context.CancelFunc
	done chan struct{}

	Log *clog.CustomLog
}


const NAME = "Watchdog"
const DefaultMaxMissed = 3
const DefaultInterval = time.Second
