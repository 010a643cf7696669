package node

import "context"
import "fmt"
import "net"
import "os"
import "path/filepath"
import "strconv"

import "github.com/google/uuid"

import "github.com/sirgallo/grsfs/pkg/config"
import "github.com/sirgallo/grsfs/pkg/connpool"
import "github.com/sirgallo/grsfs/pkg/dispatcher"
import "github.com/sirgallo/grsfs/pkg/election"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/kernel"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/state"
import "github.com/sirgallo/grsfs/pkg/storage"
import "github.com/sirgallo/grsfs/pkg/transport"
import "github.com/sirgallo/grsfs/pkg/utils"
import "github.com/sirgallo/grsfs/pkg/wal"
import "github.com/sirgallo/grsfs/pkg/watchdog"


//=========================================== Node


/*
	New Node:
		initialize every sub module for one process and link them together
			1.) storage root, clock checkpoint and journal, the journal is rewound to the checkpoint
			2.) score from disk stats unless overridden
			3.) the peer table with self in its initial role and the seeds from the connect list
			4.) transport: tls material, a pooled grpc client or the in process network
			5.) dispatcher, kernel facade, election and watchdog
*/

func New(opts NodeOpts) (*Node, error) {
	cfg := opts.Config
	if cfg == nil { cfg = config.Default() }

	validateErr := cfg.Validate()
	if validateErr != nil { return nil, validateErr }

	n := &Node{
		cfg: cfg,
		self: group.Conn{ Host: cfg.ServerAddress, Port: cfg.ServerPort },
		instanceID: uuid.NewString(),
		network: opts.Network,
		left: make(chan struct{}),
		Log: clog.NewCustomLog(NAME),
	}

	initErr := n.initState()
	if initErr != nil { return nil, initErr }

	n.score = n.InitStats()
	if opts.Score != nil { n.score = *opts.Score }

	n.group = group.NewGroup(group.Peer{
		Conn: n.self,
		Role: initialRole(cfg),
		Score: n.score,
		Step: n.clock.Current(),
		NeverParticipate: cfg.NeverParticipate,
		InstanceID: n.instanceID,
	})

	for _, seed := range cfg.InitialConnectList {
		n.group.Add(group.Peer{ Conn: group.Conn{ Host: seed.Host, Port: seed.Port }, Role: group.Replica, Recontact: true })
	}

	transportErr := n.initTransport()
	if transportErr != nil {
		n.wal.Close()
		return nil, transportErr
	}

	n.dispatcher = dispatcher.NewDispatcher(dispatcher.DispatcherOpts{
		MinCopies: cfg.MinCopies,
		MaxCopies: cfg.MaxCopies,
		ForceFsync: cfg.ForceFsyncAfterWrite,
		Timeout: cfg.NetworkTimeout,
		Storage: n.storage,
		Clock: n.clock,
		Group: n.group,
		Caller: n.client,
		Journal: n.wal,
		Events: n,
	})

	n.kernel = kernel.NewKernel(n.dispatcher)
	n.election = election.NewElectionService(election.ElectionServiceOpts{ Group: n.group, Caller: n.client, Node: n })
	n.watchdog = watchdog.NewWatchdog(watchdog.WatchdogOpts{ Node: n, Interval: cfg.Heartbeat })
	n.server = transport.NewServer(n)

	n.Log.Info("node", n.self.String(), "initialized as", n.Role().String(), "at step", n.clock.Current())
	return n, nil
}

/*
	Start:
		1.) serve the peer service, on a tcp listener or on the in process network
		2.) a singular node is done here
		3.) register with every seed, unreachable seeds are left dead for recontact
		4.) with no master known, a participating node runs an election, alone it elects itself
		5.) start the watchdog
*/

func (n *Node) Start(ctx context.Context) error {
	if ! n.started.CompareAndSwap(false, true) { return nil }

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	serveErr := n.serve()
	if serveErr != nil { return serveErr }

	if n.Role() == group.Singular {
		n.Log.Info("running singular, no replication")
		return nil
	}

	for _, seed := range n.group.EveryoneButMe() {
		registerErr := n.register(runCtx, seed.Conn)
		if registerErr != nil { n.Log.Warn("unable to register with seed", seed.Conn.String(), registerErr.Error()) }
	}

	_, hasMaster := n.group.Master()
	if ! hasMaster && n.Role().Participates() {
		_, electionErr := n.election.Run(runCtx)
		if electionErr != nil { n.Log.Warn("bring up election failed:", electionErr.Error()) }
	}

	n.watchdog.Start(runCtx)
	return nil
}

/*
	Stop
		shut down without telling anyone, peers see it as a dead process
*/

func (n *Node) Stop() {
	if ! n.started.CompareAndSwap(true, false) { return }

	n.watchdog.Stop()
	if n.cancel != nil { n.cancel() }

	if n.network != nil {
		n.network.Unregister(n.self)
	} else { n.server.Stop() }

	if n.pool != nil { n.pool.CloseAll() }

	closeErr := n.wal.Close()
	if closeErr != nil { n.Log.Warn("unable to close journal:", closeErr.Error()) }

	n.Log.Info("node", n.self.String(), "stopped")
}

func (n *Node) Kernel() *kernel.Kernel {
	return n.kernel
}

func (n *Node) Group() *group.Group {
	return n.group
}

func (n *Node) Role() group.Role {
	return n.group.Self().Role
}

func (n *Node) Conn() group.Conn {
	return n.self
}

func (n *Node) Clock() *state.Clock {
	return n.clock
}

func (n *Node) Storage() *storage.Passthrough {
	return n.storage
}

// Left is closed once the node has taken itself out of the group.
func (n *Node) Left() <-chan struct{} {
	return n.left
}

func (n *Node) initState() error {
	mkErr := os.MkdirAll(n.cfg.BackingStore, 0755)
	if mkErr != nil { return mkErr }

	pt, ptErr := storage.NewPassthrough(n.cfg.BackingStore)
	if ptErr != nil { return ptErr }

	for _, path := range []string{ n.cfg.BackingStoreState, n.cfg.JournalPath } {
		dirErr := os.MkdirAll(filepath.Dir(path), 0755)
		if dirErr != nil { return dirErr }
	}

	clock, clockErr := state.NewClock(n.cfg.BackingStoreState)
	if clockErr != nil { return clockErr }

	journal, walErr := wal.NewWAL(n.cfg.JournalPath, n.cfg.JournalSize)
	if walErr != nil { return walErr }

	truncErr := journal.TruncateAfter(clock.Checkpointed())
	if truncErr != nil {
		journal.Close()
		return truncErr
	}

	n.storage = pt
	n.clock = clock
	n.wal = journal
	return nil
}

func (n *Node) initTransport() error {
	serverCreds, clientCreds, credsErr := transport.LoadCredentials(n.cfg.Key, n.cfg.Cert, n.cfg.CACert)
	if credsErr != nil { return credsErr }

	n.serverCreds = serverCreds

	if n.network != nil {
		n.client = transport.NewClient(n.network, n.cfg.NetworkTimeout)
		return nil
	}

	n.pool = connpool.NewConnectionPool(connpool.ConnectionPoolOpts{
		MaxConn: n.cfg.MaxConn,
		Creds: clientCreds,
		DialTimeout: n.cfg.NetworkTimeout,
	})

	n.client = transport.NewClient(&transport.GRPCInvoker{ Pool: n.pool }, n.cfg.NetworkTimeout)
	return nil
}

func (n *Node) serve() error {
	if n.network != nil {
		n.network.Register(n.self, n.server)
		return nil
	}

	listenAddr := net.JoinHostPort("", strconv.Itoa(n.cfg.ServerPort))
	listener, listenErr := net.Listen("tcp", listenAddr)
	if listenErr != nil { return fmt.Errorf("unable to listen on %s: %w", utils.NormalizePort(n.cfg.ServerPort), listenErr) }

	go func() {
		serveErr := n.server.Serve(listener, n.serverCreds)
		if serveErr != nil { n.Log.Error("peer service stopped:", serveErr.Error()) }
	}()

	return nil
}

/*
	initial role
		singular without mincopies, read cache when never participating, spare when asked, otherwise replica
*/

func initialRole(cfg *config.Config) group.Role {
	switch {
		case cfg.MinCopies == 0:
			return group.Singular
		case cfg.NeverParticipate:
			return group.ReadCache
		case cfg.Spare:
			return group.Spare
		default:
			return group.Replica
	}
}
