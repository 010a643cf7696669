package watchdog

import "context"
import "time"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/transport"


//=========================================== Watchdog


func NewWatchdog(opts WatchdogOpts) *Watchdog {
	interval := opts.Interval
	if interval <= 0 { interval = DefaultInterval }

	maxMissed := opts.MaxMissed
	if maxMissed <= 0 { maxMissed = DefaultMaxMissed }

	return &Watchdog{
		node: opts.Node,
		interval: interval,
		maxMissed: maxMissed,
		missed: make(map[group.Conn]int),
		Log: clog.NewCustomLog(NAME),
	}
}

/*
	Start
		tick every interval until Stop or the parent context ends
*/

func (w *Watchdog) Start(ctx context.Context) {
	w.mutex.Lock()
	if w.cancel != nil {
		w.mutex.Unlock()
		return
	}

	tickCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mutex.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
				case <- tickCtx.Done():
					return
				case <- ticker.C:
					w.Tick(tickCtx)
			}
		}
	}()
}

func (w *Watchdog) Stop() {
	w.mutex.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mutex.Unlock()

	if cancel == nil { return }

	cancel()
	<- done
}

/*
	Tick:
		1.) drop dead peers that are not marked for recontact
		2.) connect every peer we know of but have no link to, an unreachable one is handed to dead peer handling
		3.) ping the watchee, after maxMissed consecutive failures it is declared dead,
			a LOST reply means the watchee forgot us and we register again
		4.) reconcile our view of the group with the master's
		5.) retry dead peers marked for recontact, a successful connect revives them
		6.) run an election if one is pending
		7.) an upgrading node tries to catch up with the master
*/

func (w *Watchdog) Tick(ctx context.Context) {
	g := w.node.Group()

	for _, purged := range g.PurgeDead() {
		w.Log.Info("purged dead peer", purged.String())
		w.resetMissed(purged)
	}

	if w.node.Role() == group.Left { return }

	for _, peer := range g.Unconnected() {
		connectErr := w.node.Connect(ctx, peer.Conn)
		if connectErr != nil && transport.IsUnreachable(connectErr) {
			w.Log.Warn("unable to connect to", peer.Conn.String())
			w.node.HandleDeadPeer(peer.Conn, false)
		}
	}

	w.heartbeat(ctx, g)

	reconcileErr := w.node.Reconcile(ctx)
	if reconcileErr != nil { w.Log.Debug("unable to reconcile group view:", reconcileErr.Error()) }

	for _, peer := range g.Recontactable() {
		if w.node.Connect(ctx, peer.Conn) == nil { w.Log.Info("recontacted", peer.Conn.String()) }
	}

	if w.node.ElectionPending() {
		electionErr := w.node.RunElection(ctx)
		if electionErr != nil { w.Log.Debug("pending election did not run:", electionErr.Error()) }
	}

	if w.node.Role() == group.Upgrading {
		catchUpErr := w.node.CatchUp(ctx)
		if catchUpErr != nil { w.Log.Warn("catch up incomplete:", catchUpErr.Error()) }
	}
}

func (w *Watchdog) Missed(conn group.Conn) int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.missed[conn]
}

func (w *Watchdog) heartbeat(ctx context.Context, g *group.Group) {
	watchee, ok := g.Watchee()
	if ! ok { return }

	pingStatus, pingErr := w.node.Ping(ctx, watchee.Conn)
	if pingErr != nil {
		missed := w.incrementMissed(watchee.Conn)
		w.Log.Debug("missed heartbeat", missed, "from", watchee.Conn.String())

		if missed >= w.maxMissed {
			w.Log.Warn("watchee", watchee.Conn.String(), "missed", missed, "heartbeats, declaring dead")
			w.resetMissed(watchee.Conn)
			w.node.HandleDeadPeer(watchee.Conn, false)
		}

		return
	}

	w.resetMissed(watchee.Conn)
	if pingStatus == transport.PingLost {
		w.Log.Info("watchee", watchee.Conn.String(), "lost track of us, registering again")
		w.node.Connect(ctx, watchee.Conn)
	}
}

func (w *Watchdog) incrementMissed(conn group.Conn) int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.missed[conn]++
	return w.missed[conn]
}

func (w *Watchdog) resetMissed(conn group.Conn) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	delete(w.missed, conn)
}
