package node

import "context"
import "time"

import "github.com/sirgallo/grsfs/pkg/election"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/transport"
import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== Node Membership


func (n *Node) Identify() group.Identification {
	self := n.group.Self()

	return group.Identification{
		Conn: n.self,
		CurrentStep: n.clock.Current(),
		Score: n.score,
		NeverParticipate: n.cfg.NeverParticipate,
		Spare: self.Role == group.Spare,
		Role: self.Role,
		InstanceID: n.instanceID,
	}
}

// Connect registers with conn, the watchdog uses it to link unconnected and recontactable peers.
func (n *Node) Connect(ctx context.Context, conn group.Conn) error {
	return n.register(ctx, conn)
}

func (n *Node) Ping(ctx context.Context, conn group.Conn) (string, error) {
	return n.client.Ping(ctx, conn, n.self)
}

/*
	Handle Dead Peer
		mark the peer dead and drop its link, losing the master (or being asked to) schedules an election
*/

func (n *Node) HandleDeadPeer(conn group.Conn, forceElection bool) {
	wasMaster, ok := n.group.MarkDead(conn)
	if ! ok { return }

	n.closeLink(conn)
	n.Log.Warn("peer", conn.String(), "declared dead")
	if wasMaster || forceElection { n.electionPending.Store(true) }
}

func (n *Node) OnCritical(err error) {
	n.criticalMutex.Lock()
	defer n.criticalMutex.Unlock()

	if n.criticalErr != nil { return }

	n.criticalErr = err
	close(n.left)
}

func (n *Node) Critical() error {
	n.criticalMutex.Lock()
	defer n.criticalMutex.Unlock()

	return n.criticalErr
}

func (n *Node) ElectionPending() bool {
	return n.electionPending.Load()
}

func (n *Node) RequestElection() {
	n.electionPending.Store(true)
}

/*
	Run Election
		clears the pending flag first, a singular node has nobody to elect against
*/

func (n *Node) RunElection(ctx context.Context) error {
	n.electionPending.Store(false)

	role := n.Role()
	if role == group.Singular { return nil }
	if ! role.Participates() || n.cfg.NeverParticipate { return election.ErrNotParticipating }

	_, electionErr := n.election.Run(ctx)
	return electionErr
}

/*
	Apply Election:
		1.) every assigned peer takes its role, peers we never heard of are added unlinked
		2.) the master's step is the winning step
		3.) self takes its assignment last, a participant left out of the result falls back to upgrading
*/

func (n *Node) ApplyElection(result group.ElectionResult) {
	if n.Role() == group.Left { return }

	selfRole, assigned := n.Role(), false
	for _, assignment := range result.Assignments {
		if assignment.Conn == n.self {
			selfRole, assigned = assignment.Role, true
			continue
		}

		known := n.group.Update(assignment.Conn, func(peer *group.Peer) {
			peer.Role = assignment.Role
			if assignment.Role == group.Master { peer.Step = result.Step }
		})

		if ! known { n.group.Add(group.Peer{ Conn: assignment.Conn, Role: assignment.Role }) }
	}

	if ! assigned && selfRole.Participates() && selfRole != group.Singular && result.Master != n.self {
		selfRole = group.Upgrading
	}

	n.dispatcher.SetRole(selfRole)
	n.Log.Info("applied election from", result.Initiator.String(), "master is", result.Master.String())
}

/*
	Promote Spare
		a spare moves to upgrading and registers with the master again, catch up follows on the watchdog
*/

func (n *Node) PromoteSpare(ctx context.Context) error {
	if n.Role() != group.Spare { return ErrNotSpare }

	master, hasMaster := n.group.Master()
	if ! hasMaster { return ErrNoMaster }

	n.dispatcher.SetRole(group.Upgrading)
	return n.register(ctx, master.Conn)
}

/*
	Register:
		1.) send our identification to conn
		2.) the responder is linked, its view of the group is merged in
		3.) an authoritative reply (from the master) sets our role
		4.) two masters meeting schedule an election
*/

func (n *Node) register(ctx context.Context, conn group.Conn) error {
	if conn == n.self { return ErrSelfRegister }

	reply, registerErr := n.client.NodeRegister(ctx, conn, n.Identify())
	if registerErr != nil { return registerErr }

	responder := reply.Responder
	bothMasters := n.Role() == group.Master && responder.Role == group.Master

	if reply.Authoritative && n.Role() != group.Left { n.dispatcher.SetRole(reply.AssignedRole) }

	n.upsertPeer(responder, responder.Role)
	bothMasters = n.mergeView(reply.Group) || bothMasters

	if bothMasters {
		n.Log.Warn("met another master at", conn.String(), "requesting election")
		n.RequestElection()
	}

	n.Log.Debug("registered with", conn.String(), "as", n.Role().String())
	return nil
}

/*
	Assign Role
		the master decides what a registering peer becomes, called under the write barrier so the steps are stable
*/

func (n *Node) assignRole(id group.Identification) group.Role {
	current := n.clock.Current()

	switch {
		case id.NeverParticipate:
			return group.ReadCache
		case id.Spare || id.Role == group.Spare:
			return group.Spare
		case id.CurrentStep == current:
			return group.Replica
		case id.CurrentStep > current:
			n.Log.Warn("peer", id.Conn.String(), "is ahead of the master at step", id.CurrentStep, "requesting election")
			n.RequestElection()
			return group.Upgrading
		default:
			return group.Upgrading
	}
}

/*
	Upsert Peer
		add or refresh a peer we just heard from directly, returns whether it was new
*/

func (n *Node) upsertPeer(id group.Identification, role group.Role) bool {
	now := time.Now()

	added, _ := n.group.Add(group.Peer{
		Conn: id.Conn,
		Role: role,
		Score: id.Score,
		Step: id.CurrentStep,
		Linked: true,
		LastSeen: now,
		NeverParticipate: id.NeverParticipate,
		InstanceID: id.InstanceID,
	})

	if added { return true }

	n.group.Update(id.Conn, func(peer *group.Peer) {
		if peer.InstanceID != "" && peer.InstanceID != id.InstanceID { n.Log.Info("peer", id.Conn.String(), "restarted") }

		peer.Role = role
		peer.Score = id.Score
		peer.Step = id.CurrentStep
		peer.Linked = true
		peer.Dead = false
		peer.LastSeen = now
		peer.NeverParticipate = id.NeverParticipate
		peer.InstanceID = id.InstanceID
	})

	return false
}

/*
	Merge View
		unknown live peers are added unlinked for the watchdog to connect
		a master in the view while we are master is kept as a replica, the return value asks for an election
*/

func (n *Node) mergeView(views []group.PeerView) bool {
	conflict := false

	for _, view := range views {
		if view.Conn == n.self || view.Dead { continue }
		if _, known := n.group.Find(view.Conn); known { continue }

		role := view.Role
		if role == group.Master && n.Role() == group.Master {
			role = group.Replica
			conflict = true
		}

		n.group.Add(group.Peer{ Conn: view.Conn, Role: role, Score: view.Score, Step: view.Step })
	}

	return conflict
}

/*
	Reconcile:
		1.) a non master fetches the master's view
		2.) a view that lost us, shows us dead, or gives us another role means the master declared us dead at some
			point, register again so the master assigns upgrading and catch up brings us forward
		3.) otherwise merge the view when the peer sets differ
*/

func (n *Node) Reconcile(ctx context.Context) error {
	role := n.Role()
	if role == group.Master || role == group.Singular || role == group.Left { return nil }

	master, hasMaster := n.group.Master()
	if ! hasMaster { return nil }

	views, groupErr := n.client.GetGroup(ctx, master.Conn)
	if groupErr != nil { return groupErr }

	if ! n.listedAs(views, role) {
		n.Log.Warn("master", master.Conn.String(), "does not list us as", role.String(), "registering again")
		return n.register(ctx, master.Conn)
	}

	remote := utils.Map[group.PeerView, group.Conn](views, func(view group.PeerView) group.Conn { return view.Conn })
	if n.group.Compare(remote) { return nil }

	n.Log.Debug("group view differs from master", master.Conn.String(), "local:", n.group.ConnInfoAll())
	n.mergeView(views)

	return nil
}

func (n *Node) listedAs(views []group.PeerView, role group.Role) bool {
	for _, view := range views {
		if view.Conn == n.self { return ! view.Dead && view.Role == role }
	}

	return false
}

func (n *Node) closeLink(conn group.Conn) {
	closeErr := n.client.CloseLink(conn)
	if closeErr != nil && ! transport.IsUnreachable(closeErr) { n.Log.Debug("closing link to", conn.String(), closeErr.Error()) }
}
