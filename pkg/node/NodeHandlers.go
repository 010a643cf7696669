package node

import "context"

import "github.com/sirgallo/grsfs/pkg/dispatcher"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/transport"


//=========================================== Node Peer Handlers


func (n *Node) HandleDispatch(ctx context.Context, env *operation.Envelope) (*operation.Result, error) {
	req := &dispatcher.Request{ Envelope: env, Origin: dispatcher.Remote }
	if env.IsWrite() { return n.dispatcher.DoWriteOp(ctx, req) }

	return n.dispatcher.DoReadOp(ctx, req)
}

/*
	Handle Register:
		1.) registering is idempotent, the caller is added or refreshed and linked
		2.) a master assigns the caller's role under the write barrier and says so with Authoritative
		3.) anyone else records the role the caller declared
		4.) the reply carries our identification, the master we know and our view of the group
*/

func (n *Node) HandleRegister(ctx context.Context, id group.Identification) (*transport.RegisterReply, error) {
	if id.Conn == n.self { return nil, ErrSelfRegister }
	if n.Role() == group.Left { return nil, ErrLeft }

	reply := &transport.RegisterReply{ AssignedRole: id.Role }

	if n.Role() == group.Master {
		n.dispatcher.WithWriteBarrier(func() {
			reply.AssignedRole = n.assignRole(id)
			reply.Authoritative = true
			reply.Added = n.upsertPeer(id, reply.AssignedRole)
		})
	} else { reply.Added = n.upsertPeer(id, id.Role) }

	if reply.Added { n.Log.Info("peer", id.Conn.String(), "joined as", reply.AssignedRole.String()) }

	reply.Responder = n.Identify()
	reply.Group = n.group.Views()

	if master, hasMaster := n.group.Master(); hasMaster {
		masterConn := master.Conn
		reply.Master = &masterConn
	}

	return reply, nil
}

/*
	Handle Unregister
		the peer is forgotten, losing the master schedules an election
*/

func (n *Node) HandleUnregister(ctx context.Context, conn group.Conn) error {
	peer, known := n.group.Find(conn)
	if ! known || peer.IsSelf { return nil }

	n.group.Remove(conn)
	n.closeLink(conn)

	n.Log.Info("peer", conn.String(), "left the group")
	if peer.Role == group.Master { n.RequestElection() }

	return nil
}

/*
	Handle Ping
		a peer we do not know, or think is dead, gets LOST so it registers again
*/

func (n *Node) HandlePing(ctx context.Context, from group.Conn) (string, error) {
	if n.Role() == group.Left { return "", ErrLeft }

	peer, known := n.group.Find(from)
	if ! known || peer.Dead { return transport.PingLost, nil }

	n.group.Touch(from)
	return transport.PingOK, nil
}

func (n *Node) HandleGetGroup(ctx context.Context) ([]group.PeerView, error) {
	return n.group.Views(), nil
}

func (n *Node) HandleGetIdentification(ctx context.Context) (group.Identification, error) {
	return n.Identify(), nil
}

/*
	Handle Get Journal
		entries from..to, Complete only when every step in the range is present in order
		an empty range is trivially complete
*/

func (n *Node) HandleGetJournal(ctx context.Context, from uint64, to uint64) (*transport.JournalReply, error) {
	reply := &transport.JournalReply{ Through: n.clock.Checkpointed() }
	if from > to {
		reply.Complete = true
		return reply, nil
	}

	entries, rangeErr := n.wal.GetRange(from, to)
	if rangeErr != nil { return nil, rangeErr }

	reply.Entries = entries
	reply.Complete = contiguous(entries, from, to)

	return reply, nil
}

func (n *Node) HandleElectionFinished(ctx context.Context, result group.ElectionResult) error {
	if n.Role() == group.Left { return ErrLeft }

	n.ApplyElection(result)
	return nil
}

func contiguous(entries []*operation.Envelope, from uint64, to uint64) bool {
	if uint64(len(entries)) != to - from + 1 { return false }

	for idx, env := range entries {
		step, ok := env.Step()
		if ! ok || step != from + uint64(idx) { return false }
	}

	return true
}
