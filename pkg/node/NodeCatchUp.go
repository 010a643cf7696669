package node

import "context"
import "fmt"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/transport"


//=========================================== Node Catch Up


/*
	Catch Up:
		only while upgrading
			1.) ask the master where it is
			2.) behind: fetch the missing journal range and replay it in step order,
				a range the master no longer holds needs a snapshot
			3.) ahead: the master is stale, ask for an election
			4.) register with the master again, equal steps make us a replica
*/

func (n *Node) CatchUp(ctx context.Context) error {
	if n.Role() != group.Upgrading { return nil }

	master, hasMaster := n.group.Master()
	if ! hasMaster { return ErrNoMaster }

	id, identErr := n.client.GetIdentification(ctx, master.Conn)
	if identErr != nil {
		if transport.IsUnreachable(identErr) { n.HandleDeadPeer(master.Conn, true) }
		return identErr
	}

	current := n.clock.Current()

	switch {
		case id.CurrentStep > current:
			journal, journalErr := n.client.GetJournal(ctx, master.Conn, current + 1, id.CurrentStep)
			if journalErr != nil { return journalErr }
			if ! journal.Complete { return fmt.Errorf("%w: steps %d to %d", ErrSnapshotRequired, current + 1, id.CurrentStep) }

			for _, env := range journal.Entries {
				applyErr := n.dispatcher.ApplyCatchUp(env)
				if applyErr != nil { return applyErr }
			}

			n.Log.Info("caught up from step", current, "to", n.clock.Current())
		case id.CurrentStep < current:
			n.Log.Warn("ahead of master", master.Conn.String(), "at step", current, "requesting election")
			n.RequestElection()
			return nil
	}

	return n.register(ctx, master.Conn)
}
