package node

import "github.com/sirgallo/grsfs/pkg/stats"


/*
	Init Stats
		record the current disk stats in the journal db and derive the election score from them
*/

func (n *Node) InitStats() int64 {
	statObj, statErr := stats.CalculateCurrentStats(n.cfg.BackingStore)
	if statErr != nil { return stats.UnknownScore }

	setErr := n.wal.SetStat(*statObj)
	if setErr != nil { n.Log.Warn("unable to persist stats:", setErr.Error()) }

	deleteErr := n.wal.DeleteStats()
	if deleteErr != nil { n.Log.Warn("unable to trim stats:", deleteErr.Error()) }

	return stats.Score(statObj)
}

func (n *Node) Status() Status {
	self := n.group.Self()

	status := Status{
		Conn: n.self,
		InstanceID: n.instanceID,
		Role: self.Role.String(),
		Step: n.clock.Current(),
		Checkpoint: n.clock.Checkpointed(),
		Score: n.score,
		CanReplicate: n.dispatcher.CanReplicate(),
		ActiveGroupSize: n.group.ActiveGroupSize(),
		Spares: len(n.group.Spares()),
		Group: n.group.Views(),
		LastOperation: n.dispatcher.LastOperation(),
	}

	if master, hasMaster := n.group.Master(); hasMaster {
		masterConn := master.Conn
		status.Master = &masterConn
	}

	total, totalErr := n.wal.GetTotal()
	if totalErr == nil { status.JournalEntries = total }

	if critical := n.Critical(); critical != nil { status.Critical = critical.Error() }

	return status
}
