package election

import "sort"

import "github.com/sirgallo/grsfs/pkg/group"


/*
	Winner
		largest current step, then largest score, then the lexicographically smallest (host, port)
*/

func Winner(ids []group.Identification) (group.Identification, bool) {
	if len(ids) == 0 { return group.Identification{}, false }

	winner := ids[0]
	for _, id := range ids[1:] {
		if Beats(id, winner) { winner = id }
	}

	return winner, true
}

func Beats(candidate group.Identification, other group.Identification) bool {
	if candidate.CurrentStep != other.CurrentStep { return candidate.CurrentStep > other.CurrentStep }
	if candidate.Score != other.Score { return candidate.Score > other.Score }

	return candidate.Conn.Less(other.Conn)
}

/*
	Assign:
		the winner becomes master
		every other participant becomes a replica, or upgrading when its step is behind the winner's
*/

func Assign(ids []group.Identification, winner group.Identification) []group.Assignment {
	assignments := make([]group.Assignment, 0, len(ids))

	for _, id := range ids {
		role := group.Replica
		switch {
			case id.Conn == winner.Conn:
				role = group.Master
			case id.CurrentStep < winner.CurrentStep:
				role = group.Upgrading
		}

		assignments = append(assignments, group.Assignment{ Conn: id.Conn, Role: role })
	}

	sort.Slice(assignments, func(i, j int) bool { return assignments[i].Conn.Less(assignments[j].Conn) })
	return assignments
}
