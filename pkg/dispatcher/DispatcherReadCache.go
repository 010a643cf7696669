package dispatcher

import "context"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/transport"


//=========================================== Read Cache


/*
	Forward Read:
		1.) candidates are the master first, then the other active members in score order
		2.) forward the envelope unchanged, the first reply wins, a remote errno is returned as is
		3.) an unreachable candidate is marked dead and the next one is tried
		4.) with nobody left, fail with EIO
*/

func (d *Dispatcher) forwardRead(ctx context.Context, req *Request) (*operation.Result, error) {
	env := req.Envelope.Clone()

	for _, conn := range d.readCandidates() {
		result, forwardErr := d.caller.Dispatch(ctx, conn, env)
		if forwardErr == nil { return result, nil }
		if ! transport.IsUnreachable(forwardErr) { return nil, forwardErr }

		d.Log.Warn("read peer", conn.String(), "unreachable, trying next")
		if d.events != nil { d.events.HandleDeadPeer(conn, false) }
	}

	return nil, opError(env.Op, unix.EIO, ErrNoReadPeer)
}

func (d *Dispatcher) readCandidates() []group.Conn {
	var candidates []group.Conn

	master, hasMaster := d.group.Master()
	if hasMaster && ! master.IsSelf { candidates = append(candidates, master.Conn) }

	for _, member := range d.group.ActiveMembers() {
		if hasMaster && member.Conn == master.Conn { continue }
		candidates = append(candidates, member.Conn)
	}

	return candidates
}
