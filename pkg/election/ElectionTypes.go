package election

import "context"
import "errors"
import "sync/atomic"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"


type Caller interface {
	GetIdentification(ctx context.Context, conn group.Conn) (*group.Identification, error)
	ElectionFinished(ctx context.Context, conn group.Conn, result group.ElectionResult) error
}

/*
	Node
		the owner of the group, Identify reports self and ApplyElection installs the outcome locally
*/

type Node interface {
	Identify() group.Identification
	HandleDeadPeer(conn group.Conn, forceElection bool)
	ApplyElection(result group.ElectionResult)
}

type ElectionServiceOpts struct {
	Group *group.Group
	Caller Caller
	Node Node
}

type ElectionService struct {
	group *group.Group
	caller Caller
	node Node
	running atomic.Bool

	Log *clog.CustomLog
}

type identResponseChannels struct {
	identChan chan group.Identification
	broadcastClose chan struct{}
}


const NAME = "Election"

var ErrElectionInProgress = errors.New("election already in progress")
var ErrNotParticipating = errors.New("node does not take part in elections")
var ErrNoCandidates = errors.New("no candidates responded")
