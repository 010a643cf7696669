package group

import "errors"
import "sync"
import "time"


type Role int

const (
	Singular Role = iota
	Master
	Replica
	Upgrading
	Spare
	ReadCache
	Left
)

type Conn struct {
	Host string `json:"host"`
	Port int `json:"port"`
}

/*
	Peer
		Conn and IsSelf never change once the peer is in the table, everything else is guarded by the group mutex
*/

type Peer struct {
	Conn Conn
	IsSelf bool

	Role Role
	Score int64
	Step uint64
	Linked bool
	Dead bool
	LastSeen time.Time
	Recontact bool
	NeverParticipate bool
	InstanceID string
}

type Group struct {
	mutex sync.RWMutex
	self Conn
	peers map[Conn]*Peer
}

type Identification struct {
	Conn Conn `json:"conn"`
	CurrentStep uint64 `json:"currentStep"`
	Score int64 `json:"score"`
	NeverParticipate bool `json:"neverParticipate"`
	Spare bool `json:"spare"`
	Role Role `json:"role"`
	InstanceID string `json:"instanceId"`
}

type PeerView struct {
	Conn Conn `json:"conn"`
	Role Role `json:"role"`
	Score int64 `json:"score"`
	Step uint64 `json:"step"`
	Dead bool `json:"dead"`
}

type Assignment struct {
	Conn Conn `json:"conn"`
	Role Role `json:"role"`
}

type ElectionResult struct {
	Initiator Conn `json:"initiator"`
	Master Conn `json:"master"`
	Step uint64 `json:"step"`
	Assignments []Assignment `json:"assignments"`
}


const NAME = "Group"

var ErrDuplicateSelf = errors.New("group already has a self peer")
var ErrUnknownPeer = errors.New("peer not in group")
