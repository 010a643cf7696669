package group

import "fmt"
import "net"
import "strconv"


var roleNames = map[Role]string{
	Singular: "singular",
	Master: "master",
	Replica: "replica",
	Upgrading: "upgrading",
	Spare: "spare",
	ReadCache: "readcache",
	Left: "left",
}

func (role Role) String() string {
	name, ok := roleNames[role]
	if ! ok { return fmt.Sprintf("role(%d)", int(role)) }

	return name
}

// Active roles take part in replication.
func (role Role) IsActive() bool {
	return role == Master || role == Replica
}

// Participating roles take part in elections.
func (role Role) Participates() bool {
	return role == Master || role == Replica || role == Upgrading || role == Singular
}

func (conn Conn) String() string {
	return net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port))
}

func (conn Conn) Less(other Conn) bool {
	if conn.Host != other.Host { return conn.Host < other.Host }
	return conn.Port < other.Port
}

func (peer Peer) View() PeerView {
	return PeerView{ Conn: peer.Conn, Role: peer.Role, Score: peer.Score, Step: peer.Step, Dead: peer.Dead }
}

/*
	Less
		peer ordering: score descending, then connection tuple ascending so every node sorts identically
*/

func (peer Peer) Less(other Peer) bool {
	if peer.Score != other.Score { return peer.Score > other.Score }
	return peer.Conn.Less(other.Conn)
}
