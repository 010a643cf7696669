package group

import "sort"
import "time"

import "github.com/sirgallo/grsfs/pkg/logger"


//=========================================== Group


var Log = clog.NewCustomLog(NAME)


func NewGroup(self Peer) *Group {
	self.IsSelf = true
	self.Linked = false
	self.Dead = false

	return &Group{
		self: self.Conn,
		peers: map[Conn]*Peer{ self.Conn: &self },
	}
}

/*
	Add:
		idempotent by connection tuple, the second add of the same conn is a no-op
		a second self peer is refused
*/

func (g *Group) Add(peer Peer) (bool, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.peers[peer.Conn]; ok { return false, nil }
	if peer.IsSelf { return false, ErrDuplicateSelf }

	if peer.Dead { peer.Linked = false }
	if peer.Role == Master { g.demoteMasters(peer.Conn) }

	g.peers[peer.Conn] = &peer
	return true, nil
}

func (g *Group) Remove(conn Conn) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if conn == g.self { return false }
	if _, ok := g.peers[conn]; ! ok { return false }

	delete(g.peers, conn)
	return true
}

func (g *Group) Find(conn Conn) (Peer, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	peer, ok := g.peers[conn]
	if ! ok { return Peer{}, false }

	return *peer, true
}

func (g *Group) Self() Peer {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return *g.peers[g.self]
}

func (g *Group) SelfConn() Conn {
	return g.self
}

/*
	Update
		mutate a peer under the group mutex, the table invariants are restored afterwards:
			a dead peer has no link, self is never dead or linked, and only one master survives
*/

func (g *Group) Update(conn Conn, mutate func(*Peer)) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	peer, ok := g.peers[conn]
	if ! ok { return false }

	mutate(peer)

	peer.Conn = conn
	peer.IsSelf = conn == g.self
	if peer.IsSelf {
		peer.Dead = false
		peer.Linked = false
	}

	if peer.Dead { peer.Linked = false }
	if peer.Role == Master { g.demoteMasters(conn) }

	return true
}

func (g *Group) SetRole(conn Conn, role Role) bool {
	return g.Update(conn, func(peer *Peer) { peer.Role = role })
}

func (g *Group) SetLinked(conn Conn, linked bool) bool {
	return g.Update(conn, func(peer *Peer) {
		peer.Linked = linked
		if linked {
			peer.Dead = false
			peer.LastSeen = time.Now()
		}
	})
}

func (g *Group) Touch(conn Conn) bool {
	return g.Update(conn, func(peer *Peer) { peer.LastSeen = time.Now() })
}

/*
	Mark Dead
		returns whether the peer was the master at the time it died
*/

func (g *Group) MarkDead(conn Conn) (bool, bool) {
	wasMaster := false
	ok := g.Update(conn, func(peer *Peer) {
		wasMaster = peer.Role == Master
		peer.Dead = true
	})

	return wasMaster, ok && conn != g.self
}

/*
	Purge Dead
		dead peers are dropped unless they are flagged for recontact
*/

func (g *Group) PurgeDead() []Conn {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	var purged []Conn
	for conn, peer := range g.peers {
		if peer.Dead && ! peer.Recontact && ! peer.IsSelf {
			delete(g.peers, conn)
			purged = append(purged, conn)
		}
	}

	sortConns(purged)
	return purged
}

/*
	Active Members
		master or replica, linked, alive and not self, sorted by score descending
*/

func (g *Group) ActiveMembers() []Peer {
	return g.collect(func(peer *Peer) bool {
		return ! peer.IsSelf && peer.Role.IsActive() && peer.Linked && ! peer.Dead
	})
}

// Unconnected peers are the ones we should dial.
func (g *Group) Unconnected() []Peer {
	return g.collect(func(peer *Peer) bool { return ! peer.IsSelf && ! peer.Linked && ! peer.Dead })
}

func (g *Group) EveryoneButMe() []Peer {
	return g.collect(func(peer *Peer) bool { return ! peer.IsSelf })
}

func (g *Group) Spares() []Peer {
	return g.collect(func(peer *Peer) bool { return ! peer.IsSelf && peer.Role == Spare && ! peer.Dead })
}

func (g *Group) Upgrading() []Peer {
	return g.collect(func(peer *Peer) bool { return ! peer.IsSelf && peer.Role == Upgrading && ! peer.Dead })
}

func (g *Group) Recontactable() []Peer {
	return g.collect(func(peer *Peer) bool { return ! peer.IsSelf && peer.Dead && peer.Recontact })
}

func (g *Group) Snapshot() []Peer {
	return g.collect(func(peer *Peer) bool { return true })
}

func (g *Group) Master() (Peer, bool) {
	masters := g.collect(func(peer *Peer) bool { return peer.Role == Master && ! peer.Dead })
	if len(masters) == 0 { return Peer{}, false }

	return masters[0], true
}

/*
	Watchee:
		1.) self must hold an active role, spares, read caches and upgrading nodes watch no one
		2.) collect self plus every live active peer and sort them by score
		3.) with n members, self at index i watches index (i + n - 1) mod n
*/

func (g *Group) Watchee() (Peer, bool) {
	g.mutex.RLock()
	self := g.peers[g.self]
	selfActive := self.Role.IsActive()
	g.mutex.RUnlock()

	if ! selfActive { return Peer{}, false }

	ring := g.collect(func(peer *Peer) bool {
		if peer.IsSelf { return true }
		return peer.Role.IsActive() && peer.Linked && ! peer.Dead
	})

	if len(ring) <= 1 { return Peer{}, false }

	for idx, peer := range ring {
		if peer.IsSelf { return ring[(idx + len(ring) - 1) % len(ring)], true }
	}

	return Peer{}, false
}

/*
	Compare
		set equality between the connection tuples we know and a remote view
*/

func (g *Group) Compare(remote []Conn) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remoteSet := make(map[Conn]struct{}, len(remote))
	for _, conn := range remote {
		remoteSet[conn] = struct{}{}
	}

	if len(remoteSet) != len(g.peers) { return false }

	for conn := range g.peers {
		if _, ok := remoteSet[conn]; ! ok { return false }
	}

	return true
}

func (g *Group) ConnInfoAll() []Conn {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	conns := make([]Conn, 0, len(g.peers))
	for conn := range g.peers {
		conns = append(conns, conn)
	}

	sortConns(conns)
	return conns
}

func (g *Group) Views() []PeerView {
	peers := g.Snapshot()

	views := make([]PeerView, 0, len(peers))
	for _, peer := range peers {
		views = append(views, peer.View())
	}

	return views
}

/*
	Can Replicate:
		A = active replicas + 1 for self, U = upgrading peers
		true iff A >= maxcopies, or A >= mincopies and A + U >= maxcopies
*/

func (g *Group) CanReplicate(minCopies int, maxCopies int) bool {
	active := len(g.ActiveMembers()) + 1
	upgrading := len(g.Upgrading())

	return active >= maxCopies || (active >= minCopies && active + upgrading >= maxCopies)
}

func (g *Group) ActiveGroupSize() int {
	size := len(g.ActiveMembers())
	if g.Self().Role.IsActive() { size++ }

	return size
}

func (g *Group) collect(include func(*Peer) bool) []Peer {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var peers []Peer
	for _, peer := range g.peers {
		if include(peer) { peers = append(peers, *peer) }
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Less(peers[j]) })
	return peers
}

func (g *Group) demoteMasters(keep Conn) {
	for conn, peer := range g.peers {
		if conn != keep && peer.Role == Master {
			Log.Warn("demoting previous master", conn.String(), "in favour of", keep.String())
			peer.Role = Replica
		}
	}
}

func sortConns(conns []Conn) {
	sort.Slice(conns, func(i, j int) bool { return conns[i].Less(conns[j]) })
}
