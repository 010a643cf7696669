package electiontests

import "context"
import "errors"
import "fmt"
import "sync"
import "testing"

import "github.com/sirgallo/grsfs/pkg/election"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/transport"


func id(host string, step uint64, score int64) group.Identification {
	return group.Identification{ Conn: group.Conn{ Host: host, Port: 9090 }, CurrentStep: step, Score: score, Role: group.Replica }
}

func TestWinnerTieBreaks(t *testing.T) {
	cases := []struct {
		ids []group.Identification
		expected string
	}{
		{ []group.Identification{ id("a", 3, 10), id("b", 7, 1), id("c", 5, 100) }, "b" },
		{ []group.Identification{ id("a", 7, 10), id("b", 7, 30), id("c", 7, 20) }, "b" },
		{ []group.Identification{ id("c", 7, 10), id("b", 7, 10), id("d", 7, 10) }, "b" },
	}

	for _, c := range cases {
		winner, ok := election.Winner(c.ids)
		t.Logf("actual winner: %s, expected winner: %s\n", winner.Conn.Host, c.expected)
		if ! ok || winner.Conn.Host != c.expected {
			t.Errorf("actual winner not equal to expected: actual(%s), expected(%s)\n", winner.Conn.Host, c.expected)
		}
	}

	if _, ok := election.Winner(nil); ok { t.Errorf("expected no winner without candidates") }
}

func TestAssignRoles(t *testing.T) {
	ids := []group.Identification{ id("a", 7, 10), id("b", 7, 5), id("c", 6, 50) }
	winner, _ := election.Winner(ids)

	expected := map[string]group.Role{ "a": group.Master, "b": group.Replica, "c": group.Upgrading }
	for _, assignment := range election.Assign(ids, winner) {
		t.Logf("actual role for %s: %s, expected role: %s\n", assignment.Conn.Host, assignment.Role, expected[assignment.Conn.Host])
		if assignment.Role != expected[assignment.Conn.Host] {
			t.Errorf("actual role not equal to expected: actual(%s), expected(%s)\n", assignment.Role, expected[assignment.Conn.Host])
		}
	}
}


type mockCaller struct {
	mutex sync.Mutex
	ids map[group.Conn]group.Identification
	announced []group.Conn
}

func (c *mockCaller) GetIdentification(ctx context.Context, conn group.Conn) (*group.Identification, error) {
	ident, ok := c.ids[conn]
	if ! ok { return nil, fmt.Errorf("%w: %s", transport.ErrPeerUnreachable, conn) }
	return &ident, nil
}

func (c *mockCaller) ElectionFinished(ctx context.Context, conn group.Conn, result group.ElectionResult) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.announced = append(c.announced, conn)
	return nil
}

type mockNode struct {
	self group.Identification
	mutex sync.Mutex
	dead []group.Conn
	applied []group.ElectionResult
}

func (n *mockNode) Identify() group.Identification { return n.self }

func (n *mockNode) HandleDeadPeer(conn group.Conn, forceElection bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.dead = append(n.dead, conn)
}

func (n *mockNode) ApplyElection(result group.ElectionResult) {
	n.applied = append(n.applied, result)
}

func TestRunElectsHighestStep(t *testing.T) {
	self := id("b", 7, 200)
	g := group.NewGroup(group.Peer{ Conn: self.Conn, Role: group.Replica, Score: 200 })
	g.Add(group.Peer{ Conn: id("a", 0, 0).Conn, Role: group.Master, Linked: true })
	g.Add(group.Peer{ Conn: id("c", 0, 0).Conn, Role: group.Replica, Linked: true })
	g.Add(group.Peer{ Conn: id("d", 0, 0).Conn, Role: group.ReadCache, Linked: true })

	caller := &mockCaller{ ids: map[group.Conn]group.Identification{ id("c", 0, 0).Conn: id("c", 7, 100) } }
	node := &mockNode{ self: self }

	eService := election.NewElectionService(election.ElectionServiceOpts{ Group: g, Caller: caller, Node: node })
	result, runErr := eService.Run(context.Background())
	if runErr != nil { t.Fatalf("unexpected election error: %s", runErr.Error()) }

	t.Logf("actual master: %s, expected master: %s\n", result.Master.Host, "b")
	if result.Master != self.Conn { t.Errorf("actual master not equal to expected: actual(%s), expected(%s)\n", result.Master, self.Conn) }
	if len(node.dead) != 1 || node.dead[0].Host != "a" { t.Errorf("expected the unreachable old master to be reported dead, got %v", node.dead) }
	if len(node.applied) != 1 { t.Errorf("expected the result to be applied locally") }
	if len(result.Assignments) != 2 { t.Errorf("actual assignments not equal to expected: actual(%d), expected(%d)\n", len(result.Assignments), 2) }
	if len(caller.announced) != 3 { t.Errorf("expected the result to be announced to every known peer, got %v", caller.announced) }
}

func TestRunRefusesNonParticipants(t *testing.T) {
	self := id("d", 0, 1)
	self.Role = group.ReadCache

	g := group.NewGroup(group.Peer{ Conn: self.Conn, Role: group.ReadCache })
	eService := election.NewElectionService(election.ElectionServiceOpts{ Group: g, Caller: &mockCaller{}, Node: &mockNode{ self: self } })

	_, runErr := eService.Run(context.Background())
	if ! errors.Is(runErr, election.ErrNotParticipating) { t.Errorf("expected read cache to refuse elections, got: %v", runErr) }
}
