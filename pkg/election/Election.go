package election

import "context"
import "sort"
import "sync"

import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== Election


func NewElectionService(opts ElectionServiceOpts) *ElectionService {
	return &ElectionService{
		group: opts.Group,
		caller: opts.Caller,
		node: opts.Node,
		Log: clog.NewCustomLog(NAME),
	}
}

/*
	Run:
		1.) only one election at a time per node, a concurrent trigger returns ErrElectionInProgress
		2.) self must hold a participating role
		3.) collect identifications from self and every live participating peer in parallel
		4.) choose the winner and assign roles deterministically, so every initiator computes the same outcome
		5.) install the result locally, then broadcast it to every live peer including spares and read caches
*/

func (eService *ElectionService) Run(ctx context.Context) (*group.ElectionResult, error) {
	if ! eService.running.CompareAndSwap(false, true) { return nil, ErrElectionInProgress }
	defer eService.running.Store(false)

	self := eService.node.Identify()
	if ! self.Role.Participates() { return nil, ErrNotParticipating }

	eService.Log.Info("election started by", self.Conn.String(), "at step", self.CurrentStep)

	candidates := eService.group.EveryoneButMe()
	ids := append([]group.Identification{ self }, eService.collectIdentifications(ctx, candidates)...)

	winner, ok := Winner(ids)
	if ! ok { return nil, ErrNoCandidates }

	result := group.ElectionResult{
		Initiator: self.Conn,
		Master: winner.Conn,
		Step: winner.CurrentStep,
		Assignments: Assign(ids, winner),
	}

	eService.node.ApplyElection(result)
	eService.broadcastResult(ctx, result)

	eService.Log.Info("election finished, master is", winner.Conn.String(), "at step", winner.CurrentStep)
	return &result, nil
}

func (eService *ElectionService) Running() bool {
	return eService.running.Load()
}

/*
	Collect Identifications:
		the broadcast runs one goroutine per live candidate while a collector drains the responses
		an unreachable candidate is handed to dead peer handling and left out
		candidates that do not participate (spare, read cache, left) answer but are not counted
*/

func (eService *ElectionService) collectIdentifications(ctx context.Context, candidates []group.Peer) []group.Identification {
	respChans := identResponseChannels{
		identChan: make(chan group.Identification),
		broadcastClose: make(chan struct{}),
	}

	var ids []group.Identification
	var electionWG sync.WaitGroup

	electionWG.Add(1)
	go func() {
		defer electionWG.Done()

		for {
			select {
				case <- respChans.broadcastClose:
					return
				case id := <- respChans.identChan:
					if id.Role.Participates() && ! id.NeverParticipate { ids = append(ids, id) }
			}
		}
	}()

	electionWG.Add(1)
	go func() {
		defer electionWG.Done()
		eService.broadcastIdentify(ctx, candidates, respChans)
	}()

	electionWG.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i].Conn.Less(ids[j].Conn) })
	return ids
}

func (eService *ElectionService) broadcastIdentify(ctx context.Context, candidates []group.Peer, respChans identResponseChannels) {
	defer close(respChans.broadcastClose)

	var identifyWG sync.WaitGroup

	live := utils.Filter[group.Peer](candidates, func(candidate group.Peer) bool {
		return ! candidate.Dead && candidate.Role.Participates()
	})

	for _, candidate := range live {
		identifyWG.Add(1)
		go func(conn group.Conn) {
			defer identifyWG.Done()

			id, identErr := eService.caller.GetIdentification(ctx, conn)
			if identErr != nil {
				eService.Log.Warn("no identification from", conn.String(), identErr.Error())
				eService.node.HandleDeadPeer(conn, false)
				return
			}

			eService.group.Update(conn, func(peer *group.Peer) {
				peer.Step = id.CurrentStep
				peer.Score = id.Score
			})

			respChans.identChan <- *id
		}(candidate.Conn)
	}

	identifyWG.Wait()
}

func (eService *ElectionService) broadcastResult(ctx context.Context, result group.ElectionResult) {
	var finishedWG sync.WaitGroup

	for _, peer := range eService.group.EveryoneButMe() {
		if peer.Dead { continue }

		finishedWG.Add(1)
		go func(conn group.Conn) {
			defer finishedWG.Done()

			finishedErr := eService.caller.ElectionFinished(ctx, conn, result)
			if finishedErr != nil { eService.Log.Warn("unable to announce election result to", conn.String(), finishedErr.Error()) }
		}(peer.Conn)
	}

	finishedWG.Wait()
}
