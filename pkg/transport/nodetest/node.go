// Package nodetest provides in-process fake voting nodes for tests.
//
// A Node implements transport.Client directly, so registry and selection
// tests can run without sockets. Server exposes a Node over real HTTP and
// gRPC listeners for transport tests.
package nodetest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/types"
)

// KeyLength is the hex length of keys issued by fake nodes.
const KeyLength = 48

// Node is a fake voting node. It is safe for concurrent use.
type Node struct {
	port int

	mu        sync.Mutex
	down      bool
	neighbors []int
	miner     bool
	mining    *int
	elections []types.Ledger
	keys      map[string]string // signing key -> election id
	usedKeys  map[string]bool
	pending   map[string][]types.BallotRecord
	casts     []types.CastBallotRequest
	subs      map[*subscription]struct{}

	aliveCalls     int
	subscribeCalls int
}

// NewNode creates a reachable node with no elections.
func NewNode(port int) *Node {
	return &Node{
		port:     port,
		keys:     make(map[string]string),
		usedKeys: make(map[string]bool),
		pending:  make(map[string][]types.BallotRecord),
		subs:     make(map[*subscription]struct{}),
	}
}

// Port returns the node's port.
func (n *Node) Port() int {
	return n.port
}

// SetDown makes every subsequent call fail as unreachable. Open
// subscriptions are left alone so tests can check who closes them.
func (n *Node) SetDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

// SetNeighbors sets the ports the node reports as known peers.
func (n *Node) SetNeighbors(ports ...int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.neighbors = append([]int(nil), ports...)
}

// SetMiner sets the miner role and current mining progress.
func (n *Node) SetMiner(miner bool, mining *int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.miner = miner
	n.mining = mining
}

// SetElections replaces the node's ledgers.
func (n *Node) SetElections(ledgers ...types.Ledger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.elections = append([]types.Ledger(nil), ledgers...)
}

// Snapshot returns the info payload the node would currently publish.
func (n *Node) Snapshot() types.NodeSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

func (n *Node) snapshotLocked() types.NodeSnapshot {
	return types.NodeSnapshot{
		Nodes:           append([]int{}, n.neighbors...),
		BlockchainCount: len(n.elections),
		IsMiner:         n.miner,
		Mining:          n.mining,
	}
}

// Announce publishes the current snapshot to every open subscription.
func (n *Node) Announce() {
	n.mu.Lock()
	defer n.mu.Unlock()
	snap := n.snapshotLocked()
	for sub := range n.subs {
		sub.deliver(snap)
	}
}

// OpenSubscriptions returns how many subscriptions are still open.
func (n *Node) OpenSubscriptions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// AliveCalls returns the number of liveness probes received.
func (n *Node) AliveCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.aliveCalls
}

// SubscribeCalls returns the number of subscriptions opened.
func (n *Node) SubscribeCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subscribeCalls
}

// Casts returns every cast request received, accepted or not.
func (n *Node) Casts() []types.CastBallotRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.CastBallotRequest(nil), n.casts...)
}

// Mine moves the pending ballots of an election into a new block.
func (n *Node) Mine(election string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.elections {
		l := &n.elections[i]
		if l.ID != election || len(n.pending[election]) == 0 {
			continue
		}
		prev := l.Chain[len(l.Chain)-1].Header
		// Copy the chain so ledgers handed out earlier stay unchanged.
		chain := append(append([]types.Block(nil), l.Chain...), types.Block{
			Header: types.BlockHeader{
				Election:   election,
				ID:         uuid.NewString(),
				PreviousID: prev.ID,
				MinedBy:    n.port,
			},
			Ballots: n.pending[election],
		})
		l.Chain = chain
		delete(n.pending, election)
	}
}

func (n *Node) unreachable(op string) error {
	return fmt.Errorf("%w: %s on port %d", transport.ErrUnreachable, op, n.port)
}

// Alive implements transport.Client.
func (n *Node) Alive(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aliveCalls++
	if n.down {
		return n.unreachable("alive")
	}
	return ctx.Err()
}

// Elections implements transport.Client.
func (n *Node) Elections(ctx context.Context) ([]types.Ledger, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return nil, n.unreachable("elections")
	}
	return append([]types.Ledger(nil), n.elections...), nil
}

// NewElection implements transport.Client. Keys are random hex strings
// with the same length real nodes issue.
func (n *Node) NewElection(ctx context.Context, req *types.NewElectionRequest) (*types.NewElectionResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return nil, n.unreachable("new_election")
	}
	if req.Label == "" || len(req.Candidates) == 0 || req.BallotCount <= 0 {
		return nil, &transport.StatusError{Code: http.StatusInternalServerError}
	}

	id := uuid.NewString()
	resp := &types.NewElectionResponse{
		ID:         id,
		Label:      req.Label,
		Candidates: append([]types.Candidate(nil), req.Candidates...),
	}
	for i := 0; i < req.BallotCount; i++ {
		signing, verifying := randomHex(KeyLength), randomHex(KeyLength*2)
		resp.SigningKeys = append(resp.SigningKeys, signing)
		resp.VerifyingKeys = append(resp.VerifyingKeys, verifying)
		n.keys[signing] = id
	}

	n.elections = append(n.elections, types.Ledger{
		ID:    id,
		Label: req.Label,
		Chain: []types.Block{{
			Header: types.BlockHeader{
				Election:      id,
				ID:            id,
				MinedBy:       n.port,
				Label:         req.Label,
				Candidates:    resp.Candidates,
				VerifyingKeys: resp.VerifyingKeys,
			},
		}},
	})
	return resp, nil
}

// CastBallot implements transport.Client. Unknown, foreign or reused keys
// are rejected with a 500 like a real node.
func (n *Node) CastBallot(ctx context.Context, req *types.CastBallotRequest) (*types.BallotRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return nil, n.unreachable("cast_ballot")
	}
	n.casts = append(n.casts, *req)

	if n.keys[req.SigningKey] != req.Election || n.usedKeys[req.SigningKey] {
		return nil, &transport.StatusError{Code: http.StatusInternalServerError}
	}
	n.usedKeys[req.SigningKey] = true

	rec := types.BallotRecord{
		Ballot: types.Ballot{
			ID:           uuid.NewString(),
			Election:     req.Election,
			Candidates:   append([]types.Candidate(nil), req.Candidates...),
			VerifyingKey: randomHex(KeyLength * 2),
		},
		Signature: randomHex(KeyLength * 2),
	}
	n.pending[req.Election] = append(n.pending[req.Election], rec)
	return &rec, nil
}

// Subscribe implements transport.Client. Like a real node, the current
// snapshot is delivered as soon as the subscription opens.
func (n *Node) Subscribe(ctx context.Context) (transport.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribeCalls++
	if n.down {
		return nil, n.unreachable("subscribe")
	}
	sub := &subscription{
		id:        uuid.NewString(),
		node:      n,
		snapshots: make(chan types.NodeSnapshot, 16),
	}
	n.subs[sub] = struct{}{}
	sub.deliver(n.snapshotLocked())
	return sub, nil
}

type subscription struct {
	id        string
	node      *Node
	snapshots chan types.NodeSnapshot
	closeOnce sync.Once
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Port() int {
	return s.node.port
}

func (s *subscription) Snapshots() <-chan types.NodeSnapshot {
	return s.snapshots
}

// deliver must be called with the node lock held.
func (s *subscription) deliver(snap types.NodeSnapshot) {
	select {
	case s.snapshots <- snap:
	default:
	}
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.node.mu.Lock()
		delete(s.node.subs, s)
		close(s.snapshots)
		s.node.mu.Unlock()
	})
	return nil
}

// Dialer maps ports to fake nodes. Ports without a node dial a node that
// is permanently down.
type Dialer struct {
	mu    sync.Mutex
	nodes map[int]*Node
}

// NewDialer creates reachable nodes on the given ports.
func NewDialer(ports ...int) *Dialer {
	d := &Dialer{nodes: make(map[int]*Node)}
	for _, p := range ports {
		d.nodes[p] = NewNode(p)
	}
	return d
}

// Node returns the node on port, creating a reachable one if needed.
func (d *Dialer) Node(port int) *Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[port]
	if !ok {
		n = NewNode(port)
		d.nodes[port] = n
	}
	return n
}

// Ports returns the ports with a node, ascending.
func (d *Dialer) Ports() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	ports := make([]int, 0, len(d.nodes))
	for p := range d.nodes {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(port int) transport.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[port]; ok {
		return n
	}
	n := NewNode(port)
	n.down = true
	d.nodes[port] = n
	return n
}

func randomHex(length int) string {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)[:length]
}
