package selection

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/types"
)

type recordingLoader struct {
	mu    sync.Mutex
	ports []int
}

func (l *recordingLoader) LoadElections(port int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ports = append(l.ports, port)
}

func (l *recordingLoader) calls() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.ports...)
}

func node(port int, online bool) registry.NodeInfo {
	return registry.NodeInfo{Port: port, Online: online}
}

func election(id, label string, candidates ...types.Candidate) types.Ledger {
	return types.Ledger{
		ID:    id,
		Label: label,
		Chain: []types.Block{{Header: types.BlockHeader{ID: id, Election: id, Label: label, Candidates: candidates}}},
	}
}

func sorted(c []types.Candidate) []types.Candidate {
	out := append([]types.Candidate(nil), c...)
	sort.Strings(out)
	return out
}

func newCoordinator(loader ElectionLoader) *Coordinator {
	return New(loader, WithRand(rand.New(rand.NewSource(1))))
}

func TestFirstNodeSelectedAndLoaded(t *testing.T) {
	loader := &recordingLoader{}
	c := newCoordinator(loader)

	c.OnNodesChange(nil)
	assert.Equal(t, 0, c.SelectedNode())
	assert.Empty(t, loader.calls())

	c.OnNodesChange([]registry.NodeInfo{node(5000, true), node(5003, true)})
	assert.Equal(t, 5000, c.SelectedNode())
	assert.Equal(t, []int{5000}, loader.calls())

	// Later lists leave an existing selection alone.
	c.OnNodesChange([]registry.NodeInfo{node(5003, true)})
	assert.Equal(t, 5000, c.SelectedNode())
	assert.Equal(t, []int{5000}, loader.calls())
}

func TestSelectNodeAlwaysLoads(t *testing.T) {
	loader := &recordingLoader{}
	c := newCoordinator(loader)

	c.SelectNode(5003)
	c.SelectNode(5003)

	assert.Equal(t, 5003, c.SelectedNode())
	assert.Equal(t, []int{5003, 5003}, loader.calls())
}

func TestLoaderMayCallBack(t *testing.T) {
	var c *Coordinator
	c = New(LoaderFunc(func(port int) {
		c.OnElectionsChange([]types.Ledger{election("e1", "Mayor", "A", "B")})
	}))

	c.OnNodesChange([]registry.NodeInfo{node(5000, true)})
	assert.Equal(t, "e1", c.SelectedElectionID())
}

func TestFirstElectionSelected(t *testing.T) {
	c := newCoordinator(nil)

	c.OnElectionsChange([]types.Ledger{
		election("e2", "Second", "X", "Y"),
		election("e1", "First", "A", "B", "C"),
	})

	assert.Equal(t, "e2", c.SelectedElectionID(), "list order is kept, not re-sorted")
	assert.Equal(t, "Second", c.ElectionLabel())
	assert.Equal(t, []types.Candidate{"X", "Y"}, c.Candidates())
	assert.Equal(t, []types.Candidate{"X", "Y"}, sorted(c.Ordering()))
}

func TestSelectionKeptWhenStillPresent(t *testing.T) {
	c := newCoordinator(nil)
	c.OnElectionsChange([]types.Ledger{election("e1", "One", "A", "B"), election("e2", "Two", "C", "D")})
	c.SelectElection("e2")
	c.SetOrdering([]types.Candidate{"D", "C"})

	c.OnElectionsChange([]types.Ledger{election("e1", "One", "A", "B"), election("e2", "Two", "C", "D")})

	assert.Equal(t, "e2", c.SelectedElectionID())
	assert.Equal(t, []types.Candidate{"D", "C"}, c.Ordering(), "ordering must survive a refetch")
}

func TestSelectionFallsBackWhenMissing(t *testing.T) {
	c := newCoordinator(nil)
	c.OnElectionsChange([]types.Ledger{election("e1", "One", "A", "B")})

	c.OnElectionsChange([]types.Ledger{election("e3", "Three", "P", "Q", "R")})

	assert.Equal(t, "e3", c.SelectedElectionID())
	assert.Equal(t, []types.Candidate{"P", "Q", "R"}, sorted(c.Ordering()))
}

func TestEmptyElectionListKeepsSelection(t *testing.T) {
	c := newCoordinator(nil)
	c.OnElectionsChange([]types.Ledger{election("e1", "One", "A")})

	c.OnElectionsChange(nil)

	assert.Equal(t, "e1", c.SelectedElectionID())
	assert.Nil(t, c.SelectedElection())
	assert.Empty(t, c.Candidates())
	assert.Equal(t, "", c.ElectionLabel())
	assert.Empty(t, c.Ranking())
}

func TestSelectElectionShufflesCandidates(t *testing.T) {
	candidates := []types.Candidate{"A", "B", "C", "D", "E", "F", "G", "H"}
	c := newCoordinator(nil)
	c.OnElectionsChange([]types.Ledger{election("e1", "One", candidates...)})

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		c.SelectElection("e1")
		order := c.Ordering()
		require.Equal(t, candidates, sorted(order))
		seen[strings.Join(order, ",")] = true
	}
	assert.Greater(t, len(seen), 1, "expected more than one permutation")

	// The genesis candidate list itself is never reordered.
	assert.Equal(t, candidates, c.Candidates())
}

func TestShuffleKeepsCandidateSet(t *testing.T) {
	c := newCoordinator(nil)
	c.OnElectionsChange([]types.Ledger{election("e1", "One", "A", "B", "C")})

	c.Shuffle()
	assert.Equal(t, []types.Candidate{"A", "B", "C"}, sorted(c.Ordering()))

	batch := []types.Candidate{"A", "B", "C"}
	c.ShuffleCandidates(batch)
	assert.Equal(t, []types.Candidate{"A", "B", "C"}, sorted(batch))
}

func TestOnlineNodes(t *testing.T) {
	c := newCoordinator(nil)
	c.OnNodesChange([]registry.NodeInfo{node(5000, true), node(5001, false), node(5002, true)})

	var ports []int
	for _, n := range c.OnlineNodes() {
		ports = append(ports, n.Port)
	}
	assert.Equal(t, []int{5000, 5002}, ports)
	assert.Len(t, c.Nodes(), 3)
}

func TestRanking(t *testing.T) {
	ledger := election("e1", "One", "Alice", "Bob", "Carol")
	ledger.Chain = append(ledger.Chain, types.Block{Ballots: []types.BallotRecord{
		{Ballot: types.Ballot{Candidates: []types.Candidate{"Alice", "Bob", "Carol"}}},
		{Ballot: types.Ballot{Candidates: []types.Candidate{"Alice", "Bob", "Carol"}}},
		{Ballot: types.Ballot{Candidates: []types.Candidate{"Alice", "Bob", "Carol"}}},
	}})

	cache, err := tally.NewCache(4)
	require.NoError(t, err)
	c := New(nil, WithRankingCache(cache))
	c.OnElectionsChange([]types.Ledger{ledger})

	assert.Equal(t, tally.BordaCount, c.System(), "results default to Borda Count")
	assert.Equal(t, []tally.Rank{{Name: "Alice", Value: 45}, {Name: "Bob", Value: 30}, {Name: "Carol", Value: 15}}, c.Ranking())

	c.SetSystem(tally.InstantRunoff)
	assert.Equal(t, tally.InstantRunoff, c.System())
	ranking := c.Ranking()
	require.NotEmpty(t, ranking)
	assert.Equal(t, "Alice", ranking[0].Name)
	assert.Equal(t, 2, cache.Len())
}

func TestBallotForm(t *testing.T) {
	key := strings.Repeat("a1", ballot.DefaultKeyLength/2)
	c := newCoordinator(nil)
	c.OnElectionsChange([]types.Ledger{election("e1", "One", "A", "B", "C")})

	assert.False(t, c.BallotIsValid())
	c.SetBallotKey(`"` + key + `"`)
	assert.Equal(t, key, c.BallotKey())
	assert.True(t, c.BallotIsValid())

	c.SetBallotKey(key[:10])
	assert.False(t, c.BallotIsValid())

	c.SetBallotKey(key)
	c.BallotCast(errors.New("rejected"))
	assert.True(t, c.BallotError())
	assert.Equal(t, key, c.BallotKey(), "key kept after a failure")

	c.BallotCast(nil)
	assert.False(t, c.BallotError())
	assert.Equal(t, "", c.BallotKey())
	assert.Equal(t, []types.Candidate{"A", "B", "C"}, sorted(c.Ordering()))
}

func TestBatchForm(t *testing.T) {
	k1 := strings.Repeat("a", ballot.DefaultKeyLength)
	k2 := strings.Repeat("b", ballot.DefaultKeyLength)
	c := newCoordinator(nil)

	assert.False(t, c.BatchBallotIsValid())

	c.SetBatchKeys(`"` + k1 + "," + k2 + `"`)
	assert.Equal(t, []string{k1, k2}, c.BatchKeys())
	assert.True(t, c.BatchBallotIsValid())

	c.SetBatchKeys(k1 + ",short")
	assert.False(t, c.BatchBallotIsValid())

	c.SetBatchKeys(k1 + "," + k2)
	c.BatchBallotCast([]ballot.Result{{Key: k1}, {Key: k2, Err: errors.New("rejected")}})
	assert.True(t, c.BatchBallotError())
	assert.Len(t, c.BatchKeys(), 2)

	c.BatchBallotCast([]ballot.Result{{Key: k1}, {Key: k2}})
	assert.False(t, c.BatchBallotError())
	assert.Empty(t, c.BatchKeys())
}

func TestNewElectionForm(t *testing.T) {
	c := newCoordinator(nil)

	req := c.NewElectionRequest()
	assert.Equal(t, DefaultElectionLabel, req.Label)
	assert.Equal(t, DefaultElectionBallotCount, req.BallotCount)
	assert.False(t, c.NewElectionIsValid(), "no node selected yet")

	c.SelectNode(5000)
	assert.True(t, c.NewElectionIsValid())

	c.SetBallotCountInput("twelve")
	assert.Equal(t, 0, c.NewElectionRequest().BallotCount)
	assert.False(t, c.NewElectionIsValid())

	c.SetBallotCountInput(" 12 ")
	assert.Equal(t, 12, c.NewElectionRequest().BallotCount)
	assert.True(t, c.NewElectionIsValid())

	c.SetNewElectionCandidates([]types.Candidate{" ", ""})
	assert.False(t, c.NewElectionIsValid())

	c.SetNewElectionCandidates([]types.Candidate{"Ann ", "Ben"})
	c.SetNewElectionLabel("")
	assert.False(t, c.NewElectionIsValid())

	c.SetNewElectionLabel("Chair")
	req = c.NewElectionRequest()
	assert.Equal(t, &types.NewElectionRequest{Label: "Chair", Candidates: []types.Candidate{"Ann", "Ben"}, BallotCount: 12}, req)

	c.ElectionCreated(&types.NewElectionResponse{ID: "e9", SigningKeys: []string{"k1", "k2"}})
	assert.Equal(t, []string{"k1", "k2"}, c.IssuedKeys())
}

func TestSnapshot(t *testing.T) {
	c := newCoordinator(nil)
	c.OnNodesChange([]registry.NodeInfo{node(5000, true)})
	c.OnElectionsChange([]types.Ledger{election("e1", "Mayor", "A", "B")})
	c.SetBallotKey(strings.Repeat("f", ballot.DefaultKeyLength))

	s := c.Snapshot()
	assert.Equal(t, 5000, s.SelectedNode)
	assert.Equal(t, "e1", s.SelectedElection)
	assert.Equal(t, "Mayor", s.ElectionLabel)
	assert.True(t, s.BallotValid)
	assert.False(t, s.BatchBallotValid)
	assert.True(t, s.NewElectionValid)
	assert.Equal(t, tally.BordaCount, s.System)

	// Snapshots are detached copies.
	s.Ordering[0] = "Z"
	assert.NotContains(t, c.Ordering(), types.Candidate("Z"))
}
