// Package selection holds the user's current selection: which node is
// being looked at, which of its elections, and the candidate ordering
// that the next ballot will carry.
//
// The Coordinator performs no I/O. It reacts to node lists from the
// registry and election lists fetched by the caller, and asks for a
// refetch through an ElectionLoader whenever the selected node changes.
//
// Thread Safety: all methods are safe for concurrent use. The loader is
// always invoked outside the coordinator's lock so it may call back in.
package selection

import (
	"math/rand"
	"sync"
	"time"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/types"
)

// ElectionLoader starts fetching the election list of a node. It must not
// block; results are delivered later through OnElectionsChange.
type ElectionLoader interface {
	LoadElections(port int)
}

// LoaderFunc adapts a function to ElectionLoader.
type LoaderFunc func(port int)

// LoadElections calls f(port).
func (f LoaderFunc) LoadElections(port int) {
	f(port)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRand sets the source used to shuffle candidate orderings.
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithRankingCache memoizes rankings across reads.
func WithRankingCache(cache *tally.Cache) Option {
	return func(c *Coordinator) {
		c.cache = cache
	}
}

// WithKeyLength sets the signing key length the ballot forms expect.
func WithKeyLength(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.keyLength = n
		}
	}
}

// Coordinator is the selection state of one client session.
type Coordinator struct {
	loader    ElectionLoader
	rng       *rand.Rand
	cache     *tally.Cache
	keyLength int

	mu               sync.RWMutex
	nodes            []registry.NodeInfo
	elections        []types.Ledger
	selectedNode     int
	selectedElection string
	ordering         []types.Candidate
	system           tally.System
	form             form
}

// New creates a Coordinator with nothing selected.
func New(loader ElectionLoader, opts ...Option) *Coordinator {
	c := &Coordinator{
		loader:    loader,
		keyLength: ballot.DefaultKeyLength,
		system:    tally.BordaCount,
		form:      defaultForm(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// KeyLength returns the signing key length the ballot forms expect.
func (c *Coordinator) KeyLength() int {
	return c.keyLength
}

func (c *Coordinator) load(port int) {
	if c.loader != nil {
		c.loader.LoadElections(port)
	}
}

// OnNodesChange stores the latest node list. When no node is selected yet,
// the first node is selected and its elections are requested.
func (c *Coordinator) OnNodesChange(nodes []registry.NodeInfo) {
	c.mu.Lock()
	c.nodes = append([]registry.NodeInfo(nil), nodes...)
	port := 0
	if c.selectedNode == 0 && len(c.nodes) > 0 {
		port = c.nodes[0].Port
		c.selectedNode = port
	}
	c.mu.Unlock()

	if port != 0 {
		c.load(port)
	}
}

// SelectNode selects port and always requests its elections, even when it
// was already selected.
func (c *Coordinator) SelectNode(port int) {
	c.mu.Lock()
	c.selectedNode = port
	c.mu.Unlock()

	c.load(port)
}

// OnElectionsChange stores the elections of the selected node, in the
// order received. A selection that is missing from the new list falls back
// to the first election.
func (c *Coordinator) OnElectionsChange(ledgers []types.Ledger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elections = append([]types.Ledger(nil), ledgers...)
	if len(c.elections) > 0 && c.findLocked(c.selectedElection) == nil {
		c.selectElectionLocked(c.elections[0].ID)
	}
}

// SelectElection selects an election and resets the working ordering to a
// random permutation of its candidates.
func (c *Coordinator) SelectElection(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectElectionLocked(id)
}

func (c *Coordinator) selectElectionLocked(id string) {
	c.selectedElection = id
	c.ordering = append([]types.Candidate(nil), c.findLocked(id).Candidates()...)
	c.shuffleLocked(c.ordering)
}

func (c *Coordinator) findLocked(id string) *types.Ledger {
	if id == "" {
		return nil
	}
	for i := range c.elections {
		if c.elections[i].ID == id {
			return &c.elections[i]
		}
	}
	return nil
}

func (c *Coordinator) shuffleLocked(candidates []types.Candidate) {
	c.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
}

// ShuffleCandidates reorders candidates in place with the coordinator's
// random source. It satisfies ballot.Shuffler.
func (c *Coordinator) ShuffleCandidates(candidates []types.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuffleLocked(candidates)
}

// SetOrdering replaces the working ordering, typically after the user
// reorders candidates.
func (c *Coordinator) SetOrdering(candidates []types.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ordering = append([]types.Candidate(nil), candidates...)
}

// Ordering returns a copy of the working ordering.
func (c *Coordinator) Ordering() []types.Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.Candidate(nil), c.ordering...)
}

// Shuffle reshuffles the working ordering in place.
func (c *Coordinator) Shuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuffleLocked(c.ordering)
}

// SelectedNode returns the selected port, 0 when none.
func (c *Coordinator) SelectedNode() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedNode
}

// SelectedElectionID returns the selected election id, "" when none.
func (c *Coordinator) SelectedElectionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedElection
}

// SelectedElection returns a copy of the selected ledger, or nil when the
// selected id is not in the current list.
func (c *Coordinator) SelectedElection() *types.Ledger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l := c.findLocked(c.selectedElection)
	if l == nil {
		return nil
	}
	cp := *l
	return &cp
}

// Candidates returns the full candidate set of the selected election.
func (c *Coordinator) Candidates() []types.Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.Candidate(nil), c.findLocked(c.selectedElection).Candidates()...)
}

// ElectionLabel returns the label of the selected election.
func (c *Coordinator) ElectionLabel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findLocked(c.selectedElection).ElectionLabel()
}

// Elections returns the elections of the selected node.
func (c *Coordinator) Elections() []types.Ledger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.Ledger(nil), c.elections...)
}

// Nodes returns the latest node list.
func (c *Coordinator) Nodes() []registry.NodeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]registry.NodeInfo(nil), c.nodes...)
}

// OnlineNodes returns the online subset of the latest node list.
func (c *Coordinator) OnlineNodes() []registry.NodeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var online []registry.NodeInfo
	for _, n := range c.nodes {
		if n.Online {
			online = append(online, n)
		}
	}
	return online
}

// System returns the electoral system used for results.
func (c *Coordinator) System() tally.System {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.system
}

// SetSystem changes the electoral system used for results.
func (c *Coordinator) SetSystem(system tally.System) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = system
}

// Ranking returns the results of the selected election under the current
// system. It is empty when nothing is selected.
func (c *Coordinator) Ranking() []tally.Rank {
	c.mu.RLock()
	ledger := c.findLocked(c.selectedElection)
	system := c.system
	c.mu.RUnlock()

	// Ledgers are replaced wholesale, never mutated, so reading one after
	// the lock is released is safe.
	if c.cache != nil {
		return c.cache.Ranking(ledger, system)
	}
	return tally.ComputeRanking(ledger, system)
}
