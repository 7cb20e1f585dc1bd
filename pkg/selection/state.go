package selection

import (
	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/types"
)

// State is a point-in-time copy of the coordinator for rendering.
type State struct {
	SelectedNode     int
	SelectedElection string
	ElectionLabel    string
	Ordering         []types.Candidate
	System           tally.System

	BallotKey        string
	BatchKeys        []string
	BallotError      bool
	BatchBallotError bool
	BallotValid      bool
	BatchBallotValid bool

	NewElection      types.NewElectionRequest
	NewElectionValid bool
	IssuedKeys       []string
}

// Snapshot returns the current state. Rankings are not included; use
// Ranking, which may be served from a cache.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := State{
		SelectedNode:     c.selectedNode,
		SelectedElection: c.selectedElection,
		ElectionLabel:    c.findLocked(c.selectedElection).ElectionLabel(),
		Ordering:         append([]types.Candidate(nil), c.ordering...),
		System:           c.system,
		BallotKey:        c.form.ballotKey,
		BatchKeys:        ballot.SplitKeys(c.form.batchKeys),
		BallotError:      c.form.ballotErr,
		BatchBallotError: c.form.batchErr,
		BallotValid:      c.ballotIsValidLocked(),
		BatchBallotValid: c.batchIsValidLocked(),
		NewElection: types.NewElectionRequest{
			Label:       c.form.label,
			Candidates:  append([]types.Candidate(nil), c.form.candidates...),
			BallotCount: c.form.ballotCount,
		},
		NewElectionValid: c.newElectionIsValidLocked(),
	}
	if c.form.issuedElection != nil {
		s.IssuedKeys = append([]string(nil), c.form.issuedElection.SigningKeys...)
	}
	return s
}
