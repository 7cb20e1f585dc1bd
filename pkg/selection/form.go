package selection

import (
	"strconv"
	"strings"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/types"
)

// Starting values of the new-election form.
const (
	DefaultElectionLabel       = "Man of the Year"
	DefaultElectionBallotCount = 20
)

// DefaultElectionCandidates returns the starting candidates of the
// new-election form.
func DefaultElectionCandidates() []types.Candidate {
	return []types.Candidate{"Kanye West", "The Tallest Man On Earth", "Bruce Lee"}
}

type form struct {
	ballotKey      string
	batchKeys      string
	ballotErr      bool
	batchErr       bool
	label          string
	candidates     []types.Candidate
	ballotCount    int
	issuedElection *types.NewElectionResponse
}

func defaultForm() form {
	return form{
		label:       DefaultElectionLabel,
		candidates:  DefaultElectionCandidates(),
		ballotCount: DefaultElectionBallotCount,
	}
}

// SetBallotKey sets the single-ballot key, stripping surrounding quotes.
func (c *Coordinator) SetBallotKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.ballotKey = ballot.TrimQuotes(key)
}

// BallotKey returns the single-ballot key.
func (c *Coordinator) BallotKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.form.ballotKey
}

// SetBatchKeys sets the comma separated batch key list, stripping
// surrounding quotes.
func (c *Coordinator) SetBatchKeys(keys string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.batchKeys = ballot.TrimQuotes(keys)
}

// BatchKeys returns the batch keys split into a list.
func (c *Coordinator) BatchKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ballot.SplitKeys(c.form.batchKeys)
}

// BallotIsValid reports whether the single-ballot form can be submitted.
func (c *Coordinator) BallotIsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ballotIsValidLocked()
}

func (c *Coordinator) ballotIsValidLocked() bool {
	return c.form.ballotKey != "" && ballot.ValidateKey(c.form.ballotKey, c.keyLength) == nil
}

// BatchBallotIsValid reports whether every batch key is well formed.
func (c *Coordinator) BatchBallotIsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batchIsValidLocked()
}

func (c *Coordinator) batchIsValidLocked() bool {
	keys := ballot.SplitKeys(c.form.batchKeys)
	if len(keys) == 0 {
		return false
	}
	for _, key := range keys {
		if ballot.ValidateKey(key, c.keyLength) != nil {
			return false
		}
	}
	return true
}

// BallotCast records the outcome of a single-ballot submission. Success
// clears the key and reshuffles the working ordering for the next voter.
func (c *Coordinator) BallotCast(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.form.ballotErr = true
		return
	}
	c.form.ballotErr = false
	c.form.ballotKey = ""
	c.shuffleLocked(c.ordering)
}

// BatchBallotCast records the outcome of a batch submission. Any failure
// keeps the keys so the user can retry.
func (c *Coordinator) BatchBallotCast(results []ballot.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ballot.Failed(results) {
		c.form.batchErr = true
		return
	}
	c.form.batchErr = false
	c.form.batchKeys = ""
}

// BallotError reports whether the last single-ballot submission failed.
func (c *Coordinator) BallotError() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.form.ballotErr
}

// BatchBallotError reports whether the last batch submission had failures.
func (c *Coordinator) BatchBallotError() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.form.batchErr
}

// SetNewElectionLabel sets the label of the election to create.
func (c *Coordinator) SetNewElectionLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.label = label
}

// SetNewElectionCandidates sets the candidates of the election to create.
// Blank names are dropped.
func (c *Coordinator) SetNewElectionCandidates(candidates []types.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []types.Candidate
	for _, name := range candidates {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	c.form.candidates = names
}

// SetBallotCountInput parses the ballot count field. Anything that is not
// a number becomes 0, which fails validation.
func (c *Coordinator) SetBallotCountInput(input string) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 0 {
		n = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.ballotCount = n
}

// NewElectionRequest builds the request for the new-election form.
func (c *Coordinator) NewElectionRequest() *types.NewElectionRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &types.NewElectionRequest{
		Label:       c.form.label,
		Candidates:  append([]types.Candidate(nil), c.form.candidates...),
		BallotCount: c.form.ballotCount,
	}
}

// NewElectionIsValid reports whether an election can be created: a label,
// at least one candidate, a positive ballot count and a selected node.
func (c *Coordinator) NewElectionIsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.newElectionIsValidLocked()
}

func (c *Coordinator) newElectionIsValidLocked() bool {
	return c.form.label != "" &&
		len(c.form.candidates) > 0 &&
		c.form.ballotCount > 0 &&
		c.selectedNode != 0
}

// ElectionCreated stores the node's answer to a new-election request. The
// node keeps no copy of the signing keys it carries.
func (c *Coordinator) ElectionCreated(resp *types.NewElectionResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.issuedElection = resp
}

// IssuedKeys returns the signing keys of the last created election.
func (c *Coordinator) IssuedKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.form.issuedElection == nil {
		return nil
	}
	return append([]string(nil), c.form.issuedElection.SigningKeys...)
}
