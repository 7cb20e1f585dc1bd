package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/selection"
	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/types"
)

// Error variables for CommandRouter operations.
var (
	// ErrNoNodeSelected is returned when a command needs a node and none is selected.
	ErrNoNodeSelected = errors.New("no node selected")
	// ErrNoElectionSelected is returned when a command needs an election.
	ErrNoElectionSelected = errors.New("no election selected")
	// ErrElectionNotFound is returned when no election matches the given id.
	ErrElectionNotFound = errors.New("election not found")
	// ErrAmbiguousElection is returned when an id prefix matches several elections.
	ErrAmbiguousElection = errors.New("election id prefix is ambiguous")
	// ErrInvalidOrdering is returned when an ordering is not a permutation of the candidates.
	ErrInvalidOrdering = errors.New("ordering must list every candidate exactly once")
	// ErrNewElectionIncomplete is returned when the new-election form is not valid.
	ErrNewElectionIncomplete = errors.New("new election needs a label, candidates, a positive ballot count and a selected node")
	// ErrRefreshRunning is returned when a refresh is requested while one runs.
	ErrRefreshRunning = errors.New("refresh already in progress")
)

// CommandResult represents the result of a command execution.
type CommandResult struct {
	Value   string // Result shown in the command panel
	Message string // Line for the activity feed
	Error   error  // Error if command failed
}

// IsRemote reports whether executing the command talks to a node and
// should therefore run off the UI goroutine.
func (c *Command) IsRemote() bool {
	switch c.Type {
	case CommandVote, CommandBatch, CommandNew:
		return true
	default:
		return false
	}
}

// CommandRouter executes commands against the selection and the
// selected node.
type CommandRouter struct {
	registry   *registry.Registry
	selection  *selection.Coordinator
	dialer     transport.Dialer
	fetcher    *ElectionFetcher
	logger     *zap.Logger
	casterOpts []ballot.Option
}

// NewCommandRouter creates a router over the dashboard's collaborators.
func NewCommandRouter(reg *registry.Registry, sel *selection.Coordinator, dialer transport.Dialer, fetcher *ElectionFetcher, logger *zap.Logger, casterOpts ...ballot.Option) *CommandRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandRouter{
		registry:   reg,
		selection:  sel,
		dialer:     dialer,
		fetcher:    fetcher,
		logger:     logger,
		casterOpts: append([]ballot.Option{ballot.WithLogger(logger), ballot.WithKeyLength(sel.KeyLength())}, casterOpts...),
	}
}

// Execute runs cmd. Remote commands block until the node answers.
func (r *CommandRouter) Execute(ctx context.Context, cmd *Command) *CommandResult {
	switch cmd.Type {
	case CommandNode:
		return r.executeNode(cmd.Port)
	case CommandElection:
		return r.executeElection(cmd.Election)
	case CommandSystem:
		r.selection.SetSystem(cmd.System)
		return &CommandResult{Value: "results by " + string(cmd.System)}
	case CommandShuffle:
		r.selection.Shuffle()
		return &CommandResult{Value: "ballot order shuffled"}
	case CommandOrder:
		return r.executeOrder(cmd.Candidates)
	case CommandRefresh:
		if !r.registry.RefreshAsync(context.Background()) {
			return &CommandResult{Error: ErrRefreshRunning}
		}
		return &CommandResult{Value: "scanning ports", Message: "refresh started"}
	case CommandVote:
		return r.executeVote(ctx, cmd.Key)
	case CommandBatch:
		return r.executeBatch(ctx, cmd.Keys)
	case CommandNew:
		return r.executeNew(ctx, cmd)
	default:
		return &CommandResult{Error: ErrUnknownCommand}
	}
}

func (r *CommandRouter) executeNode(port int) *CommandResult {
	r.selection.SelectNode(port)
	if n, ok := r.registry.Node(port); !ok || !n.Online {
		return &CommandResult{Value: fmt.Sprintf("selected node %d (not online)", port)}
	}
	return &CommandResult{Value: fmt.Sprintf("selected node %d", port)}
}

func (r *CommandRouter) executeElection(prefix string) *CommandResult {
	var matches []string
	for _, l := range r.selection.Elections() {
		if l.ID == prefix {
			matches = []string{l.ID}
			break
		}
		if strings.HasPrefix(l.ID, prefix) {
			matches = append(matches, l.ID)
		}
	}
	switch len(matches) {
	case 0:
		return &CommandResult{Error: fmt.Errorf("%w: %s", ErrElectionNotFound, prefix)}
	case 1:
		r.selection.SelectElection(matches[0])
		return &CommandResult{Value: "selected election " + r.selection.ElectionLabel()}
	default:
		return &CommandResult{Error: fmt.Errorf("%w: %s", ErrAmbiguousElection, prefix)}
	}
}

func (r *CommandRouter) executeOrder(order []types.Candidate) *CommandResult {
	candidates := r.selection.Candidates()
	if len(candidates) == 0 {
		return &CommandResult{Error: ErrNoElectionSelected}
	}
	if !samePermutation(order, candidates) {
		return &CommandResult{Error: fmt.Errorf("%w: %s", ErrInvalidOrdering, strings.Join(candidates, ", "))}
	}
	r.selection.SetOrdering(order)
	return &CommandResult{Value: "ballot order set"}
}

func samePermutation(a, b []types.Candidate) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]types.Candidate(nil), a...)
	y := append([]types.Candidate(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// target returns the selected node and election, or an error when either
// is missing.
func (r *CommandRouter) target() (int, string, error) {
	port := r.selection.SelectedNode()
	if port == 0 {
		return 0, "", ErrNoNodeSelected
	}
	election := r.selection.SelectedElectionID()
	if election == "" || r.selection.SelectedElection() == nil {
		return 0, "", ErrNoElectionSelected
	}
	return port, election, nil
}

func (r *CommandRouter) executeVote(ctx context.Context, key string) *CommandResult {
	r.selection.SetBallotKey(key)
	key = r.selection.BallotKey()
	port, election, err := r.target()
	if err != nil {
		return &CommandResult{Error: err}
	}
	if !r.selection.BallotIsValid() {
		return &CommandResult{Error: ballot.ValidateKey(key, r.selection.KeyLength())}
	}

	caster := ballot.NewCaster(r.dialer.Dial(port), r.casterOpts...)
	_, err = caster.Cast(ctx, election, r.selection.Ordering(), key)
	r.selection.BallotCast(err)
	if err != nil {
		return &CommandResult{Error: fmt.Errorf("ballot rejected: %w", err)}
	}
	msg := fmt.Sprintf("ballot %s cast on node %d", ballot.Fingerprint(key), port)
	return &CommandResult{Value: msg, Message: msg}
}

func (r *CommandRouter) executeBatch(ctx context.Context, keys string) *CommandResult {
	r.selection.SetBatchKeys(keys)
	port, election, err := r.target()
	if err != nil {
		return &CommandResult{Error: err}
	}

	list := r.selection.BatchKeys()
	if !r.selection.BatchBallotIsValid() {
		for _, key := range list {
			if err := ballot.ValidateKey(key, r.selection.KeyLength()); err != nil {
				return &CommandResult{Error: fmt.Errorf("key %s: %w", ballot.Fingerprint(key), err)}
			}
		}
		return &CommandResult{Error: ballot.ErrNoKeys}
	}

	caster := ballot.NewCaster(r.dialer.Dial(port), r.casterOpts...)
	results, err := caster.CastBatch(ctx, election, r.selection.Ordering(), list, r.selection.ShuffleCandidates)
	if err != nil {
		return &CommandResult{Error: err}
	}
	r.selection.BatchBallotCast(results)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	msg := fmt.Sprintf("batch on node %d: %d/%d accepted", port, len(results)-failed, len(results))
	if failed > 0 {
		return &CommandResult{Message: msg, Error: fmt.Errorf("%d of %d ballots rejected", failed, len(results))}
	}
	return &CommandResult{Value: msg, Message: msg}
}

func (r *CommandRouter) executeNew(ctx context.Context, cmd *Command) *CommandResult {
	r.selection.SetNewElectionLabel(cmd.Label)
	r.selection.SetNewElectionCandidates(cmd.Candidates)
	r.selection.SetBallotCountInput(cmd.Count)
	if !r.selection.NewElectionIsValid() {
		return &CommandResult{Error: ErrNewElectionIncomplete}
	}

	port := r.selection.SelectedNode()
	resp, err := r.dialer.Dial(port).NewElection(ctx, r.selection.NewElectionRequest())
	if err != nil {
		r.logger.Warn("failed to create election", zap.Int("port", port), zap.Error(err))
		return &CommandResult{Error: fmt.Errorf("create election: %w", err)}
	}
	r.selection.ElectionCreated(resp)
	r.fetcher.ArchiveElection(resp)
	r.fetcher.LoadElections(port)

	r.logger.Info("election created", zap.Int("port", port), zap.String("election", resp.ID), zap.Int("keys", len(resp.SigningKeys)))
	return &CommandResult{
		Value:   fmt.Sprintf("created %s [%s], signing keys: %s", resp.Label, shortID(resp.ID), strings.Join(resp.SigningKeys, ",")),
		Message: fmt.Sprintf("election %s created on node %d", shortID(resp.ID), port),
	}
}
