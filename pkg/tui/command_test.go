package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/transport/nodetest"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		check func(t *testing.T, cmd *Command)
	}{
		{"node 5003", func(t *testing.T, cmd *Command) {
			if cmd.Type != CommandNode || cmd.Port != 5003 {
				t.Errorf("Expected node 5003, got %v %d", cmd.Type, cmd.Port)
			}
		}},
		{"  ELECTION ab12 ", func(t *testing.T, cmd *Command) {
			if cmd.Type != CommandElection || cmd.Election != "ab12" {
				t.Errorf("Expected election ab12, got %v %q", cmd.Type, cmd.Election)
			}
		}},
		{"system irv", func(t *testing.T, cmd *Command) {
			if cmd.System != tally.InstantRunoff {
				t.Errorf("Expected Instant Runoff, got %v", cmd.System)
			}
		}},
		{`vote "abc"`, func(t *testing.T, cmd *Command) {
			if cmd.Type != CommandVote || cmd.Key != `"abc"` {
				t.Errorf("Expected raw key, got %q", cmd.Key)
			}
		}},
		{"batch a, b,c", func(t *testing.T, cmd *Command) {
			if cmd.Type != CommandBatch || cmd.Keys != "a, b,c" {
				t.Errorf("Expected raw key list, got %q", cmd.Keys)
			}
		}},
		{"new Man of the Year| Ann , Ben,|20", func(t *testing.T, cmd *Command) {
			if cmd.Label != "Man of the Year" {
				t.Errorf("Expected label 'Man of the Year', got %q", cmd.Label)
			}
			if strings.Join(cmd.Candidates, "/") != "Ann/Ben" {
				t.Errorf("Expected candidates [Ann Ben], got %v", cmd.Candidates)
			}
			if cmd.Count != "20" {
				t.Errorf("Expected count '20', got %q", cmd.Count)
			}
		}},
		{"order Bob,Alice", func(t *testing.T, cmd *Command) {
			if cmd.Type != CommandOrder || len(cmd.Candidates) != 2 {
				t.Errorf("Expected order of 2, got %v %v", cmd.Type, cmd.Candidates)
			}
		}},
		{"shuffle", func(t *testing.T, cmd *Command) {
			if cmd.Type != CommandShuffle {
				t.Errorf("Expected shuffle, got %v", cmd.Type)
			}
		}},
		{"refresh", func(t *testing.T, cmd *Command) {
			if cmd.Type != CommandRefresh {
				t.Errorf("Expected refresh, got %v", cmd.Type)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := ParseCommand(tt.input)
			if err != nil {
				t.Fatalf("ParseCommand(%q) failed: %v", tt.input, err)
			}
			tt.check(t, cmd)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", ErrEmptyCommand},
		{"   ", ErrEmptyCommand},
		{"get key", ErrUnknownCommand},
		{"node", ErrMissingArgs},
		{"node abc", ErrInvalidPort},
		{"node 70000", ErrInvalidPort},
		{"election", ErrMissingArgs},
		{"system approval", tally.ErrUnknownSystem},
		{"vote", ErrMissingArgs},
		{"batch", ErrMissingArgs},
		{"new Mayor|Ann", ErrNewSyntax},
		{"order , ,", ErrMissingArgs},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseCommand(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseCommand(%q): expected %v, got %v", tt.input, tt.want, err)
			}
		})
	}
}

func TestCommandIsRemote(t *testing.T) {
	remote := map[CommandType]bool{CommandVote: true, CommandBatch: true, CommandNew: true}
	for ct := CommandNode; ct <= CommandRefresh; ct++ {
		cmd := &Command{Type: ct}
		if cmd.IsRemote() != remote[ct] {
			t.Errorf("%v: expected IsRemote %v", ct, remote[ct])
		}
	}
}

func TestRouterElectionByPrefix(t *testing.T) {
	h := newHarness(t, 0, 5000)
	first := h.createElection(t, 5000, "First", 1)
	second := h.createElection(t, 5000, "Second", 1)
	h.discover(t, 1)
	ctx := context.Background()

	res := h.router.Execute(ctx, &Command{Type: CommandElection, Election: second.ID[:12]})
	if res.Error != nil {
		t.Fatalf("Expected success, got %v", res.Error)
	}
	if h.sel.SelectedElectionID() != second.ID {
		t.Errorf("Expected %s selected, got %s", second.ID, h.sel.SelectedElectionID())
	}

	res = h.router.Execute(ctx, &Command{Type: CommandElection, Election: first.ID})
	if res.Error != nil || h.sel.SelectedElectionID() != first.ID {
		t.Errorf("Expected exact id to select %s, got %v", first.ID, res.Error)
	}

	res = h.router.Execute(ctx, &Command{Type: CommandElection, Election: "no-such-id"})
	if !errors.Is(res.Error, ErrElectionNotFound) {
		t.Errorf("Expected ErrElectionNotFound, got %v", res.Error)
	}
}

func TestRouterOrder(t *testing.T) {
	h := newHarness(t, 0, 5000)
	ctx := context.Background()

	res := h.router.Execute(ctx, &Command{Type: CommandOrder, Candidates: []string{"Alice"}})
	if !errors.Is(res.Error, ErrNoElectionSelected) {
		t.Errorf("Expected ErrNoElectionSelected, got %v", res.Error)
	}

	h.createElection(t, 5000, "Mayor", 1)
	h.discover(t, 1)

	res = h.router.Execute(ctx, &Command{Type: CommandOrder, Candidates: []string{"Alice", "Bob"}})
	if !errors.Is(res.Error, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering for a partial order, got %v", res.Error)
	}
	res = h.router.Execute(ctx, &Command{Type: CommandOrder, Candidates: []string{"Alice", "Bob", "Bob"}})
	if !errors.Is(res.Error, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering for a duplicate, got %v", res.Error)
	}

	want := []string{"Carol", "Alice", "Bob"}
	res = h.router.Execute(ctx, &Command{Type: CommandOrder, Candidates: want})
	if res.Error != nil {
		t.Fatalf("Expected success, got %v", res.Error)
	}
	if got := strings.Join(h.sel.Ordering(), ","); got != "Carol,Alice,Bob" {
		t.Errorf("Expected ordering Carol,Alice,Bob, got %s", got)
	}
}

func TestRouterSystemAndShuffle(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	res := h.router.Execute(ctx, &Command{Type: CommandSystem, System: tally.InstantRunoff})
	if res.Error != nil || h.sel.System() != tally.InstantRunoff {
		t.Errorf("Expected system switch, got %v / %v", res.Error, h.sel.System())
	}
	res = h.router.Execute(ctx, &Command{Type: CommandShuffle})
	if res.Error != nil {
		t.Errorf("Expected shuffle to succeed without an election, got %v", res.Error)
	}
}

func TestRouterVoteNeedsSelection(t *testing.T) {
	h := newHarness(t, 0, 5000)
	ctx := context.Background()

	res := h.router.Execute(ctx, &Command{Type: CommandVote, Key: strings.Repeat("a", nodetest.KeyLength)})
	if !errors.Is(res.Error, ErrNoNodeSelected) {
		t.Errorf("Expected ErrNoNodeSelected, got %v", res.Error)
	}

	h.discover(t, 1)
	res = h.router.Execute(ctx, &Command{Type: CommandVote, Key: strings.Repeat("a", nodetest.KeyLength)})
	if !errors.Is(res.Error, ErrNoElectionSelected) {
		t.Errorf("Expected ErrNoElectionSelected, got %v", res.Error)
	}
}

func TestRouterVoteMalformedKey(t *testing.T) {
	h := newHarness(t, 0, 5000)
	h.createElection(t, 5000, "Mayor", 1)
	h.discover(t, 1)

	res := h.router.Execute(context.Background(), &Command{Type: CommandVote, Key: "tooshort"})
	if !errors.Is(res.Error, ballot.ErrKeyLength) {
		t.Errorf("Expected ErrKeyLength, got %v", res.Error)
	}
	if len(h.dialer.Node(5000).Casts()) != 0 {
		t.Error("Expected nothing sent to the node")
	}
}

func TestRouterVoteRejected(t *testing.T) {
	h := newHarness(t, 0, 5000)
	election := h.createElection(t, 5000, "Mayor", 1)
	h.discover(t, 1)
	ctx := context.Background()

	res := h.router.Execute(ctx, &Command{Type: CommandVote, Key: election.SigningKeys[0]})
	if res.Error != nil {
		t.Fatalf("Expected first vote to succeed, got %v", res.Error)
	}
	res = h.router.Execute(ctx, &Command{Type: CommandVote, Key: election.SigningKeys[0]})
	if res.Error == nil {
		t.Fatal("Expected reused key to be rejected")
	}
	if !h.sel.BallotError() {
		t.Error("Expected ballot error flag set")
	}
	if h.sel.BallotKey() != election.SigningKeys[0] {
		t.Error("Expected rejected key kept in the form")
	}
}

func TestRouterBatch(t *testing.T) {
	h := newHarness(t, 0, 5000)
	election := h.createElection(t, 5000, "Mayor", 3)
	h.discover(t, 1)
	ctx := context.Background()

	res := h.router.Execute(ctx, &Command{Type: CommandBatch, Keys: strings.Join(election.SigningKeys, ",")})
	if res.Error != nil {
		t.Fatalf("Expected batch to succeed, got %v", res.Error)
	}
	if !strings.Contains(res.Value, "3/3 accepted") {
		t.Errorf("Expected 3/3 accepted, got %q", res.Value)
	}
	if len(h.sel.BatchKeys()) != 0 {
		t.Error("Expected batch keys cleared after full success")
	}

	// Every key is spent now, so a replay fails for each of them.
	res = h.router.Execute(ctx, &Command{Type: CommandBatch, Keys: strings.Join(election.SigningKeys, ",")})
	if res.Error == nil {
		t.Fatal("Expected replayed batch to fail")
	}
	if !strings.Contains(res.Message, "0/3 accepted") {
		t.Errorf("Expected 0/3 accepted, got %q", res.Message)
	}
	if !h.sel.BatchBallotError() {
		t.Error("Expected batch error flag set")
	}
}

func TestRouterBatchMalformedKey(t *testing.T) {
	h := newHarness(t, 0, 5000)
	election := h.createElection(t, 5000, "Mayor", 1)
	h.discover(t, 1)

	res := h.router.Execute(context.Background(), &Command{Type: CommandBatch, Keys: election.SigningKeys[0] + ",zz"})
	if !errors.Is(res.Error, ballot.ErrKeyLength) {
		t.Errorf("Expected ErrKeyLength, got %v", res.Error)
	}
	if len(h.dialer.Node(5000).Casts()) != 0 {
		t.Error("Expected nothing sent to the node")
	}
}

func TestRouterNewElectionInvalid(t *testing.T) {
	h := newHarness(t, 0, 5000)
	h.discover(t, 1)

	res := h.router.Execute(context.Background(), &Command{Type: CommandNew, Label: "Mayor", Candidates: []string{"Ann"}, Count: "zero"})
	if !errors.Is(res.Error, ErrNewElectionIncomplete) {
		t.Errorf("Expected ErrNewElectionIncomplete, got %v", res.Error)
	}
}
