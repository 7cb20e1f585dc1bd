package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/types"
)

// CommandType represents the type of command.
type CommandType int

const (
	CommandNode CommandType = iota
	CommandElection
	CommandSystem
	CommandVote
	CommandBatch
	CommandNew
	CommandShuffle
	CommandOrder
	CommandRefresh
)

// String returns the command keyword.
func (c CommandType) String() string {
	switch c {
	case CommandNode:
		return "node"
	case CommandElection:
		return "election"
	case CommandSystem:
		return "system"
	case CommandVote:
		return "vote"
	case CommandBatch:
		return "batch"
	case CommandNew:
		return "new"
	case CommandShuffle:
		return "shuffle"
	case CommandOrder:
		return "order"
	case CommandRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Command represents a parsed command line.
type Command struct {
	Type CommandType

	Port       int               // node
	Election   string            // election
	System     tally.System      // system
	Key        string            // vote
	Keys       string            // batch, raw comma separated list
	Label      string            // new
	Candidates []types.Candidate // new, order
	Count      string            // new, raw ballot count
}

// Common parsing errors.
var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command: expected node, election, system, vote, batch, new, shuffle, order or refresh")
	ErrMissingArgs    = errors.New("missing arguments")
	ErrInvalidPort    = errors.New("invalid port")
	ErrNewSyntax      = errors.New("usage: new <label>|<candidate,candidate,...>|<ballot count>")
)

// ParseCommand parses a command string and returns a structured Command.
// Supported syntax:
//   - "node <port>"
//   - "election <id or id prefix>"
//   - "system borda|irv"
//   - "vote <key>"
//   - "batch <key,key,...>"
//   - "new <label>|<candidate,candidate,...>|<ballot count>"
//   - "shuffle"
//   - "order <candidate,candidate,...>"
//   - "refresh"
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyCommand
	}

	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "node":
		if rest == "" {
			return nil, fmt.Errorf("node: %w", ErrMissingArgs)
		}
		port, err := strconv.Atoi(rest)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPort, rest)
		}
		return &Command{Type: CommandNode, Port: port}, nil

	case "election":
		if rest == "" {
			return nil, fmt.Errorf("election: %w", ErrMissingArgs)
		}
		return &Command{Type: CommandElection, Election: rest}, nil

	case "system":
		system, err := tally.ParseSystem(rest)
		if err != nil {
			return nil, err
		}
		return &Command{Type: CommandSystem, System: system}, nil

	case "vote":
		if rest == "" {
			return nil, fmt.Errorf("vote: %w", ErrMissingArgs)
		}
		return &Command{Type: CommandVote, Key: rest}, nil

	case "batch":
		if rest == "" {
			return nil, fmt.Errorf("batch: %w", ErrMissingArgs)
		}
		return &Command{Type: CommandBatch, Keys: rest}, nil

	case "new":
		parts := strings.Split(rest, "|")
		if len(parts) != 3 {
			return nil, ErrNewSyntax
		}
		return &Command{
			Type:       CommandNew,
			Label:      strings.TrimSpace(parts[0]),
			Candidates: splitList(parts[1]),
			Count:      strings.TrimSpace(parts[2]),
		}, nil

	case "shuffle":
		return &Command{Type: CommandShuffle}, nil

	case "order":
		candidates := splitList(rest)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("order: %w", ErrMissingArgs)
		}
		return &Command{Type: CommandOrder, Candidates: candidates}, nil

	case "refresh":
		return &Command{Type: CommandRefresh}, nil

	default:
		return nil, ErrUnknownCommand
	}
}

func splitList(s string) []types.Candidate {
	var out []types.Candidate
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
