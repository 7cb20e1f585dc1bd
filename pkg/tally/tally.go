// Package tally computes election rankings from ballot ledgers.
//
// Two electoral systems are supported: Borda Count and Instant-Runoff
// Voting. Both are pure functions of the ledger: no I/O, no shared state,
// and recomputing over an unchanged ledger yields an identical result.
package tally

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/salahayoub/blockvote/pkg/types"
)

// System identifies an electoral system. The values are the labels shown to
// users, which is also what gets stored in config files.
type System string

const (
	InstantRunoff System = "Instant Runoff"
	BordaCount    System = "Borda Count"
)

// ErrUnknownSystem is returned by ParseSystem for unrecognized names.
var ErrUnknownSystem = errors.New("unknown electoral system")

// bordaWeight is the number of points per rank position.
const bordaWeight = 5

// Systems returns the supported systems in display order.
func Systems() []System {
	return []System{InstantRunoff, BordaCount}
}

// String returns the display label.
func (s System) String() string {
	return string(s)
}

// Next returns the system following s in display order, wrapping around.
func (s System) Next() System {
	all := Systems()
	for i, sys := range all {
		if sys == s {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

// ParseSystem accepts a display label or the short forms "borda" and "irv".
// Matching is case-insensitive.
func ParseSystem(name string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "borda", "borda count", "borda-count":
		return BordaCount, nil
	case "irv", "instant runoff", "instant-runoff", "runoff":
		return InstantRunoff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
}

// Rank pairs a candidate with its score under some system.
type Rank struct {
	Name  types.Candidate `json:"name"`
	Value int             `json:"value"`
}

// ComputeRanking tallies the ledger under the given system and returns the
// ranking, highest score first. A nil ledger or an unknown system yields an
// empty ranking; this function never fails.
func ComputeRanking(ledger *types.Ledger, system System) []Rank {
	if ledger == nil {
		return []Rank{}
	}
	switch system {
	case BordaCount:
		return borda(ledger)
	case InstantRunoff:
		_, final := runoff(ledger)
		return final
	default:
		return []Rank{}
	}
}

// borda awards 5*(n-i) points to the candidate at position i of a ballot
// ranking n candidates, summed over every ballot of every block.
func borda(ledger *types.Ledger) []Rank {
	t := newTally()
	for _, block := range ledger.Chain {
		for _, rec := range block.Ballots {
			candidates := rec.Ballot.Candidates
			n := len(candidates)
			for i, c := range candidates {
				t.add(c, bordaWeight*(n-i))
			}
		}
	}
	return t.ranking()
}

// BallotPoints returns the Borda points a single ballot allocates, aligned
// with its candidates.
func BallotPoints(candidates []types.Candidate) []int {
	n := len(candidates)
	points := make([]int, n)
	for i := range candidates {
		points[i] = bordaWeight * (n - i)
	}
	return points
}

// tally accumulates scores while remembering first-encounter order, which
// is what ties fall back to.
type tally struct {
	order  []types.Candidate
	scores map[types.Candidate]int
}

func newTally() *tally {
	return &tally{scores: make(map[types.Candidate]int)}
}

func (t *tally) add(c types.Candidate, points int) {
	if _, ok := t.scores[c]; !ok {
		t.order = append(t.order, c)
	}
	t.scores[c] += points
}

func (t *tally) total() int {
	sum := 0
	for _, c := range t.order {
		sum += t.scores[c]
	}
	return sum
}

// encounter returns the scores in first-encounter order.
func (t *tally) encounter() []Rank {
	ranks := make([]Rank, 0, len(t.order))
	for _, c := range t.order {
		ranks = append(ranks, Rank{Name: c, Value: t.scores[c]})
	}
	return ranks
}

// ranking returns the scores sorted descending; ties keep encounter order.
func (t *tally) ranking() []Rank {
	ranks := t.encounter()
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].Value > ranks[j].Value
	})
	return ranks
}
