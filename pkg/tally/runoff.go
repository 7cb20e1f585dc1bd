package tally

import (
	"github.com/salahayoub/blockvote/pkg/types"
)

// Round records one iteration of instant-runoff counting.
type Round struct {
	Number int
	// Counts holds the top-choice count of every candidate that is some
	// active ballot's first remaining choice, in ballot-scan order.
	Counts []Rank
	// Total is the number of active ballots in this round.
	Total int
	// Winner is set when a candidate held a strict majority this round.
	Winner types.Candidate
	// Eliminated is set when no majority existed.
	Eliminated types.Candidate
}

// RunoffRounds returns the round-by-round trace of an instant-runoff count.
func RunoffRounds(ledger *types.Ledger) []Round {
	if ledger == nil {
		return nil
	}
	rounds, _ := runoff(ledger)
	return rounds
}

// runoff repeatedly eliminates the weakest candidate until one holds a
// strict majority of active top choices or every ballot is exhausted.
//
// Ties for last place are broken by eliminating the candidate first seen
// when scanning the active ballots in ledger order (oldest block first,
// ballots in block order). An eliminated candidate still sitting further
// down a ballot is skipped once it reaches the front.
func runoff(ledger *types.Ledger) ([]Round, []Rank) {
	ballots := collectBallots(ledger)
	eliminated := make(map[types.Candidate]bool)

	var rounds []Round
	for len(ballots) > 0 {
		t := topChoices(ballots)
		round := Round{
			Number: len(rounds) + 1,
			Counts: t.encounter(),
			Total:  t.total(),
		}

		if leader, count := t.max(); count*2 > round.Total {
			round.Winner = leader
			rounds = append(rounds, round)
			break
		}

		worst := t.min()
		round.Eliminated = worst
		rounds = append(rounds, round)
		eliminated[worst] = true

		remaining := make([][]types.Candidate, 0, len(ballots))
		for _, b := range ballots {
			for len(b) > 0 && eliminated[b[0]] {
				b = b[1:]
			}
			if len(b) > 0 {
				remaining = append(remaining, b)
			}
		}
		ballots = remaining
	}

	return rounds, topChoices(ballots).ranking()
}

// collectBallots gathers every non-empty ranked preference in ledger order.
// The slices alias the ledger but are only ever re-sliced, never written.
func collectBallots(ledger *types.Ledger) [][]types.Candidate {
	var ballots [][]types.Candidate
	for _, block := range ledger.Chain {
		for _, rec := range block.Ballots {
			if len(rec.Ballot.Candidates) > 0 {
				ballots = append(ballots, rec.Ballot.Candidates)
			}
		}
	}
	return ballots
}

// topChoices counts each active ballot's first remaining candidate.
func topChoices(ballots [][]types.Candidate) *tally {
	t := newTally()
	for _, b := range ballots {
		t.add(b[0], 1)
	}
	return t
}

// max returns the candidate with the highest score; ties go to the first
// encountered.
func (t *tally) max() (types.Candidate, int) {
	var best types.Candidate
	bestScore := -1
	for _, c := range t.order {
		if t.scores[c] > bestScore {
			best, bestScore = c, t.scores[c]
		}
	}
	return best, bestScore
}

// min returns the candidate with the lowest score; ties go to the first
// encountered.
func (t *tally) min() types.Candidate {
	var worst types.Candidate
	worstScore := 0
	for i, c := range t.order {
		if i == 0 || t.scores[c] < worstScore {
			worst, worstScore = c, t.scores[c]
		}
	}
	return worst
}
