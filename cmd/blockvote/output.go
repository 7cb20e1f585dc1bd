package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/types"
)

// nodesTable renders the node list the way the dashboard's nodes panel
// does: one row per port, offline nodes kept.
func nodesTable(nodes []registry.NodeInfo) pterm.TableData {
	data := pterm.TableData{{"Port", "Status", "Role", "Chains", "Peers", "Mining"}}
	for _, n := range nodes {
		status := pterm.LightGreen("online")
		if !n.Online {
			status = pterm.LightRed("offline")
		}
		mining := "-"
		if n.Mining != nil {
			mining = strconv.Itoa(*n.Mining)
		}
		peers := make([]string, len(n.Nodes))
		for i, p := range n.Nodes {
			peers[i] = strconv.Itoa(p)
		}
		data = append(data, []string{
			strconv.Itoa(n.Port),
			status,
			n.Role(),
			strconv.Itoa(n.BlockchainCount),
			strings.Join(peers, ","),
			mining,
		})
	}
	return data
}

func electionsTable(ledgers []types.Ledger) pterm.TableData {
	data := pterm.TableData{{"ID", "Label", "Candidates", "Ballots", "Blocks"}}
	for i := range ledgers {
		l := &ledgers[i]
		data = append(data, []string{
			l.ID,
			l.ElectionLabel(),
			strings.Join(l.Candidates(), ", "),
			strconv.Itoa(l.BallotCount()),
			strconv.Itoa(len(l.Chain)),
		})
	}
	return data
}

func rankingTable(ranking []tally.Rank) pterm.TableData {
	data := pterm.TableData{{"#", "Candidate", "Score"}}
	for i, r := range ranking {
		data = append(data, []string{strconv.Itoa(i + 1), r.Name, strconv.Itoa(r.Value)})
	}
	return data
}

func renderTable(data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// printResults prints the ranking of ledger under system, with the round
// trace for instant runoff.
func printResults(ledger *types.Ledger, system tally.System) error {
	pterm.DefaultSection.Printfln("%s [%s] by %s", ledger.ElectionLabel(), ledger.ID, system)
	ranking := tally.ComputeRanking(ledger, system)
	if len(ranking) == 0 {
		pterm.Info.Println("No ballots counted yet")
		return nil
	}
	if err := renderTable(rankingTable(ranking)); err != nil {
		return err
	}
	if system != tally.InstantRunoff {
		return nil
	}
	for _, r := range tally.RunoffRounds(ledger) {
		counts := make([]string, len(r.Counts))
		for i, c := range r.Counts {
			counts[i] = fmt.Sprintf("%s=%d", c.Name, c.Value)
		}
		outcome := "no majority"
		switch {
		case r.Winner != "":
			outcome = r.Winner + " wins"
		case r.Eliminated != "":
			outcome = "eliminated " + r.Eliminated
		}
		pterm.Printfln("Round %d (%d ballots): %s -> %s", r.Number, r.Total, strings.Join(counts, " "), outcome)
	}
	return nil
}
