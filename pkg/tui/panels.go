package tui

import (
	"fmt"
	"strings"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/tally"
)

// shortID trims election ids for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NodesPanel renders the discovered nodes and the topology they report.
type NodesPanel struct {
	unicode bool
}

// NewNodesPanel creates a new NodesPanel.
func NewNodesPanel(unicode bool) *NodesPanel {
	return &NodesPanel{unicode: unicode}
}

// Render lists every known node with its liveness, role and chain count.
// The selected node is marked with '>'.
func (p *NodesPanel) Render(model *Model) string {
	var sb strings.Builder
	if model.Refreshing {
		sb.WriteString("Scanning ports...\n")
	}
	if len(model.Nodes) == 0 {
		sb.WriteString("No nodes discovered. Press r to scan.")
		return sb.String()
	}

	for _, n := range model.Nodes {
		marker := " "
		if n.Port == model.Selection.SelectedNode {
			marker = ">"
		}
		sb.WriteString(fmt.Sprintf("%s %s %-5s %d  chains=%d", marker, healthSymbol(n.Online, p.unicode), n.Role(), n.Port, n.BlockchainCount))
		if !n.Online {
			sb.WriteString("  (offline)")
		} else if n.IsMiner && n.Mining != nil {
			sb.WriteString(fmt.Sprintf("  mining block %d", *n.Mining))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Topology:")
	edges := groupEdges(model.Graph)
	if len(edges) == 0 {
		sb.WriteString(" (no links reported)")
	}
	for _, v := range model.Graph.Vertices {
		peers, ok := edges[v.Port]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n  %d -> %s", v.Port, strings.Join(peers, ", ")))
	}
	return sb.String()
}

func groupEdges(g registry.Graph) map[int][]string {
	out := make(map[int][]string)
	for _, e := range g.Edges {
		out[e.From] = append(out[e.From], fmt.Sprint(e.To))
	}
	return out
}

// ElectionsPanel renders the elections held by the selected node.
type ElectionsPanel struct{}

// NewElectionsPanel creates a new ElectionsPanel.
func NewElectionsPanel() *ElectionsPanel {
	return &ElectionsPanel{}
}

// Render lists elections in the order the node returned them.
func (p *ElectionsPanel) Render(model *Model) string {
	if model.Selection.SelectedNode == 0 {
		return "No node selected"
	}
	if len(model.Elections) == 0 {
		return fmt.Sprintf("No elections on node %d", model.Selection.SelectedNode)
	}

	var sb strings.Builder
	for i := range model.Elections {
		l := &model.Elections[i]
		marker := " "
		if l.ID == model.Selection.SelectedElection {
			marker = ">"
		}
		sb.WriteString(fmt.Sprintf("%s %s [%s]  ballots=%d blocks=%d", marker, l.ElectionLabel(), shortID(l.ID), l.BallotCount(), len(l.Chain)))
		if i < len(model.Elections)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// ResultsPanel renders the ranking of the selected election.
type ResultsPanel struct {
	bar *ResultBar
}

// NewResultsPanel creates a new ResultsPanel.
func NewResultsPanel(unicode bool) *ResultsPanel {
	return &ResultsPanel{bar: NewResultBar(20, unicode)}
}

// Render shows the ranking under the current system. Instant runoff also
// shows the round-by-round count.
func (p *ResultsPanel) Render(model *Model) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("System: %s (s to switch)\n", model.Selection.System))

	if model.Selection.SelectedElection == "" {
		sb.WriteString("No election selected")
		return sb.String()
	}
	if len(model.Ranking) == 0 {
		sb.WriteString("No ballots counted yet")
		return sb.String()
	}

	width := 0
	for _, r := range model.Ranking {
		if len(r.Name) > width {
			width = len(r.Name)
		}
	}
	top := model.Ranking[0].Value
	for i, r := range model.Ranking {
		sb.WriteString(fmt.Sprintf("%d. %-*s %s", i+1, width, r.Name, p.bar.Render(r.Value, top)))
		if i < len(model.Ranking)-1 {
			sb.WriteString("\n")
		}
	}

	if model.Selection.System == tally.InstantRunoff {
		for _, round := range model.Rounds {
			sb.WriteString("\n")
			sb.WriteString(formatRound(round))
		}
	}
	return sb.String()
}

func formatRound(r tally.Round) string {
	counts := make([]string, len(r.Counts))
	for i, c := range r.Counts {
		counts[i] = fmt.Sprintf("%s=%d", c.Name, c.Value)
	}
	line := fmt.Sprintf("Round %d (%d ballots): %s", r.Number, r.Total, strings.Join(counts, " "))
	switch {
	case r.Winner != "":
		line += fmt.Sprintf(" -> %s wins with %.0f%%", r.Winner, Percentage(countOf(r, r.Winner), r.Total))
	case r.Eliminated != "":
		line += " -> eliminated " + r.Eliminated
	}
	return line
}

func countOf(r tally.Round, name string) int {
	for _, c := range r.Counts {
		if c.Name == name {
			return c.Value
		}
	}
	return 0
}

// VotePanel renders the ballot being prepared and the election forms.
type VotePanel struct{}

// NewVotePanel creates a new VotePanel.
func NewVotePanel() *VotePanel {
	return &VotePanel{}
}

// Render shows the working candidate order, the key forms and the
// new-election form with their validity.
func (p *VotePanel) Render(model *Model) string {
	s := model.Selection
	var sb strings.Builder

	if s.SelectedElection == "" {
		sb.WriteString("No election selected\n")
	} else {
		sb.WriteString(fmt.Sprintf("Ballot for %s:\n", s.ElectionLabel))
		for i, c := range s.Ordering {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, c))
		}
	}

	key := "(none)"
	if s.BallotKey != "" {
		key = ballot.Fingerprint(s.BallotKey) + "…"
		if s.BallotValid {
			key += " ready"
		} else {
			key += " invalid"
		}
	}
	sb.WriteString("Key: " + key)
	if s.BallotError {
		sb.WriteString("  [last ballot rejected]")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Batch: %d keys", len(s.BatchKeys)))
	if len(s.BatchKeys) > 0 && !s.BatchBallotValid {
		sb.WriteString(" (some invalid)")
	}
	if s.BatchBallotError {
		sb.WriteString("  [last batch had failures]")
	}
	sb.WriteString("\n")

	ne := s.NewElection
	status := "incomplete"
	if s.NewElectionValid {
		status = "ready"
	}
	sb.WriteString(fmt.Sprintf("New election: %s | %s | %d ballots (%s)", ne.Label, strings.Join(ne.Candidates, ", "), ne.BallotCount, status))
	if len(s.IssuedKeys) > 0 {
		sb.WriteString(fmt.Sprintf("\nIssued %d signing keys, see command output", len(s.IssuedKeys)))
	}
	return sb.String()
}

// CommandPanel renders the command input and output area.
type CommandPanel struct{}

// NewCommandPanel creates a new CommandPanel.
func NewCommandPanel() *CommandPanel {
	return &CommandPanel{}
}

// Render outputs the command panel content: the input line, the result of
// the last command, requests still in flight and recent activity.
func (p *CommandPanel) Render(model *Model) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("> %s", model.CommandInput))

	if model.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("\nError: %s", model.ErrorMessage))
	}
	if model.CommandOutput != "" {
		sb.WriteString(fmt.Sprintf("\nOutput: %s", model.CommandOutput))
	}
	if model.Pending > 0 {
		sb.WriteString(fmt.Sprintf("\n%d request(s) in flight", model.Pending))
	}
	for _, a := range model.Activity {
		sb.WriteString(fmt.Sprintf("\n  %s %s", a.Time.Format("15:04:05"), a.Message))
	}
	return sb.String()
}
