package tui

import (
	"time"

	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/selection"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/types"
)

// PanelType identifies which panel has focus.
type PanelType int

const (
	PanelNodes PanelType = iota
	PanelElections
	PanelResults
	PanelVote
	PanelCommand
)

// String returns a human-readable representation of the PanelType.
func (p PanelType) String() string {
	switch p {
	case PanelNodes:
		return "Nodes"
	case PanelElections:
		return "Elections"
	case PanelResults:
		return "Results"
	case PanelVote:
		return "Vote"
	case PanelCommand:
		return "Command"
	default:
		return "Unknown"
	}
}

// PanelCount is the total number of panels for navigation.
const PanelCount = 5

// maxActivity bounds the activity feed.
const maxActivity = 10

// Activity is one line of the activity feed.
type Activity struct {
	Time    time.Time
	Message string
}

// Model holds what the dashboard shows. It is refreshed from the registry
// and the selection coordinator before every render.
type Model struct {
	// Cluster state
	Nodes      []registry.NodeInfo
	Graph      registry.Graph
	Refreshing bool

	// Selection state
	Selection selection.State
	Elections []types.Ledger
	Ranking   []tally.Rank
	Rounds    []tally.Round

	// UI state
	ActivePanel   PanelType
	CommandInput  string
	CommandOutput string
	ErrorMessage  string
	Pending       int
	Activity      []Activity

	// Configuration
	RefreshInterval time.Duration
}

// NewModel creates a new Model with default values.
func NewModel() *Model {
	return &Model{
		ActivePanel:     PanelNodes,
		RefreshInterval: 500 * time.Millisecond,
		Activity:        make([]Activity, 0, maxActivity),
	}
}

// NextPanel moves focus to the next panel in circular order.
func (m *Model) NextPanel() {
	m.ActivePanel = NextPanel(m.ActivePanel)
}

// PrevPanel moves focus to the previous panel in circular order.
func (m *Model) PrevPanel() {
	m.ActivePanel = PrevPanel(m.ActivePanel)
}

// AddActivity appends to the activity feed, dropping the oldest entry once
// the feed holds maxActivity entries.
func (m *Model) AddActivity(msg string) {
	if len(m.Activity) >= maxActivity {
		m.Activity = m.Activity[1:]
	}
	m.Activity = append(m.Activity, Activity{Time: time.Now(), Message: msg})
}

// OnlineCount returns the number of online nodes.
func (m *Model) OnlineCount() int {
	n := 0
	for _, node := range m.Nodes {
		if node.Online {
			n++
		}
	}
	return n
}
