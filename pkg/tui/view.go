package tui

import (
	"strings"
	"unicode/utf8"
)

// BorderStyle defines the characters used for panel borders.
type BorderStyle struct {
	TopLeft     string
	TopRight    string
	BottomLeft  string
	BottomRight string
	Horizontal  string
	Vertical    string
}

// NormalBorder is the default border style for unfocused panels.
// Uses single-line box drawing characters (┌─┐│└┘).
var NormalBorder = BorderStyle{
	TopLeft:     "┌",
	TopRight:    "┐",
	BottomLeft:  "└",
	BottomRight: "┘",
	Horizontal:  "─",
	Vertical:    "│",
}

// FocusedBorder is the border style for focused panels.
// Uses double-line box drawing characters (╔═╗║╚╝).
var FocusedBorder = BorderStyle{
	TopLeft:     "╔",
	TopRight:    "╗",
	BottomLeft:  "╚",
	BottomRight: "╝",
	Horizontal:  "═",
	Vertical:    "║",
}

// Line is one row of rendered output.
type Line struct {
	Text string
	Kind LineKind
}

// View handles rendering the model to the terminal.
type View struct {
	header         *HeaderBar
	footer         *FooterBar
	nodesPanel     *NodesPanel
	electionsPanel *ElectionsPanel
	resultsPanel   *ResultsPanel
	votePanel      *VotePanel
	commandPanel   *CommandPanel
}

// NewView creates a new View with all panel renderers initialized.
func NewView() *View {
	unicode := DetectUnicodeSupport()
	return &View{
		header:         NewHeaderBar(unicode),
		footer:         NewFooterBar(80),
		nodesPanel:     NewNodesPanel(unicode),
		electionsPanel: NewElectionsPanel(),
		resultsPanel:   NewResultsPanel(unicode),
		votePanel:      NewVotePanel(),
		commandPanel:   NewCommandPanel(),
	}
}

// RenderPanelWithBorder wraps panel content with a border at least width
// cells wide. The border style depends on whether the panel has focus.
func RenderPanelWithBorder(content string, title string, focused bool, width int) string {
	border := NormalBorder
	if focused {
		border = FocusedBorder
	}

	lines := strings.Split(content, "\n")

	titleLen := utf8.RuneCountInString(title)
	inner := titleLen + 4
	for _, line := range lines {
		if n := utf8.RuneCountInString(line); n > inner {
			inner = n
		}
	}
	inner += 2
	if width-2 > inner {
		inner = width - 2
	}

	var sb strings.Builder

	// Top border with title
	sb.WriteString(border.TopLeft)
	titlePadding := (inner - titleLen - 2) / 2
	sb.WriteString(strings.Repeat(border.Horizontal, titlePadding))
	sb.WriteString(" " + title + " ")
	sb.WriteString(strings.Repeat(border.Horizontal, inner-titlePadding-titleLen-2))
	sb.WriteString(border.TopRight)
	sb.WriteString("\n")

	for _, line := range lines {
		sb.WriteString(border.Vertical)
		sb.WriteString(" ")
		sb.WriteString(line)
		if padding := inner - utf8.RuneCountInString(line) - 1; padding > 0 {
			sb.WriteString(strings.Repeat(" ", padding))
		}
		sb.WriteString(border.Vertical)
		sb.WriteString("\n")
	}

	sb.WriteString(border.BottomLeft)
	sb.WriteString(strings.Repeat(border.Horizontal, inner))
	sb.WriteString(border.BottomRight)
	sb.WriteString("\n")

	return sb.String()
}

// RenderPanel renders a single panel with its content and border.
func (v *View) RenderPanel(panelType PanelType, model *Model, width int) string {
	var content string

	switch panelType {
	case PanelNodes:
		content = v.nodesPanel.Render(model)
	case PanelElections:
		content = v.electionsPanel.Render(model)
	case PanelResults:
		content = v.resultsPanel.Render(model)
	case PanelVote:
		content = v.votePanel.Render(model)
	case PanelCommand:
		content = v.commandPanel.Render(model)
	default:
		content = "Unknown panel type"
	}

	return RenderPanelWithBorder(content, panelType.String(), model.ActivePanel == panelType, width)
}

// Lines renders the whole dashboard as styled lines for a terminal of the
// given width.
func (v *View) Lines(model *Model, width int) []Line {
	lines := []Line{{Text: v.header.Render(model), Kind: LineHeader}}

	for _, panel := range PanelOrder {
		kind := LineNormal
		if model.ActivePanel == panel {
			kind = LineFocused
		}
		rendered := strings.TrimSuffix(v.RenderPanel(panel, model, width), "\n")
		for _, text := range strings.Split(rendered, "\n") {
			lk := kind
			switch {
			case strings.Contains(text, "Error: ") || strings.Contains(text, "[last "):
				lk = LineError
			case strings.Contains(text, "(offline)") || strings.Contains(text, "in flight"):
				lk = LineWarning
			case strings.Contains(text, "Output: "):
				lk = LineSuccess
			}
			lines = append(lines, Line{Text: text, Kind: lk})
		}
	}

	v.footer.SetWidth(width)
	lines = append(lines, Line{Text: v.footer.Render(model.ActivePanel == PanelCommand), Kind: LineMuted})
	return lines
}

// Render returns the dashboard as plain text.
func (v *View) Render(model *Model) string {
	var sb strings.Builder
	for _, line := range v.Lines(model, 0) {
		sb.WriteString(line.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
