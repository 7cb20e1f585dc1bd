package tui

// FooterBar renders the keyboard shortcuts footer.
type FooterBar struct {
	terminalWidth int
}

// NewFooterBar creates a footer bar renderer.
func NewFooterBar(width int) *FooterBar {
	return &FooterBar{
		terminalWidth: width,
	}
}

// SetWidth updates the terminal width for the footer bar. Zero means
// unknown and renders the full shortcuts.
func (f *FooterBar) SetWidth(width int) {
	f.terminalWidth = width
}

// Render outputs the footer bar content.
// Full (width >= 80 or unknown): "Tab: Next Panel | r: Refresh | s: System | j/k: Node | n/p: Election | q: Quit"
// Abbreviated (width < 80): "Tab:Panel r:Ref s:Sys j/k:Node n/p:Elec q:Quit"
// When in command panel: "Enter: Execute | Esc: Clear | Tab: Next Panel"
func (f *FooterBar) Render(inCommandPanel bool) string {
	narrow := f.terminalWidth > 0 && f.terminalWidth < 80
	switch {
	case inCommandPanel && narrow:
		return "Enter:Exec Esc:Clear Tab:Panel"
	case inCommandPanel:
		return "Enter: Execute | Esc: Clear | Tab: Next Panel"
	case narrow:
		return "Tab:Panel r:Ref s:Sys j/k:Node n/p:Elec q:Quit"
	default:
		return "Tab: Next Panel | r: Refresh | s: System | j/k: Node | n/p: Election | q: Quit"
	}
}
