package tui

// PanelOrder defines the circular navigation order of panels.
// Order: Nodes → Elections → Results → Vote → Command → Nodes
var PanelOrder = []PanelType{
	PanelNodes,
	PanelElections,
	PanelResults,
	PanelVote,
	PanelCommand,
}

// NextPanel returns the next panel in the circular navigation order.
func NextPanel(current PanelType) PanelType {
	return GetPanelByIndex(int(current) + 1)
}

// PrevPanel returns the previous panel in the circular navigation order.
func PrevPanel(current PanelType) PanelType {
	return GetPanelByIndex(int(current) - 1)
}

// GetPanelByIndex returns the panel at the given index in the navigation order.
// The index wraps around if out of bounds.
func GetPanelByIndex(index int) PanelType {
	index = ((index % PanelCount) + PanelCount) % PanelCount
	return PanelOrder[index]
}

// IsValidPanel returns true if the panel type is valid.
func IsValidPanel(panel PanelType) bool {
	return panel >= 0 && panel < PanelType(PanelCount)
}

// nextIndex steps through a list of n entries from current, wrapping.
// A current index of -1 starts at the first (step > 0) or last entry.
func nextIndex(current, n, step int) int {
	if n == 0 {
		return -1
	}
	if current < 0 {
		if step > 0 {
			return 0
		}
		return n - 1
	}
	return ((current+step)%n + n) % n
}
