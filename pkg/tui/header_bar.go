package tui

import (
	"fmt"
	"os"
	"strings"
)

// Unicode symbols for health indicators
const (
	SymbolOnline   = "●"
	SymbolOffline  = "○"
	SymbolSelected = "★"
)

// ASCII fallback symbols for health indicators
const (
	SymbolOnlineASCII   = "[+]"
	SymbolOfflineASCII  = "[-]"
	SymbolSelectedASCII = "[*]"
)

func healthSymbol(online bool, unicode bool) string {
	switch {
	case unicode && online:
		return SymbolOnline
	case unicode:
		return SymbolOffline
	case online:
		return SymbolOnlineASCII
	default:
		return SymbolOfflineASCII
	}
}

// DetectUnicodeSupport reports whether the locale looks like UTF-8.
func DetectUnicodeSupport() bool {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(key); v != "" {
			v = strings.ToUpper(v)
			return strings.Contains(v, "UTF-8") || strings.Contains(v, "UTF8")
		}
	}
	return true
}

// HeaderBar renders the cluster overview header.
type HeaderBar struct {
	unicodeSupport bool
}

// NewHeaderBar creates a header bar renderer.
func NewHeaderBar(unicodeSupport bool) *HeaderBar {
	return &HeaderBar{unicodeSupport: unicodeSupport}
}

// Render outputs the header bar content.
// Format: "blockvote | Online 2/3 | Node 5000 | Mayor | Borda Count | 5000:★ 5001:● 5003:○"
func (h *HeaderBar) Render(model *Model) string {
	if model == nil {
		return ""
	}

	node := "(none)"
	if model.Selection.SelectedNode != 0 {
		node = fmt.Sprint(model.Selection.SelectedNode)
	}
	election := model.Selection.ElectionLabel
	if election == "" {
		election = "(no election)"
	}

	parts := []string{
		"blockvote",
		fmt.Sprintf("Online %d/%d", model.OnlineCount(), len(model.Nodes)),
		"Node " + node,
		election,
		string(model.Selection.System),
	}
	if indicators := h.buildHealthIndicators(model); indicators != "" {
		parts = append(parts, indicators)
	}
	if model.Refreshing {
		parts = append(parts, "scanning")
	}
	return strings.Join(parts, " | ")
}

// buildHealthIndicators builds the health indicator string for all nodes.
func (h *HeaderBar) buildHealthIndicators(model *Model) string {
	indicators := make([]string, 0, len(model.Nodes))
	for _, n := range model.Nodes {
		symbol := healthSymbol(n.Online, h.unicodeSupport)
		if n.Online && n.Port == model.Selection.SelectedNode {
			symbol = SymbolSelected
			if !h.unicodeSupport {
				symbol = SymbolSelectedASCII
			}
		}
		indicators = append(indicators, fmt.Sprintf("%d:%s", n.Port, symbol))
	}
	return strings.Join(indicators, " ")
}
