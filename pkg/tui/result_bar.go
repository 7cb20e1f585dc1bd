package tui

import (
	"fmt"
	"strings"
)

// ResultBar renders a candidate's share of the leading score as a bar.
type ResultBar struct {
	width   int
	unicode bool
}

// NewResultBar creates a bar renderer. width is the number of cells
// between the brackets.
func NewResultBar(width int, unicode bool) *ResultBar {
	if width < 1 {
		width = 10
	}
	return &ResultBar{
		width:   width,
		unicode: unicode,
	}
}

// Render outputs a bar for value relative to max.
// Returns format: "[████████░░]  45"
func (p *ResultBar) Render(value, max int) string {
	filled, empty := "█", "░"
	if !p.unicode {
		filled, empty = "#", "-"
	}

	filledCount := 0
	if max > 0 && value > 0 {
		filledCount = value * p.width / max
		if filledCount > p.width {
			filledCount = p.width
		}
	}

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(strings.Repeat(filled, filledCount))
	sb.WriteString(strings.Repeat(empty, p.width-filledCount))
	sb.WriteString("]")
	sb.WriteString(fmt.Sprintf(" %4d", value))
	return sb.String()
}

// Percentage returns value as a share of total, 0 when total is 0.
func Percentage(value, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(value) / float64(total) * 100
}
