package tui

import (
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// Cell represents a single character in the terminal.
type Cell struct {
	Rune  rune
	Style tcell.Style
}

// Buffer acts as an off-screen render target.
type Buffer struct {
	Cells  [][]Cell
	Width  int
	Height int
}

// NewBuffer creates a blank buffer of the specified size.
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	cells := make([][]Cell, height)
	for y := range cells {
		cells[y] = make([]Cell, width)
		for x := range cells[y] {
			cells[y][x] = Cell{Rune: ' ', Style: CurrentStyles.Normal}
		}
	}
	return &Buffer{
		Cells:  cells,
		Width:  width,
		Height: height,
	}
}

// ApplyToScreen copies the buffer onto the screen at the given offset.
func (b *Buffer) ApplyToScreen(screen tcell.Screen, offsetX, offsetY int) {
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			cell := b.Cells[y][x]
			screen.SetContent(offsetX+x, offsetY+y, cell.Rune, nil, cell.Style)
		}
	}
}

// Set writes a rune to the buffer at the specified coordinates.
func (b *Buffer) Set(x, y int, r rune, style tcell.Style) {
	if x >= 0 && x < b.Width && y >= 0 && y < b.Height {
		b.Cells[y][x] = Cell{Rune: r, Style: style}
	}
}

// DrawString writes a string to the buffer at (x, y), clipped to the
// buffer width.
func (b *Buffer) DrawString(x, y int, s string, style tcell.Style) {
	col := x
	for _, r := range s {
		if col >= b.Width {
			break
		}
		b.Set(col, y, r, style)
		col++
	}
}

// Alignment of text within a field.
const (
	AlignLeft = iota
	AlignCenter
	AlignRight
)

// DrawStringAligned draws s within a field of the given width.
func (b *Buffer) DrawStringAligned(x, y, width int, s string, style tcell.Style, align int) {
	n := utf8.RuneCountInString(s)
	if n > width {
		s = string([]rune(s)[:width])
		n = width
	}

	startX := x
	switch align {
	case AlignCenter:
		startX = x + (width-n)/2
	case AlignRight:
		startX = x + width - n
	}
	b.DrawString(startX, y, s, style)
}
