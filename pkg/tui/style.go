package tui

import "github.com/gdamore/tcell/v2"

// Theme defines the color palette for the application.
type Theme struct {
	Primary    tcell.Color
	Background tcell.Color
	Text       tcell.Color
	Muted      tcell.Color
	Success    tcell.Color
	Warning    tcell.Color
	Error      tcell.Color
	Highlight  tcell.Color
}

// DefaultTheme defines the dark mode colors.
var DefaultTheme = Theme{
	Primary:    tcell.NewRGBColor(99, 102, 241),  // Indigo
	Background: tcell.NewRGBColor(15, 23, 42),    // Slate 900
	Text:       tcell.NewRGBColor(226, 232, 240), // Slate 200
	Muted:      tcell.NewRGBColor(148, 163, 184), // Slate 400
	Success:    tcell.NewRGBColor(34, 197, 94),   // Green 500
	Warning:    tcell.NewRGBColor(234, 179, 8),   // Yellow 500
	Error:      tcell.NewRGBColor(239, 68, 68),   // Red 500
	Highlight:  tcell.NewRGBColor(56, 189, 248),  // Sky 400
}

// LineKind tells the renderer how to style a line of view output.
type LineKind int

const (
	LineNormal LineKind = iota
	LineHeader
	LineFocused
	LineMuted
	LineSuccess
	LineWarning
	LineError
)

// Styles container for application-wide styles.
type Styles struct {
	Normal  tcell.Style
	Header  tcell.Style
	Focused tcell.Style
	Muted   tcell.Style
	Success tcell.Style
	Warning tcell.Style
	Error   tcell.Style
}

// GetStyles returns the style definitions based on the given theme.
func GetStyles(theme Theme) Styles {
	base := tcell.StyleDefault.Background(theme.Background).Foreground(theme.Text)

	return Styles{
		Normal:  base,
		Header:  base.Foreground(theme.Primary).Bold(true),
		Focused: base.Foreground(theme.Highlight),
		Muted:   base.Foreground(theme.Muted),
		Success: base.Foreground(theme.Success),
		Warning: base.Foreground(theme.Warning),
		Error:   base.Foreground(theme.Error).Bold(true),
	}
}

// For returns the style of a line kind.
func (s Styles) For(kind LineKind) tcell.Style {
	switch kind {
	case LineHeader:
		return s.Header
	case LineFocused:
		return s.Focused
	case LineMuted:
		return s.Muted
	case LineSuccess:
		return s.Success
	case LineWarning:
		return s.Warning
	case LineError:
		return s.Error
	default:
		return s.Normal
	}
}

// CurrentStyles holds the global styles instance.
var CurrentStyles = GetStyles(DefaultTheme)
