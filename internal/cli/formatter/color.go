package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/tempo/internal/connectivity"
	"github.com/alexanderramin/tempo/internal/tracker"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// OutcomeStyle colors a command outcome: confirmed green, queued yellow,
// rolled back red, no-op dim.
func OutcomeStyle(o tracker.Outcome) lipgloss.Style {
	switch o {
	case tracker.OutcomeConfirmed:
		return StyleGreen
	case tracker.OutcomeQueued:
		return StyleYellow
	case tracker.OutcomeRolledBack:
		return StyleRed
	default:
		return StyleDim
	}
}

// ConnectivityPill renders "● ONLINE" or "○ OFFLINE".
func ConnectivityPill(s connectivity.Status) string {
	if s == connectivity.Online {
		return StyleGreen.Render("● ONLINE")
	}
	return StyleYellow.Render("○ OFFLINE")
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
