package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/flowcanvas/internal/flow"
)

// ---------------------------------------------------------------------------
// Catppuccin Mocha palette, true-color hex values.
// https://catppuccin.com/palette
// ---------------------------------------------------------------------------

const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorMauve    lipgloss.Color = "#cba6f7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorLavender lipgloss.Color = "#b4befe"

	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorOverlay0 lipgloss.Color = "#6c7086"
	colorSurface2 lipgloss.Color = "#585b70"
	colorSurface1 lipgloss.Color = "#45475a"
	colorBase     lipgloss.Color = "#1e1e2e"
)

// ---------------------------------------------------------------------------
// Semantic color aliases
// ---------------------------------------------------------------------------

const (
	colorAccent  = colorPink
	colorFocus   = colorLavender
	colorNote    = colorYellow
	colorInfo    = colorTeal
	colorMuted   = colorOverlay1
	colorConnect = colorSurface2
)

// KindColor is the glyph color for a node kind.
func KindColor(k flow.Kind) lipgloss.Color {
	switch k {
	case flow.KindStart:
		return colorGreen
	case flow.KindDecision:
		return colorPeach
	case flow.KindEnd:
		return colorRed
	default:
		return colorBlue
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	connectorStyle = lipgloss.NewStyle().Foreground(colorConnect)
	labelStyle     = lipgloss.NewStyle().Foreground(colorText)
	backRefStyle   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBase).Background(colorFocus)
	noteMarkStyle  = lipgloss.NewStyle().Foreground(colorNote)
	noteKeyStyle   = lipgloss.NewStyle().Foreground(colorMauve).Bold(true)
	noteTextStyle  = lipgloss.NewStyle().Foreground(colorNote)
	emptyStyle     = lipgloss.NewStyle().Foreground(colorOverlay0).Italic(true)
	promptStyle    = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(colorSubtext0)
	panelStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)
)
