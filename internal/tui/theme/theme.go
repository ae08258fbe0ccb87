// Package theme provides the Lip Gloss color palette and reusable styles
// for the headroom TUI.
package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
)

// Severity colors.
var (
	ColorNormal   = lipgloss.Color("#22c55e")
	ColorWarning  = lipgloss.Color("#eab308")
	ColorUrgent   = lipgloss.Color("#d97706")
	ColorCritical = lipgloss.Color("#dc2626")
	ColorTerminal = lipgloss.Color("#a21caf")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorDefault = lipgloss.Color("#9ca3af")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// LevelColor returns the color for a severity or pressure level.
func LevelColor(l severity.Level) lipgloss.Color {
	switch l {
	case severity.Normal:
		return ColorNormal
	case severity.Warning:
		return ColorWarning
	case severity.Urgent:
		return ColorUrgent
	case severity.Critical:
		return ColorCritical
	case severity.Terminal:
		return ColorTerminal
	default:
		return ColorDefault
	}
}

// HealthColor returns the color for a sampler health status.
func HealthColor(s sampler.HealthStatus) lipgloss.Color {
	switch s {
	case sampler.StatusHealthy:
		return ColorHealthy
	case sampler.StatusDegraded:
		return ColorUrgent
	case sampler.StatusFailed:
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// LevelGlyph returns a short marker that distinguishes levels without color.
func LevelGlyph(l severity.Level) string {
	switch l {
	case severity.Normal:
		return "○"
	case severity.Warning:
		return "◔"
	case severity.Urgent:
		return "◑"
	case severity.Critical:
		return "◕"
	case severity.Terminal:
		return "●"
	default:
		return "·"
	}
}

// Level renders l's name in its color.
func Level(l severity.Level) string {
	return lipgloss.NewStyle().Bold(true).Foreground(LevelColor(l)).Render(l.String())
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)
)
