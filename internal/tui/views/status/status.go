package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Health    sampler.HealthReport
	Seq       uint64
	Missed    uint64
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr
	if m.Health.Status != "" {
		health := fmt.Sprintf("sampler: %s", m.Health.Status)
		if m.Health.ConsecutiveFailures > 0 {
			health += fmt.Sprintf(" (%d failing)", m.Health.ConsecutiveFailures)
		}
		content += sep + lipgloss.NewStyle().Foreground(theme.HealthColor(m.Health.Status)).Render(health)
	}
	content += sep + theme.StyleDimmed.Render(fmt.Sprintf("seq %d", m.Seq))
	if m.Missed > 0 {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(fmt.Sprintf("%d dropped", m.Missed))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
