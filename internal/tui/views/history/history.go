// Package history provides a scrollable log of accepted transitions.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
	"github.com/headroom/headroom/internal/tui/theme"
)

const maxEntries = 200

// Entry is one received transition.
type Entry struct {
	Time       time.Time
	Transition snapshot.Transition
}

// Model holds history state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
}

// New creates an empty history.
func New() Model {
	return Model{}
}

// Add appends a transition and caps the buffer.
func (m *Model) Add(at time.Time, t snapshot.Transition) {
	m.Entries = append(m.Entries, Entry{Time: at, Transition: t})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// Line renders one entry without the timestamp.
func Line(t snapshot.Transition) string {
	var parts []string
	if t.Changes.Has(severity.StateChanged) {
		parts = append(parts, fmt.Sprintf("state %s → %s", theme.Level(t.Old.State), theme.Level(t.New.State)))
	}
	if t.Changes.Has(severity.PressureChanged) {
		parts = append(parts, fmt.Sprintf("pressure %s → %s", theme.Level(t.Old.Pressure), theme.Level(t.New.Pressure)))
	}
	parts = append(parts, theme.StyleDimmed.Render(fmt.Sprintf("(%s of %s)",
		sampler.FormatBytes(t.New.UsedBytes), sampler.FormatBytes(t.New.LimitBytes))))
	return strings.Join(parts, "  ")
}

// View renders the visible tail of the history, at most height lines.
func (m Model) View(width, height int) string {
	title := theme.StyleHeader.Render("TRANSITIONS")
	if len(m.Entries) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, theme.StyleDimmed.Render("  none yet"))
	}

	visible := max(height-1, 1)
	end := len(m.Entries) - m.Offset
	start := max(end-visible, 0)

	lines := []string{title}
	for i := end - 1; i >= start; i-- {
		e := m.Entries[i]
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		lines = append(lines, lipgloss.NewStyle().MaxWidth(width).Render(ts+"  "+Line(e.Transition)))
	}
	if m.Offset > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  ↓ %d newer", m.Offset)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
