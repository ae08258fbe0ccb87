package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/snapshot"
	"github.com/headroom/headroom/internal/tui/client"
	"github.com/headroom/headroom/internal/tui/theme"
	"github.com/headroom/headroom/internal/tui/views/history"
	"github.com/headroom/headroom/internal/tui/views/status"
)

const (
	defaultProbe = 64 << 20
	minProbe     = 1 << 20
	maxProbe     = 1 << 40
)

// Allocator answers allocation probes. *client.HTTPClient implements it.
type Allocator interface {
	CanAllocate(bytes uint64) (bool, error)
	Snapshot() (snapshot.Snapshot, error)
}

// allocateResultMsg carries the answer to an allocation probe.
type allocateResultMsg struct {
	bytes uint64
	ok    bool
	err   error
}

// refreshMsg carries a snapshot fetched over HTTP.
type refreshMsg struct {
	snap snapshot.Snapshot
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   Allocator
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	keys   KeyMap
	width  int
	height int

	current  snapshot.Snapshot
	haveSnap bool

	probe       uint64
	probeResult string

	gauge     progress.Model
	statusBar status.Model
	history   history.Model

	connected bool
}

// New creates the root model.
func New(ws *client.WSClient, http Allocator) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		keys:      DefaultKeyMap(),
		probe:     defaultProbe,
		gauge:     progress.New(progress.WithDefaultGradient()),
		statusBar: status.New(),
		history:   history.New(),
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.gauge.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		m.setSnapshot(msg.Payload.Snapshot)
		m.statusBar.Health = msg.Payload.Health
		m.syncSeq()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSTransitionMsg:
		t := snapshot.Transition{Old: msg.Payload.Old, New: msg.Payload.New, Changes: msg.Payload.Changes}
		m.setSnapshot(t.New)
		m.history.Add(m.now(), t)
		m.syncSeq()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSHealthMsg:
		m.statusBar.Health = msg.Payload
		m.syncSeq()
		return m, m.ws.ReadLoop(m.ctx)

	case allocateResultMsg:
		switch {
		case msg.err != nil:
			m.probeResult = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("error: " + msg.err.Error())
		case msg.ok:
			m.probeResult = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render(sampler.FormatBytes(msg.bytes) + " fits")
		default:
			m.probeResult = lipgloss.NewStyle().Foreground(theme.ColorCritical).Render(sampler.FormatBytes(msg.bytes) + " does not fit")
		}
		return m, nil

	case refreshMsg:
		if msg.err == nil {
			m.setSnapshot(msg.snap)
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) setSnapshot(s snapshot.Snapshot) {
	m.current = s
	m.haveSnap = true
}

func (m *Model) syncSeq() {
	if m.ws == nil {
		return
	}
	m.statusBar.Seq = m.ws.Seq()
	m.statusBar.Missed = m.ws.Missed()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		if m.ws != nil {
			m.ws.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.history.ScrollUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.history.ScrollDown(1)
		return m, nil

	case key.Matches(msg, m.keys.Bigger):
		m.probe = min(m.probe*2, maxProbe)
		m.probeResult = ""
		return m, nil

	case key.Matches(msg, m.keys.Smaller):
		m.probe = max(m.probe/2, minProbe)
		m.probeResult = ""
		return m, nil

	case key.Matches(msg, m.keys.Check):
		return m, m.checkAllocation(m.probe)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	}

	return m, nil
}

func (m Model) checkAllocation(bytes uint64) tea.Cmd {
	alloc := m.http
	return func() tea.Msg {
		ok, err := alloc.CanAllocate(bytes)
		return allocateResultMsg{bytes: bytes, ok: ok, err: err}
	}
}

func (m Model) refresh() tea.Cmd {
	alloc := m.http
	return func() tea.Msg {
		s, err := alloc.Snapshot()
		return refreshMsg{snap: s, err: err}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if !m.connected {
		return m.renderDisconnected()
	}

	sections := []string{
		m.statusBar.View(),
		m.renderGauge(),
		m.renderProbe(),
		m.history.View(m.width, max(m.height-14, 3)),
		theme.StyleDimmed.Render("  j/k:scroll  +/-:probe size  c:check  r:refresh  q:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDisconnected() string {
	box := theme.StyleBorder.
		Padding(1, 4).
		BorderForeground(theme.ColorDanger).
		Render(lipgloss.JoinVertical(lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
			theme.StyleDimmed.Render("Reconnecting to headroomd..."),
		))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderGauge() string {
	if !m.haveSnap {
		return theme.StyleBorder.Width(max(m.width-2, 20)).Render(theme.StyleDimmed.Render("waiting for first snapshot"))
	}
	s := m.current
	header := fmt.Sprintf("%s %s   pressure %s",
		theme.LevelGlyph(s.State), theme.Level(s.State), theme.Level(s.Pressure))
	detail := theme.StyleDimmed.Render(fmt.Sprintf("%s used of %s, %s free",
		sampler.FormatBytes(s.UsedBytes), sampler.FormatBytes(s.LimitBytes), sampler.FormatBytes(s.RemainingBytes)))

	return theme.StyleBorder.
		Width(max(m.width-2, 20)).
		Padding(0, 1).
		BorderForeground(theme.LevelColor(s.State)).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, m.gauge.ViewAs(s.Ratio()), detail))
}

func (m Model) renderProbe() string {
	line := fmt.Sprintf("  probe %s", sampler.FormatBytes(m.probe))
	if m.probeResult != "" {
		line += "  " + m.probeResult
	}
	return line
}
