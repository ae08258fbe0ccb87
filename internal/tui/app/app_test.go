package app

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
	"github.com/headroom/headroom/internal/tui/client"
	"github.com/headroom/headroom/internal/ws"
)

type fakeAllocator struct {
	headroom uint64
	err      error
}

func (f fakeAllocator) CanAllocate(bytes uint64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return bytes < f.headroom, nil
}

func (f fakeAllocator) Snapshot() (snapshot.Snapshot, error) {
	return snapshot.New(900<<20, 100<<20, severity.Warning, 9), f.err
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func connected(t *testing.T, alloc Allocator) Model {
	t.Helper()
	m := sized(New(nil, alloc))
	m.connected = true
	m.statusBar.Connected = true
	return m
}

func TestDisconnectOverlay(t *testing.T) {
	m := New(nil, nil)
	m.width = 80
	m.height = 24
	m.connected = false

	v := m.View()
	if !strings.Contains(v, "DISCONNECTED") {
		t.Error("disconnect overlay should contain 'DISCONNECTED'")
	}
	if !strings.Contains(v, "Reconnecting") {
		t.Error("disconnect overlay should contain 'Reconnecting'")
	}
}

func TestInitializingBeforeResize(t *testing.T) {
	if v := New(nil, nil).View(); v != "Initializing..." {
		t.Errorf("View() = %q", v)
	}
}

func TestSnapshotRendersGauge(t *testing.T) {
	m := connected(t, nil)
	m, _ = update(t, m, client.WSSnapshotMsg{Payload: ws.SnapshotPayload{
		Snapshot: snapshot.New(600<<20, 400<<20, severity.Warning, 1),
		Health:   sampler.HealthReport{Status: sampler.StatusDegraded, ConsecutiveFailures: 1},
	}})

	v := m.View()
	for _, want := range []string{"urgent", "warning", "600.0 MiB used of 1000.0 MiB", "sampler: degraded"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestTransitionUpdatesGaugeAndHistory(t *testing.T) {
	m := connected(t, nil)
	old := snapshot.New(100, 900, severity.Normal, 1)
	next := snapshot.New(950, 50, severity.Normal, 700)
	m, _ = update(t, m, client.WSTransitionMsg{Payload: ws.TransitionPayload{
		Old: old, New: next, Changes: severity.StateChanged,
	}})

	if m.current != next {
		t.Errorf("current = %+v, want %+v", m.current, next)
	}
	if len(m.history.Entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(m.history.Entries))
	}
	if !strings.Contains(m.View(), "terminal") {
		t.Error("view should show the terminal state")
	}
}

func TestHealthMessage(t *testing.T) {
	m := connected(t, nil)
	m, _ = update(t, m, client.WSHealthMsg{Payload: sampler.HealthReport{Status: sampler.StatusFailed}})
	if m.statusBar.Health.Status != sampler.StatusFailed {
		t.Errorf("status bar health = %q", m.statusBar.Health.Status)
	}
}

func TestProbeSizeKeys(t *testing.T) {
	m := connected(t, nil)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	if m.probe != 2*defaultProbe {
		t.Errorf("probe = %d after +", m.probe)
	}
	for i := 0; i < 40; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	}
	if m.probe != minProbe {
		t.Errorf("probe = %d, want floor %d", m.probe, minProbe)
	}
	for i := 0; i < 40; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	}
	if m.probe != maxProbe {
		t.Errorf("probe = %d, want ceiling %d", m.probe, maxProbe)
	}
}

func TestCheckAllocation(t *testing.T) {
	tests := []struct {
		name  string
		alloc fakeAllocator
		want  string
	}{
		{"fits", fakeAllocator{headroom: 1 << 30}, "64.0 MiB fits"},
		{"does not fit", fakeAllocator{headroom: 1 << 20}, "64.0 MiB does not fit"},
		{"error", fakeAllocator{err: errors.New("connection refused")}, "error: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := connected(t, tt.alloc)
			m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
			if cmd == nil {
				t.Fatal("check key should return a command")
			}
			m, _ = update(t, m, cmd())
			if !strings.Contains(m.probeResult, tt.want) {
				t.Errorf("probe result %q, want %q", m.probeResult, tt.want)
			}
		})
	}
}

func TestRefreshFetchesSnapshot(t *testing.T) {
	m := connected(t, fakeAllocator{})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m, _ = update(t, m, cmd())
	if !m.haveSnap || m.current.UsedBytes != 900<<20 {
		t.Errorf("refresh did not apply snapshot: %+v", m.current)
	}
}
