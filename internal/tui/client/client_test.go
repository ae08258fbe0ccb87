package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/headroom/headroom/internal/config"
	"github.com/headroom/headroom/internal/monitor"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const limit = 1000

type backend struct {
	used     atomic.Uint64
	pressure *sampler.StaticPressure
	mon      *monitor.Monitor
	srv      *httptest.Server
}

func newBackend(t *testing.T, token string) *backend {
	t.Helper()
	b := &backend{pressure: sampler.NewStaticPressure(severity.Normal)}
	b.used.Store(100)
	raw := sampler.FuncSampler(func() (uint64, uint64, error) {
		u := b.used.Load()
		return u, limit - u, nil
	})
	b.mon = monitor.New(monitor.Options{Sampler: raw, Pressure: b.pressure, Interval: 5 * time.Millisecond})
	t.Cleanup(b.mon.Close)

	br := ws.NewBroadcaster(b.mon, time.Hour, time.Hour, 0)
	t.Cleanup(br.Stop)
	b.srv = httptest.NewServer(ws.NewServer(config.ServerConfig{AuthToken: token}, b.mon, br).Handler())
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("command did not return")
		return nil
	}
}

func TestWSClientReceivesSnapshotAndTransition(t *testing.T) {
	b := newBackend(t, "secret")
	c := NewWSClient(b.wsURL(), "secret")
	defer c.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.IsType(t, WSConnectedMsg{}, run(t, c.Listen(ctx)))

	snap, ok := run(t, c.ReadLoop(ctx)).(WSSnapshotMsg)
	require.True(t, ok)
	assert.Equal(t, uint64(100), snap.Payload.Snapshot.UsedBytes)

	b.used.Store(800)
	tr, ok := run(t, c.ReadLoop(ctx)).(WSTransitionMsg)
	require.True(t, ok)
	assert.Equal(t, severity.Critical, tr.Payload.New.State)
	assert.True(t, tr.Payload.Changes.Has(severity.StateChanged))
	assert.Greater(t, c.Seq(), uint64(1))
	assert.Zero(t, c.Missed())
}

func TestWSClientListenStopsOnCancel(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/ws", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, run(t, c.Listen(ctx)))
}

func TestWSClientReadLoopWithoutConnection(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/ws", "")
	msg, ok := run(t, c.ReadLoop(context.Background())).(WSDisconnectedMsg)
	require.True(t, ok)
	assert.Error(t, msg.Err)
}

func TestTrackCountsGaps(t *testing.T) {
	c := NewWSClient("", "")
	for _, seq := range []uint64{4, 5, 8, 9, 12} {
		c.track(seq)
	}
	assert.Equal(t, uint64(12), c.Seq())
	assert.Equal(t, uint64(4), c.Missed())
}

func TestHTTPClient(t *testing.T) {
	b := newBackend(t, "secret")
	c := NewHTTPClient(b.srv.URL, "secret")

	s, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(limit), s.LimitBytes)

	h, err := c.Health()
	require.NoError(t, err)
	assert.Equal(t, sampler.StatusHealthy, h.Status)

	ok, err := c.CanAllocate(10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CanAllocate(10_000)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewHTTPClient(b.srv.URL, "wrong").Snapshot()
	assert.ErrorContains(t, err, "401")
}

func TestHTTPBase(t *testing.T) {
	tests := map[string]string{
		"ws://127.0.0.1:8090/ws": "http://127.0.0.1:8090",
		"wss://mem.example/ws":   "https://mem.example",
		"::bad":                  "http://127.0.0.1:8090",
	}
	for in, want := range tests {
		assert.Equal(t, want, HTTPBase(in), in)
	}
}
