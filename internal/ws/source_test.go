package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/headroom/headroom/internal/notify"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
)

// fakeSource is a Source whose snapshot and health are set by the test.
// Transitions are published through a real Notifier.
type fakeSource struct {
	*notify.Notifier

	mu       sync.Mutex
	current  snapshot.Snapshot
	health   sampler.HealthReport
	headroom uint64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		Notifier: notify.New(),
		current:  snapshot.New(100, 900, severity.Normal, 1),
		health:   sampler.HealthReport{Status: sampler.StatusHealthy},
		headroom: 900,
	}
}

func (f *fakeSource) CurrentSnapshot() snapshot.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeSource) CanAllocate(bytes uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes < f.headroom
}

func (f *fakeSource) Health() sampler.HealthReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

func (f *fakeSource) setHealth(s sampler.HealthStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health.Status = s
}

// accept swaps in next and publishes the transition.
func (f *fakeSource) accept(next snapshot.Snapshot) {
	f.mu.Lock()
	old := f.current
	f.current = next
	f.mu.Unlock()
	f.Publish(snapshot.Transition{
		Old:     old,
		New:     next,
		Changes: severity.Diff(old.State, old.Pressure, next.State, next.Pressure),
	})
}

// dialTestWS creates a test HTTP server that upgrades to WebSocket and returns
// the server-side connection together with the client side.
func dialTestWS(t *testing.T) (*httptest.Server, *websocket.Conn, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-connCh:
		return srv, serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil, nil
	}
}
