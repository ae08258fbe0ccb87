package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/headroom/headroom/internal/ws"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// WSClient manages the WebSocket connection to headroomd.
type WSClient struct {
	url   string
	token string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises pings with any other write
	conn    *websocket.Conn
	seq     uint64
	missed  uint64
	pingCtx context.CancelFunc
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url, token string) *WSClient {
	return &WSClient{url: url, token: token}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSSnapshotMsg delivers the current snapshot and sampler health.
type WSSnapshotMsg struct{ Payload ws.SnapshotPayload }

// WSTransitionMsg delivers one accepted transition.
type WSTransitionMsg struct{ Payload ws.TransitionPayload }

// WSHealthMsg reports a sampler health change.
type WSHealthMsg struct{ Payload ws.HealthPayload }

// Listen returns a Bubble Tea command that connects, retrying with
// exponential backoff until it succeeds or ctx is done.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header())
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("ws dial error: %v (retry in %v)", err, delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				delay = min(delay*2, reconnectMaxDelay)
				continue
			}

			c.mu.Lock()
			if c.pingCtx != nil {
				c.pingCtx()
			}
			pingCtx, pingCancel := context.WithCancel(ctx)
			c.conn = conn
			c.seq = 0
			c.pingCtx = pingCancel
			c.mu.Unlock()

			go c.pingLoop(pingCtx, conn)

			return WSConnectedMsg{}
		}
	}
}

func (c *WSClient) header() http.Header {
	if c.token == "" {
		return nil
	}
	h := http.Header{}
	h.Set("X-Headroom-Token", c.token)
	return h
}

// ReadLoop returns a Bubble Tea command that reads until it has one message
// to deliver. It should be started after receiving WSConnectedMsg and
// re-issued after every message.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				return WSDisconnectedMsg{Err: err}
			}

			var msg wireMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			c.track(msg.Seq)

			if teaMsg := dispatch(msg); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

// track records seq and counts any gap since the previous message.
func (c *WSClient) track(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != 0 && seq > c.seq+1 {
		c.missed += seq - c.seq - 1
	}
	c.seq = seq
}

// Close cancels the ping loop and closes the active connection.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingCtx != nil {
		c.pingCtx()
		c.pingCtx = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Seq returns the last seen sequence number.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Missed returns how many sequence numbers were skipped since the client
// was created, meaning the server dropped messages for this client.
func (c *WSClient) Missed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missed
}

type wireMessage struct {
	Type    ws.MessageType  `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

func dispatch(msg wireMessage) tea.Msg {
	switch msg.Type {
	case ws.MsgSnapshot:
		var p ws.SnapshotPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSSnapshotMsg{Payload: p}
		}
	case ws.MsgTransition:
		var p ws.TransitionPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSTransitionMsg{Payload: p}
		}
	case ws.MsgHealth:
		var p ws.HealthPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSHealthMsg{Payload: p}
		}
	}
	return nil
}
