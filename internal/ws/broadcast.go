package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/metrics"
	"github.com/headroom/headroom/internal/notify"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/snapshot"
)

// ErrTooManyConnections is returned by AddClient when the limit is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// Source is the part of the monitor the network surface reads from.
type Source interface {
	CurrentSnapshot() snapshot.Snapshot
	CanAllocate(bytes uint64) bool
	Health() sampler.HealthReport
	Subscribe(h notify.Handler) notify.Subscription
	Unsubscribe(s notify.Subscription)
}

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			// Drain so RemoveClient's close lets the range end.
			for range c.send {
			}
			return
		}
	}
}

// Broadcaster fans monitor activity out to WebSocket clients. Clients whose
// send queue is full are disconnected rather than slowing everyone down.
type Broadcaster struct {
	src      Source
	maxConns int

	mu      sync.RWMutex
	clients map[*client]bool

	// sendMu orders seq assignment with enqueueing so every client sees
	// strictly increasing sequence numbers.
	sendMu sync.Mutex
	seq    uint64

	sub      notify.Subscription
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewBroadcaster subscribes to src and starts the periodic snapshot and
// health loops. maxConns of 0 means unlimited.
func NewBroadcaster(src Source, snapshotInterval, healthInterval time.Duration, maxConns int) *Broadcaster {
	b := &Broadcaster{
		src:      src,
		maxConns: maxConns,
		clients:  make(map[*client]bool),
		stop:     make(chan struct{}),
	}
	b.sub = src.Subscribe(b.onTransition)

	b.wg.Add(2)
	go b.snapshotLoop(snapshotInterval)
	go b.healthLoop(healthInterval)
	return b
}

// AddClient registers conn and queues the current snapshot for it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, sendBuffer),
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	n := len(b.clients)
	b.mu.Unlock()
	metrics.WSClients.Set(float64(n))

	go c.writePump()

	b.sendMu.Lock()
	if data, err := b.encodeLocked(MsgSnapshot, b.snapshotPayload()); err == nil {
		b.enqueue([]*client{c}, data)
	}
	b.sendMu.Unlock()

	return c, nil
}

// RemoveClient unregisters c and closes its queue. Safe to call repeatedly.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.send)
	}
	n := len(b.clients)
	b.mu.Unlock()
	if ok {
		metrics.WSClients.Set(float64(n))
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop unsubscribes from the source, ends the loops and disconnects every
// client.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.src.Unsubscribe(b.sub)
		close(b.stop)
		b.wg.Wait()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			close(c.send)
		}
		b.mu.Unlock()
		metrics.WSClients.Set(0)
	})
}

func (b *Broadcaster) onTransition(t snapshot.Transition) {
	b.broadcast(MsgTransition, TransitionPayload{Old: t.Old, New: t.New, Changes: t.Changes})
}

func (b *Broadcaster) snapshotPayload() SnapshotPayload {
	return SnapshotPayload{Snapshot: b.src.CurrentSnapshot(), Health: b.src.Health()}
}

func (b *Broadcaster) snapshotLoop(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.broadcast(MsgSnapshot, b.snapshotPayload())
		}
	}
}

// healthLoop polls sampler health and broadcasts only status changes.
func (b *Broadcaster) healthLoop(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := b.src.Health().Status
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
		}
		r := b.src.Health()
		if r.Status == last {
			continue
		}
		last = r.Status
		b.broadcast(MsgHealth, r)
	}
}

// encodeLocked assigns the next seq. Caller must hold b.sendMu.
func (b *Broadcaster) encodeLocked(t MessageType, payload any) ([]byte, error) {
	b.seq++
	data, err := json.Marshal(WSMessage{Type: t, Seq: b.seq, Payload: payload})
	if err != nil {
		logging.Error("[ws] marshal %s: %v", t, err)
		return nil, err
	}
	return data, nil
}

func (b *Broadcaster) broadcast(t MessageType, payload any) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	data, err := b.encodeLocked(t, payload)
	if err != nil {
		return
	}
	metrics.WSMessagesTotal.WithLabelValues(string(t)).Inc()

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range b.enqueue(clients, data) {
		logging.Warn("[ws] client %s too slow, disconnecting", c.conn.RemoteAddr())
		metrics.WSSlowDisconnects.Inc()
		b.RemoveClient(c)
	}
}

// enqueue offers data to each still-registered client and returns those
// whose queue was full. Sends happen under the read lock so a queue cannot
// be closed mid-send.
func (b *Broadcaster) enqueue(clients []*client, data []byte) []*client {
	var slow []*client
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range clients {
		if !b.clients[c] {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}
