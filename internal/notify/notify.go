// Package notify delivers accepted snapshot transitions to subscribers.
//
// Publish only enqueues. A single delivery goroutine drains the queue in
// order and calls every handler registered at the moment the event is
// dequeued, so handlers never run on the publisher's goroutine and never
// overlap each other.
package notify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/snapshot"
)

// Handler observes one accepted transition.
type Handler func(t snapshot.Transition)

// Subscription identifies a registered handler.
type Subscription struct {
	ID uuid.UUID
}

func (s Subscription) String() string { return s.ID.String() }

// Notifier fans transitions out to subscribers. The zero value is not
// usable; call New.
type Notifier struct {
	subMu sync.RWMutex
	subs  map[uuid.UUID]Handler
	order []uuid.UUID // registration order, for deterministic delivery

	queueMu sync.Mutex
	queue   []snapshot.Transition
	closed  bool
	wake    chan struct{}

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	delivered atomic.Uint64
	panics    atomic.Uint64
}

// New starts the delivery goroutine.
func New() *Notifier {
	n := &Notifier{
		subs: make(map[uuid.UUID]Handler),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go n.run()
	return n
}

// Subscribe registers h. It affects events dequeued after it returns.
func (n *Notifier) Subscribe(h Handler) Subscription {
	id := uuid.New()
	n.subMu.Lock()
	n.subs[id] = h
	n.order = append(n.order, id)
	n.subMu.Unlock()
	return Subscription{ID: id}
}

// Unsubscribe removes the handler. A delivery already in progress still
// completes. Unknown subscriptions are ignored.
func (n *Notifier) Unsubscribe(s Subscription) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if _, ok := n.subs[s.ID]; !ok {
		return
	}
	delete(n.subs, s.ID)
	for i, id := range n.order {
		if id == s.ID {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Subscribers returns the number of registered handlers.
func (n *Notifier) Subscribers() int {
	n.subMu.RLock()
	defer n.subMu.RUnlock()
	return len(n.subs)
}

// Publish enqueues t and returns immediately. Events published after Close
// are dropped.
func (n *Notifier) Publish(t snapshot.Transition) {
	n.queueMu.Lock()
	if n.closed {
		n.queueMu.Unlock()
		return
	}
	n.queue = append(n.queue, t)
	n.queueMu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued, undelivered events.
func (n *Notifier) Pending() int {
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	return len(n.queue)
}

// Delivered counts handler invocations that returned normally.
func (n *Notifier) Delivered() uint64 { return n.delivered.Load() }

// Panics counts handler invocations that panicked.
func (n *Notifier) Panics() uint64 { return n.panics.Load() }

// Close stops delivery and waits for an in-progress handler to return.
// Queued events are discarded and no handler is started afterwards. Close
// must not be called from inside a handler.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.queueMu.Lock()
		n.closed = true
		n.queue = nil
		n.queueMu.Unlock()
		close(n.stop)
		<-n.done
	})
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case <-n.stop:
			return
		case <-n.wake:
		}
		for {
			t, ok := n.next()
			if !ok {
				break
			}
			n.deliver(t)
		}
	}
}

// next pops the oldest event, or reports false when the queue is empty or
// the notifier is closed.
func (n *Notifier) next() (snapshot.Transition, bool) {
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	if n.closed || len(n.queue) == 0 {
		return snapshot.Transition{}, false
	}
	t := n.queue[0]
	n.queue[0] = snapshot.Transition{}
	n.queue = n.queue[1:]
	return t, true
}

func (n *Notifier) handlers() []Handler {
	n.subMu.RLock()
	defer n.subMu.RUnlock()
	hs := make([]Handler, 0, len(n.order))
	for _, id := range n.order {
		hs = append(hs, n.subs[id])
	}
	return hs
}

func (n *Notifier) deliver(t snapshot.Transition) {
	for _, h := range n.handlers() {
		if n.isClosed() {
			return
		}
		if err := n.call(h, t); err != nil {
			n.panics.Add(1)
			logging.Error("[notify] handler panicked: %v", err)
			continue
		}
		n.delivered.Add(1)
	}
}

func (n *Notifier) isClosed() bool {
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	return n.closed
}

func (n *Notifier) call(h Handler, t snapshot.Transition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	h(t)
	return nil
}
