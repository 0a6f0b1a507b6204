package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/you/eternalmod/internal/core"
)

const (
	DefaultInboxSize  = 1024
	DefaultBufferSize = 64
)

// Observer is told about drops and subscriber count changes.
type Observer interface {
	StreamDropped(reason string)
	StreamClients(n int)
}

type Options struct {
	InboxSize  int
	BufferSize int
	Observer   Observer
}

type delivery struct {
	ownerID int64
	event   core.Event
}

// Hub fans events out to the live subscribers of their owner. A single
// broadcaster goroutine performs every send, so a slow subscriber can never
// block the publisher.
type Hub struct {
	inbox      chan delivery
	bufferSize int
	observer   Observer

	mu     sync.Mutex
	subs   map[int64]map[string]*Subscription
	count  int
	closed bool

	dropped atomic.Uint64
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Subscription is one live listener. C is closed when the hub drops the
// subscriber or shuts down.
type Subscription struct {
	ID      string
	OwnerID int64
	C       <-chan core.Event

	ch   chan core.Event
	hub  *Hub
	once sync.Once
}

func NewHub(opts Options) *Hub {
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	h := &Hub{
		inbox:      make(chan delivery, opts.InboxSize),
		bufferSize: opts.BufferSize,
		observer:   opts.Observer,
		subs:       make(map[int64]map[string]*Subscription),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go h.run()
	return h
}

// Publish queues ev for owner's subscribers without blocking.
func (h *Hub) Publish(ownerID int64, ev core.Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.inbox <- delivery{ownerID: ownerID, event: ev}:
	default:
		h.drop("inbox_full")
	}
}

// Subscribe registers a listener for owner's events. It returns nil once the
// hub is closed.
func (h *Hub) Subscribe(ownerID int64) *Subscription {
	ch := make(chan core.Event, h.bufferSize)
	sub := &Subscription{ID: uuid.NewString(), OwnerID: ownerID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	owned := h.subs[ownerID]
	if owned == nil {
		owned = make(map[string]*Subscription)
		h.subs[ownerID] = owned
	}
	owned[sub.ID] = sub
	h.count++
	n := h.count
	h.mu.Unlock()

	h.clients(n)
	return sub
}

// Unsubscribe removes sub. Calling it more than once, or after the hub
// already dropped the subscriber, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	removed := h.removeLocked(sub)
	n := h.count
	h.mu.Unlock()
	if removed {
		h.clients(n)
	}
}

// Subscribers reports the number of listeners for owner.
func (h *Hub) Subscribers(ownerID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

// Dropped reports how many deliveries were lost.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close stops the broadcaster and closes every subscription.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
		<-h.stopped

		h.mu.Lock()
		h.closed = true
		for _, owned := range h.subs {
			for _, sub := range owned {
				h.removeLocked(sub)
			}
		}
		h.mu.Unlock()
		h.clients(0)
	})
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			return
		case d := <-h.inbox:
			h.deliver(d)
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	var failed []*Subscription
	for _, sub := range h.subs[d.ownerID] {
		select {
		case sub.ch <- d.event:
		default:
			failed = append(failed, sub)
		}
	}
	for _, sub := range failed {
		h.removeLocked(sub)
	}
	n := h.count
	h.mu.Unlock()

	if len(failed) > 0 {
		for range failed {
			h.drop("subscriber_full")
		}
		slog.Warn("stream: dropped slow subscribers", "owner", d.ownerID, "count", len(failed))
		h.clients(n)
	}
}

// removeLocked detaches sub and closes its channel. Caller holds h.mu.
func (h *Hub) removeLocked(sub *Subscription) bool {
	owned := h.subs[sub.OwnerID]
	if _, ok := owned[sub.ID]; !ok {
		return false
	}
	delete(owned, sub.ID)
	if len(owned) == 0 {
		delete(h.subs, sub.OwnerID)
	}
	h.count--
	sub.once.Do(func() { close(sub.ch) })
	return true
}

func (h *Hub) drop(reason string) {
	h.dropped.Add(1)
	if h.observer != nil {
		h.observer.StreamDropped(reason)
	}
}

func (h *Hub) clients(n int) {
	if h.observer != nil {
		h.observer.StreamClients(n)
	}
}
