package client

import (
	"sync"

	"github.com/consultly/collab/internal/protocol"
)

// Handler receives a decoded channel event.
type Handler func(protocol.Payload)

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	event protocol.MessageType
	id    uint64
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Dispatcher is the local fan-out from the connection's inbound stream to
// application listeners. It performs no transformation or filtering of
// payloads; handlers run in registration order on the read loop.
type Dispatcher struct {
	mu       sync.Mutex
	seq      uint64
	handlers map[protocol.MessageType][]handlerEntry
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[protocol.MessageType][]handlerEntry)}
}

// On registers a handler for an event type and returns its subscription.
func (d *Dispatcher) On(event protocol.MessageType, fn Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.handlers[event] = append(d.handlers[event], handlerEntry{id: d.seq, fn: fn})
	return Subscription{event: event, id: d.seq}
}

// Off removes a subscription. Removing one that is not registered is a no-op.
func (d *Dispatcher) Off(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := d.handlers[sub.event]
	for i, e := range entries {
		if e.id == sub.id {
			d.handlers[sub.event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Reset drops every registration. Called on disconnect; components holding
// stale subscriptions must re-subscribe after reconnect.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[protocol.MessageType][]handlerEntry)
}

// emit invokes the handlers registered for the payload's event type, in
// registration order. Handlers run outside the dispatcher lock.
func (d *Dispatcher) emit(p protocol.Payload) {
	d.mu.Lock()
	entries := d.handlers[p.EventType()]
	fns := make([]Handler, len(entries))
	for i, e := range entries {
		fns[i] = e.fn
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}
