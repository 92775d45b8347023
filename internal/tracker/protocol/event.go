package protocol

import (
	"errors"
	"sync"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

const (
	// CloseNormal is the websocket normal closure code.
	CloseNormal = 1000

	// CloseAbnormal is reported when a connection drops without a close frame.
	CloseAbnormal = 1006
)

// ErrReconnectExhausted is carried by the terminal error event a network
// channel emits once it stops reconnecting.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// EventType identifies a channel lifecycle or data event.
type EventType string

const (
	EventOpen    EventType = "open"
	EventMessage EventType = "message"
	EventClose   EventType = "close"
	EventError   EventType = "error"
)

// Event is delivered to channel subscribers.
type Event struct {
	Type EventType

	// Location is set for message events.
	Location *model.DriverLocation

	// Code, Reason and WasClean are set for close events.
	Code     int
	Reason   string
	WasClean bool

	// Err is set for error events.
	Err error
}

func OpenEvent() Event {
	return Event{Type: EventOpen}
}

func MessageEvent(loc model.DriverLocation) Event {
	return Event{Type: EventMessage, Location: &loc}
}

func CloseEvent(code int, reason string, clean bool) Event {
	return Event{Type: EventClose, Code: code, Reason: reason, WasClean: clean}
}

func ErrorEvent(err error) Event {
	return Event{Type: EventError, Err: err}
}

// Handler receives channel events.
type Handler func(Event)

// Emitter fans events out to subscribers. Emit calls are serialized, so each
// subscriber observes events in the order they were emitted.
type Emitter struct {
	mu       sync.Mutex
	next     int
	handlers map[int]Handler
	order    []int

	emitMu sync.Mutex
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (e *Emitter) Subscribe(h Handler) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[int]Handler)
	}
	id := e.next
	e.next++
	e.handlers[id] = h
	e.order = append(e.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter) remove(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.handlers, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			break
		}
	}
}

// Emit delivers ev to every subscriber in subscription order.
// Handlers must not call Emit on the same emitter.
func (e *Emitter) Emit(ev Event) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	for _, h := range e.snapshot() {
		h(ev)
	}
}

// Len returns the number of subscribers.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// Reset drops every subscriber.
func (e *Emitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[int]Handler)
	e.order = nil
}

func (e *Emitter) snapshot() []Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Handler, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.handlers[id])
	}
	return out
}
