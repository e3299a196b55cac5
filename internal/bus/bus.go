// Package bus provides the in-process named-event bus connecting the
// viewer adapter to the force coordinator.
//
// Dispatch is serialized: all handlers run on a single dispatcher goroutine
// in emit order, so handlers never observe concurrent invocations and need
// no locking among themselves.
package bus

import (
	"sync"

	"go.uber.org/zap"
)

const queueSize = 256

// Handler receives an event payload. Handlers must not block.
type Handler = func(payload interface{})

type envelope struct {
	event   string
	payload interface{}
}

// Bus is a subscribe/unsubscribe/emit event bus.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]map[int]Handler
	nextID int
	closed bool

	queue chan envelope
	stop  chan struct{}
	done  chan struct{}

	logger *zap.Logger
}

// New creates a Bus and starts its dispatcher goroutine.
func New(logger *zap.Logger) *Bus {
	b := &Bus{
		subs:   make(map[string]map[int]Handler),
		queue:  make(chan envelope, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}

	go b.dispatch()
	return b
}

// Subscribe registers a handler for the named event and returns its cancel
// function. Cancelling twice is a no-op.
func (b *Bus) Subscribe(event string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[event] == nil {
		b.subs[event] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[event][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[event], id)
		})
	}
}

// Emit enqueues an event for dispatch. Fire-and-forget: when the queue is
// full the event is dropped with a logged error rather than blocking the
// caller.
func (b *Bus) Emit(event string, payload interface{}) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}

	select {
	case b.queue <- envelope{event: event, payload: payload}:
	default:
		b.logger.Error("Event queue full, dropping event",
			zap.String("event", event))
	}
}

// Close stops the dispatcher after draining already-queued events.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stop)
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for {
		select {
		case env := <-b.queue:
			b.deliver(env)
		case <-b.stop:
			// Drain what was queued before Close.
			for {
				select {
				case env := <-b.queue:
					b.deliver(env)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(env envelope) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[env.event]))
	for _, h := range b.subs[env.event] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(env.payload)
	}
}
