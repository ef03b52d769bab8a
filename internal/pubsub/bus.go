// Package pubsub fans device state changes out to in-process consumers:
// the MQTT bridge, the WebSocket hub and the history recorder.
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nerrad567/rfbridge/internal/device"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Logger is the subset of logging.Logger used by the bus.
type Logger interface {
	Warn(msg string, args ...any)
}

// Bus delivers every published event to every subscriber. Publishing never
// blocks: a subscriber whose queue is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	dropped atomic.Uint64
	logger  Logger
}

// Subscription is one consumer's queue.
type Subscription struct {
	bus  *Bus
	ch   chan device.Event
	once sync.Once
}

// New creates an empty bus. logger may be nil.
func New(logger Logger) *Bus {
	return &Bus{subs: make(map[*Subscription]struct{}), logger: logger}
}

// Subscribe registers a consumer with a queue of buffer events.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{bus: b, ch: make(chan device.Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Events is closed when the subscription or the bus is closed.
func (s *Subscription) Events() <-chan device.Event {
	return s.ch
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	_, ok := s.bus.subs[s]
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	if ok {
		s.once.Do(func() { close(s.ch) })
	}
}

// Publish stamps e with a fresh ID and offers it to every subscriber.
func (b *Bus) Publish(_ context.Context, e device.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
			if b.logger != nil {
				b.logger.Warn("event dropped for slow subscriber", "path", e.Path, "id", e.ID)
			}
		}
	}
}

// Dropped counts events lost to full queues.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.once.Do(func() { close(s.ch) })
		delete(b.subs, s)
	}
}
