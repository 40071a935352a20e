// Package broadcast fans events out to live subscribers. Each subscriber
// owns a bounded buffer; a slow consumer loses its own oldest events and
// gets a drop marker, and never slows a publisher or another subscriber.
package broadcast

import (
	"log/slog"
	"sync"

	"netmon/pkg/models"
)

// minBufferSize keeps room for a drop marker plus at least one real event.
const minBufferSize = 2

// Subscriber is one registered event consumer. Read events from C; call
// Broadcaster.Unsubscribe when done.
type Subscriber struct {
	id uint64
	ch chan models.Event

	mu      sync.Mutex
	dropped int64
	closed  bool
}

// C is the subscriber's event stream. It is closed on unsubscribe.
func (s *Subscriber) C() <-chan models.Event {
	return s.ch
}

// deliver enqueues the event, evicting the subscriber's oldest buffered
// events and inserting a drop marker when the buffer is full.
func (s *Subscriber) deliver(event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	// Fast path: room for the event.
	if len(s.ch) < cap(s.ch) {
		s.ch <- event
		return
	}

	// Evict until there is room for a marker and the new event. An evicted
	// marker reclaims its count instead of counting as a lost event.
	for cap(s.ch)-len(s.ch) < 2 {
		select {
		case old := <-s.ch:
			if old.Type == models.EventDropped {
				if payload, ok := old.Payload.(models.DroppedPayload); ok {
					s.dropped += payload.Count
				}
			} else {
				s.dropped++
			}
		default:
			// The consumer drained concurrently; the buffer has room now.
		}
	}

	// The marker reports events lost since the previous marker reached
	// the buffer.
	if s.dropped > 0 {
		s.ch <- models.NewEvent(models.EventDropped, models.DroppedPayload{Count: s.dropped})
		s.dropped = 0
	}
	s.ch <- event
}

// Broadcaster owns the subscriber registry.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscriber
	nextID  uint64
	bufSize int
}

// New creates a Broadcaster whose subscribers buffer bufSize events each.
func New(bufSize int) *Broadcaster {
	if bufSize < minBufferSize {
		bufSize = minBufferSize
	}
	return &Broadcaster{
		subs:    make(map[uint64]*Subscriber),
		bufSize: bufSize,
	}
}

// Subscribe registers a new consumer and returns its handle.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		id: b.nextID,
		ch: make(chan models.Event, b.bufSize),
	}
	b.subs[sub.id] = sub

	slog.Debug("Subscriber registered", "component", "Broadcaster",
		"subscriber_id", sub.id, "total", len(b.subs))
	return sub
}

// Unsubscribe removes the consumer and closes its channel. Calling it
// twice, or concurrently with Publish, is safe.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
		if sub.dropped > 0 {
			slog.Debug("Subscriber removed after drops", "component", "Broadcaster",
				"subscriber_id", sub.id, "dropped", sub.dropped)
		}
	}
}

// Publish delivers the event to every subscriber registered at the moment
// of the call. Publish never blocks on a slow consumer.
func (b *Broadcaster) Publish(event models.Event) {
	b.mu.RLock()
	snapshot := make([]*Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.deliver(event)
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
