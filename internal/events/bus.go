package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBuffer is the channel size handed to subscribers that ask for none
const DefaultBuffer = 64

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Int64
	log     zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a subscriber and returns its id and receive channel
func (b *Bus) Subscribe(buffer int) (int, <-chan Event) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[b.nextID] = ch
	return b.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber with room in its buffer
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			b.log.Warn().
				Int("subscriber", id).
				Str("event_type", string(e.Type)).
				Msg("Subscriber buffer full, dropping event")
		}
	}
}

// Emit publishes typed data from a module and logs it
func (b *Bus) Emit(module string, data EventData) {
	if b == nil || data == nil {
		return
	}

	e := Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.log.Debug().
		Str("event_type", string(e.Type)).
		Str("module", module).
		Interface("data", data).
		Msg("Event emitted")

	b.Publish(e)
}

// EmitError publishes an ErrorOccurred event
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	b.Emit(module, &ErrorEventData{Error: err.Error(), Context: context})
}

// Subscribers returns the number of active subscribers
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
