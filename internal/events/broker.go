// pattern: Imperative Shell

package events

import "sync"

// subscriberBuffer bounds how many events a slow subscriber may lag behind.
const subscriberBuffer = 16

// Broker fans out events to subscribers. Publishing never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber,
// which still holds pending signals that prompt a re-fetch.
type Broker struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered channel that receives every published event.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
}

// Publish delivers ev to all subscribers without blocking.
func (b *Broker) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
