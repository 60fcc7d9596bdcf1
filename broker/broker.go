// Package broker fans out decoded events to live subscribers (the web
// SSE view).
//
// Reconstructed from the usage contract visible in the teacher's
// server/server.go and web/web.go (Subscribe returning a channel plus an
// unsubscribe func, Publish broadcasting to every live subscriber); the
// teacher's own broker package source was not retrievable, so this is
// written fresh in the same shape rather than copied.
package broker

import "github.com/tapline/mysqlwire/event"

// Broker is a simple non-persistent pub-sub fan-out of event.Event
// values to any number of live subscribers.
type Broker struct {
	cap     int
	sub     chan chan event.Event
	unsub   chan chan event.Event
	publish chan event.Event
	done    chan struct{}
}

// New creates a Broker whose per-subscriber channels are buffered to
// cap. Start the broker's loop with Run in its own goroutine.
func New(cap int) *Broker {
	return &Broker{
		cap:     cap,
		sub:     make(chan chan event.Event),
		unsub:   make(chan chan event.Event),
		publish: make(chan event.Event),
		done:    make(chan struct{}),
	}
}

// Run drives the broker's fan-out loop until Close is called. Intended
// to run on its own goroutine.
func (b *Broker) Run() {
	subscribers := make(map[chan event.Event]struct{})
	for {
		select {
		case ch := <-b.sub:
			subscribers[ch] = struct{}{}
		case ch := <-b.unsub:
			if _, ok := subscribers[ch]; ok {
				delete(subscribers, ch)
				close(ch)
			}
		case ev := <-b.publish:
			for ch := range subscribers {
				select {
				case ch <- ev:
				default:
					// Slow subscriber: drop rather than block the decoder
					// pipeline (spec.md §5's non-blocking discipline).
				}
			}
		case <-b.done:
			for ch := range subscribers {
				close(ch)
			}
			return
		}
	}
}

// Publish broadcasts ev to every live subscriber, never blocking.
func (b *Broker) Publish(ev event.Event) {
	select {
	case b.publish <- ev:
	case <-b.done:
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (b *Broker) Subscribe() (<-chan event.Event, func()) {
	ch := make(chan event.Event, b.cap)
	select {
	case b.sub <- ch:
	case <-b.done:
		close(ch)
		return ch, func() {}
	}
	return ch, func() {
		select {
		case b.unsub <- ch:
		case <-b.done:
		}
	}
}

// Close stops the broker's loop and closes every subscriber channel.
func (b *Broker) Close() {
	close(b.done)
}
