package stream

import (
	"sync"
	"sync/atomic"
)

// SubscriberID identifies a subscription within a broker.
type SubscriberID uint64

// Subscriber receives the events that match its filter on C. Delivery never
// blocks the publisher: when C is full the event is dropped and counted.
type Subscriber struct {
	ID     SubscriberID
	Filter WatchFilter
	C      <-chan ChangeEvent

	ch      chan ChangeEvent
	mu      sync.Mutex // guards send against close
	closed  bool
	dropped atomic.Uint64
	last    atomic.Uint64
}

func newSubscriber(id SubscriberID, filter WatchFilter, size int) *Subscriber {
	if size <= 0 {
		size = DefaultChannelSize
	}
	ch := make(chan ChangeEvent, size)
	return &Subscriber{ID: id, Filter: filter, C: ch, ch: ch}
}

// send delivers event if it matches. It reports false when the event was
// dropped.
func (s *Subscriber) send(event ChangeEvent) bool {
	if !s.Filter.Matches(&event) {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- event:
		s.last.Store(event.Token)
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Closed reports whether the subscription has ended.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dropped returns the number of matching events lost to a full channel.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// LastToken returns the token of the last delivered event. A subscriber
// that dropped events can resume from it.
func (s *Subscriber) LastToken() uint64 {
	return s.last.Load()
}
