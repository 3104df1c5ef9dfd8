package stream

import "sync"

// ringBuffer keeps the most recent events for resume.
type ringBuffer struct {
	mu     sync.RWMutex
	events []ChangeEvent
	head   int // index of the oldest event
	size   int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = DefaultReplaySize
	}
	return &ringBuffer{events: make([]ChangeEvent, capacity)}
}

// push appends event, overwriting the oldest one when full.
func (rb *ringBuffer) push(event ChangeEvent) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(rb.events)
	if rb.size < n {
		rb.events[(rb.head+rb.size)%n] = event
		rb.size++
		return
	}
	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % n
}

// since returns the buffered events with tokens greater than token, oldest
// first. ok is false when events after token were already overwritten.
func (rb *ringBuffer) since(token uint64) (events []ChangeEvent, ok bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil, true
	}
	n := len(rb.events)
	oldest := rb.events[rb.head].Token
	if token+1 < oldest {
		return nil, false
	}
	for i := 0; i < rb.size; i++ {
		ev := rb.events[(rb.head+i)%n]
		if ev.Token > token {
			events = append(events, ev)
		}
	}
	return events, true
}

func (rb *ringBuffer) len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// bounds returns the oldest and newest buffered tokens, or zeros when empty.
func (rb *ringBuffer) bounds() (oldest, newest uint64) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.size == 0 {
		return 0, 0
	}
	n := len(rb.events)
	return rb.events[rb.head].Token, rb.events[(rb.head+rb.size-1)%n].Token
}
