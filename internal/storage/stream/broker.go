package stream

import (
	"errors"
	"sync"
	"time"
)

// Default sizes.
const (
	DefaultChannelSize = 256
	DefaultReplaySize  = 4096
)

// Errors.
var (
	ErrTokenTooOld  = errors.New("stream: resume token too old")
	ErrBrokerClosed = errors.New("stream: broker closed")
)

// Option configures a Broker.
type Option func(*Broker)

// WithReplaySize sets how many events are kept for resume.
func WithReplaySize(n int) Option {
	return func(b *Broker) { b.replay = newRingBuffer(n) }
}

// WithChannelSize sets the channel capacity of new subscribers.
func WithChannelSize(n int) Option {
	return func(b *Broker) { b.channelSize = n }
}

// Broker assigns tokens to published events, keeps the replay buffer and
// fans events out to subscribers.
type Broker struct {
	mu          sync.RWMutex
	subs        map[SubscriberID]*Subscriber
	nextSub     SubscriberID
	token       uint64
	replay      *ringBuffer
	channelSize int
	closed      bool
	now         func() time.Time
}

// NewBroker creates a broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		subs:        make(map[SubscriberID]*Subscriber),
		replay:      newRingBuffer(DefaultReplaySize),
		channelSize: DefaultChannelSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber for events published from now on.
func (b *Broker) Subscribe(filter WatchFilter) (*Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	return b.addLocked(filter), nil
}

// Resume registers a subscriber and first delivers the buffered events with
// tokens after token. It fails with ErrTokenTooOld when some of those
// events are no longer buffered.
func (b *Broker) Resume(filter WatchFilter, token uint64) (*Subscriber, error) {
	// Holding the write lock keeps Publish out until the backlog is queued,
	// so no event is delivered twice or skipped.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	backlog, ok := b.replay.since(token)
	if !ok {
		return nil, ErrTokenTooOld
	}
	sub := b.addLocked(filter)
	for _, ev := range backlog {
		sub.send(ev)
	}
	return sub, nil
}

func (b *Broker) addLocked(filter WatchFilter) *Subscriber {
	b.nextSub++
	sub := newSubscriber(b.nextSub, filter, b.channelSize)
	b.subs[sub.ID] = sub
	return sub
}

// Unsubscribe ends a subscription and closes its channel.
func (b *Broker) Unsubscribe(id SubscriberID) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish assigns tokens to events in order, buffers them and delivers
// them to matching subscribers. It returns the last token assigned.
// Publishing on a closed broker is a no-op.
func (b *Broker) Publish(events ...ChangeEvent) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.token
	}
	now := b.now()
	for _, ev := range events {
		b.token++
		ev.Token = b.token
		ev.Timestamp = now
		b.replay.push(ev)
		for _, sub := range b.subs {
			sub.send(ev)
		}
	}
	return b.token
}

// Token returns the last assigned token.
func (b *Broker) Token() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// Stats describes a broker.
type Stats struct {
	Subscribers int
	Token       uint64
	Buffered    int
	OldestToken uint64
}

// Stats returns current broker statistics.
func (b *Broker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	oldest, _ := b.replay.bounds()
	return Stats{
		Subscribers: len(b.subs),
		Token:       b.token,
		Buffered:    b.replay.len(),
		OldestToken: oldest,
	}
}

// Close ends every subscription. Further subscribe calls fail.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
}
