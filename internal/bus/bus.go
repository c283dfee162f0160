package bus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/metrics"
	"github.com/fathima-sithara/chaty/internal/models"
)

const DefaultBufferSize = 64

// Bus is an in-process publish/subscribe registry keyed by topic. Topics are
// user ids or conversation ids. Delivery is at most once and only to
// subscribers registered when Publish is called.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

func New(bufferSize int, log *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: bufferSize,
		log:    log,
	}
}

// Subscription is one listener on one topic.
type Subscription struct {
	topic  string
	events chan models.Event
	done   chan struct{}
	once   sync.Once
	bus    *Bus
}

func (s *Subscription) Topic() string { return s.topic }

// Events yields events in publish order until the subscription is closed.
func (s *Subscription) Events() <-chan models.Event { return s.events }

// Done is closed once the subscription has been removed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close removes the subscription. Calling it more than once is a no-op.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.done)
		close(s.events)
		metrics.Subscriptions.Dec()
	})
}

// Subscribe registers a listener on topic. It is closed when ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topic string) *Subscription {
	s := &Subscription{
		topic:  topic,
		events: make(chan models.Event, b.buffer),
		done:   make(chan struct{}),
		bus:    b,
	}

	b.mu.Lock()
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.topics[topic] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()
	metrics.Subscriptions.Inc()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// Unsubscribe is equivalent to s.Close.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s != nil {
		s.Close()
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.topics[s.topic]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.topics, s.topic)
	}
}

// Publish hands ev to every current subscriber of topic without blocking and
// returns how many received it. A subscriber whose buffer is full is closed.
func (b *Bus) Publish(topic string, ev models.Event) int {
	ev.Topic = topic
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	var (
		delivered int
		slow      []*Subscription
	)
	b.mu.RLock()
	for s := range b.topics[topic] {
		select {
		case s.events <- ev:
			delivered++
		default:
			slow = append(slow, s)
		}
	}
	b.mu.RUnlock()

	metrics.Published.WithLabelValues(string(ev.Type)).Inc()
	metrics.Delivered.Add(float64(delivered))
	for _, s := range slow {
		b.log.Warn("evicting slow subscriber", zap.String("topic", topic), zap.Int("buffer", b.buffer))
		metrics.Evicted.Inc()
		s.Close()
	}
	return delivered
}

// Subscribers returns the number of listeners on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Topics returns the number of topics with at least one listener.
func (b *Bus) Topics() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

// Close drops every subscription.
func (b *Bus) Close() {
	b.mu.RLock()
	var all []*Subscription
	for _, set := range b.topics {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.RUnlock()
	for _, s := range all {
		s.Close()
	}
}
