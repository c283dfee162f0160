package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/metrics"
	"github.com/fathima-sithara/chaty/internal/models"
)

// Publisher is the fan-out side, satisfied by *bus.Bus.
type Publisher interface {
	Publish(topic string, ev models.Event) int
}

// Sink receives a copy of every event for consumers outside this process.
type Sink interface {
	Publish(ctx context.Context, key string, v any) error
}

type record struct {
	key string
	ev  models.Event
}

// Dispatcher fans events out to bus topics and forwards one copy to the sink
// from a background worker. The sink never slows down fan-out.
type Dispatcher struct {
	pub   Publisher
	sink  Sink
	queue chan record
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
	log   *zap.Logger
}

func NewDispatcher(pub Publisher, sink Sink, queueSize int, log *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		pub:   pub,
		sink:  sink,
		queue: make(chan record, queueSize),
		stop:  make(chan struct{}),
		log:   log,
	}
	if sink != nil {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Notify publishes ev to every topic. Call only after the change is durable.
func (d *Dispatcher) Notify(ev models.Event, topics ...string) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	for _, t := range topics {
		d.pub.Publish(t, ev)
	}
	if d.sink == nil {
		return
	}
	select {
	case d.queue <- record{key: sinkKey(ev), ev: ev}:
	default:
		metrics.SinkFailures.Inc()
		d.log.Warn("event sink queue full, dropping", zap.String("type", string(ev.Type)))
	}
}

func sinkKey(ev models.Event) string {
	if ev.Conversation != nil {
		return ev.Conversation.ID.Hex()
	}
	if ev.Message != nil {
		return ev.Message.ID.Hex()
	}
	return string(ev.Type)
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case r := <-d.queue:
			d.write(r)
		case <-d.stop:
			for {
				select {
				case r := <-d.queue:
					d.write(r)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(r record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.sink.Publish(ctx, r.key, r.ev); err != nil {
		metrics.SinkFailures.Inc()
		d.log.Warn("event sink write failed", zap.String("type", string(r.ev.Type)), zap.Error(err))
	}
}

// Close flushes queued records to the sink and stops the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}
