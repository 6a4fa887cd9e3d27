package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// Sink receives batches of events from the Collector.
type Sink interface {
	Send(ctx context.Context, events []Event) error
}

// KafkaSink publishes events to a topic, keyed by event type.
type KafkaSink struct {
	Producer *kafka.Producer
}

func (s KafkaSink) Send(ctx context.Context, events []Event) error {
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = kafka.Message{Key: string(ev.Type), Value: ev}
	}
	return s.Producer.Publish(ctx, msgs...)
}

const maxBatch = 100

// Collector buffers events off the request path and hands them to a Sink in
// batches. Track never blocks; events are dropped when the buffer is full.
type Collector struct {
	sink    Sink
	eventCh chan Event
	logger  *slog.Logger
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
}

func NewCollector(sink Sink, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sink:    sink,
		eventCh: make(chan Event, bufferSize),
		logger:  slog.Default().With("component", "analytics-collector"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs the delivery loop until ctx is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		batch := make([]Event, 0, maxBatch)
		for {
			select {
			case ev := <-c.eventCh:
				batch = append(batch[:0], ev)
				batch = c.fill(batch)
				c.flush(ctx, batch)
			case <-c.stop:
				c.drain()
				return
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// fill tops the batch up with whatever is already queued.
func (c *Collector) fill(batch []Event) []Event {
	for len(batch) < maxBatch {
		select {
		case ev := <-c.eventCh:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (c *Collector) flush(ctx context.Context, batch []Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.sink.Send(ctx, batch); err != nil {
		c.logger.Error("failed to deliver analytics events", "count", len(batch), "error", err)
	}
}

func (c *Collector) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		batch := c.fill(make([]Event, 0, maxBatch))
		if len(batch) == 0 {
			return
		}
		c.flush(ctx, batch)
	}
}

// Track enqueues an event, stamping it if the timestamp is unset.
func (c *Collector) Track(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case c.eventCh <- ev:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "type", ev.Type)
	}
}

// Close stops the delivery loop after flushing queued events and waits for
// it to exit. Start must have been called. Events tracked afterwards are
// buffered but never delivered.
func (c *Collector) Close() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
}
