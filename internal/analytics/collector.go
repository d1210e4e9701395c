package analytics

import (
	"context"
	"log/slog"

	"github.com/quorumsearch/quorumsearch/pkg/kafka"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
)

// Collector buffers search events and publishes them to Kafka from a
// background goroutine. Track never blocks: when the buffer is full the
// event is counted as dropped and discarded.
type Collector struct {
	producer *kafka.Producer
	events   chan SearchEvent
	metrics  *metrics.Metrics
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a collector with the given buffer size (10000 when
// non-positive). Metrics may be nil.
func NewCollector(producer *kafka.Producer, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		events:   make(chan SearchEvent, bufferSize),
		metrics:  m,
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publishing loop. The loop runs until ctx is cancelled
// or Close is called, then drains whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.events:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.events))
}

// Track enqueues an event without blocking. Must not be called after Close.
func (c *Collector) Track(event SearchEvent) {
	select {
	case c.events <- event:
	default:
		if c.metrics != nil {
			c.metrics.SearchEventsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped, buffer full", "type", event.Type)
	}
}

// Close stops intake and waits for buffered events to flush.
func (c *Collector) Close() {
	close(c.events)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event SearchEvent) {
	err := c.producer.Publish(ctx, kafka.Event{
		Key:   string(event.Type),
		Value: event,
	})
	if err != nil {
		c.logger.Error("failed to publish analytics event",
			"type", event.Type,
			"error", err,
		)
	}
}

// drain flushes the buffer after shutdown begins. The loop context is
// already cancelled at that point, so publishing gets a fresh one.
func (c *Collector) drain() {
	ctx := context.Background()
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				return
			}
			c.publish(ctx, event)
		default:
			return
		}
	}
}
