package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gutensearch/gutensearch/pkg/kafka"
)

// Publisher is the sink event batches are flushed to. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector accumulates query and build events in memory and flushes them
// to Kafka in batches, either when the buffer fills or on a timer. Tracking
// is best-effort: a full buffer drops events rather than blocking a search.
type Collector struct {
	producer      Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	stop          chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
}

// NewCollector creates a Collector that flushes when the buffer reaches
// batchSize events or after flushInterval, whichever comes first.
func NewCollector(producer Publisher, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		producer:      producer,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				c.finalFlush()
				return
			case <-c.stop:
				c.finalFlush()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// TrackQuery records a search event.
func (c *Collector) TrackQuery(ev QueryEvent) {
	if ev.Type == "" {
		ev.Type = EventQuery
		if ev.Returned == 0 {
			ev.Type = EventZeroResult
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: "query", Value: ev})
}

// TrackBuild records a completed index build.
func (c *Collector) TrackBuild(ev BuildEvent) {
	ev.Type = EventBuild
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: "build", Value: ev})
}

func (c *Collector) track(ev kafka.Event) {
	c.mu.Lock()
	over := len(c.buffer) >= c.batchSize*3
	if !over {
		c.buffer = append(c.buffer, ev)
	}
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if over {
		c.logger.Warn("analytics event dropped (buffer full)")
		return
	}
	if shouldFlush {
		go c.flush(context.Background())
	}
}

// BufferLen returns the current number of buffered events.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Close stops the flush loop, performs a final flush of any buffered
// events, and waits for the loop to finish. Safe to call more than once
// and independent of the context passed to Start.
func (c *Collector) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// finalFlush drains the buffer with a short deadline before shutdown.
func (c *Collector) finalFlush() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(flushCtx)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if len(c.buffer) > c.batchSize*3 {
			dropped := len(c.buffer) - c.batchSize*3
			c.buffer = c.buffer[:c.batchSize*3]
			c.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}

	c.logger.Debug("batch flushed", "events", len(batch))
}
