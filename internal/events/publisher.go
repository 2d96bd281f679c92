// Package events publishes per-recording completion events to Kafka. Events
// accumulate in memory and are flushed in bulk, either when the buffer
// reaches a configurable size or after a time interval.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nistring/VitalRecoder-ANI/pkg/kafka"
	"github.com/nistring/VitalRecoder-ANI/pkg/logger"
	"github.com/nistring/VitalRecoder-ANI/pkg/resilience"
)

// Completion describes the processing outcome for one recording.
type Completion struct {
	Recording       string    `json:"recording"`
	Output          string    `json:"output,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	ANIMean         *float64  `json:"ani_mean,omitempty"`
	FailedWindows   int       `json:"failed_windows"`
	SPIMean         *float64  `json:"spi_mean,omitempty"`
	SPIMin          *float64  `json:"spi_min,omitempty"`
	Error           string    `json:"error,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// Sink receives flushed event batches. *kafka.Producer is the production
// implementation.
type Sink interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher buffers completion events and flushes them to a Sink. All
// flushing happens on the single background loop, so Close observes every
// batch, including size-triggered ones.
type Publisher struct {
	sink          Sink
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	notify        chan struct{}
	done          chan struct{}
}

// NewPublisher creates a Publisher that flushes when the buffer reaches
// batchSize events or after flushInterval, whichever comes first.
func NewPublisher(sink Sink, batchSize int, flushInterval time.Duration) *Publisher {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Publisher{
		sink:          sink,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.WithComponent("event-publisher"),
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop. It returns immediately; the
// loop stops when ctx is cancelled, after one final flush.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.flush(ctx)
			case <-p.notify:
				p.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				p.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	p.logger.Info("event publisher started",
		"batch_size", p.batchSize,
		"flush_interval", p.flushInterval,
	)
}

// Track buffers one completion event. When the buffer reaches batchSize the
// flush loop is nudged; the channel is buffered so Track never blocks and
// coalesces bursts into one wakeup.
func (p *Publisher) Track(ev Completion) {
	p.mu.Lock()
	p.buffer = append(p.buffer, kafka.Event{Key: ev.Recording, Value: ev})
	shouldFlush := len(p.buffer) >= p.batchSize
	p.mu.Unlock()

	if shouldFlush {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
}

// Close waits for the background flush loop to finish.
func (p *Publisher) Close() {
	<-p.done
}

func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	batch := p.buffer
	p.buffer = make([]kafka.Event, 0, p.batchSize)
	p.mu.Unlock()

	err := resilience.Retry(ctx, "publish-completions", resilience.RetryConfig{}, func() error {
		return p.sink.PublishBatch(ctx, batch)
	})
	if err != nil {
		p.logger.Error("failed to flush completion events", "count", len(batch), "error", err)
		return
	}
	p.logger.Debug("completion events flushed", "count", len(batch))
}
