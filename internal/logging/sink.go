package logging

import (
	"context"
	"sync"
	"time"

	"github.com/wahans/throttl/internal/utils"
)

// DeliveryRecord is one webhook delivery attempt, archived for operators.
type DeliveryRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	WebhookID  string    `json:"webhookId"`
	OwnerID    string    `json:"ownerId"`
	Event      string    `json:"event"`
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
}

// Sink receives delivery records from the dispatcher.
type Sink interface {
	Enqueue(rec *DeliveryRecord) error
	Close() error
}

// NoopSink discards delivery records.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *DeliveryRecord) error {
	return nil
}

func (s *NoopSink) Close() error {
	return nil
}

// BatchWriter persists a batch of delivery records somewhere durable.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*DeliveryRecord) (string, error)
}

// BufferedSinkConfig holds buffered sink settings.
type BufferedSinkConfig struct {
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
}

// BufferedSink buffers delivery records in memory and flushes them to a
// BatchWriter when the batch fills or the interval elapses. Records are
// dropped, not blocked on, when the buffer is full; archiving must never
// slow down dispatch.
type BufferedSink struct {
	writer BatchWriter
	buffer chan *DeliveryRecord
	logger *utils.Logger

	flushSize     int
	flushInterval time.Duration

	done chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// NewBufferedSink creates a buffered sink and starts its flush loop.
func NewBufferedSink(writer BatchWriter, cfg BufferedSinkConfig) *BufferedSink {
	s := &BufferedSink{
		writer:        writer,
		buffer:        make(chan *DeliveryRecord, cfg.BufferSize),
		logger:        utils.NewLogger("delivery-sink"),
		flushSize:     cfg.FlushSize,
		flushInterval: cfg.FlushInterval,
		done:          make(chan struct{}),
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s
}

func (s *BufferedSink) Enqueue(rec *DeliveryRecord) error {
	select {
	case s.buffer <- rec:
	default:
		s.logger.Warn("delivery record dropped, buffer full")
	}
	return nil
}

// Close flushes buffered records and stops the flush loop.
func (s *BufferedSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *BufferedSink) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]*DeliveryRecord, 0, s.flushSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := s.writer.WriteBatch(ctx, batch); err != nil {
			s.logger.Error("failed to flush delivery records", "error", err, "count", len(batch))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.buffer:
			batch = append(batch, rec)
			if len(batch) >= s.flushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			// Drain whatever is buffered before exiting.
			for {
				select {
				case rec := <-s.buffer:
					batch = append(batch, rec)
					if len(batch) >= s.flushSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
