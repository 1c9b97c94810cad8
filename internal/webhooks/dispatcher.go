package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wahans/throttl/internal/logging"
	"github.com/wahans/throttl/internal/metrics"
	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
	"github.com/wahans/throttl/internal/utils"
)

const userAgent = "Throttl-Webhook/1.0"

// dequeueWait is how long a worker blocks on an empty queue before
// re-checking for shutdown.
const dequeueWait = time.Second

// dlqWriteTimeout bounds the dead letter write, which runs on its own
// context: when the delivery failed by timing out, the delivery context
// is already expired.
const dlqWriteTimeout = 5 * time.Second

// DispatcherConfig wires the dispatcher's collaborators.
type DispatcherConfig struct {
	Webhooks store.WebhookStore
	Queue    DeliveryQueue
	DLQ      DeadLetterQueue
	Sink     logging.Sink    // nil defaults to NoopSink
	Metrics  metrics.Metrics // nil defaults to NoopMetrics
	Logger   *utils.Logger

	Workers         int
	DeliveryTimeout time.Duration
}

// Dispatcher fans threshold events out to subscribed webhooks.
//
// Trigger enqueues and returns; a bounded worker pool performs the HTTP
// POSTs. Each delivery gets exactly one attempt with a bounded timeout;
// failures go to the dead letter queue and the delivery log, never back
// to the validation caller.
type Dispatcher struct {
	webhooks store.WebhookStore
	queue    DeliveryQueue
	dlq      DeadLetterQueue
	sink     logging.Sink
	metrics  metrics.Metrics
	logger   *utils.Logger
	client   *http.Client

	workers int
	timeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sink := cfg.Sink
	if sink == nil {
		sink = logging.NewNoopSink()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = utils.NewLogger("dispatcher")
	}

	return &Dispatcher{
		webhooks: cfg.Webhooks,
		queue:    cfg.Queue,
		dlq:      cfg.DLQ,
		sink:     sink,
		metrics:  m,
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
		workers:  workers,
		timeout:  timeout,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	d.logger.Info("dispatcher started", "workers", d.workers)
}

// Stop shuts the worker pool down and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Trigger resolves the owner's active subscriptions for the event and
// enqueues one delivery per match. It never blocks on delivery and never
// returns an error to the caller; enqueue failures are logged.
func (d *Dispatcher) Trigger(ctx context.Context, ownerID string, event models.WebhookEvent, payload models.WebhookPayload) {
	subs, err := d.webhooks.ListByOwner(ctx, ownerID)
	if err != nil {
		d.logger.Error("failed to resolve webhook subscriptions", "owner_id", ownerID, "error", err)
		return
	}

	for _, sub := range subs {
		if !sub.Active || !sub.SubscribesTo(event) {
			continue
		}

		delivery := Delivery{
			WebhookID: sub.ID,
			OwnerID:   sub.OwnerID,
			URL:       sub.URL,
			Payload:   payload,
		}

		if err := d.queue.Enqueue(ctx, delivery); err != nil {
			d.logger.Error("failed to enqueue delivery", "webhook_id", sub.ID, "error", err)
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		delivery, err := d.queue.Dequeue(ctx, dequeueWait)
		if err == ErrQueueClosed || ctx.Err() != nil {
			return
		}
		if err != nil {
			d.logger.Error("failed to dequeue delivery", "error", err)
			continue
		}
		if delivery == nil {
			continue
		}

		d.deliver(*delivery)
	}
}

// deliver performs the single HTTP POST for one delivery. The context is
// detached: cancelling the request that triggered the event must not
// cancel its deliveries.
func (d *Dispatcher) deliver(delivery Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	status, err := d.post(ctx, delivery)
	duration := time.Since(start)

	rec := &logging.DeliveryRecord{
		Timestamp:  start,
		WebhookID:  delivery.WebhookID.String(),
		OwnerID:    delivery.OwnerID,
		Event:      string(delivery.Payload.Event),
		URL:        delivery.URL,
		Status:     status,
		DurationMs: duration.Milliseconds(),
	}

	if err != nil {
		rec.Error = err.Error()
		d.metrics.RecordDelivery(string(delivery.Payload.Event), "failure")
		d.logger.Error("webhook delivery failed",
			"webhook_id", delivery.WebhookID, "url", delivery.URL, "error", err)

		dlqCtx, dlqCancel := context.WithTimeout(context.Background(), dlqWriteTimeout)
		if dlqErr := d.dlq.Add(dlqCtx, delivery, err); dlqErr != nil {
			d.logger.Error("failed to record dead letter", "webhook_id", delivery.WebhookID, "error", dlqErr)
		}
		dlqCancel()
	} else {
		d.metrics.RecordDelivery(string(delivery.Payload.Event), "success")
		d.logger.Debug("webhook delivered",
			"webhook_id", delivery.WebhookID, "status", status, "duration_ms", duration.Milliseconds())
	}

	if sinkErr := d.sink.Enqueue(rec); sinkErr != nil {
		d.logger.Error("failed to record delivery", "error", sinkErr)
	}
}

func (d *Dispatcher) post(ctx context.Context, delivery Delivery) (int, error) {
	body, err := json.Marshal(delivery.Payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("subscriber returned HTTP %d", resp.StatusCode)
	}

	return resp.StatusCode, nil
}
