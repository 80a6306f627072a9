package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/dedup"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/retry"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Bus is an in-process publish/subscribe dispatcher. Publish validates,
// deduplicates and counts synchronously, then fans out to every matching
// subscriber on its own goroutine with retries.
type Bus struct {
	logger    *slog.Logger
	scheduler *retry.Scheduler
	dedup     *dedup.Deduplicator
	sem       *semaphore.Weighted
	timeout   time.Duration
	observer  DeliveryObserver

	mu     sync.RWMutex
	subs   map[string][]*subscription
	byID   map[string]*subscription
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics counters
}

func New(logger *slog.Logger, opts Options) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bus")

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bus{
		logger:    logger,
		scheduler: retry.NewScheduler(opts.Retry, 0, logger),
		timeout:   opts.HandlerTimeout,
		dedup:     dedup.New(opts.DedupSize, opts.DedupWindow),
		observer:  opts.Observer,
		subs:      make(map[string][]*subscription),
		byID:      make(map[string]*subscription),
		ctx:       ctx,
		cancel:    cancel,
	}

	if opts.MaxConcurrency > 0 {
		b.sem = semaphore.NewWeighted(int64(opts.MaxConcurrency))
	}

	return b
}

// Subscribe registers handler for eventType, or for every type with Wildcard.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	sub := &subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		handler:   handler,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[eventType] = append(b.subs[eventType], sub)
	b.byID[sub.id] = sub

	b.logger.Debug("subscribed", "subscription_id", sub.id, "event_type", eventType)
	return sub.id
}

// Unsubscribe removes a subscription. Deliveries already scheduled for it
// still run to completion.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.byID[id]
	if !ok {
		return false
	}
	delete(b.byID, id)

	list := b.subs[sub.eventType]
	for i, s := range list {
		if s.id == id {
			b.subs[sub.eventType] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.eventType]) == 0 {
		delete(b.subs, sub.eventType)
	}

	return true
}

// SubscriberCount returns the number of subscriptions for eventType,
// not counting wildcard subscribers.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Publish validates and fans out an event. The only error it returns is a
// *schema.SchemaError for a known type with missing fields. Unknown types,
// duplicates and publishes after Close are logged no-ops. ctx is used for
// logging only; deliveries outlive it.
func (b *Bus) Publish(ctx context.Context, eventType string, payload map[string]any, tenantID string, opts ...PublishOption) error {
	if err := schema.Validate(eventType, payload); err != nil {
		if errors.Is(err, schema.ErrUnknownEventType) {
			b.logger.WarnContext(ctx, "dropping event of unknown type",
				"event_type", eventType,
				"tenant_id", tenantID,
			)
			return nil
		}
		return err
	}

	var cfg publishConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	fingerprint := cfg.fingerprint
	if fingerprint == "" {
		fingerprint = Fingerprint(eventType, tenantID, payload)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.WarnContext(ctx, "publish after close ignored",
			"event_type", eventType,
			"tenant_id", tenantID,
		)
		return nil
	}

	if b.dedup.SeenOrRemember(fingerprint) {
		b.metrics.deduplicated.Add(1)
		b.logger.DebugContext(ctx, "duplicate event suppressed",
			"event_type", eventType,
			"tenant_id", tenantID,
			"fingerprint", fingerprint,
		)
		return nil
	}
	b.metrics.published.Add(1)

	evt := Event{
		ID:          uuid.New(),
		Type:        eventType,
		TenantID:    tenantID,
		Payload:     payload,
		Fingerprint: fingerprint,
		Timestamp:   time.Now().UTC(),
	}

	targets := make([]*subscription, 0, len(b.subs[eventType])+len(b.subs[Wildcard]))
	targets = append(targets, b.subs[eventType]...)
	if eventType != Wildcard {
		targets = append(targets, b.subs[Wildcard]...)
	}

	for _, sub := range targets {
		b.wg.Add(1)
		go b.deliver(sub, evt)
	}

	return nil
}

func (b *Bus) deliver(sub *subscription, evt Event) {
	defer b.wg.Done()

	policy := b.scheduler.Policy()
	if evt.Type == schema.SystemError {
		policy.MaxRetries = 0
	}

	b.observe(sub, evt, 0, StatePending, nil)

	out := b.scheduler.RunPolicy(b.ctx, policy, func(ctx context.Context, attempt int) error {
		// Waiting for a slot is not part of the attempt; only Close stops it.
		if b.sem != nil {
			if err := b.sem.Acquire(b.ctx, 1); err != nil {
				return err
			}
			defer b.sem.Release(1)
		}

		if b.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}

		b.observe(sub, evt, attempt, StateAttempting, nil)
		return sub.handler(ctx, evt)
	}, func(a retry.Attempt) {
		if a.Err != nil && !a.Final {
			b.logger.Debug("delivery attempt failed, retrying",
				"subscription_id", sub.id,
				"event_type", evt.Type,
				"attempt", a.Number,
				"next_delay", a.NextDelay,
				"error", a.Err,
			)
			b.observe(sub, evt, a.Number, StateRetrying, a.Err)
		}
	})

	switch {
	case out.Delivered:
		b.metrics.delivered.Add(1)
		b.observe(sub, evt, out.Attempts, StateDelivered, nil)

	case out.Abandoned:
		b.logger.Debug("delivery abandoned on shutdown",
			"subscription_id", sub.id,
			"event_type", evt.Type,
			"attempts", out.Attempts,
		)

	default:
		b.metrics.failed.Add(1)
		b.observe(sub, evt, out.Attempts, StateFailed, out.Err)
		b.logger.Error("delivery failed",
			"subscription_id", sub.id,
			"event_type", evt.Type,
			"tenant_id", evt.TenantID,
			"fingerprint", evt.Fingerprint,
			"attempts", out.Attempts,
			"error", out.Err,
		)

		if evt.Type != schema.SystemError {
			b.reportFailure(sub, evt, out)
		}
	}
}

// reportFailure publishes one system.error per terminally failed delivery.
func (b *Bus) reportFailure(sub *subscription, evt Event, out retry.Outcome) {
	payload := map[string]any{
		"originalType":   evt.Type,
		"tenantId":       evt.TenantID,
		"error":          out.Err.Error(),
		"attempts":       out.Attempts,
		"subscriptionId": sub.id,
		"fingerprint":    evt.Fingerprint,
	}

	fp := schema.SystemError + ":" + sub.id + ":" + evt.ID.String()
	if err := b.Publish(b.ctx, schema.SystemError, payload, evt.TenantID, WithFingerprint(fp)); err != nil {
		b.logger.Error("failed to publish system.error", "error", err)
	}
}

func (b *Bus) observe(sub *subscription, evt Event, attempt int, state DeliveryState, err error) {
	if b.observer == nil {
		return
	}
	b.observer(Delivery{
		SubscriptionID: sub.id,
		EventType:      evt.Type,
		TenantID:       evt.TenantID,
		Fingerprint:    evt.Fingerprint,
		Attempt:        attempt,
		State:          state,
		Err:            err,
	})
}

// Metrics returns a snapshot of the bus counters.
func (b *Bus) Metrics() Metrics {
	return b.metrics.snapshot()
}

// Wait blocks until every scheduled delivery, including the system.error
// events they raise, has settled. Callers must not publish concurrently.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Close cancels in-flight retries, drops all subscriptions and waits for
// running attempts to return. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.subs = make(map[string][]*subscription)
	b.byID = make(map[string]*subscription)
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	m := b.Metrics()
	b.logger.Info("bus closed",
		"published", m.Published,
		"delivered", m.Delivered,
		"failed", m.Failed,
		"deduplicated", m.Deduplicated,
	)
}
