package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

const DefaultTimeout = 10 * time.Second

// Delivery outcomes reported to a Recorder.
const (
	OutcomeDelivered      = "delivered"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

// DeliveryError is a failed POST to a tenant endpoint. StatusCode is 0 when
// no response was received.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook %s responded HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("webhook %s: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ConfigLookup resolves tenant configuration with source errors surfaced.
type ConfigLookup interface {
	Lookup(ctx context.Context, tenantID string) (*TenantWebhookConfig, error)
}

// Recorder observes every POST the dispatcher makes.
type Recorder interface {
	ObserveDelivery(eventType, outcome string, elapsed time.Duration)
}

type Dispatcher struct {
	configs  ConfigLookup
	client   *http.Client
	logger   *slog.Logger
	recorder Recorder
}

type DispatcherOption func(*Dispatcher)

func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.client = client
	}
}

func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

func NewDispatcher(configs ConfigLookup, timeout time.Duration, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		configs: configs,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "webhook_dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register subscribes the dispatcher to every webhook-eligible event type.
func (d *Dispatcher) Register(b *bus.Bus) []string {
	ids := make([]string, 0, len(schema.ValidEvents))
	for _, eventType := range schema.ValidEvents {
		ids = append(ids, b.Subscribe(eventType, d.Handle))
	}
	return ids
}

// Handle is the bus handler. Retries resend the same body and timestamp.
func (d *Dispatcher) Handle(ctx context.Context, evt bus.Event) error {
	return d.send(ctx, evt.TenantID, evt.Type, evt.Payload, evt.Timestamp)
}

// Dispatch POSTs one event to the tenant's endpoint if the tenant has a
// webhook subscribed to eventType. Ineligible types and unconfigured tenants
// are no-ops. It makes a single attempt; retrying is the caller's concern.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, eventType string, payload map[string]any) error {
	return d.send(ctx, tenantID, eventType, payload, time.Now().UTC())
}

func (d *Dispatcher) send(ctx context.Context, tenantID, eventType string, payload map[string]any, ts time.Time) error {
	if !schema.IsWebhookEligible(eventType) {
		d.logger.WarnContext(ctx, "event type not eligible for webhooks",
			"event_type", eventType,
			"tenant_id", tenantID,
		)
		return nil
	}

	cfg, err := d.configs.Lookup(ctx, tenantID)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Subscribes(eventType) {
		return nil
	}

	body, err := json.Marshal(EventPayload{
		Event:     eventType,
		TenantID:  tenantID,
		Data:      payload,
		Timestamp: ts,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: cfg.URL, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType)
	req.Header.Set("User-Agent", UserAgent)
	if signature := SignPayload(body, cfg.Secret); signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.record(eventType, OutcomeTransportError, start)
		return &DeliveryError{URL: cfg.URL, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.record(eventType, OutcomeHTTPError, start)
		return &DeliveryError{URL: cfg.URL, StatusCode: resp.StatusCode}
	}

	d.record(eventType, OutcomeDelivered, start)
	d.logger.DebugContext(ctx, "webhook delivered",
		"tenant_id", tenantID,
		"event_type", eventType,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (d *Dispatcher) record(eventType, outcome string, start time.Time) {
	if d.recorder != nil {
		d.recorder.ObserveDelivery(eventType, outcome, time.Since(start))
	}
}
