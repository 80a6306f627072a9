package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/audit"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/webhook"
)

// EventBus is the part of *bus.Bus the HTTP surface uses.
type EventBus interface {
	Publish(ctx context.Context, eventType string, payload map[string]any, tenantID string, opts ...bus.PublishOption) error
	Metrics() bus.Metrics
}

type EventsHandler struct {
	bus    EventBus
	audit  audit.Logger
	logger *slog.Logger
}

func NewEventsHandler(b EventBus, auditLogger audit.Logger, logger *slog.Logger) *EventsHandler {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &EventsHandler{
		bus:    b,
		audit:  auditLogger,
		logger: logger,
	}
}

type PublishEventRequest struct {
	Type        string         `json:"type"`
	TenantID    string         `json:"tenantId"`
	Payload     map[string]any `json:"payload"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

type PublishEventResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type EventSchemaResponse struct {
	Type            string   `json:"type"`
	Fields          []string `json:"fields"`
	WebhookEligible bool     `json:"webhook_eligible"`
}

// Publish accepts an event from a collaborator. Delivery is asynchronous, so
// success is 202 whether or not the event was a duplicate.
func (h *EventsHandler) Publish(c *fiber.Ctx) error {
	var req PublishEventRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		return &domain.AppError{
			Code:       domain.ErrValidationFailed.Code,
			Message:    "type is required",
			StatusCode: domain.ErrValidationFailed.StatusCode,
		}
	}
	if req.TenantID == "" {
		req.TenantID = webhook.DefaultTenant
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}

	if !schema.IsKnown(req.Type) {
		h.logger.Warn("unknown event type submitted",
			"event_type", req.Type,
			"tenant_id", req.TenantID,
		)
		return c.Status(fiber.StatusAccepted).JSON(PublishEventResponse{
			Accepted: false,
			Reason:   "unknown event type",
		})
	}

	var opts []bus.PublishOption
	if req.Fingerprint != "" {
		opts = append(opts, bus.WithFingerprint(req.Fingerprint))
	}

	record := audit.Event{
		TenantID:  req.TenantID,
		Action:    audit.ActionEventAccepted,
		EventType: req.Type,
		Source:    "api",
		Success:   true,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}

	if err := h.bus.Publish(c.UserContext(), req.Type, req.Payload, req.TenantID, opts...); err != nil {
		var schemaErr *schema.SchemaError
		if errors.As(err, &schemaErr) {
			record.Action = audit.ActionEventRejected
			record.Success = false
			record.Error = schemaErr.Error()
			_ = h.audit.Log(c.UserContext(), record)
		}
		return err
	}

	_ = h.audit.Log(c.UserContext(), record)

	return c.Status(fiber.StatusAccepted).JSON(PublishEventResponse{Accepted: true})
}

func (h *EventsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.bus.Metrics())
}

func (h *EventsHandler) Schemas(c *fiber.Ctx) error {
	types := schema.Types()
	out := make([]EventSchemaResponse, 0, len(types))
	for _, t := range types {
		fields, _ := schema.Fields(t)
		out = append(out, EventSchemaResponse{
			Type:            t,
			Fields:          fields,
			WebhookEligible: schema.IsWebhookEligible(t),
		})
	}

	return c.JSON(fiber.Map{
		"schemas": out,
	})
}
