package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action defines the kind of auditable action
type Action string

const (
	ActionEventAccepted        Action = "EVENT_ACCEPTED"
	ActionEventRejected        Action = "EVENT_REJECTED"
	ActionEventPublished       Action = "EVENT_PUBLISHED"
	ActionDeliveryFailed       Action = "DELIVERY_FAILED"
	ActionWebhookConfigUpdated Action = "WEBHOOK_CONFIG_UPDATED"
	ActionWebhookConfigDeleted Action = "WEBHOOK_CONFIG_DELETED"
	ActionTenantProvisioned    Action = "TENANT_PROVISIONED"
)

// Event represents an audit record. Payload values are never recorded, only
// identifiers and field names.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	TenantID  string            `json:"tenant_id"`
	Action    Action            `json:"action"`
	EventType string            `json:"event_type,omitempty"`
	Source    string            `json:"source"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a new audit logger using slog
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger.With("component", "audit"),
	}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal audit event",
			slog.String("error", err.Error()),
			slog.String("action", string(event.Action)),
		)
		return err
	}

	l.logger.InfoContext(ctx, "audit_event",
		slog.String("audit_id", event.ID.String()),
		slog.String("action", string(event.Action)),
		slog.String("event_type", event.EventType),
		slog.String("tenant_id", event.TenantID),
		slog.String("source", event.Source),
		slog.Bool("success", event.Success),
		slog.String("event_data", string(eventJSON)),
	)

	return nil
}

// NoOpLogger is a logger that does nothing (for testing or when audit is disabled)
type NoOpLogger struct{}

// Log does nothing and returns nil
func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}
