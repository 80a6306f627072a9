package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Event types known to the platform.
const (
	LeadCreated          = "lead.created"
	LeadQualified        = "lead.qualified"
	CallStarted          = "call.started"
	CallCompleted        = "call.completed"
	TranscriptionReady   = "voice.transcription.ready"
	ConversationEnded    = "conversation.ended"
	CartAbandoned        = "cart.abandoned"
	AppointmentBooked    = "appointment.booked"
	AppointmentCancelled = "appointment.cancelled"
	PaymentSucceeded     = "payment.succeeded"
	PaymentFailed        = "payment.failed"
	QuotaWarning         = "quota.warning"
	TenantProvisioned    = "tenant.provisioned"
	SystemError          = "system.error"
)

// EventSchemas maps every known event type to the payload fields it requires.
// Order is significant only for error messages.
var EventSchemas = map[string][]string{
	LeadCreated:          {"leadId", "source"},
	LeadQualified:        {"sessionId", "score", "status"},
	CallStarted:          {"callId", "from", "to"},
	CallCompleted:        {"callId", "duration", "outcome"},
	TranscriptionReady:   {"callId", "transcriptUrl"},
	ConversationEnded:    {"sessionId", "duration"},
	CartAbandoned:        {"sessionId", "cartValue"},
	AppointmentBooked:    {"appointmentId", "startTime"},
	AppointmentCancelled: {"appointmentId", "reason"},
	PaymentSucceeded:     {"paymentId", "amount", "currency"},
	PaymentFailed:        {"paymentId", "reason"},
	QuotaWarning:         {"resource", "usage", "limit"},
	TenantProvisioned:    {"tenantId", "plan"},
	SystemError:          {"originalType", "tenantId", "error", "attempts"},
}

// ValidEvents is the allow-list of event types eligible for webhook delivery.
var ValidEvents = []string{
	LeadQualified,
	CallStarted,
	CallCompleted,
	ConversationEnded,
	CartAbandoned,
	AppointmentBooked,
	QuotaWarning,
	TenantProvisioned,
}

var webhookEligible = func() map[string]bool {
	m := make(map[string]bool, len(ValidEvents))
	for _, t := range ValidEvents {
		m[t] = true
	}
	return m
}()

// ErrUnknownEventType is returned by Validate for types missing from EventSchemas.
// Callers treat it as a soft condition.
var ErrUnknownEventType = errors.New("unknown event type")

// SchemaError reports the required fields a payload is missing.
type SchemaError struct {
	EventType string   `json:"event_type"`
	Missing   []string `json:"missing"`
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("event %s: missing required field(s): %s", e.EventType, strings.Join(e.Missing, ", "))
}

// Validate checks that payload carries every field required for eventType.
// A key present with a nil value counts as present.
func Validate(eventType string, payload map[string]any) error {
	fields, ok := EventSchemas[eventType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	var missing []string
	for _, f := range fields {
		if _, ok := payload[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{EventType: eventType, Missing: missing}
	}
	return nil
}

func IsKnown(eventType string) bool {
	_, ok := EventSchemas[eventType]
	return ok
}

func IsWebhookEligible(eventType string) bool {
	return webhookEligible[eventType]
}

// Fields returns a copy of the required fields for eventType.
func Fields(eventType string) ([]string, bool) {
	fields, ok := EventSchemas[eventType]
	if !ok {
		return nil, false
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, true
}

// Types returns every known event type, sorted.
func Types() []string {
	types := make([]string, 0, len(EventSchemas))
	for t := range EventSchemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
