package bus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is a validated, tenant-scoped fact travelling through the bus.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	TenantID    string         `json:"tenantId"`
	Payload     map[string]any `json:"payload"`
	Fingerprint string         `json:"fingerprint"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Handler processes one event. Returning an error or panicking marks the
// attempt as failed and schedules a retry.
type Handler func(ctx context.Context, evt Event) error

// Fingerprint derives the dedup key of an event. A producer-supplied
// "eventId" string in the payload is used scoped to type and tenant;
// otherwise the key is the sha256 of type, tenant and the canonical JSON of
// the payload.
func Fingerprint(eventType, tenantID string, payload map[string]any) string {
	if id, ok := payload["eventId"].(string); ok && id != "" {
		return eventType + ":" + tenantID + ":" + id
	}

	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(fmt.Sprintf("%v", payload))
	}

	h := sha256.New()
	h.Write([]byte(eventType))
	h.Write([]byte{'|'})
	h.Write([]byte(tenantID))
	h.Write([]byte{'|'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
