package ws

import (
	"time"

	"github.com/google/uuid"
)

// Message is the frame pushed to dashboard clients for every bus event.
type Message struct {
	TenantID  string         `json:"-"`
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}
