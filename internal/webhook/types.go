package webhook

import (
	"slices"
	"time"
)

// DefaultTenant is reserved for unscoped events and never has a webhook.
const DefaultTenant = "default"

const (
	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
	UserAgent       = "Eventcore-Webhook/1.0"
)

// TenantWebhookConfig is where and how a tenant receives webhooks.
type TenantWebhookConfig struct {
	TenantID         string   `json:"tenantId" yaml:"tenantId"`
	URL              string   `json:"url" yaml:"url"`
	Secret           string   `json:"-" yaml:"secret"`
	SubscribedEvents []string `json:"events" yaml:"events"`
}

// Subscribes reports whether the tenant asked for eventType.
func (c *TenantWebhookConfig) Subscribes(eventType string) bool {
	return c != nil && slices.Contains(c.SubscribedEvents, eventType)
}

// EventPayload is the JSON body POSTed to tenant endpoints.
type EventPayload struct {
	Event     string         `json:"event"`
	TenantID  string         `json:"tenantId"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}
