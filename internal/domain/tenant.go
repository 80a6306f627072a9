package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Plan types
const (
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

const settingsKeyWebhook = "webhook"

var (
	validPlans = map[string]bool{
		PlanStarter:    true,
		PlanPro:        true,
		PlanEnterprise: true,
	}

	slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)
)

// Tenant is an isolated customer of the platform. Events address tenants by slug.
type Tenant struct {
	ID        uuid.UUID              `json:"id"`
	Name      string                 `json:"name"`
	Slug      string                 `json:"slug"`
	IsActive  bool                   `json:"is_active"`
	Plan      string                 `json:"plan"`
	Settings  map[string]interface{} `json:"settings,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// WebhookSettings is the "webhook" object stored in tenant settings.
type WebhookSettings struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret,omitempty"`
	Events []string `json:"events"`
}

// GetWebhookSettings decodes settings["webhook"]. ok is false when the tenant
// has no webhook integration or the object has no URL.
func (t *Tenant) GetWebhookSettings() (WebhookSettings, bool) {
	var ws WebhookSettings

	if t.Settings == nil {
		return ws, false
	}

	raw, ok := t.Settings[settingsKeyWebhook].(map[string]interface{})
	if !ok {
		return ws, false
	}

	if v, ok := raw["url"].(string); ok {
		ws.URL = v
	}
	if v, ok := raw["secret"].(string); ok {
		ws.Secret = v
	}
	switch events := raw["events"].(type) {
	case []interface{}:
		for _, e := range events {
			if s, ok := e.(string); ok {
				ws.Events = append(ws.Events, s)
			}
		}
	case []string:
		ws.Events = append(ws.Events, events...)
	}

	return ws, ws.URL != ""
}

// SetWebhookSettings stores ws under settings["webhook"].
func (t *Tenant) SetWebhookSettings(ws WebhookSettings) {
	if t.Settings == nil {
		t.Settings = make(map[string]interface{})
	}

	events := make([]interface{}, 0, len(ws.Events))
	for _, e := range ws.Events {
		events = append(events, e)
	}

	t.Settings[settingsKeyWebhook] = map[string]interface{}{
		"url":    ws.URL,
		"secret": ws.Secret,
		"events": events,
	}
}

// ClearWebhookSettings removes the webhook integration.
func (t *Tenant) ClearWebhookSettings() {
	delete(t.Settings, settingsKeyWebhook)
}

// Validate verifica se o tenant é válido
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("tenant name cannot be empty")
	}

	if t.Slug == "" {
		return errors.New("tenant slug cannot be empty")
	}

	if t.Slug == "default" {
		return errors.New("tenant slug \"default\" is reserved")
	}

	if !slugRegex.MatchString(t.Slug) {
		return errors.New("tenant slug must contain only lowercase letters, numbers, hyphens and underscores")
	}

	if !validPlans[t.Plan] {
		return errors.New("invalid plan type")
	}

	return nil
}

// IsValidPlan verifica se o plano é válido
func IsValidPlan(plan string) bool {
	return validPlans[plan]
}
