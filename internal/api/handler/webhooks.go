package handler

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/audit"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/webhook"
)

// WebhookConfigs is the config store the dispatcher reads from.
type WebhookConfigs interface {
	Lookup(ctx context.Context, tenantID string) (*webhook.TenantWebhookConfig, error)
	Invalidate(tenantID string)
}

// TenantStore persists tenant settings. It is nil when webhook configs come
// from files, which makes the write endpoints read-only.
type TenantStore interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	Update(ctx context.Context, tenant *domain.Tenant) error
}

type WebhookHandler struct {
	configs WebhookConfigs
	tenants TenantStore
	audit   audit.Logger
	logger  *slog.Logger
}

func NewWebhookHandler(configs WebhookConfigs, tenants TenantStore, auditLogger audit.Logger, logger *slog.Logger) *WebhookHandler {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &WebhookHandler{
		configs: configs,
		tenants: tenants,
		audit:   auditLogger,
		logger:  logger,
	}
}

type UpdateWebhookRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret,omitempty"`
	Events []string `json:"events"`
}

type WebhookConfigResponse struct {
	TenantID string   `json:"tenant_id"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
	// SecretGenerated is set when the response carries a newly generated secret
	// in full. It is never shown again.
	SecretGenerated bool `json:"secret_generated,omitempty"`
}

func (h *WebhookHandler) Get(c *fiber.Ctx) error {
	tenantID := middleware.GetTenantID(c)

	cfg, err := h.configs.Lookup(c.UserContext(), tenantID)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}
	if cfg == nil {
		return domain.ErrWebhookNotConfigured
	}

	return c.JSON(WebhookConfigResponse{
		TenantID: tenantID,
		URL:      cfg.URL,
		Events:   cfg.SubscribedEvents,
		Secret:   webhook.MaskSecret(cfg.Secret),
	})
}

func (h *WebhookHandler) Update(c *fiber.Ctx) error {
	if h.tenants == nil {
		return domain.ErrWebhookConfigReadOnly
	}

	tenantID := middleware.GetTenantID(c)

	var req UpdateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if !validWebhookURL(req.URL) {
		return domain.ErrInvalidWebhookURL
	}
	for _, eventType := range req.Events {
		if !schema.IsWebhookEligible(eventType) {
			return &domain.AppError{
				Code:       domain.ErrInvalidWebhookEvent.Code,
				Message:    domain.ErrInvalidWebhookEvent.Message + ": " + eventType,
				StatusCode: domain.ErrInvalidWebhookEvent.StatusCode,
			}
		}
	}

	tenant, err := h.tenants.GetBySlug(c.UserContext(), tenantID)
	if err != nil {
		return err
	}

	secret := req.Secret
	generated := false
	if secret == "" {
		if current, ok := tenant.GetWebhookSettings(); ok && current.Secret != "" {
			secret = current.Secret
		} else {
			secret, err = webhook.GenerateSecret()
			if err != nil {
				return domain.ErrInternal.WithError(err)
			}
			generated = true
		}
	}

	events := req.Events
	if events == nil {
		events = []string{}
	}

	tenant.SetWebhookSettings(domain.WebhookSettings{
		URL:    req.URL,
		Secret: secret,
		Events: events,
	})

	if err := h.tenants.Update(c.UserContext(), tenant); err != nil {
		return err
	}
	h.configs.Invalidate(tenantID)

	_ = h.audit.Log(c.UserContext(), audit.Event{
		TenantID:  tenantID,
		Action:    audit.ActionWebhookConfigUpdated,
		Source:    "api",
		Success:   true,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Metadata:  map[string]string{"url": req.URL},
	})

	h.logger.Info("webhook config updated",
		"tenant_id", tenantID,
		"events", len(events),
	)

	resp := WebhookConfigResponse{
		TenantID: tenantID,
		URL:      req.URL,
		Events:   events,
		Secret:   webhook.MaskSecret(secret),
	}
	if generated {
		resp.Secret = secret
		resp.SecretGenerated = true
	}

	return c.JSON(resp)
}

func (h *WebhookHandler) Delete(c *fiber.Ctx) error {
	if h.tenants == nil {
		return domain.ErrWebhookConfigReadOnly
	}

	tenantID := middleware.GetTenantID(c)

	tenant, err := h.tenants.GetBySlug(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	if _, ok := tenant.GetWebhookSettings(); !ok {
		return domain.ErrWebhookNotConfigured
	}

	tenant.ClearWebhookSettings()
	if err := h.tenants.Update(c.UserContext(), tenant); err != nil {
		return err
	}
	h.configs.Invalidate(tenantID)

	_ = h.audit.Log(c.UserContext(), audit.Event{
		TenantID:  tenantID,
		Action:    audit.ActionWebhookConfigDeleted,
		Source:    "api",
		Success:   true,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})

	return c.SendStatus(fiber.StatusNoContent)
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
