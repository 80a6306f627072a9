package handler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/audit"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

// TenantDirectory creates and lists tenants.
type TenantDirectory interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	ListActive(ctx context.Context) ([]*domain.Tenant, error)
}

type TenantsHandler struct {
	tenants TenantDirectory
	bus     EventBus
	audit   audit.Logger
	logger  *slog.Logger
}

// NewTenantsHandler creates a tenants handler. A nil directory answers every
// request with TENANT_STORE_DISABLED.
func NewTenantsHandler(tenants TenantDirectory, b EventBus, auditLogger audit.Logger, logger *slog.Logger) *TenantsHandler {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &TenantsHandler{
		tenants: tenants,
		bus:     b,
		audit:   auditLogger,
		logger:  logger,
	}
}

type CreateTenantRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

// TenantResponse never carries settings, which may hold signing secrets.
type TenantResponse struct {
	Slug              string    `json:"slug"`
	Name              string    `json:"name"`
	Plan              string    `json:"plan"`
	IsActive          bool      `json:"is_active"`
	WebhookConfigured bool      `json:"webhook_configured"`
	CreatedAt         time.Time `json:"created_at"`
}

func toTenantResponse(t *domain.Tenant) TenantResponse {
	_, configured := t.GetWebhookSettings()
	return TenantResponse{
		Slug:              t.Slug,
		Name:              t.Name,
		Plan:              t.Plan,
		IsActive:          t.IsActive,
		WebhookConfigured: configured,
		CreatedAt:         t.CreatedAt,
	}
}

// Create provisions a tenant and announces it with tenant.provisioned.
func (h *TenantsHandler) Create(c *fiber.Ctx) error {
	if h.tenants == nil {
		return domain.ErrTenantStoreDisabled
	}

	var req CreateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		plan = domain.PlanStarter
	}

	tenant := &domain.Tenant{
		Name:     strings.TrimSpace(req.Name),
		Slug:     strings.TrimSpace(req.Slug),
		Plan:     plan,
		IsActive: true,
	}
	if err := tenant.Validate(); err != nil {
		return &domain.AppError{
			Code:       domain.ErrValidationFailed.Code,
			Message:    err.Error(),
			StatusCode: domain.ErrValidationFailed.StatusCode,
		}
	}

	if err := h.tenants.Create(c.UserContext(), tenant); err != nil {
		return err
	}

	_ = h.audit.Log(c.UserContext(), audit.Event{
		TenantID:  tenant.Slug,
		Action:    audit.ActionTenantProvisioned,
		EventType: schema.TenantProvisioned,
		Source:    "api",
		Success:   true,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Metadata:  map[string]string{"plan": tenant.Plan},
	})

	err := h.bus.Publish(c.UserContext(), schema.TenantProvisioned, map[string]any{
		"tenantId": tenant.Slug,
		"plan":     tenant.Plan,
	}, tenant.Slug)
	if err != nil {
		h.logger.Error("failed to publish tenant.provisioned",
			"tenant_id", tenant.Slug,
			"error", err,
		)
	}

	return c.Status(fiber.StatusCreated).JSON(toTenantResponse(tenant))
}

func (h *TenantsHandler) List(c *fiber.Ctx) error {
	if h.tenants == nil {
		return domain.ErrTenantStoreDisabled
	}

	tenants, err := h.tenants.ListActive(c.UserContext())
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	out := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResponse(t))
	}

	return c.JSON(fiber.Map{
		"tenants": out,
	})
}
