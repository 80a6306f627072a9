package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/domain"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/usage"
)

type UsageService interface {
	GetCurrentUsage(ctx context.Context, tenantID, planID string) (*usage.UsageSummary, error)
	GetUsageForPeriod(ctx context.Context, tenantID, planID, period string) (*usage.UsageSummary, error)
}

// TenantGetter resolves the plan a tenant is billed on.
type TenantGetter interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

type UsageHandler struct {
	service UsageService
	tenants TenantGetter
}

// NewUsageHandler creates a usage handler. A nil service answers every request
// with USAGE_DISABLED.
func NewUsageHandler(service UsageService, tenants TenantGetter) *UsageHandler {
	return &UsageHandler{service: service, tenants: tenants}
}

func (h *UsageHandler) GetUsage(c *fiber.Ctx) error {
	if h.service == nil || h.tenants == nil {
		return domain.ErrUsageDisabled
	}

	tenant, err := h.tenants.GetBySlug(c.UserContext(), middleware.GetTenantID(c))
	if err != nil {
		return err
	}

	period := strings.TrimSpace(c.Query("period"))

	var summary *usage.UsageSummary
	if period == "" {
		summary, err = h.service.GetCurrentUsage(c.UserContext(), tenant.Slug, tenant.Plan)
	} else {
		if _, perr := time.Parse("2006-01", period); perr != nil {
			return &domain.AppError{
				Code:       domain.ErrBadRequest.Code,
				Message:    "period must use the YYYY-MM format",
				StatusCode: domain.ErrBadRequest.StatusCode,
				Err:        perr,
			}
		}
		summary, err = h.service.GetUsageForPeriod(c.UserContext(), tenant.Slug, tenant.Plan, period)
	}

	if errors.Is(err, usage.ErrPlanNotFound) {
		return domain.ErrNotFound.WithError(err)
	}
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	return c.JSON(summary)
}
