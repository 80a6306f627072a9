package usage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 5m"

// TenantGetter interface to get active tenants with their plan
type TenantGetter interface {
	GetActiveTenantsWithPlan(ctx context.Context) ([]TenantPlan, error)
}

// TenantPlan is a tenant slug with its plan ID
type TenantPlan struct {
	TenantID string
	PlanID   string
}

// QuotaChecker is implemented by Service.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, tenantID, planID string) error
}

// Worker checks quotas of every active tenant on a cron schedule
type Worker struct {
	checker      QuotaChecker
	tenantGetter TenantGetter
	logger       *slog.Logger
	schedule     string
}

func NewWorker(checker QuotaChecker, tenantGetter TenantGetter, logger *slog.Logger, schedule string) *Worker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Worker{
		checker:      checker,
		tenantGetter: tenantGetter,
		logger:       logger.With("component", "quota_worker"),
		schedule:     schedule,
	}
}

// Run schedules the check and blocks until ctx is done. A running check is
// allowed to finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New()

	if _, err := c.AddFunc(w.schedule, func() { w.checkAllTenants(ctx) }); err != nil {
		return fmt.Errorf("schedule quota check %q: %w", w.schedule, err)
	}

	c.Start()
	w.logger.Info("quota check worker started", "schedule", w.schedule)

	<-ctx.Done()
	<-c.Stop().Done()

	w.logger.Info("quota check worker stopped")
	return nil
}

func (w *Worker) checkAllTenants(ctx context.Context) {
	tenants, err := w.tenantGetter.GetActiveTenantsWithPlan(ctx)
	if err != nil {
		w.logger.Error("failed to get active tenants", "error", err)
		return
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return
		}
		if err := w.checker.CheckQuota(ctx, tenant.TenantID, tenant.PlanID); err != nil {
			w.logger.Warn("failed to check quota for tenant",
				"error", err,
				"tenant_id", tenant.TenantID,
			)
		}
	}

	w.logger.Debug("quota check completed", "tenants_checked", len(tenants))
}
