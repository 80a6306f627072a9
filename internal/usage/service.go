package usage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/schema"
)

const (
	cacheKeyUsage = "usage:%s:%s"
	cacheSize     = 1024
	cacheTTL      = time.Minute
)

type Store interface {
	GetPlanByID(ctx context.Context, planID string) (*Plan, error)
	AggregatePeriod(ctx context.Context, tenantID string, startDate, endDate time.Time) (*UsageRecord, error)
	IncrementDaily(ctx context.Context, tenantID string, date time.Time, inc Increment) error
}

// Publisher is the bus side the service emits quota warnings through.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any, tenantID string, opts ...bus.PublishOption) error
}

type Service struct {
	store     Store
	publisher Publisher
	cache     *lru.LRU[string, *UsageSummary]
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		cache:     lru.NewLRU[string, *UsageSummary](cacheSize, nil, cacheTTL),
		logger:    logger.With("component", "usage"),
		now:       time.Now,
	}
}

// Record adds inc to today's usage for the tenant.
func (s *Service) Record(ctx context.Context, tenantID string, inc Increment) error {
	now := s.now().UTC()
	if err := s.store.IncrementDaily(ctx, tenantID, now, inc); err != nil {
		return err
	}
	s.cache.Remove(fmt.Sprintf(cacheKeyUsage, tenantID, now.Format("2006-01")))
	return nil
}

func (s *Service) GetCurrentUsage(ctx context.Context, tenantID, planID string) (*UsageSummary, error) {
	now := s.now().UTC()
	period := now.Format("2006-01")

	if cached, ok := s.cache.Get(fmt.Sprintf(cacheKeyUsage, tenantID, period)); ok {
		return cached, nil
	}

	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)

	return s.getUsageForPeriod(ctx, tenantID, planID, period, startDate, endDate)
}

func (s *Service) GetUsageForPeriod(ctx context.Context, tenantID, planID, period string) (*UsageSummary, error) {
	parsedTime, err := time.Parse("2006-01", period)
	if err != nil {
		return nil, fmt.Errorf("invalid period format, use YYYY-MM: %w", err)
	}

	startDate := time.Date(parsedTime.Year(), parsedTime.Month(), 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(parsedTime.Year(), parsedTime.Month()+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)

	return s.getUsageForPeriod(ctx, tenantID, planID, period, startDate, endDate)
}

func (s *Service) getUsageForPeriod(ctx context.Context, tenantID, planID, period string, startDate, endDate time.Time) (*UsageSummary, error) {
	plan, err := s.store.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: get plan: %w", tenantID, err)
	}

	usage, err := s.store.AggregatePeriod(ctx, tenantID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: aggregate usage: %w", tenantID, err)
	}

	summary := calculateSummary(plan, usage, period)
	summary.TenantID = tenantID

	s.cache.Add(fmt.Sprintf(cacheKeyUsage, tenantID, period), summary)

	return summary, nil
}

func calculateSummary(plan *Plan, usage *UsageRecord, period string) *UsageSummary {
	minutes := usage.VoiceMinutes()

	summary := &UsageSummary{
		Period: period,
		Plan:   *plan,
		VoiceMinutes: UsageDetail{
			Used:       minutes,
			Quota:      plan.QuotaVoiceMinutes,
			Percentage: calculatePercentage(minutes, plan.QuotaVoiceMinutes),
			Overage:    calculateOverage(minutes, plan.QuotaVoiceMinutes),
		},
		Conversations: UsageDetail{
			Used:       usage.Conversations,
			Quota:      plan.QuotaConversations,
			Percentage: calculatePercentage(usage.Conversations, plan.QuotaConversations),
			Overage:    calculateOverage(usage.Conversations, plan.QuotaConversations),
		},
		Calls: usage.Calls,
	}

	breakdown := OverageBreakdown{
		VoiceMinutes:  plan.OveragePriceMinute.Mul(decimal.NewFromInt(int64(summary.VoiceMinutes.Overage))),
		Conversations: plan.OveragePriceConversation.Mul(decimal.NewFromInt(int64(summary.Conversations.Overage))),
	}
	overage := breakdown.VoiceMinutes.Add(breakdown.Conversations)

	summary.Billing = BillingSummary{
		BaseFee:          plan.MonthlyPrice,
		OverageFee:       overage,
		Total:            plan.MonthlyPrice.Add(overage),
		OverageBreakdown: breakdown,
	}

	summary.Alerts = generateAlerts(summary)

	return summary
}

// CheckQuota publishes one quota.warning per resource at or above 80% of its
// quota. The fingerprint is stable per (tenant, period, resource, level), so
// repeated checks inside the dedup window collapse into one event.
func (s *Service) CheckQuota(ctx context.Context, tenantID, planID string) error {
	summary, err := s.GetCurrentUsage(ctx, tenantID, planID)
	if err != nil {
		return fmt.Errorf("tenant %s: check quota: %w", tenantID, err)
	}

	for _, alert := range summary.Alerts {
		if err := s.sendAlert(ctx, tenantID, alert, summary); err != nil {
			return fmt.Errorf("tenant %s: send alert: %w", tenantID, err)
		}
	}

	return nil
}

func (s *Service) sendAlert(ctx context.Context, tenantID string, alert UsageAlert, summary *UsageSummary) error {
	detail := summary.VoiceMinutes
	if alert.Resource == ResourceConversations {
		detail = summary.Conversations
	}

	payload := map[string]any{
		"resource":   alert.Resource,
		"usage":      detail.Used,
		"limit":      detail.Quota,
		"percentage": math.Round(alert.Percentage*100) / 100,
		"level":      alert.Level,
		"period":     summary.Period,
		"message":    alert.Message,
	}
	fingerprint := fmt.Sprintf("%s:%s:%s:%s:%s", schema.QuotaWarning, tenantID, summary.Period, alert.Resource, alert.Level)

	if err := s.publisher.Publish(ctx, schema.QuotaWarning, payload, tenantID, bus.WithFingerprint(fingerprint)); err != nil {
		return fmt.Errorf("publish quota warning: %w", err)
	}

	s.logger.InfoContext(ctx, "quota warning raised",
		"tenant_id", tenantID,
		"resource", alert.Resource,
		"level", alert.Level,
		"percentage", alert.Percentage,
	)
	return nil
}

func generateAlerts(summary *UsageSummary) []UsageAlert {
	var alerts []UsageAlert

	checkAndAddAlert := func(detail UsageDetail, resource, label string) {
		if detail.Quota <= 0 {
			return
		}

		var level string
		switch {
		case detail.Percentage >= 100:
			level = LevelExceeded
		case detail.Percentage >= 90:
			level = LevelCritical
		case detail.Percentage >= 80:
			level = LevelWarning
		default:
			return
		}

		alerts = append(alerts, UsageAlert{
			Resource:   resource,
			Level:      level,
			Percentage: detail.Percentage,
			Message:    fmt.Sprintf("%s quota %s: %d%% used (%d/%d)", label, level, int(detail.Percentage), detail.Used, detail.Quota),
		})
	}

	checkAndAddAlert(summary.VoiceMinutes, ResourceVoiceMinutes, "Voice minutes")
	checkAndAddAlert(summary.Conversations, ResourceConversations, "Conversations")

	return alerts
}

func calculatePercentage(used, quota int) float64 {
	if quota <= 0 {
		return 0
	}
	return (float64(used) / float64(quota)) * 100
}

func calculateOverage(used, quota int) int {
	if quota <= 0 {
		return 0
	}
	overage := used - quota
	if overage < 0 {
		return 0
	}
	return overage
}
