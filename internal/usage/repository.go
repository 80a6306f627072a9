package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/repository"
)

var ErrPlanNotFound = errors.New("plan not found")

type Repository struct {
	pool repository.PgxPool
}

func NewRepository(pool repository.PgxPool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetPlanByID(ctx context.Context, planID string) (*Plan, error) {
	query := `
		SELECT id, name, monthly_price::text, quota_voice_minutes, quota_conversations,
		       overage_price_minute::text, overage_price_conversation::text, created_at, updated_at
		FROM plans
		WHERE id = $1
	`

	var plan Plan
	var monthly, perMinute, perConversation string
	err := r.pool.QueryRow(ctx, query, planID).Scan(
		&plan.ID,
		&plan.Name,
		&monthly,
		&plan.QuotaVoiceMinutes,
		&plan.QuotaConversations,
		&perMinute,
		&perConversation,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan by id: %w", err)
	}

	if plan.MonthlyPrice, err = decimal.NewFromString(monthly); err != nil {
		return nil, fmt.Errorf("plan %s: parse monthly price: %w", planID, err)
	}
	if plan.OveragePriceMinute, err = decimal.NewFromString(perMinute); err != nil {
		return nil, fmt.Errorf("plan %s: parse overage price per minute: %w", planID, err)
	}
	if plan.OveragePriceConversation, err = decimal.NewFromString(perConversation); err != nil {
		return nil, fmt.Errorf("plan %s: parse overage price per conversation: %w", planID, err)
	}

	return &plan, nil
}

func (r *Repository) GetDailyUsage(ctx context.Context, tenantID string, startDate, endDate time.Time) ([]UsageRecord, error) {
	query := `
		SELECT tenant_id, date, voice_seconds, calls, conversations
		FROM usage_daily
		WHERE tenant_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC
	`

	rows, err := r.pool.Query(ctx, query, tenantID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: get daily usage: %w", tenantID, err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var record UsageRecord
		err := rows.Scan(
			&record.TenantID,
			&record.Date,
			&record.VoiceSeconds,
			&record.Calls,
			&record.Conversations,
		)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: scan usage record: %w", tenantID, err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant %s: iterate usage records: %w", tenantID, err)
	}

	return records, nil
}

func (r *Repository) AggregatePeriod(ctx context.Context, tenantID string, startDate, endDate time.Time) (*UsageRecord, error) {
	query := `
		SELECT
			COALESCE(SUM(voice_seconds), 0) AS total_voice_seconds,
			COALESCE(SUM(calls), 0) AS total_calls,
			COALESCE(SUM(conversations), 0) AS total_conversations
		FROM usage_daily
		WHERE tenant_id = $1 AND date >= $2 AND date <= $3
	`

	record := UsageRecord{TenantID: tenantID, Date: startDate}

	err := r.pool.QueryRow(ctx, query, tenantID, startDate, endDate).Scan(
		&record.VoiceSeconds,
		&record.Calls,
		&record.Conversations,
	)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: aggregate period: %w", tenantID, err)
	}

	return &record, nil
}

// IncrementDaily adds inc to the tenant's row for date, creating it if needed.
func (r *Repository) IncrementDaily(ctx context.Context, tenantID string, date time.Time, inc Increment) error {
	if inc.IsZero() {
		return nil
	}

	query := `
		INSERT INTO usage_daily (tenant_id, date, voice_seconds, calls, conversations)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET
			voice_seconds = usage_daily.voice_seconds + EXCLUDED.voice_seconds,
			calls = usage_daily.calls + EXCLUDED.calls,
			conversations = usage_daily.conversations + EXCLUDED.conversations,
			updated_at = NOW()
	`

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	_, err := r.pool.Exec(ctx, query, tenantID, day, inc.VoiceSeconds, inc.Calls, inc.Conversations)
	if err != nil {
		return fmt.Errorf("tenant %s: increment daily usage: %w", tenantID, err)
	}

	return nil
}

// GetActiveTenantsWithPlan lists active tenants by slug with their plan.
func (r *Repository) GetActiveTenantsWithPlan(ctx context.Context) ([]TenantPlan, error) {
	query := `SELECT slug, plan FROM tenants WHERE is_active = true ORDER BY slug`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []TenantPlan
	for rows.Next() {
		var tp TenantPlan
		if err := rows.Scan(&tp.TenantID, &tp.PlanID); err != nil {
			return nil, fmt.Errorf("scan tenant plan: %w", err)
		}
		tenants = append(tenants, tp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant plans: %w", err)
	}

	return tenants, nil
}
