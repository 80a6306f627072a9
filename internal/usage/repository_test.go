package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var planColumns = []string{
	"id", "name", "monthly_price", "quota_voice_minutes", "quota_conversations",
	"overage_price_minute", "overage_price_conversation", "created_at", "updated_at",
}

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewRepository(mock), mock
}

func TestRepository_GetPlanByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		planID    string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantPrice string
	}{
		{
			name:   "starter plan",
			planID: "starter",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(planColumns).
					AddRow("starter", "Starter", "99.00", 1000, 500, "0.0500", "0.1000", now, now)
				mock.ExpectQuery(`SELECT (.+) FROM plans WHERE id = \$1`).
					WithArgs("starter").
					WillReturnRows(rows)
			},
			wantPrice: "99",
		},
		{
			name:   "plan not found",
			planID: "nonexistent",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM plans WHERE id = \$1`).
					WithArgs("nonexistent").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: ErrPlanNotFound,
		},
		{
			name:   "malformed price",
			planID: "broken",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(planColumns).
					AddRow("broken", "Broken", "n/a", 10, 10, "0", "0", now, now)
				mock.ExpectQuery(`SELECT (.+) FROM plans WHERE id = \$1`).
					WithArgs("broken").
					WillReturnRows(rows)
			},
			wantErr: errors.New("plan broken: parse monthly price"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.mockSetup(mock)

			plan, err := repo.GetPlanByID(context.Background(), tt.planID)

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrPlanNotFound) {
					assert.ErrorIs(t, err, ErrPlanNotFound)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
				assert.Nil(t, plan)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.planID, plan.ID)
				assert.Equal(t, 1000, plan.QuotaVoiceMinutes)
				assert.Equal(t, 500, plan.QuotaConversations)
				assert.True(t, decimal.RequireFromString(tt.wantPrice).Equal(plan.MonthlyPrice))
				assert.True(t, decimal.RequireFromString("0.05").Equal(plan.OveragePriceMinute))
				assert.True(t, decimal.RequireFromString("0.1").Equal(plan.OveragePriceConversation))
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_AggregatePeriod(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)

	t.Run("sums the period", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		rows := pgxmock.NewRows([]string{"total_voice_seconds", "total_calls", "total_conversations"}).
			AddRow(int64(5430), 42, 17)
		mock.ExpectQuery(`SELECT (.+) FROM usage_daily WHERE tenant_id = \$1`).
			WithArgs("acme", start, end).
			WillReturnRows(rows)

		record, err := repo.AggregatePeriod(context.Background(), "acme", start, end)
		require.NoError(t, err)

		assert.Equal(t, "acme", record.TenantID)
		assert.Equal(t, start, record.Date)
		assert.Equal(t, int64(5430), record.VoiceSeconds)
		assert.Equal(t, 91, record.VoiceMinutes())
		assert.Equal(t, 42, record.Calls)
		assert.Equal(t, 17, record.Conversations)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM usage_daily WHERE tenant_id = \$1`).
			WithArgs("acme", start, end).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.AggregatePeriod(context.Background(), "acme", start, end)
		assert.ErrorContains(t, err, "tenant acme: aggregate period: connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_GetDailyUsage(t *testing.T) {
	repo, mock := newMockRepository(t)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	day1 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"tenant_id", "date", "voice_seconds", "calls", "conversations"}).
		AddRow("acme", day1, int64(120), 2, 1).
		AddRow("acme", day2, int64(60), 1, 0)
	mock.ExpectQuery(`SELECT (.+) FROM usage_daily WHERE tenant_id = \$1`).
		WithArgs("acme", start, end).
		WillReturnRows(rows)

	records, err := repo.GetDailyUsage(context.Background(), "acme", start, end)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, day1, records[0].Date)
	assert.Equal(t, int64(120), records[0].VoiceSeconds)
	assert.Equal(t, 1, records[1].Calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_IncrementDaily(t *testing.T) {
	at := time.Date(2025, 1, 15, 17, 42, 5, 0, time.UTC)
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		inc       Increment
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   string
	}{
		{
			name: "upserts the day row",
			inc:  Increment{VoiceSeconds: 95, Calls: 1},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO usage_daily (.+) ON CONFLICT \(tenant_id, date\)`).
					WithArgs("acme", day, int64(95), 1, 0).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name:      "zero increment is a no-op",
			inc:       Increment{},
			mockSetup: func(mock pgxmock.PgxPoolIface) {},
		},
		{
			name: "database error",
			inc:  Increment{Conversations: 1},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO usage_daily`).
					WithArgs("acme", day, int64(0), 0, 1).
					WillReturnError(errors.New("disk full"))
			},
			wantErr: "tenant acme: increment daily usage: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.mockSetup(mock)

			err := repo.IncrementDaily(context.Background(), "acme", at, tt.inc)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_GetActiveTenantsWithPlan(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := pgxmock.NewRows([]string{"slug", "plan"}).
		AddRow("acme", "pro").
		AddRow("globex", "starter")
	mock.ExpectQuery(`SELECT slug, plan FROM tenants WHERE is_active = true`).
		WillReturnRows(rows)

	tenants, err := repo.GetActiveTenantsWithPlan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []TenantPlan{
		{TenantID: "acme", PlanID: "pro"},
		{TenantID: "globex", PlanID: "starter"},
	}, tenants)
	assert.NoError(t, mock.ExpectationsWereMet())
}
